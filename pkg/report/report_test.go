package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/codeGROOVE-dev/tokyodine/pkg/planner"
	"github.com/codeGROOVE-dev/tokyodine/pkg/restaurant"
)

func TestOneLine(t *testing.T) {
	tests := []struct {
		name string
		r    restaurant.Restaurant
		lang restaurant.Language
		want string
	}{
		{
			name: "cheap with lunch special",
			r: restaurant.Restaurant{Name: "鮨 さいとう", FoodType: "寿司", Rating: restaurant.Float(4.5),
				LunchPrice: 4000, DinnerPrice: 12000, ReservationLink: "https://restaurant.ikyu.com/1"},
			lang: restaurant.English,
			want: "💰💰💰🍱 鮨 さいとう, Sushi, 4.5, lunch: 4000, dinner: 12000, https://restaurant.ikyu.com/1",
		},
		{
			name: "mid price",
			r:    restaurant.Restaurant{Name: "a", FoodType: "天ぷら", Rating: restaurant.Float(4.0), DinnerPrice: 6500},
			lang: restaurant.Chinese,
			want: "💰💰 a, 天妇罗, 4.0, lunch: 0, dinner: 6500, ",
		},
		{
			name: "single coin",
			r:    restaurant.Restaurant{Name: "b", FoodType: "寿司", LunchPrice: 9000, DinnerPrice: 15000},
			lang: restaurant.Japanese,
			want: "💰 b, 寿司, None, lunch: 9000, dinner: 15000, ",
		},
		{
			name: "expensive compound type",
			r:    restaurant.Restaurant{Name: "c", FoodType: "寿司・謎料理", Rating: restaurant.Float(3.62), DinnerPrice: 30000},
			lang: restaurant.English,
			want: " c, Sushi・謎料理, 3.62, lunch: 0, dinner: 30000, ",
		},
		{
			name: "no prices",
			r:    restaurant.Restaurant{Name: "d", FoodType: "寿司"},
			lang: restaurant.English,
			want: " d, Sushi, None, lunch: 0, dinner: 0, ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OneLine(&tt.r, tt.lang); got != tt.want {
				t.Errorf("OneLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func sampleResult() planner.Result {
	lunch := &restaurant.Restaurant{Name: "l", FoodType: "寿司", Rating: restaurant.Float(4.0), LunchPrice: 3000}
	dinner := &restaurant.Restaurant{Name: "d", FoodType: "天ぷら", Rating: restaurant.Float(4.2), DinnerPrice: 5000}
	plan := planner.DayPlan{
		Date:   "2024-03-17",
		Group:  "銀座_東銀座",
		Lunch:  planner.Candidate{Restaurant: lunch, Price: 3000},
		Dinner: planner.Candidate{Restaurant: dinner, Price: 5000},
		Weight: 306.5,
	}
	return planner.Result{Combinations: []planner.Combination{
		{Plans: []planner.DayPlan{plan}, Weight: 306.5},
		{Plans: []planner.DayPlan{plan}, Weight: 200},
	}}
}

func TestMaterialize(t *testing.T) {
	records := Materialize(sampleResult(), restaurant.English, 1)
	if len(records) != 1 {
		t.Fatalf("len(Materialize()) = %d, want 1", len(records))
	}
	p := records[0].Plans[0]
	if p.Date != "2024-03-17" || p.Location != "銀座_東銀座" || p.Weight != 306.5 {
		t.Errorf("plan = %+v", p)
	}
	if !strings.Contains(p.Lunch, "Sushi") || !strings.Contains(p.Dinner, "Tempura") {
		t.Errorf("plan lunch/dinner = %q / %q", p.Lunch, p.Dinner)
	}
	if got := Materialize(sampleResult(), restaurant.English, 0); len(got) != 2 {
		t.Errorf("len(Materialize(limit 0)) = %d, want 2", len(got))
	}
	if got := Materialize(planner.Result{}, restaurant.English, 100); got == nil || len(got) != 0 {
		t.Errorf("Materialize(empty) = %#v, want empty slice", got)
	}
}

func TestWriteJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", DefaultFile)
	records := Materialize(sampleResult(), restaurant.Japanese, 100)
	if err := WriteJSON(path, records); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got []map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(got) != 2 || got[0]["weight"] != 306.5 {
		t.Errorf("output = %v", got)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temp file left behind: %v", err)
	}
}

func TestAvailabilityByDate(t *testing.T) {
	day := "2024-03-17"
	rs := []*restaurant.Restaurant{
		{IkyuID: "cheap", Name: "cheap", FoodType: "寿司", Rating: restaurant.Float(3.8), LunchPrice: 5000,
			Availability: restaurant.Availability{Lunch: map[string]int{day: 5000}}},
		{IkyuID: "special", Name: "special", FoodType: "寿司", Rating: restaurant.Float(4.1), LunchPrice: 8000, DinnerPrice: 30000,
			Availability: restaurant.Availability{Lunch: map[string]int{day: 8000}, Dinner: map[string]int{day: 30000}}},
		{IkyuID: "pricey", Name: "pricey", FoodType: "寿司", Rating: restaurant.Float(4.6), LunchPrice: 20000, DinnerPrice: 30000,
			Availability: restaurant.Availability{Lunch: map[string]int{day: 20000}}},
		{IkyuID: "low", Name: "low", FoodType: "寿司", Rating: restaurant.Float(3.5), LunchPrice: 3000,
			Availability: restaurant.Availability{Lunch: map[string]int{day: 3000}}},
		{IkyuID: "cheap", Name: "cheap", FoodType: "寿司", Rating: restaurant.Float(3.8), LunchPrice: 5000},
	}

	days := Formatter{Lang: restaurant.English}.AvailabilityByDate(rs, []string{day, "2024-03-18"})
	if len(days) != 2 {
		t.Fatalf("len(days) = %d, want 2", len(days))
	}
	if len(days[0].Lunch) != 2 || !strings.Contains(days[0].Lunch[0], "special") || !strings.Contains(days[0].Lunch[1], "cheap") {
		t.Errorf("lunch = %q", days[0].Lunch)
	}
	if len(days[0].Dinner) != 1 {
		t.Errorf("dinner = %q", days[0].Dinner)
	}
	if len(days[1].Lunch) != 0 || days[1].Lunch == nil {
		t.Errorf("second day lunch = %#v, want empty", days[1].Lunch)
	}
}

func TestRender(t *testing.T) {
	color.NoColor = true
	records := Materialize(sampleResult(), restaurant.English, 0)

	var buf bytes.Buffer
	if err := Print(&buf, records, 1); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"#1  weight 306.5  (1 days)", "2024-03-17", "Sushi", "1 more"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "#2") {
		t.Errorf("Render(n=1) printed a second record:\n%s", out)
	}
	if got := Render(nil, 5); !strings.Contains(got, "No itinerary") {
		t.Errorf("Render(nil) = %q", got)
	}
}
