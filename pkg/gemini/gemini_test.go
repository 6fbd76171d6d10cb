package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"

	"google.golang.org/genai"

	"github.com/codeGROOVE-dev/tokyodine/pkg/restaurant"
)

type fakeGenerator struct {
	answers []string
	errs    []error
	calls   int
	system  string
}

func (f *fakeGenerator) GenerateContent(_ context.Context, _ string, _ []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	i := f.calls
	f.calls++
	if config.SystemInstruction != nil && len(config.SystemInstruction.Parts) > 0 {
		f.system = config.SystemInstruction.Parts[0].Text
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	text := f.answers[min(i, len(f.answers)-1)]
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: text}}}}},
	}, nil
}

type mapCache map[string][]byte

func (m mapCache) APICall(key string, payload []byte) ([]byte, bool) {
	v, ok := m[key+string(payload)]
	return v, ok
}

func (m mapCache) SetAPICall(key string, payload, data []byte) error {
	m[key+string(payload)] = data
	return nil
}

func newTestClient(gen *fakeGenerator, cache Cache) *Client {
	c := NewClient("key", "models/test-model", "", cache, slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.gen = gen
	return c
}

func TestGroupLocations(t *testing.T) {
	gen := &fakeGenerator{answers: []string{`{"groups":[
		{"locations":["銀座","東銀座","Atlantis","銀座"],"reason":" shopping in Ginza "},
		{"locations":["Nowhere"],"reason":"dropped"},
		{"locations":["浅草","上野"],"reason":"temples"}]}`}}
	cache := mapCache{}
	c := newTestClient(gen, cache)

	got, err := c.GroupLocations(context.Background(), "Ginza then Asakusa", restaurant.Regions)
	if err != nil {
		t.Fatalf("GroupLocations() error = %v", err)
	}
	want := []restaurant.LocationGroup{
		{Locations: []string{"銀座", "東銀座"}, Reason: "shopping in Ginza"},
		{Locations: []string{"浅草", "上野"}, Reason: "temples"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GroupLocations() = %+v, want %+v", got, want)
	}
	if c.model != "test-model" {
		t.Errorf("model = %q, want models/ prefix trimmed", c.model)
	}

	// The second call is served from the cache.
	if _, err := c.GroupLocations(context.Background(), "Ginza then Asakusa", restaurant.Regions); err != nil {
		t.Fatalf("cached GroupLocations() error = %v", err)
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}
	if len(cache) != 1 {
		t.Errorf("cache entries = %d, want 1", len(cache))
	}
}

func TestGroupLocationsNothingKnown(t *testing.T) {
	gen := &fakeGenerator{answers: []string{`{"groups":[{"locations":["Atlantis"],"reason":"x"}]}`}}
	_, err := newTestClient(gen, nil).GroupLocations(context.Background(), "q", restaurant.Regions)
	if !errors.Is(err, ErrNoGroups) {
		t.Errorf("GroupLocations() error = %v, want ErrNoGroups", err)
	}
}

func TestGenerateRetriesTransientErrors(t *testing.T) {
	gen := &fakeGenerator{
		errs:    []error{errors.New("Error 503, UNAVAILABLE"), nil},
		answers: []string{"", "Here you go:\n```json\n{\"food_types\":[\"焼肉\",\"鉄板焼\",\"Pizza\"],\"reason\":\"bbq\"}\n```"},
	}
	s, err := newTestClient(gen, nil).SuggestFoodTypes(context.Background(), "bbq", restaurant.Cuisines)
	if err != nil {
		t.Fatalf("SuggestFoodTypes() error = %v", err)
	}
	if !reflect.DeepEqual(s.FoodTypes, []string{"焼肉", "鉄板焼"}) || s.Reason != "bbq" {
		t.Errorf("SuggestFoodTypes() = %+v", s)
	}
	if gen.calls != 2 {
		t.Errorf("generator calls = %d, want 2", gen.calls)
	}
	if !strings.Contains(gen.system, "焼肉") || !strings.Contains(gen.system, "フレンチ") {
		t.Errorf("system prompt does not list the categories: %q", gen.system)
	}
}

func TestGeneratePermanentError(t *testing.T) {
	gen := &fakeGenerator{errs: []error{errors.New("invalid argument"), nil}, answers: []string{"{}"}}
	if _, err := newTestClient(gen, nil).SuggestFoodTypes(context.Background(), "q", restaurant.Cuisines); err == nil {
		t.Error("SuggestFoodTypes() succeeded after a permanent error")
	}
	if gen.calls != 1 {
		t.Errorf("generator calls = %d, want 1", gen.calls)
	}
}

func TestParseLocationGroups(t *testing.T) {
	answer := `Sure!
[locations] 銀座, 東銀座
[reason] You said you'll be shopping in Ginza.
[locations] 浅草, 上野 ,押上
[reason] 浅草寺 is in 浅草.
[locations] 渋谷`
	got := ParseLocationGroups(answer)
	want := []restaurant.LocationGroup{
		{Locations: []string{"銀座", "東銀座"}, Reason: "You said you'll be shopping in Ginza."},
		{Locations: []string{"浅草", "上野", "押上"}, Reason: "浅草寺 is in 浅草."},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ParseLocationGroups() = %+v, want %+v", got, want)
	}
	if got := ParseLocationGroups(""); got != nil {
		t.Errorf("ParseLocationGroups(\"\") = %v, want nil", got)
	}
}

func TestParseList(t *testing.T) {
	got := ParseList("焼肉 , 鉄板焼,\nUser asked for bbq.")
	if !reflect.DeepEqual(got, []string{"焼肉", "鉄板焼"}) {
		t.Errorf("ParseList() = %v", got)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{`{"a":1}`, `{"a":1}`, false},
		{"```json\n{\"a\":1}\n```", `{"a":1}`, false},
		{`The answer is {"a":1}.`, `{"a":1}`, false},
		{"no json here", "", true},
	}
	for _, tt := range tests {
		got, err := extractJSON(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("extractJSON(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}
