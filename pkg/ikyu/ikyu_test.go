package ikyu

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/tokyodine/pkg/fetch"
)

const searchHTML = `<html><body>
<section class="restaurantCard_jpBMy">
  <a href="/111516?num_guests=2&amp;date=20240317">
    <div class="coverImages_3VYi2"><meta itemprop="image" content="https://img.ikyu.com/111516.jpg"></div>
    <h3 class="restaurantName_2s_sg">  鮨 さいとう
    </h3>
  </a>
  <div class="retaurantArea_s9Crj">六本木／寿司</div>
  <span class="restaurantCount_29PeJ">4.62</span>
</section>
<section class="restaurantCard_jpBMy">
  <a href="/222222"><h3 class="restaurantName_2s_sg">天ぷら 近藤</h3></a>
  <div class="retaurantArea_s9Crj">銀座／天ぷら・和食</div>
</section>
<section class="restaurantCard_jpBMy">
  <h3 class="restaurantName_2s_sg">no link</h3>
</section>
<section class="restaurantCard_jpBMy">
  <a href="/333"><h3 class="restaurantName_2s_sg">no area</h3></a>
</section>
</body></html>`

const calendarJSON = `{
  "breakfast": [],
  "lunch": [{"days": [
    {"day": 17, "month": 3, "year": 2024, "has_inventory": true, "best_price": 3800},
    {"day": 18, "month": 3, "year": 2024, "has_inventory": false, "best_price": 3800},
    {"day": 2, "month": 4, "year": 2024, "has_inventory": true, "best_price": 4200}
  ]}],
  "dinner": [{"days": [
    {"day": 17, "month": 3, "year": 2024, "has_inventory": true, "best_price": 15000}
  ]}],
  "teatime": []
}`

func TestParseSearchPage(t *testing.T) {
	page, err := ParseSearchPage(strings.NewReader(searchHTML))
	if err != nil {
		t.Fatalf("ParseSearchPage() error = %v", err)
	}
	if len(page.Cards) != 2 || page.Skipped != 2 {
		t.Fatalf("ParseSearchPage() = %d cards, %d skipped; want 2, 2", len(page.Cards), page.Skipped)
	}
	c := page.Cards[0]
	if c.ID != "111516" || c.Name != "鮨 さいとう" || c.FoodType != "寿司" {
		t.Errorf("card = %+v", c)
	}
	if c.Link != BaseURL+"/111516?num_guests=2&date=20240317" {
		t.Errorf("Link = %q", c.Link)
	}
	if c.CoverImageURL != "https://img.ikyu.com/111516.jpg" {
		t.Errorf("CoverImageURL = %q", c.CoverImageURL)
	}
	if !strings.Contains(c.Summary, "鮨 さいとう") {
		t.Errorf("Summary = %q", c.Summary)
	}
	if got := page.Cards[1].FoodType; got != "天ぷら・和食" {
		t.Errorf("second FoodType = %q", got)
	}
}

func TestSearchURL(t *testing.T) {
	raw := SearchURL([]string{"RC0101", "RC0102"}, []string{"A1301"}, 0)
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	q := u.Query()
	want := map[string]string{
		"pups": "4", "rtpc": "RC0101,RC0102", "rac1": TokyoCode, "rac2": "A1301",
		"pndt": "1", "ptaround": "0", "xsrt": "gourmet", "xpge": "1",
	}
	for k, v := range want {
		if q.Get(k) != v {
			t.Errorf("%s = %q, want %q", k, q.Get(k), v)
		}
	}

	pages, err := PageURLs(raw, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(pages) != 3 {
		t.Fatalf("len(PageURLs) = %d, want 3", len(pages))
	}
	for i, p := range pages {
		u, _ := url.Parse(p) //nolint:errcheck // built above
		if got := u.Query().Get("xpge"); got != string(rune('1'+i)) {
			t.Errorf("page %d xpge = %q", i, got)
		}
		if u.Query().Get("rtpc") != "RC0101,RC0102" {
			t.Errorf("page %d lost rtpc", i)
		}
	}

	if got := CalendarURL(BaseURL+"/", "111516"); got != "https://restaurant.ikyu.com/api/v1/restaurants/111516/calendar" {
		t.Errorf("CalendarURL() = %q", got)
	}
}

func TestParseCalendar(t *testing.T) {
	cal, err := ParseCalendar([]byte(calendarJSON))
	if err != nil {
		t.Fatalf("ParseCalendar() error = %v", err)
	}
	if len(cal["lunch"]) != 2 || cal["lunch"]["2024-04-02"] != 4200 {
		t.Errorf("lunch = %v", cal["lunch"])
	}
	if _, ok := cal["lunch"]["2024-03-18"]; ok {
		t.Error("day without inventory was kept")
	}
	if _, ok := cal["breakfast"]; ok {
		t.Error("empty meal produced a map")
	}

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	a := cal.Availability("2024-03-20", now, 8)
	if !a.Status.LikelyOpen || a.Status.After != "2024-03-20" {
		t.Errorf("Status = %+v, want open after 2024-03-20", a.Status)
	}
	// Lunch reaches past 2024-03-31 with a single open day in the window.
	if !a.HardToReserve {
		t.Error("HardToReserve = false")
	}
	if a := cal.Availability("2024-04-10", now, 8); a.Status.LikelyOpen {
		t.Error("Status open after the last listed date")
	}

	if _, err := ParseCalendar([]byte("<html>")); err == nil {
		t.Error("ParseCalendar(html) succeeded")
	}
}

func TestClientRestaurant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/restaurants/111516/calendar":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(calendarJSON)) //nolint:errcheck // test server
		case "/search":
			_, _ = w.Write([]byte(searchHTML)) //nolint:errcheck // test server
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	f := fetch.New(srv.Client(), logger, fetch.WithRetry(1, time.Millisecond), fetch.WithRate(1000, 10))
	c := NewClient(f, logger).WithBase(srv.URL)
	c.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	page, err := c.SearchPage(ctx, srv.URL+"/search?xpge=1")
	if err != nil {
		t.Fatalf("SearchPage() error = %v", err)
	}
	r, err := c.Restaurant(ctx, page.Cards[0], "2024-03-17")
	if err != nil {
		t.Fatalf("Restaurant() error = %v", err)
	}
	if r.LunchPrice != 3800 || r.DinnerPrice != 15000 {
		t.Errorf("prices = %d / %d, want 3800 / 15000", r.LunchPrice, r.DinnerPrice)
	}
	if got := r.Availability.Status.String(); got != "Likely open for reservation after 2024-03-17: True" {
		t.Errorf("Status = %q", got)
	}

	if _, err := c.Restaurant(ctx, page.Cards[1], "2024-03-17"); !fetch.IsStatus(err, http.StatusNotFound) {
		t.Errorf("Restaurant(unknown) error = %v, want 404", err)
	}
}
