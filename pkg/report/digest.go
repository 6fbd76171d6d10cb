package report

import (
	"github.com/codeGROOVE-dev/tokyodine/pkg/restaurant"
)

// DayDigest lists the notable restaurants open on one date.
type DayDigest struct {
	Date   string   `json:"date"`
	Lunch  []string `json:"lunch"`
	Dinner []string `json:"dinner"`
}

// Notable returns the well-rated restaurants that are either cheap or have a
// lunch special, without duplicates, best rated first.
func Notable(rs []*restaurant.Restaurant) []*restaurant.Restaurant {
	seen := make(map[string]bool)
	var out []*restaurant.Restaurant
	for _, r := range rs {
		if r == nil || r.Rating == nil || *r.Rating <= 3.5 || seen[r.IkyuID] {
			continue
		}
		if r.CheapestPrice() < 10000 || r.HasLunchSpecial() {
			seen[r.IkyuID] = true
			out = append(out, r)
		}
	}
	restaurant.SortByRating(out)
	return out
}

// AvailabilityByDate lists, for each date, the notable restaurants with a
// listed lunch or dinner on that date.
func (f Formatter) AvailabilityByDate(rs []*restaurant.Restaurant, dates []string) []DayDigest {
	notable := Notable(rs)
	days := make([]DayDigest, 0, len(dates))
	for _, date := range dates {
		day := DayDigest{Date: date, Lunch: []string{}, Dinner: []string{}}
		for _, r := range notable {
			if _, ok := r.Availability.Lunch[date]; ok {
				day.Lunch = append(day.Lunch, f.OneLine(r))
			}
			if _, ok := r.Availability.Dinner[date]; ok {
				day.Dinner = append(day.Dinner, f.OneLine(r))
			}
		}
		days = append(days, day)
	}
	return days
}
