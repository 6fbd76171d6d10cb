// Package report turns search results into human-readable summaries and JSON files.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/codeGROOVE-dev/tokyodine/pkg/planner"
	"github.com/codeGROOVE-dev/tokyodine/pkg/restaurant"
)

// DefaultFile is the name of the ranked itinerary file.
const DefaultFile = "plans_by_location.json"

// Price markers, cheapest first.
const (
	lunchSpecial = "🍱"
	coin         = "💰"
)

// PlanRecord is a DayPlan with its reservations rendered as one-liners.
type PlanRecord struct {
	Date     string  `json:"date"`
	Location string  `json:"location"`
	Lunch    string  `json:"lunch"`
	Dinner   string  `json:"dinner"`
	Weight   float64 `json:"weight"`
}

// Record is one ranked combination.
type Record struct {
	Plans  []PlanRecord `json:"plans"`
	Weight float64      `json:"weight"`
}

// Formatter renders restaurants in a display language.
type Formatter struct {
	// Cuisines translates food types. Nil means restaurant.Cuisines.
	Cuisines *restaurant.Table
	Lang     restaurant.Language
}

// OneLine renders r with the built-in cuisine table.
func OneLine(r *restaurant.Restaurant, lang restaurant.Language) string {
	return Formatter{Lang: lang}.OneLine(r)
}

// OneLine renders r as "{price marker}{lunch marker} name, type, rating, lunch: L, dinner: D, link".
func (f Formatter) OneLine(r *restaurant.Restaurant) string {
	table := f.Cuisines
	if table == nil {
		table = restaurant.Cuisines
	}
	var special string
	if r.HasLunchSpecial() {
		special = lunchSpecial
	}
	return fmt.Sprintf("%s%s %s, %s, %s, lunch: %d, dinner: %d, %s",
		priceMarker(r.CheapestPrice()), special, r.Name, table.Translate(r.FoodType, f.Lang),
		formatRating(r.Rating), r.LunchPrice, r.DinnerPrice, r.ReservationLink)
}

func priceMarker(cheapest int) string {
	switch {
	case cheapest < 5000:
		return strings.Repeat(coin, 3)
	case cheapest < 7000:
		return strings.Repeat(coin, 2)
	case cheapest < 10000:
		return coin
	default:
		return ""
	}
}

func formatRating(r *float64) string {
	if r == nil {
		return "None"
	}
	s := strconv.FormatFloat(*r, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Materialize renders the combinations of res, keeping at most limit. A limit
// of 0 keeps them all.
func (f Formatter) Materialize(res planner.Result, limit int) []Record {
	combos := res.Combinations
	if limit > 0 && len(combos) > limit {
		combos = combos[:limit]
	}
	out := make([]Record, 0, len(combos))
	for _, c := range combos {
		rec := Record{Weight: c.Weight, Plans: make([]PlanRecord, 0, len(c.Plans))}
		for _, p := range c.Plans {
			rec.Plans = append(rec.Plans, PlanRecord{
				Date:     p.Date,
				Location: p.Group,
				Lunch:    f.OneLine(p.Lunch.Restaurant),
				Dinner:   f.OneLine(p.Dinner.Restaurant),
				Weight:   p.Weight,
			})
		}
		out = append(out, rec)
	}
	return out
}

// Materialize renders res with the built-in cuisine table.
func Materialize(res planner.Result, lang restaurant.Language, limit int) []Record {
	return Formatter{Lang: lang}.Materialize(res, limit)
}

// WriteJSON writes v as indented JSON to path, replacing it atomically.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp) //nolint:errcheck // best effort
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}
