// Package planner builds conflict-free multi-day dining itineraries from cached availability.
//
// Everything here is a pure function of its inputs: the planner reads a
// snapshot of restaurants and performs no I/O.
package planner

import (
	"fmt"
	"time"

	"github.com/codeGROOVE-dev/tokyodine/pkg/restaurant"
)

// Source supplies the restaurants cached for a location group.
type Source interface {
	Restaurants(groupKey string) []*restaurant.Restaurant
}

// Candidate is one bookable meal at one restaurant on one date.
type Candidate struct {
	Restaurant *restaurant.Restaurant
	Date       string
	Meal       restaurant.Meal
	Group      string
	Price      int
	// Fallback is set when the price is the restaurant's flat quote because its
	// calendar has not opened for the requested dates yet.
	Fallback bool
}

// DayPlan pairs a lunch and a dinner in one group on one date.
type DayPlan struct {
	Date   string
	Group  string
	Lunch  Candidate
	Dinner Candidate
	Weight float64
}

// CandidatesFor returns the restaurants of a group bookable for meal on date, in stored order.
func CandidatesFor(src Source, group, date string, meal restaurant.Meal) []Candidate {
	var out []Candidate
	for _, r := range src.Restaurants(group) {
		if r == nil {
			continue
		}
		c := Candidate{Restaurant: r, Date: date, Meal: meal, Group: group}
		if !r.Availability.Status.LikelyOpen {
			if c.Price = r.FlatPrice(meal); c.Price > 0 {
				c.Fallback = true
				out = append(out, c)
			}
			continue
		}
		if c.Price = r.Availability.Price(meal, date); c.Price > 0 {
			out = append(out, c)
		}
	}
	return out
}

// DayPlans returns every lunch x dinner pairing for every group and date.
// The cost is O(groups * days * |lunch| * |dinner|). A group and date with no
// lunch or no dinner candidates yields nothing. Repeated group keys are planned once.
func DayPlans(src Source, groups []restaurant.LocationGroup, dates []string, s Scorer) []DayPlan {
	var plans []DayPlan
	seen := make(map[string]bool, len(groups))
	for _, g := range groups {
		key := g.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		for _, date := range dates {
			lunches := CandidatesFor(src, key, date, restaurant.Lunch)
			if len(lunches) == 0 {
				continue
			}
			dinners := CandidatesFor(src, key, date, restaurant.Dinner)
			for _, l := range lunches {
				for _, d := range dinners {
					p := DayPlan{Date: date, Group: key, Lunch: l, Dinner: d}
					p.Weight = s.PlanWeight(p)
					plans = append(plans, p)
				}
			}
		}
	}
	return plans
}

// DateRange returns every ISO date from start to end inclusive.
func DateRange(start, end string) ([]string, error) {
	s, err := time.Parse(restaurant.DateLayout, start)
	if err != nil {
		return nil, fmt.Errorf("start date: %w", err)
	}
	e, err := time.Parse(restaurant.DateLayout, end)
	if err != nil {
		return nil, fmt.Errorf("end date: %w", err)
	}
	if e.Before(s) {
		return nil, fmt.Errorf("end date %s is before start date %s", end, start)
	}
	var dates []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(restaurant.DateLayout))
	}
	return dates, nil
}
