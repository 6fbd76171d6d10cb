// Package restaurant defines the typed records shared by the scrapers, the store and the planner.
package restaurant

import (
	"strings"
	"time"
)

// Meal is a bookable service of the day.
type Meal string

// Meals the planner schedules. Breakfast and teatime are present in the
// calendar API but never planned.
const (
	Lunch  Meal = "lunch"
	Dinner Meal = "dinner"
)

// NoPrice is the cheapest-price sentinel for restaurants without a known price.
const NoPrice = 99999

// LocationGroup is a cluster of nearby sub-regions searched as one unit.
type LocationGroup struct {
	Locations []string `json:"locations"`
	SearchURL string   `json:"searchUrl,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// Key identifies the group in the store and in plans.
func (g LocationGroup) Key() string {
	return strings.Join(g.Locations, "_")
}

// Availability holds per-date prices for each meal plus the derived booking flags.
// A date that is absent from a map has no availability for that meal.
type Availability struct {
	Lunch         map[string]int    `json:"lunch,omitempty"`
	Dinner        map[string]int    `json:"dinner,omitempty"`
	Status        ReservationStatus `json:"reservation_status"`
	HardToReserve bool              `json:"hard_to_reserve"`
}

// Dates returns the date map for a meal, or nil.
func (a *Availability) Dates(meal Meal) map[string]int {
	switch meal {
	case Lunch:
		return a.Lunch
	case Dinner:
		return a.Dinner
	default:
		return nil
	}
}

// Price returns the listed price for meal on date, or 0.
func (a *Availability) Price(meal Meal, date string) int {
	p := a.Dates(meal)[date]
	if p < 0 {
		return 0
	}
	return p
}

// Restaurant is one ikyu listing with its scraped availability and ratings.
type Restaurant struct {
	LastUpdated     time.Time    `json:"last_updated"`
	Rating          *float64     `json:"rating"`
	TabelogRating   *float64     `json:"tabelog_rating,omitempty"`
	GoogleRating    *float64     `json:"google_rating,omitempty"`
	IkyuID          string       `json:"ikyu_id"`
	Name            string       `json:"name"`
	FoodType        string       `json:"food_type"`
	ReservationLink string       `json:"reservation_link"`
	CoverImageURL   string       `json:"cover_image_url,omitempty"`
	Summary         string       `json:"summary,omitempty"`
	TabelogLink     string       `json:"tabelog_link,omitempty"`
	GoogleLink      string       `json:"google_link,omitempty"`
	Availability    Availability `json:"availability"`
	LunchPrice      int          `json:"lunch_price"`
	DinnerPrice     int          `json:"dinner_price"`
}

// FlatPrice returns the quoted price for a meal regardless of date, 0 if unknown.
func (r *Restaurant) FlatPrice(meal Meal) int {
	var p int
	switch meal {
	case Lunch:
		p = r.LunchPrice
	case Dinner:
		p = r.DinnerPrice
	}
	if p < 0 {
		return 0
	}
	return p
}

// CheapestPrice returns the lower of the known lunch and dinner prices, or NoPrice.
func (r *Restaurant) CheapestPrice() int {
	cheapest := NoPrice
	if r.LunchPrice > 0 {
		cheapest = r.LunchPrice
	}
	if r.DinnerPrice > 0 && r.DinnerPrice < cheapest {
		cheapest = r.DinnerPrice
	}
	return cheapest
}

// HasLunchSpecial reports whether lunch costs less than half of dinner.
func (r *Restaurant) HasLunchSpecial() bool {
	if r.LunchPrice <= 0 || r.DinnerPrice <= 0 {
		return false
	}
	return float64(r.LunchPrice) < 0.5*float64(r.DinnerPrice)
}

// Rated reports whether the restaurant has a usable rating.
func (r *Restaurant) Rated() bool {
	return r.Rating != nil && *r.Rating != 0
}

// Float returns a pointer to v, for building ratings.
func Float(v float64) *float64 {
	return &v
}
