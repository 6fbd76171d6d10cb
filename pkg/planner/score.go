package planner

import "github.com/codeGROOVE-dev/tokyodine/pkg/restaurant"

// DefaultScale is the weight multiplier K.
const DefaultScale = 1_000_000.0

// Baseline is the rating at which a reservation is worth nothing.
const Baseline = 3.5

// Scorer weighs reservations: (rating - 3.5) * Scale / price.
// Higher ratings and lower prices score higher; ratings under 3.5 score negative.
type Scorer struct {
	Scale float64
}

func (s Scorer) scale() float64 {
	if s.Scale > 0 {
		return s.Scale
	}
	return DefaultScale
}

// Weight scores one reservation. Unrated restaurants and unknown prices score 0.
func (s Scorer) Weight(r *restaurant.Restaurant, price int) float64 {
	if r == nil || !r.Rated() || price <= 0 {
		return 0
	}
	return (*r.Rating - Baseline) * s.scale() / float64(price)
}

// PlanWeight is the sum of the lunch and dinner weights.
func (s Scorer) PlanWeight(p DayPlan) float64 {
	return s.Weight(p.Lunch.Restaurant, p.Lunch.Price) + s.Weight(p.Dinner.Restaurant, p.Dinner.Price)
}
