package restaurant

import (
	"sort"
)

// SortByRating orders restaurants by rating, highest first, unrated last.
// Ties keep their input order.
func SortByRating(rs []*Restaurant) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i].Rating, rs[j].Rating
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a > *b
		}
	})
}

// ratingBucket groups ratings into the bands used for price listings.
func ratingBucket(r *float64) int {
	switch {
	case r == nil:
		return 4
	case *r >= 3.9:
		return 0
	case *r >= 3.7:
		return 1
	case *r >= 3.5:
		return 2
	default:
		return 3
	}
}

// SortByPrice orders restaurants by rating band (>=3.9, 3.7-3.9, 3.5-3.7, <3.5,
// unrated) and by the meal's flat price within each band, cheapest first.
// Unknown prices sort last within their band.
func SortByPrice(rs []*Restaurant, meal Meal) {
	SortByRating(rs)
	sort.SliceStable(rs, func(i, j int) bool {
		bi, bj := ratingBucket(rs[i].Rating), ratingBucket(rs[j].Rating)
		if bi != bj {
			return bi < bj
		}
		pi, pj := rs[i].FlatPrice(meal), rs[j].FlatPrice(meal)
		switch {
		case pi == 0:
			return false
		case pj == 0:
			return true
		default:
			return pi < pj
		}
	})
}
