package restaurant

import (
	"time"
)

// DateLayout is the ISO date format used for every availability key.
const DateLayout = "2006-01-02"

// HardToReserveThreshold is the default minimum number of open days in the next 30.
const HardToReserveThreshold = 8

// HasDatesAfter reports whether the latest date in dates is strictly after date.
func HasDatesAfter(dates map[string]int, date string) bool {
	for d := range dates {
		if d > date {
			return true
		}
	}
	return false
}

// HardToReserve reports whether fewer than threshold of the 30 days starting at
// now are open. It only judges calendars that extend beyond that window; a
// shorter calendar says nothing about demand and is never flagged.
func HardToReserve(dates map[string]int, now time.Time, threshold int) bool {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if !HasDatesAfter(dates, today.AddDate(0, 0, 30).Format(DateLayout)) {
		return false
	}
	open := 0
	for i := range 30 {
		if _, ok := dates[today.AddDate(0, 0, i).Format(DateLayout)]; ok {
			open++
		}
	}
	return open < threshold
}

// Trim returns a copy of a restricted to dates in [start, end]. Both meal maps
// are always non-nil in the result.
func Trim(a Availability, start, end string) Availability {
	out := Availability{
		Lunch:         make(map[string]int),
		Dinner:        make(map[string]int),
		Status:        a.Status,
		HardToReserve: a.HardToReserve,
	}
	for d, p := range a.Lunch {
		if d >= start && d <= end {
			out.Lunch[d] = p
		}
	}
	for d, p := range a.Dinner {
		if d >= start && d <= end {
			out.Dinner[d] = p
		}
	}
	return out
}

// FirstPrice returns the price on the earliest date in dates, or 0.
func FirstPrice(dates map[string]int) int {
	first := ""
	for d := range dates {
		if first == "" || d < first {
			first = d
		}
	}
	if first == "" {
		return 0
	}
	return dates[first]
}
