package ikyu

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/codeGROOVE-dev/tokyodine/pkg/restaurant"
)

type calendarDay struct {
	Day          int  `json:"day"`
	Month        int  `json:"month"`
	Year         int  `json:"year"`
	HasInventory bool `json:"has_inventory"`
	BestPrice    int  `json:"best_price"`
}

type calendarMonth struct {
	Days []calendarDay `json:"days"`
}

// Calendar holds the bookable dates and best prices per meal. Breakfast and
// teatime are parsed but never planned.
type Calendar map[string]map[string]int

// ParseCalendar decodes the calendar API response. Only days with inventory are kept.
func ParseCalendar(data []byte) (Calendar, error) {
	var raw map[string][]calendarMonth
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing calendar: %w", err)
	}
	cal := make(Calendar)
	for meal, months := range raw {
		for _, m := range months {
			for _, d := range m.Days {
				if !d.HasInventory {
					continue
				}
				if cal[meal] == nil {
					cal[meal] = make(map[string]int)
				}
				cal[meal][fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)] = d.BestPrice
			}
		}
	}
	return cal, nil
}

// Availability derives the stored availability from a calendar. The status is
// open when either meal has a date after start. The restaurant is hard to
// reserve when either meal is.
func (c Calendar) Availability(start string, now time.Time, threshold int) restaurant.Availability {
	lunch := c[string(restaurant.Lunch)]
	dinner := c[string(restaurant.Dinner)]
	return restaurant.Availability{
		Lunch:  lunch,
		Dinner: dinner,
		Status: restaurant.ReservationStatus{
			After:      start,
			LikelyOpen: restaurant.HasDatesAfter(dinner, start) || restaurant.HasDatesAfter(lunch, start),
		},
		HardToReserve: restaurant.HardToReserve(lunch, now, threshold) || restaurant.HardToReserve(dinner, now, threshold),
	}
}
