package finder

import (
	"context"
	"errors"

	"github.com/codeGROOVE-dev/tokyodine/pkg/restaurant"
)

// Event types sent by Stream.
const (
	EventRestaurant = "restaurant"
	EventRatings    = "ratings"
	EventClose      = "close"
)

// View is the web representation of a restaurant, with availability trimmed
// to the trip dates and the cuisine in the display language.
type View struct {
	Rating          *float64         `json:"rating"`
	TabelogRating   *float64         `json:"tabelogRating,omitempty"`
	GoogleRating    *float64         `json:"googleRating,omitempty"`
	Name            string           `json:"name"`
	CoverImageURL   string           `json:"coverImageUrl"`
	Type            string           `json:"type"`
	ReservationLink string           `json:"reservationLink"`
	IkyuID          string           `json:"ikyuId"`
	TabelogLink     string           `json:"tabelogLink,omitempty"`
	GoogleLink      string           `json:"googleLink,omitempty"`
	Availability    ViewAvailability `json:"availability"`
	LunchPrice      int              `json:"lunchPrice"`
	DinnerPrice     int              `json:"dinnerPrice"`
	HardToReserve   bool             `json:"hardToReserve"`
}

// ViewAvailability is the trimmed availability of a View.
type ViewAvailability struct {
	Lunch             map[string]int `json:"lunch"`
	Dinner            map[string]int `json:"dinner"`
	ReservationStatus string         `json:"reservationStatus"`
}

// Event is one message of a restaurant stream.
type Event struct {
	Restaurant *View  `json:"restaurant,omitempty"`
	Type       string `json:"type"`
}

// View renders r for the web.
func (f *Finder) View(r *restaurant.Restaurant, start, end string) View {
	a := restaurant.Trim(r.Availability, start, end)
	return View{
		Name:            r.Name,
		CoverImageURL:   r.CoverImageURL,
		Type:            f.cuisines.Translate(r.FoodType, f.formatter.Lang),
		Rating:          r.Rating,
		ReservationLink: r.ReservationLink,
		IkyuID:          r.IkyuID,
		Availability: ViewAvailability{
			ReservationStatus: r.Availability.Status.String(),
			Lunch:             a.Lunch,
			Dinner:            a.Dinner,
		},
		HardToReserve: r.Availability.HardToReserve,
		LunchPrice:    r.LunchPrice,
		DinnerPrice:   r.DinnerPrice,
		TabelogRating: r.TabelogRating,
		TabelogLink:   r.TabelogLink,
		GoogleRating:  r.GoogleRating,
		GoogleLink:    r.GoogleLink,
	}
}

// StreamRequest selects the restaurants to stream.
type StreamRequest struct {
	Start     string
	End       string
	Locations []string
	FoodTypes []string
}

// Stream scrapes the locations as one group and emits each restaurant as soon
// as it is known. Every batch of restaurants is then rated and emitted again
// as a ratings event. A final close event ends the stream. An emit error stops
// the stream and is returned.
func (f *Finder) Stream(ctx context.Context, req StreamRequest, emit func(Event) error) error {
	if len(req.Locations) == 0 {
		return ErrNoGroups
	}
	start, end, err := f.Dates(req.Start, req.End)
	if err != nil {
		return err
	}

	var batch []*restaurant.Restaurant
	flush := func() error {
		rated := f.Rate(ctx, batch)
		batch = nil
		for _, r := range rated {
			v := f.View(r, start, end)
			if err := emit(Event{Type: EventRatings, Restaurant: &v}); err != nil {
				return err
			}
		}
		return nil
	}

	group := restaurant.LocationGroup{Locations: req.Locations}
	_, err = f.Scrape(ctx, group, req.FoodTypes, start, false, func(r *restaurant.Restaurant) error {
		v := f.View(r, start, end)
		if err := emit(Event{Type: EventRestaurant, Restaurant: &v}); err != nil {
			return err
		}
		batch = append(batch, r)
		if len(batch) >= f.batch {
			return flush()
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrNoSearchCodes) {
		return err
	}
	if err != nil {
		f.logger.Warn("nothing to stream", "locations", req.Locations, "error", err)
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return err
		}
	}
	return emit(Event{Type: EventClose})
}
