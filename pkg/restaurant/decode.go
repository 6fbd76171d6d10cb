package restaurant

import (
	"encoding/json"
	"fmt"
	"time"
)

// DecodeError reports a cache record that cannot be used.
type DecodeError struct {
	Err   error
	ID    string
	Field string
}

func (e *DecodeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("restaurant %q: missing field %q", e.ID, e.Field)
	}
	return fmt.Sprintf("restaurant %q: %v", e.ID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

type rawAvailability struct {
	Lunch         map[string]int     `json:"lunch"`
	Dinner        map[string]int     `json:"dinner"`
	Status        *ReservationStatus `json:"reservation_status"`
	HardToReserve bool               `json:"hard_to_reserve"`
}

type rawRestaurant struct {
	LastUpdated     time.Time        `json:"last_updated"`
	Rating          *float64         `json:"rating"`
	TabelogRating   *float64         `json:"tabelog_rating"`
	GoogleRating    *float64         `json:"google_rating"`
	IkyuID          *string          `json:"ikyu_id"`
	Name            *string          `json:"name"`
	FoodType        *string          `json:"food_type"`
	Availability    *rawAvailability `json:"availability"`
	ReservationLink string           `json:"reservation_link"`
	CoverImageURL   string           `json:"cover_image_url"`
	Summary         string           `json:"summary"`
	TabelogLink     string           `json:"tabelog_link"`
	GoogleLink      string           `json:"google_link"`
	LunchPrice      int              `json:"lunch_price"`
	DinnerPrice     int              `json:"dinner_price"`
}

// Decode parses one cached record and rejects it when a required field is absent.
// id is the cache key and only appears in errors.
func Decode(id string, data []byte) (*Restaurant, error) {
	var raw rawRestaurant
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &DecodeError{ID: id, Err: err}
	}

	switch {
	case raw.IkyuID == nil || *raw.IkyuID == "":
		return nil, &DecodeError{ID: id, Field: "ikyu_id"}
	case raw.Name == nil:
		return nil, &DecodeError{ID: id, Field: "name"}
	case raw.FoodType == nil:
		return nil, &DecodeError{ID: id, Field: "food_type"}
	case raw.Availability == nil:
		return nil, &DecodeError{ID: id, Field: "availability"}
	case raw.Availability.Status == nil || raw.Availability.Status.IsZero():
		return nil, &DecodeError{ID: id, Field: "availability.reservation_status"}
	}

	return &Restaurant{
		LastUpdated:     raw.LastUpdated,
		Rating:          raw.Rating,
		TabelogRating:   raw.TabelogRating,
		GoogleRating:    raw.GoogleRating,
		IkyuID:          *raw.IkyuID,
		Name:            *raw.Name,
		FoodType:        *raw.FoodType,
		ReservationLink: raw.ReservationLink,
		CoverImageURL:   raw.CoverImageURL,
		Summary:         raw.Summary,
		TabelogLink:     raw.TabelogLink,
		GoogleLink:      raw.GoogleLink,
		LunchPrice:      raw.LunchPrice,
		DinnerPrice:     raw.DinnerPrice,
		Availability: Availability{
			Lunch:         raw.Availability.Lunch,
			Dinner:        raw.Availability.Dinner,
			Status:        *raw.Availability.Status,
			HardToReserve: raw.Availability.HardToReserve,
		},
	}, nil
}
