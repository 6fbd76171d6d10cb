package ratings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// PlacesURL is the Places API text search endpoint.
const PlacesURL = "https://places.googleapis.com/v1/places:searchText"

const placesFieldMask = "places.displayName,places.rating,places.googleMapsUri"

// Google looks up ratings with the Places API text search.
type Google struct {
	fetcher  Fetcher
	logger   *slog.Logger
	apiKey   string
	endpoint string
}

// NewGoogle returns a Places provider.
func NewGoogle(apiKey string, f Fetcher, logger *slog.Logger) *Google {
	if logger == nil {
		logger = slog.Default()
	}
	return &Google{apiKey: apiKey, fetcher: f, logger: logger, endpoint: PlacesURL}
}

// Name implements Provider.
func (*Google) Name() string { return "google" }

// Lookup returns the rating of the top text search result for the name in Tokyo.
func (g *Google) Lookup(ctx context.Context, name string) (Rating, bool, error) {
	if g.apiKey == "" {
		return Rating{}, false, errors.New("google API key not configured")
	}
	body, err := json.Marshal(map[string]string{"textQuery": name + " in Tokyo, Japan"})
	if err != nil {
		return Rating{}, false, err
	}
	header := http.Header{
		"Content-Type":     {"application/json"},
		"X-Goog-Api-Key":   {g.apiKey},
		"X-Goog-FieldMask": {placesFieldMask},
	}
	data, err := g.fetcher.Do(ctx, http.MethodPost, g.endpoint, header, body)
	if err != nil {
		return Rating{}, false, fmt.Errorf("places search: %w", err)
	}

	var result struct {
		Places []struct {
			Rating        *float64 `json:"rating"`
			GoogleMapsURI string   `json:"googleMapsUri"`
			DisplayName   struct {
				Text string `json:"text"`
			} `json:"displayName"`
		} `json:"places"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return Rating{}, false, fmt.Errorf("parsing places response: %w", err)
	}
	if len(result.Places) == 0 || result.Places[0].Rating == nil {
		g.logger.Debug("restaurant not found on google", "name", name, "results", len(result.Places))
		return Rating{}, false, nil
	}
	top := result.Places[0]
	return Rating{Score: top.Rating, Link: top.GoogleMapsURI}, true, nil
}
