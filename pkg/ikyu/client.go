package ikyu

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/tokyodine/pkg/restaurant"
)

// Fetcher performs rate-limited, retried requests.
type Fetcher interface {
	Get(ctx context.Context, url string, header http.Header) ([]byte, error)
}

// Client scrapes search pages and calendars.
type Client struct {
	fetcher   Fetcher
	logger    *slog.Logger
	now       func() time.Time
	base      string
	threshold int
}

// NewClient returns a client for BaseURL.
func NewClient(f Fetcher, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		fetcher:   f,
		logger:    logger,
		now:       time.Now,
		base:      BaseURL,
		threshold: restaurant.HardToReserveThreshold,
	}
}

// WithBase points the calendar API at another host, for tests and mirrors.
func (c *Client) WithBase(base string) *Client {
	c.base = base
	return c
}

// WithThreshold sets the hard-to-reserve threshold.
func (c *Client) WithThreshold(n int) *Client {
	if n > 0 {
		c.threshold = n
	}
	return c
}

func browserHeader(accept string) http.Header {
	return http.Header{
		"Accept":          {accept},
		"Accept-Language": {"ja,en-US;q=0.9,en;q=0.8"},
	}
}

// SearchPage fetches and parses one results page.
func (c *Client) SearchPage(ctx context.Context, url string) (Page, error) {
	body, err := c.fetcher.Get(ctx, url, browserHeader("text/html"))
	if err != nil {
		return Page{}, err
	}
	page, err := ParseSearchPage(bytes.NewReader(body))
	if err != nil {
		return Page{}, err
	}
	if len(page.Cards) == 0 {
		c.logger.Debug("no restaurant cards found", "url", url, "skipped", page.Skipped)
	} else if page.Skipped > 0 {
		c.logger.Warn("skipped incomplete restaurant cards", "url", url, "skipped", page.Skipped)
	}
	return page, nil
}

// Calendar fetches a restaurant's calendar.
func (c *Client) Calendar(ctx context.Context, id string) (Calendar, error) {
	body, err := c.fetcher.Get(ctx, CalendarURL(c.base, id), browserHeader("application/json, text/plain, */*"))
	if err != nil {
		return nil, err
	}
	return ParseCalendar(body)
}

// Restaurant builds a full record from a search card and its calendar,
// judging reservation status against the trip start date.
func (c *Client) Restaurant(ctx context.Context, card Card, start string) (*restaurant.Restaurant, error) {
	cal, err := c.Calendar(ctx, card.ID)
	if err != nil {
		return nil, fmt.Errorf("calendar for %s: %w", card.ID, err)
	}
	avail := cal.Availability(start, c.now(), c.threshold)
	r := &restaurant.Restaurant{
		IkyuID:          card.ID,
		Name:            card.Name,
		FoodType:        card.FoodType,
		ReservationLink: card.Link,
		CoverImageURL:   card.CoverImageURL,
		Summary:         card.Summary,
		Availability:    avail,
		LunchPrice:      restaurant.FirstPrice(avail.Lunch),
		DinnerPrice:     restaurant.FirstPrice(avail.Dinner),
	}
	c.logger.Debug("scraped restaurant", "id", r.IkyuID, "name", r.Name,
		"lunch_dates", len(avail.Lunch), "dinner_dates", len(avail.Dinner), "status", avail.Status.String())
	return r, nil
}
