// Package ratings cross-references restaurants with Tabelog and Google ratings.
package ratings

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/tokyodine/pkg/restaurant"
)

// Fetcher performs rate-limited, retried requests.
type Fetcher interface {
	Get(ctx context.Context, url string, header http.Header) ([]byte, error)
	Do(ctx context.Context, method, url string, header http.Header, body []byte) ([]byte, error)
}

// Rating is one provider's score and page for a restaurant.
type Rating struct {
	Score *float64 `json:"score"`
	Link  string   `json:"link,omitempty"`
}

// Provider looks up a restaurant by name. Not finding it is ok == false with a nil error.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, name string) (Rating, bool, error)
}

// Ratings collects what each provider found.
type Ratings struct {
	Tabelog *Rating `json:"tabelog,omitempty"`
	Google  *Rating `json:"google,omitempty"`
}

// Apply copies the ratings onto r. The Tabelog score, whose scale centres on
// 3.5, becomes the planning rating; an existing rating is kept otherwise.
func (rs Ratings) Apply(r *restaurant.Restaurant) {
	if rs.Tabelog != nil {
		r.TabelogRating = rs.Tabelog.Score
		r.TabelogLink = rs.Tabelog.Link
		if rs.Tabelog.Score != nil {
			r.Rating = rs.Tabelog.Score
		}
	}
	if rs.Google != nil {
		r.GoogleRating = rs.Google.Score
		r.GoogleLink = rs.Google.Link
	}
}

// Target identifies a restaurant to look up.
type Target struct {
	ID   string
	Name string
}

// Observer is told the outcome of every lookup: "found", "missing" or "error".
type Observer func(provider, outcome string)

// Service fans lookups out over a bounded worker pool.
type Service struct {
	tabelog Provider
	google  Provider
	observe Observer
	logger  *slog.Logger
	workers int
}

// Option configures a Service.
type Option func(*Service)

// WithTabelog sets the Tabelog provider.
func WithTabelog(p Provider) Option { return func(s *Service) { s.tabelog = p } }

// WithGoogle sets the Google provider.
func WithGoogle(p Provider) Option { return func(s *Service) { s.google = p } }

// WithWorkers bounds concurrent lookups.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithObserver reports lookup outcomes, typically to metrics.
func WithObserver(o Observer) Option { return func(s *Service) { s.observe = o } }

// NewService returns a Service with the given providers.
func NewService(logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{logger: logger, workers: 8}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) lookup(ctx context.Context, p Provider, name string) (*Rating, error) {
	if p == nil {
		return nil, nil
	}
	r, ok, err := p.Lookup(ctx, name)
	outcome := "found"
	switch {
	case err != nil:
		outcome = "error"
	case !ok:
		outcome = "missing"
	}
	if s.observe != nil {
		s.observe(p.Name(), outcome)
	}
	if err != nil || !ok {
		return nil, err
	}
	return &r, nil
}

// Lookup queries every provider for one restaurant.
func (s *Service) Lookup(ctx context.Context, name string) (Ratings, error) {
	var (
		rs  Ratings
		err error
	)
	if rs.Tabelog, err = s.lookup(ctx, s.tabelog, name); err != nil {
		return Ratings{}, err
	}
	if rs.Google, err = s.lookup(ctx, s.google, name); err != nil {
		return Ratings{}, err
	}
	return rs, nil
}

// Fetch looks up every target concurrently. A failed lookup leaves that
// restaurant with empty ratings and never fails the batch.
func (s *Service) Fetch(ctx context.Context, targets []Target) map[string]Ratings {
	out := make(map[string]Ratings, len(targets))
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, t := range targets {
		g.Go(func() error {
			rs, err := s.Lookup(ctx, t.Name)
			if err != nil {
				s.logger.Warn("ratings lookup failed", "id", t.ID, "name", t.Name, "error", err)
				rs = Ratings{}
			}
			mu.Lock()
			out[t.ID] = rs
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors
	return out
}
