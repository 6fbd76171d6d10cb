// Package finder runs the dining search end to end: it turns a travel query into
// location groups, scrapes ikyu, looks up ratings, caches everything in the
// store and plans the best itineraries.
package finder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/tokyodine/pkg/config"
	"github.com/codeGROOVE-dev/tokyodine/pkg/fetch"
	"github.com/codeGROOVE-dev/tokyodine/pkg/gemini"
	"github.com/codeGROOVE-dev/tokyodine/pkg/httpcache"
	"github.com/codeGROOVE-dev/tokyodine/pkg/ikyu"
	"github.com/codeGROOVE-dev/tokyodine/pkg/metrics"
	"github.com/codeGROOVE-dev/tokyodine/pkg/planner"
	"github.com/codeGROOVE-dev/tokyodine/pkg/ratings"
	"github.com/codeGROOVE-dev/tokyodine/pkg/report"
	"github.com/codeGROOVE-dev/tokyodine/pkg/restaurant"
	"github.com/codeGROOVE-dev/tokyodine/pkg/store"
)

// Scraper reads ikyu search pages and restaurant calendars.
type Scraper interface {
	SearchPage(ctx context.Context, url string) (ikyu.Page, error)
	Restaurant(ctx context.Context, card ikyu.Card, start string) (*restaurant.Restaurant, error)
}

// Rater looks up ratings for a batch of restaurants.
type Rater interface {
	Fetch(ctx context.Context, targets []ratings.Target) map[string]ratings.Ratings
}

// Translator turns a free-text query into location groups and cuisine labels.
type Translator interface {
	GroupLocations(ctx context.Context, query string, regions *restaurant.Table) ([]restaurant.LocationGroup, error)
	SuggestFoodTypes(ctx context.Context, query string, cuisines *restaurant.Table) (gemini.Suggestion, error)
}

// Finder wires the scraper, ratings, translation, store and planner together.
type Finder struct {
	scraper    Scraper
	rater      Rater
	translator Translator
	repo       *store.Repository
	metrics    *metrics.Metrics
	logger     *slog.Logger
	cuisines   *restaurant.Table
	regions    *restaurant.Table
	now        func() time.Time
	st         store.Store
	cache      *httpcache.Cache
	formatter  report.Formatter
	plannerCfg planner.Config
	scorer     planner.Scorer
	pages      int
	guests     int
	batch      int
	workers    int
}

// Option configures a Finder.
type Option func(*Finder)

// WithStore uses s instead of the configured backend.
func WithStore(s store.Store) Option { return func(f *Finder) { f.st = s } }

// WithScraper replaces the ikyu client.
func WithScraper(s Scraper) Option { return func(f *Finder) { f.scraper = s } }

// WithRater replaces the Tabelog and Google lookups.
func WithRater(r Rater) Option { return func(f *Finder) { f.rater = r } }

// WithTranslator replaces the Gemini client.
func WithTranslator(t Translator) Option { return func(f *Finder) { f.translator = t } }

// WithMetrics records pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option { return func(f *Finder) { f.metrics = m } }

// WithClock sets the time source used for default dates and staleness.
func WithClock(now func() time.Time) Option { return func(f *Finder) { f.now = now } }

// New builds a Finder from cfg. Components not supplied through options are
// created from the configuration; Gemini is only available when an API key or
// GCP project is configured.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ...Option) (*Finder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Finder{
		logger:     logger,
		now:        time.Now,
		cuisines:   cfg.CuisineTable(),
		regions:    cfg.RegionTable(),
		plannerCfg: cfg.Planner,
		scorer:     cfg.Scorer(),
		pages:      max(cfg.Scrape.Pages, 1),
		guests:     cfg.Scrape.Guests,
		batch:      cfg.Scrape.RatingsBatch,
		workers:    4,
	}
	if f.batch <= 0 {
		f.batch = 20
	}
	f.formatter = report.Formatter{Cuisines: f.cuisines, Lang: cfg.Language}
	for _, opt := range opts {
		opt(f)
	}

	if f.st == nil {
		st, err := store.Open(ctx, cfg.Store, logger)
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		f.st = st
	}
	f.repo = store.NewRepository(f.st, store.Policy{MaxAge: cfg.Scrape.MaxAge}, logger)

	needGemini := f.translator == nil && (cfg.Gemini.APIKey != "" || cfg.Gemini.Project != "")
	if f.scraper == nil || f.rater == nil || needGemini {
		cache, err := httpcache.New(ctx, cfg.Cache.Dir, cfg.Cache.TTL, logger)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("creating HTTP cache: %w", err), f.st.Close())
		}
		f.cache = cache
		f.metrics.WatchCache("http", func() (int, int64, int64) {
			s := cache.Stats()
			return s.Size, s.Hits, s.Misses
		})
	}

	plain := &http.Client{Timeout: 30 * time.Second}
	fetchOpts := []fetch.Option{
		fetch.WithRate(cfg.Scrape.RatePerSecond, cfg.Scrape.Burst),
		fetch.WithRetry(cfg.Scrape.Attempts, cfg.Scrape.RetryDelay),
	}
	if f.scraper == nil {
		// Calendars must reflect live availability, so they bypass the response cache.
		f.scraper = ikyu.NewClient(fetch.New(plain, logger, fetchOpts...), logger).WithThreshold(cfg.Scrape.HardToReserve)
	}
	if f.rater == nil {
		rf := fetch.New(httpcache.NewClient(f.cache, plain, logger), logger, fetchOpts...)
		ropts := []ratings.Option{
			ratings.WithTabelog(ratings.NewTabelog(rf, logger)),
			ratings.WithWorkers(cfg.Scrape.RatingsWorkers),
			ratings.WithObserver(f.metrics.ObserveRating),
		}
		if cfg.GoogleAPIKey != "" {
			ropts = append(ropts, ratings.WithGoogle(ratings.NewGoogle(cfg.GoogleAPIKey, rf, logger)))
		} else {
			logger.Info("GOOGLE_API_KEY not set, skipping Google ratings")
		}
		f.rater = ratings.NewService(logger, ropts...)
	}
	if needGemini {
		f.translator = gemini.NewClient(cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.Project, f.cache, logger)
	}
	return f, nil
}

// Close releases the store and saves the HTTP cache.
func (f *Finder) Close() error {
	var errs []error
	if f.cache != nil {
		errs = append(errs, f.cache.Close())
	}
	if f.st != nil {
		errs = append(errs, f.st.Close())
	}
	return errors.Join(errs...)
}

// Formatter returns the formatter used for reports.
func (f *Finder) Formatter() report.Formatter {
	return f.formatter
}
