package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/tokyodine/pkg/restaurant"
	"github.com/maypok86/otter/v2"
)

// Policy decides whether a cached restaurant must be scraped again.
type Policy struct {
	// Location defines calendar days for the same-day rule. Defaults to Asia/Tokyo.
	Location *time.Location
	// MaxAge, when set, also expires records older than this regardless of day.
	MaxAge time.Duration
}

func (p Policy) location() *time.Location {
	if p.Location != nil {
		return p.Location
	}
	if loc, err := time.LoadLocation("Asia/Tokyo"); err == nil {
		return loc
	}
	return time.FixedZone("JST", 9*60*60)
}

// NeedsRefresh reports whether r should be re-fetched for a trip starting on start.
func (p Policy) NeedsRefresh(r *restaurant.Restaurant, start string, now time.Time) bool {
	if r == nil {
		return true
	}
	if r.Availability.Status.Terminal(start) {
		return false
	}
	if r.LastUpdated.IsZero() {
		return true
	}
	if p.MaxAge > 0 && now.Sub(r.LastUpdated) > p.MaxAge {
		return true
	}
	loc := p.location()
	y1, m1, d1 := r.LastUpdated.In(loc).Date()
	y2, m2, d2 := now.In(loc).Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}

// Repository reads and writes typed records through a Store. Decoded records
// are kept in memory for a short while; callers must treat them as read-only
// and copy before modifying.
type Repository struct {
	store   Store
	decoded *otter.Cache[string, *restaurant.Restaurant]
	logger  *slog.Logger
	now     func() time.Time
	policy  Policy
}

// NewRepository wraps a store.
func NewRepository(s Store, policy Policy, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		store:  s,
		policy: policy,
		logger: logger,
		now:    time.Now,
		decoded: otter.Must(&otter.Options[string, *restaurant.Restaurant]{
			MaximumSize:      50_000,
			InitialCapacity:  1_000,
			ExpiryCalculator: otter.ExpiryWriting[string, *restaurant.Restaurant](10 * time.Minute),
		}),
	}
}

// Restaurant returns one decoded record.
func (r *Repository) Restaurant(ctx context.Context, id string) (*restaurant.Restaurant, error) {
	if rest, ok := r.decoded.GetIfPresent(id); ok {
		return rest, nil
	}
	data, err := r.store.Restaurant(ctx, id)
	if err != nil {
		return nil, err
	}
	rest, err := restaurant.Decode(id, data)
	if err != nil {
		return nil, err
	}
	r.decoded.Set(id, rest)
	return rest, nil
}

// Put stamps LastUpdated and stores the record.
func (r *Repository) Put(ctx context.Context, rest *restaurant.Restaurant) error {
	if rest.IkyuID == "" {
		return errors.New("restaurant has no ikyu id")
	}
	rest.LastUpdated = r.now()
	data, err := json.Marshal(rest)
	if err != nil {
		return fmt.Errorf("encoding restaurant %s: %w", rest.IkyuID, err)
	}
	if err := r.store.PutRestaurant(ctx, rest.IkyuID, data); err != nil {
		r.decoded.Invalidate(rest.IkyuID)
		return fmt.Errorf("storing restaurant %s: %w", rest.IkyuID, err)
	}
	stored := *rest
	r.decoded.Set(rest.IkyuID, &stored)
	return nil
}

// Flush persists buffered writes when the store buffers them.
func (r *Repository) Flush(ctx context.Context) error {
	if f, ok := r.store.(Flusher); ok {
		return f.Flush(ctx)
	}
	return nil
}

// Fresh returns the cached record and true when it does not need a refresh for start.
func (r *Repository) Fresh(ctx context.Context, id, start string) (*restaurant.Restaurant, bool) {
	rest, err := r.Restaurant(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.logger.Debug("cached restaurant unusable", "id", id, "error", err)
		}
		return nil, false
	}
	if r.policy.NeedsRefresh(rest, start, r.now()) {
		return rest, false
	}
	return rest, true
}

// PutGroup stores the restaurant IDs found for a group.
func (r *Repository) PutGroup(ctx context.Context, g restaurant.LocationGroup, ids []string) error {
	if err := r.store.PutGroup(ctx, g.Key(), ids); err != nil {
		return fmt.Errorf("storing group %s: %w", g.Key(), err)
	}
	return nil
}

// All returns every decodable restaurant in the store.
func (r *Repository) All(ctx context.Context) ([]*restaurant.Restaurant, error) {
	ids, err := r.store.RestaurantIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing restaurants: %w", err)
	}
	out := make([]*restaurant.Restaurant, 0, len(ids))
	for _, id := range ids {
		rest, err := r.Restaurant(ctx, id)
		if err != nil {
			r.logger.Warn("skipping restaurant", "id", id, "error", err)
			continue
		}
		out = append(out, rest)
	}
	return out, nil
}

// Snapshot is an immutable view of the restaurants of each group for one planning run.
type Snapshot struct {
	groups  map[string][]*restaurant.Restaurant
	Skipped int
}

// NewSnapshot builds a snapshot directly, keyed by group key.
func NewSnapshot(groups map[string][]*restaurant.Restaurant) *Snapshot {
	if groups == nil {
		groups = make(map[string][]*restaurant.Restaurant)
	}
	return &Snapshot{groups: groups}
}

// Restaurants returns the restaurants of a group in stored order.
func (s *Snapshot) Restaurants(key string) []*restaurant.Restaurant {
	if s == nil {
		return nil
	}
	return s.groups[key]
}

// Snapshot loads every group's restaurants. Missing groups load as empty and
// malformed or missing records are skipped with a log line.
func (r *Repository) Snapshot(ctx context.Context, groups []restaurant.LocationGroup) (*Snapshot, error) {
	snap := NewSnapshot(nil)
	loaded := make(map[string]*restaurant.Restaurant)

	for _, g := range groups {
		key := g.Key()
		if _, done := snap.groups[key]; done {
			continue
		}
		ids, err := r.store.GroupIDs(ctx, key)
		if errors.Is(err, ErrNotFound) {
			r.logger.Warn("no cached restaurants for group", "group", key)
			snap.groups[key] = nil
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("loading group %s: %w", key, err)
		}

		list := make([]*restaurant.Restaurant, 0, len(ids))
		for _, id := range ids {
			if rest, ok := loaded[id]; ok {
				list = append(list, rest)
				continue
			}
			rest, err := r.Restaurant(ctx, id)
			var de *restaurant.DecodeError
			switch {
			case errors.Is(err, ErrNotFound):
				r.logger.Debug("group references uncached restaurant", "group", key, "id", id)
				snap.Skipped++
				continue
			case errors.As(err, &de):
				r.logger.Warn("skipping malformed restaurant record", "group", key, "id", id, "error", err)
				snap.Skipped++
				continue
			case err != nil:
				return nil, fmt.Errorf("loading restaurant %s: %w", id, err)
			}
			loaded[id] = rest
			list = append(list, rest)
		}
		snap.groups[key] = list
	}

	r.logger.Debug("snapshot loaded", "groups", len(snap.groups), "restaurants", len(loaded), "skipped", snap.Skipped)
	return snap, nil
}
