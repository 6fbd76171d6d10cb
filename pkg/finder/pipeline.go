package finder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codeGROOVE-dev/tokyodine/pkg/ikyu"
	"github.com/codeGROOVE-dev/tokyodine/pkg/planner"
	"github.com/codeGROOVE-dev/tokyodine/pkg/ratings"
	"github.com/codeGROOVE-dev/tokyodine/pkg/report"
	"github.com/codeGROOVE-dev/tokyodine/pkg/restaurant"
)

var (
	// ErrNoGroups is returned when a request has neither groups nor a query to derive them from.
	ErrNoGroups = errors.New("no location groups: give groups or a query")
	// ErrNoTranslator is returned when a query needs translating but Gemini is not configured.
	ErrNoTranslator = errors.New("query translation is not configured (set GEMINI_API_KEY or GCP_PROJECT)")
	// ErrNoSearchCodes is returned when none of a group's locations has an ikyu search code.
	ErrNoSearchCodes = errors.New("no ikyu search codes for the group's locations")
)

// Request describes one planning run.
type Request struct {
	Query     string
	Start     string
	End       string
	Groups    []restaurant.LocationGroup
	FoodTypes []string
	// Refresh scrapes every restaurant even when its cached record is fresh.
	Refresh bool
	// Offline plans from the store without scraping.
	Offline bool
}

// Outcome is the result of Run.
type Outcome struct {
	Start     string
	End       string
	Reason    string
	Groups    []restaurant.LocationGroup
	FoodTypes []string
	Records   []report.Record
	Digest    []report.DayDigest
	Result    planner.Result
	Scraped   int
	Skipped   int
}

func tokyo() *time.Location {
	if loc, err := time.LoadLocation("Asia/Tokyo"); err == nil {
		return loc
	}
	return time.FixedZone("JST", 9*60*60)
}

// Dates fills in and validates a trip's date range. The start defaults to today
// in Tokyo and the end to one month after the start.
func (f *Finder) Dates(start, end string) (string, string, error) {
	if start == "" {
		start = f.now().In(tokyo()).Format(time.DateOnly)
	}
	s, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return "", "", fmt.Errorf("invalid start date %q, expected YYYY-MM-DD", start)
	}
	if end == "" {
		end = s.AddDate(0, 1, 0).Format(time.DateOnly)
	}
	e, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return "", "", fmt.Errorf("invalid end date %q, expected YYYY-MM-DD", end)
	}
	if e.Before(s) {
		return "", "", fmt.Errorf("end date %s is before start date %s", end, start)
	}
	return start, end, nil
}

// Resolve returns the location groups and food types for req, asking the
// translator for whatever the request leaves out.
func (f *Finder) Resolve(ctx context.Context, req Request) (groups []restaurant.LocationGroup, foodTypes []string, reason string, err error) {
	groups, foodTypes = req.Groups, req.FoodTypes
	query := strings.TrimSpace(req.Query)

	if len(groups) == 0 {
		if query == "" {
			return nil, nil, "", ErrNoGroups
		}
		if f.translator == nil {
			return nil, nil, "", ErrNoTranslator
		}
		if groups, err = f.translator.GroupLocations(ctx, query, f.regions); err != nil {
			return nil, nil, "", fmt.Errorf("grouping locations: %w", err)
		}
		for _, g := range groups {
			f.logger.Info("location group", "locations", strings.Join(g.Locations, ", "), "reason", g.Reason)
		}
	}

	if len(foodTypes) == 0 && query != "" && f.translator != nil {
		s, err := f.translator.SuggestFoodTypes(ctx, query, f.cuisines)
		if err != nil {
			f.logger.Warn("food type suggestion failed, searching every cuisine", "error", err)
		} else {
			foodTypes, reason = s.FoodTypes, s.Reason
			f.logger.Info("suggested food types", "food_types", strings.Join(foodTypes, ", "), "reason", reason)
		}
	}
	return groups, foodTypes, reason, nil
}

func (f *Finder) searchURL(g restaurant.LocationGroup, foodTypes []string) (string, error) {
	if g.SearchURL != "" {
		return g.SearchURL, nil
	}
	var regions, cuisines []string
	for _, l := range g.Locations {
		if code, ok := f.regions.Code(l); ok {
			regions = append(regions, code)
		} else {
			f.logger.Warn("no search code for location", "location", l)
		}
	}
	if len(regions) == 0 {
		return "", fmt.Errorf("group %s: %w", g.Key(), ErrNoSearchCodes)
	}
	for _, t := range foodTypes {
		if code, ok := f.cuisines.Code(t); ok {
			cuisines = append(cuisines, code)
		} else {
			f.logger.Warn("no search code for food type", "food_type", t)
		}
	}
	return ikyu.SearchURL(cuisines, regions, f.guests), nil
}

// Scrape searches ikyu for one group, refreshes stale restaurants, stores them
// with the group's ID list and calls emit for each restaurant in search order.
func (f *Finder) Scrape(ctx context.Context, g restaurant.LocationGroup, foodTypes []string, start string, refresh bool, emit func(*restaurant.Restaurant) error) ([]*restaurant.Restaurant, error) {
	search, err := f.searchURL(g, foodTypes)
	if err != nil {
		return nil, err
	}
	pages, err := ikyu.PageURLs(search, f.pages)
	if err != nil {
		return nil, err
	}

	var (
		out     []*restaurant.Restaurant
		ids     []string
		seen    = make(map[string]bool)
		okPages int
		lastErr error
	)
	for _, u := range pages {
		page, err := f.scraper.SearchPage(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.metrics.ObserveScrape("search_page", "error")
			f.logger.Warn("search page failed", "group", g.Key(), "url", u, "error", err)
			lastErr = err
			continue
		}
		f.metrics.ObserveScrape("search_page", "ok")
		okPages++
		if len(page.Cards) == 0 {
			break
		}

		var cards []ikyu.Card
		for _, c := range page.Cards {
			if !seen[c.ID] {
				seen[c.ID] = true
				cards = append(cards, c)
			}
		}
		for _, r := range f.restaurants(ctx, cards, start, refresh) {
			if r == nil {
				continue
			}
			ids = append(ids, r.IkyuID)
			out = append(out, r)
			if emit != nil {
				if err := emit(r); err != nil {
					return out, err
				}
			}
		}
	}
	if okPages == 0 && lastErr != nil {
		return nil, fmt.Errorf("searching %s: %w", g.Key(), lastErr)
	}
	if err := f.repo.PutGroup(ctx, g, ids); err != nil {
		return out, err
	}
	f.logger.Info("group scraped", "group", g.Key(), "restaurants", len(ids))
	return out, nil
}

// restaurants resolves cards concurrently, keeping card order. A nil entry
// means the card could not be resolved.
func (f *Finder) restaurants(ctx context.Context, cards []ikyu.Card, start string, refresh bool) []*restaurant.Restaurant {
	out := make([]*restaurant.Restaurant, len(cards))
	var g errgroup.Group
	g.SetLimit(f.workers)
	for i, c := range cards {
		g.Go(func() error {
			out[i] = f.restaurant(ctx, c, start, refresh)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors
	return out
}

func (f *Finder) restaurant(ctx context.Context, card ikyu.Card, start string, refresh bool) *restaurant.Restaurant {
	cached, fresh := f.repo.Fresh(ctx, card.ID, start)
	if fresh && !refresh {
		f.metrics.ObserveScrape("calendar", "cached")
		return cached
	}
	r, err := f.scraper.Restaurant(ctx, card, start)
	if err != nil {
		f.metrics.ObserveScrape("calendar", "error")
		f.logger.Warn("failed to scrape restaurant", "id", card.ID, "name", card.Name, "error", err)
		return cached
	}
	f.metrics.ObserveScrape("calendar", "ok")
	if cached != nil {
		r.Rating = cached.Rating
		r.TabelogRating, r.TabelogLink = cached.TabelogRating, cached.TabelogLink
		r.GoogleRating, r.GoogleLink = cached.GoogleRating, cached.GoogleLink
	}
	if err := f.repo.Put(ctx, r); err != nil {
		f.logger.Warn("failed to store restaurant", "id", r.IkyuID, "error", err)
	}
	return r
}

func needsRatings(r *restaurant.Restaurant) bool {
	return r.TabelogRating == nil && r.GoogleRating == nil && r.TabelogLink == "" && r.GoogleLink == ""
}

// Rate looks up ratings for the restaurants that have none and stores the
// updated records. The result has the same order as rs.
func (f *Finder) Rate(ctx context.Context, rs []*restaurant.Restaurant) []*restaurant.Restaurant {
	var targets []ratings.Target
	for _, r := range rs {
		if needsRatings(r) {
			targets = append(targets, ratings.Target{ID: r.IkyuID, Name: r.Name})
		}
	}
	if len(targets) == 0 || f.rater == nil {
		return rs
	}

	found := f.rater.Fetch(ctx, targets)
	out := make([]*restaurant.Restaurant, len(rs))
	for i, r := range rs {
		rt, ok := found[r.IkyuID]
		if !ok || (rt.Tabelog == nil && rt.Google == nil) {
			out[i] = r
			continue
		}
		updated := *r
		rt.Apply(&updated)
		if err := f.repo.Put(ctx, &updated); err != nil {
			f.logger.Warn("failed to store ratings", "id", r.IkyuID, "error", err)
		}
		out[i] = &updated
	}
	if err := f.repo.Flush(ctx); err != nil {
		f.logger.Warn("failed to flush ratings", "error", err)
	}
	return out
}

// Plan searches the stored restaurants of groups for the best itineraries.
func (f *Finder) Plan(ctx context.Context, groups []restaurant.LocationGroup, start, end string) (planner.Result, []report.Record, []report.DayDigest, error) {
	dates, err := planner.DateRange(start, end)
	if err != nil {
		return planner.Result{}, nil, nil, err
	}
	snap, err := f.repo.Snapshot(ctx, groups)
	if err != nil {
		return planner.Result{}, nil, nil, err
	}

	began := time.Now()
	res := planner.Plan(ctx, snap, groups, dates, f.scorer, f.plannerCfg)
	f.metrics.ObserveSearch(time.Since(began), res.Evaluated, res.Truncated)
	f.logger.Info("itinerary search finished",
		"combinations", len(res.Combinations), "evaluated", res.Evaluated, "valid", res.Valid,
		"truncated", res.Truncated, "duration", time.Since(began))
	if len(res.DroppedGroups) > 0 {
		f.logger.Warn("too many location groups, lowest scoring ones dropped", "dropped", strings.Join(res.DroppedGroups, ", "))
	}

	var all []*restaurant.Restaurant
	for _, g := range groups {
		all = append(all, snap.Restaurants(g.Key())...)
	}
	return res, f.formatter.Materialize(res, f.plannerCfg.MaxResults), f.formatter.AvailabilityByDate(all, dates), nil
}

// Run resolves, scrapes, rates and plans one request.
func (f *Finder) Run(ctx context.Context, req Request) (*Outcome, error) {
	start, end, err := f.Dates(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	groups, foodTypes, reason, err := f.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	out := &Outcome{Start: start, End: end, Groups: groups, FoodTypes: foodTypes, Reason: reason}

	if !req.Offline {
		var all []*restaurant.Restaurant
		seen := make(map[string]bool)
		for _, g := range groups {
			rs, err := f.Scrape(ctx, g, foodTypes, start, req.Refresh, nil)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				f.logger.Warn("skipping group", "group", g.Key(), "error", err)
				out.Skipped++
				continue
			}
			for _, r := range rs {
				if !seen[r.IkyuID] {
					seen[r.IkyuID] = true
					all = append(all, r)
				}
			}
		}
		out.Scraped = len(all)
		for i := 0; i < len(all); i += f.batch {
			f.Rate(ctx, all[i:min(i+f.batch, len(all))])
		}
	}

	out.Result, out.Records, out.Digest, err = f.Plan(ctx, groups, start, end)
	if err != nil {
		return nil, err
	}
	return out, nil
}
