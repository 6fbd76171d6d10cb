// Package main implements the tokyodine CLI, which plans Tokyo dining itineraries.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/codeGROOVE-dev/tokyodine/pkg/config"
	"github.com/codeGROOVE-dev/tokyodine/pkg/finder"
	"github.com/codeGROOVE-dev/tokyodine/pkg/report"
	"github.com/codeGROOVE-dev/tokyodine/pkg/restaurant"
)

var (
	configPath = flag.String("config", "", "YAML configuration file (or set TOKYODINE_CONFIG)")
	query      = flag.String("query", "", "Free-text trip description used to pick locations and cuisines (or pass it as arguments)")
	groupsFlag = flag.String("groups", "", `Location groups, e.g. "銀座,東銀座;渋谷"`)
	groupsFile = flag.String("groups-file", "", "File with location groups as JSON or [locations]/[reason] lines")
	foodTypes  = flag.String("food-types", "", "Comma-separated cuisines to search, e.g. 寿司,天ぷら")
	startDate  = flag.String("start", "", "First day of the trip, YYYY-MM-DD (default today in Tokyo)")
	endDate    = flag.String("end", "", "Last day of the trip, YYYY-MM-DD (default one month after start)")
	lang       = flag.String("lang", "", "Output language: en, ja or zh (or set TOKYODINE_LANG)")
	outDir     = flag.String("out", ".", "Directory for the JSON results")
	top        = flag.Int("top", 5, "Itineraries to print")
	refresh    = flag.Bool("refresh", false, "Scrape every restaurant even when cached today")
	offline    = flag.Bool("offline", false, "Plan from cached data without scraping")
	timeout    = flag.Duration("timeout", 30*time.Minute, "Overall time limit")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Show version")
)

const (
	plansFile  = "plans_by_location.json"
	digestFile = "availability_by_date.json"
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("tokyodine CLI v1.0.0")
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(logger); err != nil {
		logger.Error("Planning failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	if err := config.LoadEnv(); err != nil {
		return err
	}
	if *configPath == "" {
		*configPath = os.Getenv("TOKYODINE_CONFIG")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *lang != "" {
		cfg.Language = restaurant.Language(strings.ToLower(*lang))
	}

	if *query == "" && flag.NArg() > 0 {
		*query = strings.Join(flag.Args(), " ")
	}
	req := finder.Request{
		Query:     *query,
		Start:     *startDate,
		End:       *endDate,
		FoodTypes: splitList(*foodTypes),
		Refresh:   *refresh,
		Offline:   *offline,
	}
	switch {
	case *groupsFile != "":
		if req.Groups, err = loadGroups(*groupsFile); err != nil {
			return err
		}
	case *groupsFlag != "":
		req.Groups = parseGroups(*groupsFlag)
	}
	if len(req.Groups) == 0 && strings.TrimSpace(req.Query) == "" {
		flag.Usage()
		return finder.ErrNoGroups
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	f, err := finder.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logger.Error("Failed to close finder", "error", err)
		}
	}()

	logger.Info("Planning trip",
		"start", req.Start, "end", req.End, "groups", len(req.Groups),
		"has_query", req.Query != "", "store", cfg.Store.Backend, "offline", req.Offline)

	out, err := f.Run(ctx, req)
	if err != nil {
		return err
	}
	if out.Result.Truncated {
		logger.Warn("Search stopped early, results are the best found so far")
	}
	if out.Reason != "" {
		fmt.Printf("Cuisines: %s (%s)\n\n", strings.Join(out.FoodTypes, ", "), out.Reason)
	}
	if err := report.Print(os.Stdout, out.Records, *top); err != nil {
		return err
	}

	if err := os.MkdirAll(*outDir, 0o750); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	var errs []error
	for name, v := range map[string]any{plansFile: out.Records, digestFile: out.Digest} {
		path := filepath.Join(*outDir, name)
		if err := report.WriteJSON(path, v); err != nil {
			errs = append(errs, err)
			continue
		}
		logger.Info("Wrote results", "path", path)
	}
	return errors.Join(errs...)
}
