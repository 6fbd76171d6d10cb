// Package config loads tokyodine settings from a YAML file, .env files and the environment.
//
// Precedence, lowest first: built-in defaults, the YAML file, environment
// variables. Command-line flags are applied by the binaries on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/codeGROOVE-dev/tokyodine/pkg/ikyu"
	"github.com/codeGROOVE-dev/tokyodine/pkg/planner"
	"github.com/codeGROOVE-dev/tokyodine/pkg/restaurant"
	"github.com/codeGROOVE-dev/tokyodine/pkg/store"
)

// Scrape tunes the ikyu scraper and the ratings fan-out.
type Scrape struct {
	Pages          int           `yaml:"pages"`
	Guests         int           `yaml:"guests"`
	RatePerSecond  float64       `yaml:"rate_per_second"`
	Burst          int           `yaml:"burst"`
	Attempts       uint          `yaml:"attempts"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	HardToReserve  int           `yaml:"hard_to_reserve_threshold"`
	RatingsWorkers int           `yaml:"ratings_workers"`
	RatingsBatch   int           `yaml:"ratings_batch"`
	MaxAge         time.Duration `yaml:"max_age"`
}

// Cache configures the HTTP response cache.
type Cache struct {
	Dir string        `yaml:"dir"`
	TTL time.Duration `yaml:"ttl"`
}

// Gemini configures the query translation model. Keys come from the environment only.
type Gemini struct {
	APIKey  string `yaml:"-"`
	Model   string `yaml:"model"`
	Project string `yaml:"project"`
}

// Server configures the HTTP server.
type Server struct {
	Addr           string        `yaml:"addr"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RatePerSecond  float64       `yaml:"rate_per_second"`
	Burst          int           `yaml:"burst"`
	ResponseTTL    time.Duration `yaml:"response_ttl"`
	SessionDir     string        `yaml:"session_dir"`
}

// Config is the complete configuration.
type Config struct {
	Planner      planner.Config      `yaml:"planner"`
	Store        store.Config        `yaml:"store"`
	Gemini       Gemini              `yaml:"gemini"`
	Cache        Cache               `yaml:"cache"`
	Server       Server              `yaml:"server"`
	GoogleAPIKey string              `yaml:"-"`
	Language     restaurant.Language `yaml:"language"`
	Cuisines     []restaurant.Entry  `yaml:"cuisines"`
	Regions      []restaurant.Entry  `yaml:"regions"`
	Scrape       Scrape              `yaml:"scrape"`
	Scale        float64             `yaml:"scale"`
}

// Default returns the built-in configuration.
func Default() Config {
	cacheDir := ""
	if dir, err := os.UserCacheDir(); err == nil {
		cacheDir = dir + "/tokyodine"
	}
	return Config{
		Planner:  planner.DefaultConfig(),
		Scale:    planner.DefaultScale,
		Language: restaurant.English,
		Store:    store.Config{Backend: store.BackendFile, Dir: "data", Prefix: "tokyodine"},
		Gemini:   Gemini{Model: "gemini-2.5-flash-lite"},
		Cache:    Cache{Dir: cacheDir, TTL: 24 * time.Hour},
		Scrape: Scrape{
			Pages:          3,
			Guests:         ikyu.DefaultGuests,
			RatePerSecond:  2,
			Burst:          2,
			Attempts:       4,
			RetryDelay:     500 * time.Millisecond,
			HardToReserve:  8,
			RatingsWorkers: 8,
			RatingsBatch:   20,
		},
		Server: Server{
			Addr:          ":8080",
			RatePerSecond: 1,
			Burst:         5,
			ResponseTTL:   10 * time.Minute,
			SessionDir:    "sessions",
		},
	}
}

// LoadEnv reads .env style files into the process environment. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Load returns the defaults overlaid with the YAML file at path (if any) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	cfg.ApplyEnvironmentOverrides()
	return cfg, cfg.Validate()
}

// ApplyEnvironmentOverrides replaces values whose environment variable is set.
//
// Supported variables: GEMINI_API_KEY, GEMINI_MODEL, GCP_PROJECT, GOOGLE_API_KEY,
// CACHE_DIR, STORE_BACKEND, DATA_DIR, REDIS_URL, DATABASE_URL, TOKYODINE_LANG,
// SEARCH_TIMEOUT, PORT.
func (c *Config) ApplyEnvironmentOverrides() {
	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	str("GEMINI_API_KEY", &c.Gemini.APIKey)
	str("GEMINI_MODEL", &c.Gemini.Model)
	str("GCP_PROJECT", &c.Gemini.Project)
	str("GOOGLE_API_KEY", &c.GoogleAPIKey)
	str("CACHE_DIR", &c.Cache.Dir)
	str("STORE_BACKEND", &c.Store.Backend)
	str("DATA_DIR", &c.Store.Dir)
	str("REDIS_URL", &c.Store.RedisURL)
	str("DATABASE_URL", &c.Store.DatabaseURL)
	if v := os.Getenv("TOKYODINE_LANG"); v != "" {
		c.Language = restaurant.Language(strings.ToLower(v))
	}
	if v := os.Getenv("SEARCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Planner.Timeout = d
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		if _, err := strconv.Atoi(v); err == nil {
			c.Server.Addr = ":" + v
		}
	}
}

// Validate rejects settings that cannot work.
func (c Config) Validate() error {
	var errs []error
	switch c.Language {
	case restaurant.English, restaurant.Japanese, restaurant.Chinese:
	default:
		errs = append(errs, fmt.Errorf("unsupported language %q", c.Language))
	}
	if c.Scale < 0 {
		errs = append(errs, errors.New("scale must not be negative"))
	}
	if c.Planner.TopK < 0 || c.Planner.MaxResults < 0 || c.Planner.MaxGroups < 0 || c.Planner.Workers < 0 {
		errs = append(errs, errors.New("planner limits must not be negative"))
	}
	if c.Planner.MaxGroups > planner.MaxGroupsLimit {
		errs = append(errs, fmt.Errorf("planner.max_groups %d exceeds %d: subset search doubles with every group", c.Planner.MaxGroups, planner.MaxGroupsLimit))
	}
	if c.Scrape.Pages < 1 {
		errs = append(errs, errors.New("scrape.pages must be at least 1"))
	}
	return errors.Join(errs...)
}

// CuisineTable is the built-in cuisine table with configured entries layered on top.
func (c Config) CuisineTable() *restaurant.Table {
	return restaurant.Cuisines.With(c.Cuisines)
}

// RegionTable is the built-in region table with configured entries layered on top.
func (c Config) RegionTable() *restaurant.Table {
	return restaurant.Regions.With(c.Regions)
}

// Scorer returns the planning scorer for the configured scale.
func (c Config) Scorer() planner.Scorer {
	return planner.Scorer{Scale: c.Scale}
}
