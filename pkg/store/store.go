// Package store persists scraped restaurants and the per-group restaurant ID lists.
//
// Backends keep records as JSON and decode them on read with restaurant.Decode,
// so a malformed record surfaces as a *restaurant.DecodeError for that record only.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNotFound is returned when a restaurant or group is not stored.
var ErrNotFound = errors.New("not found")

// Store is a key-value store of restaurants and location groups.
type Store interface {
	Restaurant(ctx context.Context, id string) ([]byte, error)
	PutRestaurant(ctx context.Context, id string, data []byte) error
	RestaurantIDs(ctx context.Context) ([]string, error)
	GroupIDs(ctx context.Context, key string) ([]string, error)
	PutGroup(ctx context.Context, key string, ids []string) error
	Close() error
}

// Flusher is implemented by stores that buffer writes.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Backend names accepted by Open.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config selects and configures a backend.
type Config struct {
	Backend     string `yaml:"backend"`
	Dir         string `yaml:"dir"`
	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`
	Prefix      string `yaml:"prefix"`
}

// Open creates the configured backend.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case "", BackendFile:
		return NewFile(cfg.Dir, logger)
	case BackendMemory:
		return NewMemory(), nil
	case BackendRedis:
		return NewRedis(ctx, cfg.RedisURL, cfg.Prefix)
	case BackendPostgres:
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
