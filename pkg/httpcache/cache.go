// Package httpcache keeps scraped pages and API responses in an otter cache,
// optionally persisted to disk between runs.
package httpcache

import (
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maypok86/otter/v2"
)

const cacheFile = "responses.gob"

// Entry is one cached response body.
type Entry struct {
	ExpiresAt time.Time
	ETag      string
	Data      []byte
}

// Stats reports cache effectiveness.
type Stats struct {
	Size   int
	Hits   int64
	Misses int64
}

// Cache is a TTL cache of response bodies keyed by URL and request body.
type Cache struct {
	entries    *otter.Cache[string, Entry]
	logger     *slog.Logger
	saveCancel context.CancelFunc
	dir        string
	saveWg     sync.WaitGroup
	ttl        time.Duration
	hits       atomic.Int64
	misses     atomic.Int64
	mu         sync.Mutex
}

// New creates a cache. With a non-empty dir, entries are loaded from and
// periodically saved to dir; otherwise the cache lives in memory only.
func New(ctx context.Context, dir string, ttl time.Duration, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		entries: otter.Must(&otter.Options[string, Entry]{
			MaximumSize:      100_000,
			InitialCapacity:  1_000,
			ExpiryCalculator: otter.ExpiryWriting[string, Entry](ttl),
		}),
		dir:    dir,
		ttl:    ttl,
		logger: logger,
	}
	if dir == "" {
		return c, nil
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	if err := c.load(); err != nil {
		logger.Warn("failed to load cache from disk", "error", err)
	}
	logger.Info("cache initialized", "dir", dir, "entries_loaded", c.entries.EstimatedSize())

	c.startPeriodicSave(ctx)
	return c, nil
}

func key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) lookup(k string) (Entry, bool) {
	e, ok := c.entries.GetIfPresent(k)
	if ok && time.Now().After(e.ExpiresAt) {
		c.entries.Invalidate(k)
		ok = false
	}
	if !ok {
		c.misses.Add(1)
		return Entry{}, false
	}
	c.hits.Add(1)
	return e, true
}

func (c *Cache) store(k string, data []byte, etag string) {
	c.entries.Set(k, Entry{Data: data, ETag: etag, ExpiresAt: time.Now().Add(c.ttl)})
}

// Get returns the cached body and ETag for a GET of url.
func (c *Cache) Get(url string) ([]byte, string, bool) {
	e, ok := c.lookup(key(url))
	if !ok {
		c.logger.Debug("cache miss", "url", url)
		return nil, "", false
	}
	return e.Data, e.ETag, true
}

// Set stores the body of a GET of url.
func (c *Cache) Set(url string, data []byte, etag string) {
	c.store(key(url), data, etag)
	c.logger.Debug("cache set", "url", url, "size", len(data))
}

// APICall returns the cached response for an API call identified by name and request body.
func (c *Cache) APICall(name string, body []byte) ([]byte, bool) {
	e, ok := c.lookup(key(name, string(body)))
	if !ok {
		c.logger.Debug("API cache miss", "name", name)
		return nil, false
	}
	return e.Data, true
}

// SetAPICall stores the response of an API call.
func (c *Cache) SetAPICall(name string, body, data []byte) error {
	c.store(key(name, string(body)), data, "")
	c.logger.Debug("API cache set", "name", name, "size", len(data))
	return nil
}

// Stats returns the current size and hit counts.
func (c *Cache) Stats() Stats {
	return Stats{Size: c.entries.EstimatedSize(), Hits: c.hits.Load(), Misses: c.misses.Load()}
}

func (c *Cache) load() error {
	path := filepath.Join(c.dir, cacheFile)
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening cache file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			c.logger.Debug("failed to close cache file", "error", err)
		}
	}()

	var saved map[string]Entry
	if err := gob.NewDecoder(f).Decode(&saved); err != nil {
		return fmt.Errorf("decoding cache file: %w", err)
	}
	now := time.Now()
	valid := 0
	for k, e := range saved {
		if now.Before(e.ExpiresAt) {
			c.entries.Set(k, e)
			valid++
		}
	}
	c.logger.Debug("loaded cache from disk", "path", path, "entries", len(saved), "valid", valid)
	return nil
}

// Save writes unexpired entries to disk. It is a no-op for a memory-only cache.
func (c *Cache) Save() error {
	if c.dir == "" {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	path := filepath.Join(c.dir, cacheFile)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	defer func() {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			c.logger.Debug("failed to remove temp file", "error", err)
		}
	}()

	saved := make(map[string]Entry)
	now := time.Now()
	for k, e := range c.entries.All() {
		if now.Before(e.ExpiresAt) {
			saved[k] = e
		}
	}
	if err := gob.NewEncoder(f).Encode(saved); err != nil {
		_ = f.Close() //nolint:errcheck // already failing
		return fmt.Errorf("encoding cache: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing cache file: %w", err)
	}
	c.logger.Debug("cache saved to disk", "entries", len(saved), "path", path)
	return nil
}

func (c *Cache) startPeriodicSave(ctx context.Context) {
	ctx, c.saveCancel = context.WithCancel(ctx)
	c.saveWg.Add(1)
	go func() {
		defer c.saveWg.Done()
		ticker := time.NewTicker(15 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.Save(); err != nil {
					c.logger.Error("periodic cache save failed", "error", err)
				}
			}
		}
	}()
}

// Close stops the periodic save and writes the cache one last time.
func (c *Cache) Close() error {
	if c.saveCancel != nil {
		c.saveCancel()
	}
	c.saveWg.Wait()
	return c.Save()
}
