package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

const restaurantsFile = "restaurants.json"

// File keeps all restaurants in one JSON object keyed by ikyu ID and each
// group's ID list in groups/<key>.json. Writes replace files atomically.
// Restaurant writes are held in memory until Flush, PutGroup or Close.
type File struct {
	records map[string]json.RawMessage
	logger  *slog.Logger
	dir     string
	mu      sync.RWMutex
	dirty   bool
	writes  int
}

// NewFile opens or creates a file store rooted at dir.
func NewFile(dir string, logger *slog.Logger) (*File, error) {
	if dir == "" {
		return nil, errors.New("file store needs a directory")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Join(dir, "groups"), 0o750); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}
	f := &File{dir: dir, logger: logger, records: make(map[string]json.RawMessage)}

	data, err := os.ReadFile(filepath.Join(dir, restaurantsFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Info("no existing restaurant cache", "dir", dir)
	case err != nil:
		return nil, fmt.Errorf("reading restaurant cache: %w", err)
	default:
		if err := json.Unmarshal(data, &f.records); err != nil {
			return nil, fmt.Errorf("parsing restaurant cache: %w", err)
		}
		logger.Info("restaurant cache loaded", "dir", dir, "restaurants", len(f.records))
	}
	return f, nil
}

// Restaurant returns the stored JSON for id.
func (f *File) Restaurant(_ context.Context, id string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	data, ok := f.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

// PutRestaurant replaces the record for id in memory and marks the store dirty.
func (f *File) PutRestaurant(_ context.Context, id string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("restaurant %s: invalid JSON", id)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[id] = slices.Clone(data)
	f.dirty = true
	return nil
}

// Flush writes restaurants.json if any restaurant changed since the last write.
func (f *File) Flush(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.flush()
}

// flush must be called with mu held.
func (f *File) flush() error {
	if !f.dirty {
		return nil
	}
	if err := f.writeJSON(filepath.Join(f.dir, restaurantsFile), f.records); err != nil {
		return err
	}
	f.dirty = false
	f.writes++
	return nil
}

// RestaurantIDs returns every stored ID, sorted.
func (f *File) RestaurantIDs(context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := make([]string, 0, len(f.records))
	for id := range f.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (f *File) groupPath(key string) string {
	// Group keys are sub-region names; keep them from escaping the directory.
	safe := strings.NewReplacer("/", "-", "\\", "-", "..", "-").Replace(key)
	return filepath.Join(f.dir, "groups", safe+".json")
}

// GroupIDs reads groups/<key>.json.
func (f *File) GroupIDs(_ context.Context, key string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	data, err := os.ReadFile(f.groupPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading group %s: %w", key, err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parsing group %s: %w", key, err)
	}
	return ids, nil
}

// PutGroup flushes pending restaurants, then writes the group's ID list.
func (f *File) PutGroup(_ context.Context, key string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.flush(); err != nil {
		return err
	}
	if ids == nil {
		ids = []string{}
	}
	return f.writeJSON(f.groupPath(key), ids)
}

// writeJSON must be called with mu held.
func (f *File) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		if removeErr := os.Remove(tmp); removeErr != nil {
			f.logger.Debug("failed to remove temp file", "path", tmp, "error", removeErr)
		}
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Close flushes pending restaurants.
func (f *File) Close() error {
	return f.Flush(context.Background())
}
