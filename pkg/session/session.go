// Package session saves the inputs and results of a planning request under a UUID.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/maypok86/otter/v2"

	"github.com/codeGROOVE-dev/tokyodine/pkg/report"
	"github.com/codeGROOVE-dev/tokyodine/pkg/restaurant"
)

// ErrNotFound is returned for an unknown or malformed session id.
var ErrNotFound = errors.New("session not found")

// Session is one user's planning request and its ranked plans.
type Session struct {
	CreatedAt       time.Time                  `json:"createdAt"`
	ID              string                     `json:"sessionId"`
	Query           string                     `json:"query"`
	StartDate       string                     `json:"startDate"`
	EndDate         string                     `json:"endDate"`
	LocationGroups  []restaurant.LocationGroup `json:"locationGroups"`
	RestaurantTypes []string                   `json:"restaurantTypes"`
	PlansForDay     []report.Record            `json:"plansForDay"`
}

// Store keeps sessions as <dir>/<id>.json behind an in-memory cache.
type Store struct {
	cache  *otter.Cache[string, *Session]
	logger *slog.Logger
	now    func() time.Time
	dir    string
}

// NewStore opens a session directory, creating it if needed.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	return &Store{
		dir:    dir,
		logger: logger,
		now:    time.Now,
		cache: otter.Must(&otter.Options[string, *Session]{
			MaximumSize:      1000,
			ExpiryCalculator: otter.ExpiryWriting[string, *Session](time.Hour),
		}),
	}, nil
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

func (s *Store) path(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", ErrNotFound
	}
	return filepath.Join(s.dir, u.String()+".json"), nil
}

// Save writes sess, assigning an id and creation time when missing.
func (s *Store) Save(_ context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = NewID()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = s.now().UTC()
	}
	path, err := s.path(sess.ID)
	if err != nil {
		return fmt.Errorf("session id %q is not a UUID", sess.ID)
	}
	if sess.PlansForDay == nil {
		sess.PlansForDay = []report.Record{}
	}
	if err := report.WriteJSON(path, sess); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	s.cache.Set(sess.ID, sess)
	s.logger.Debug("session saved", "id", sess.ID, "plans", len(sess.PlansForDay))
	return nil
}

// Get loads a session by id.
func (s *Store) Get(_ context.Context, id string) (*Session, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	if sess, ok := s.cache.GetIfPresent(id); ok {
		return sess, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parsing session %s: %w", id, err)
	}
	s.cache.Set(id, &sess)
	return &sess, nil
}
