package store

import (
	"context"
	"slices"
	"sync"
)

// Memory is a process-local store, used by the server when no persistence is configured.
type Memory struct {
	restaurants map[string][]byte
	groups      map[string][]string
	mu          sync.RWMutex
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		restaurants: make(map[string][]byte),
		groups:      make(map[string][]string),
	}
}

// Restaurant returns the stored JSON for id.
func (m *Memory) Restaurant(_ context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.restaurants[id]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

// PutRestaurant stores a copy of data.
func (m *Memory) PutRestaurant(_ context.Context, id string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.restaurants[id] = slices.Clone(data)
	return nil
}

// RestaurantIDs returns every stored ID, sorted.
func (m *Memory) RestaurantIDs(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.restaurants))
	for id := range m.restaurants {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// GroupIDs returns the ID list stored for key.
func (m *Memory) GroupIDs(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids, ok := m.groups[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(ids), nil
}

// PutGroup stores the group's ID list.
func (m *Memory) PutGroup(_ context.Context, key string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ids == nil {
		ids = []string{}
	}
	m.groups[key] = slices.Clone(ids)
	return nil
}

// Close is a no-op.
func (*Memory) Close() error { return nil }
