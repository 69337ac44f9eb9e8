package cache

import (
	"context"
	"sync"
	"time"

	"SwingScanner/internal/model"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]Entry{}, now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, key Key, ttl time.Duration) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key.String()]
	if !ok || !fresh(e.FetchedAt, m.now(), ttl) {
		return Entry{}, false
	}
	e.Bars = append([]model.Bar(nil), e.Bars...)
	return e, true
}

func (m *MemoryStore) Put(_ context.Context, entry Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.Bars = append([]model.Bar(nil), entry.Bars...)
	m.entries[entry.Key.String()] = entry
}

func (m *MemoryStore) Purge(_ context.Context, olderThan time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-olderThan)
	var n int64
	for k, e := range m.entries {
		if e.FetchedAt.Before(cutoff) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Close() error { return nil }
