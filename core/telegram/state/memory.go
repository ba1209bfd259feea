package state

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryStore keeps sessions in process memory. Use it for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) live(e memoryEntry) bool {
	return e.expires.IsZero() || m.now().Before(e.expires)
}

// Load returns a copy of the stored bytes.
func (m *MemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok || !m.live(e) {
		return nil, ErrNotFound
	}
	return append([]byte(nil), e.data...), nil
}

// Save stores a copy of data.
func (m *MemoryStore) Save(_ context.Context, key string, data []byte, ttl time.Duration) error {
	e := memoryEntry{data: append([]byte(nil), data...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

// Delete removes key. Missing keys are not an error.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// List returns live keys in sorted order.
func (m *MemoryStore) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for k, e := range m.entries {
		if m.live(e) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Purge drops expired entries.
func (m *MemoryStore) Purge(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, e := range m.entries {
		if !m.live(e) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}
