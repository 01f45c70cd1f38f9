package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process stand-in for MapCache, used when no Redis address is
// configured and in tests.
type Memory struct {
	mu          sync.Mutex
	now         func() time.Time
	entries     map[string]memoryEntry
	generations map[string]int64
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		now:         now,
		entries:     make(map[string]memoryEntry),
		generations: make(map[string]int64),
	}
}

func (m *Memory) Generation(_ context.Context, venueID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generations[venueID], nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *Memory) Invalidate(_ context.Context, venueID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generations[venueID]++
	return nil
}

// Len returns the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
