package sessions

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	join      Join
	expiresAt time.Time
}

// MemoryStore is the single-process Store. Expired records are dropped when
// touched or counted.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry
}

type MemoryOption func(*MemoryStore)

func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) { m.now = now }
}

func NewMemoryStore(ttl time.Duration, opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *MemoryStore) Put(_ context.Context, serverID string, j *Join) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[serverID] = entry{join: *j, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Take(_ context.Context, serverID string) (*Join, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[serverID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.entries, serverID)
	if m.now().After(e.expiresAt) {
		return nil, ErrNotFound
	}
	j := e.join
	return &j, nil
}

func (m *MemoryStore) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, id)
		}
	}
	return len(m.entries), nil
}
