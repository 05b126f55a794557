package textures

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemoryStore keeps blobs in a map. Used by tests and the "memory" backend.
type MemoryStore struct {
	mu     sync.RWMutex
	blobs  map[string][]byte
	writes atomic.Int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Exists(_ context.Context, hash string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[hash]
	return ok, nil
}

func (m *MemoryStore) Put(_ context.Context, hash string, data []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[hash]; ok {
		return false, nil
	}
	m.blobs[hash] = append([]byte(nil), data...)
	m.writes.Add(1)
	return true, nil
}

func (m *MemoryStore) Get(_ context.Context, hash string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[hash]
	return b, ok, nil
}

// Writes counts successful Put calls.
func (m *MemoryStore) Writes() int64 {
	return m.writes.Load()
}
