package tokens

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

const maxShards = 16

type lruEntry[V comparable] struct {
	key   string
	value V
}

type lruShard[V comparable] struct {
	mu    sync.Mutex
	order *list.List // front is most recently used
	items map[string]*list.Element
}

// boundedLRU is an access-ordered table split into independently locked
// shards for lookups. Capacity is enforced on the table as a whole: an
// insert that takes the size above capacity evicts the oldest entry of its
// own shard, moving on to the following shards only when its shard holds
// nothing else. Recency is therefore exact per shard and approximate across
// shards. onEvict runs after every shard lock is released.
type boundedLRU[V comparable] struct {
	shards   []*lruShard[V]
	capacity int64
	size     atomic.Int64
	onEvict  func(key string, value V)
}

func newBoundedLRU[V comparable](capacity int, onEvict func(string, V)) *boundedLRU[V] {
	if capacity < 1 {
		capacity = 1
	}

	n := maxShards
	// small tables gain nothing from lock splitting
	if capacity < maxShards*8 {
		n = 1
	}

	t := &boundedLRU[V]{shards: make([]*lruShard[V], n), capacity: int64(capacity), onEvict: onEvict}
	for i := range t.shards {
		t.shards[i] = &lruShard[V]{
			order: list.New(),
			items: make(map[string]*list.Element, capacity/n),
		}
	}
	return t
}

func (t *boundedLRU[V]) shardIndex(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(t.shards)))
}

// Get returns the value stored under key and marks it most recently used.
func (t *boundedLRU[V]) Get(key string) (V, bool) {
	s := t.shards[t.shardIndex(key)]
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	s.order.MoveToFront(el)
	return el.Value.(*lruEntry[V]).value, true
}

// Contains reports presence without touching the access order.
func (t *boundedLRU[V]) Contains(key string) bool {
	s := t.shards[t.shardIndex(key)]
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.items[key]
	return ok
}

// Add inserts or replaces value under key. Entries pushed out of the table
// are reported to onEvict.
func (t *boundedLRU[V]) Add(key string, value V) {
	idx := t.shardIndex(key)
	s := t.shards[idx]

	s.mu.Lock()
	if el, ok := s.items[key]; ok {
		el.Value.(*lruEntry[V]).value = value
		s.order.MoveToFront(el)
		s.mu.Unlock()
		return
	}
	s.items[key] = s.order.PushFront(&lruEntry[V]{key: key, value: value})
	t.size.Add(1)
	s.mu.Unlock()

	var evicted []*lruEntry[V]
	for i := 0; i < len(t.shards) && t.size.Load() > t.capacity; {
		e, ok := t.evictOldest(t.shards[(idx+i)%len(t.shards)], key)
		if !ok {
			i++
			continue
		}
		evicted = append(evicted, e)
	}

	if t.onEvict != nil {
		for _, e := range evicted {
			t.onEvict(e.key, e.value)
		}
	}
}

// evictOldest drops the least recently used entry of s other than keep,
// but only while the table is over capacity. The size is claimed with a
// CAS so concurrent inserters never evict more than the overflow.
func (t *boundedLRU[V]) evictOldest(s *lruShard[V], keep string) (*lruEntry[V], bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		n := t.size.Load()
		if n <= t.capacity {
			return nil, false
		}
		el := s.order.Back()
		if el != nil && el.Value.(*lruEntry[V]).key == keep {
			el = el.Prev()
		}
		if el == nil {
			return nil, false
		}
		if !t.size.CompareAndSwap(n, n-1) {
			continue
		}
		e := el.Value.(*lruEntry[V])
		s.order.Remove(el)
		delete(s.items, e.key)
		return e, true
	}
}

// RemoveIf deletes key only while it still maps to expected.
func (t *boundedLRU[V]) RemoveIf(key string, expected V) bool {
	s := t.shards[t.shardIndex(key)]
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok || el.Value.(*lruEntry[V]).value != expected {
		return false
	}
	s.order.Remove(el)
	delete(s.items, key)
	t.size.Add(-1)
	return true
}

// Len is the number of live entries. Under concurrent writes the value may
// already be stale when it is returned.
func (t *boundedLRU[V]) Len() int {
	return int(t.size.Load())
}
