// Package ratelimit gates repeated actions per key with a fixed cool-down.
package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"
)

// Limiter admits at most one access per key per cool-down window. The first
// touch of a key always succeeds. Racing callers on the same key are decided
// by a single compare-and-swap; losers are refused, never retried.
type Limiter struct {
	coolDown time.Duration
	now      func() time.Time
	last     sync.Map // key -> *atomic.Int64 (unix nanos)
}

// Option customizes a Limiter created by New.
type Option func(*Limiter)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter.
//
// Parameters:
//   - coolDown: minimum time between two admitted accesses of the same key
//   - opts: optional overrides
//
// Returns:
//   - *Limiter: an empty limiter, safe for concurrent use
func New(coolDown time.Duration, opts ...Option) *Limiter {
	l := &Limiter{coolDown: coolDown, now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

// TryAccess reports whether key may proceed now and, if so, records the access.
func (l *Limiter) TryAccess(key string) bool {
	now := l.now().UnixNano()

	fresh := new(atomic.Int64)
	fresh.Store(now)
	v, loaded := l.last.LoadOrStore(key, fresh)
	if !loaded {
		return true
	}

	ts := v.(*atomic.Int64)
	prev := ts.Load()
	if now-prev <= int64(l.coolDown) {
		return false
	}
	return ts.CompareAndSwap(prev, now)
}

// CoolDown returns the configured window.
func (l *Limiter) CoolDown() time.Duration {
	return l.coolDown
}
