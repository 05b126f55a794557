package mail

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CodeStore keeps short-lived one-shot codes by key: the last verification
// code sent to an address, or the answer to a captcha challenge.
type CodeStore interface {
	Save(ctx context.Context, key, code string) error
	// Take returns the code for key and forgets it.
	Take(ctx context.Context, key string) (string, bool, error)
}

// RedisCodeStore keeps codes in Redis under prefix with a TTL, so every
// server instance sees the same codes.
type RedisCodeStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisCodeStore creates a store on client. An empty prefix means
// "ygg:email".
func NewRedisCodeStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCodeStore {
	if prefix == "" {
		prefix = "ygg:email"
	}
	return &RedisCodeStore{redis: client, prefix: prefix, ttl: ttl}
}

func (s *RedisCodeStore) key(k string) string {
	return s.prefix + ":" + k
}

func (s *RedisCodeStore) Save(ctx context.Context, key, code string) error {
	if err := s.redis.Set(ctx, s.key(key), code, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisCodeStore) Take(ctx context.Context, key string) (string, bool, error) {
	code, err := s.redis.GetDel(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis getdel: %w", err)
	}
	return code, true, nil
}

// sweepThreshold is the entry count above which Save drops expired codes.
const sweepThreshold = 1024

type memoryCode struct {
	code      string
	expiresAt time.Time
}

// MemoryCodeStore is the single-instance CodeStore.
type MemoryCodeStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	codes map[string]memoryCode
}

func NewMemoryCodeStore(ttl time.Duration, now func() time.Time) *MemoryCodeStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryCodeStore{ttl: ttl, now: now, codes: make(map[string]memoryCode)}
}

func (s *MemoryCodeStore) Save(_ context.Context, key, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	// unanswered captchas are never taken
	if len(s.codes) >= sweepThreshold {
		for k, c := range s.codes {
			if now.After(c.expiresAt) {
				delete(s.codes, k)
			}
		}
	}
	s.codes[key] = memoryCode{code: code, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *MemoryCodeStore) Take(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.codes[key]
	if !ok {
		return "", false, nil
	}
	delete(s.codes, key)
	if s.now().After(c.expiresAt) {
		return "", false, nil
	}
	return c.code, true, nil
}
