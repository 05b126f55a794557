package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "ygg:join"

type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisStore{redis: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(serverID string) string {
	return s.prefix + ":" + serverID
}

func (s *RedisStore) Put(ctx context.Context, serverID string, j *Join) error {
	encoded, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("encode join: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(serverID), encoded, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) Take(ctx context.Context, serverID string) (*Join, error) {
	raw, err := s.redis.GetDel(ctx, s.key(serverID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis getdel: %w", err)
	}

	var j Join
	if err := json.Unmarshal(raw, &j); err != nil {
		return nil, fmt.Errorf("decode join: %w", err)
	}
	return &j, nil
}

// Count scans the key space, so it is meant for status pages only.
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	var (
		cursor uint64
		total  int
	)
	pattern := s.prefix + ":*"
	for {
		keys, next, err := s.redis.Scan(ctx, cursor, pattern, 1000).Result()
		if err != nil {
			return 0, fmt.Errorf("redis scan: %w", err)
		}
		total += len(keys)
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}
