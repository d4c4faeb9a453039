package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Backend over Redis. Entries are JSON-encoded and
// rely on Redis's native TTL expiry, so there is no eviction or sweeping
// logic here. Redis failures are logged and degrade to misses/no-ops: the
// cache is an optimization layer and must never fail its callers.
type RedisStore struct {
	client redis.Cmdable
	logger *slog.Logger
}

// NewRedisStore creates a Backend over the given Redis client.
func NewRedisStore(client redis.Cmdable, logger *slog.Logger) *RedisStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisStore{client: client, logger: logger}
}

// Get returns the decoded value for key, or a miss on absence, expiry, or
// any Redis/decoding failure.
func (s *RedisStore) Get(ctx context.Context, key string) (any, bool) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("redis cache get failed", "error", err, "key", key)
		}
		return nil, false
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		s.logger.Warn("redis cache decode failed", "error", err, "key", key)
		return nil, false
	}
	return value, true
}

// Set stores value under key with ttl. ttl <= 0 stores without expiry.
func (s *RedisStore) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("redis cache encode failed", "error", err, "key", key)
		return
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		s.logger.Warn("redis cache set failed", "error", err, "key", key)
	}
}

// Delete removes the entry for key, if any.
func (s *RedisStore) Delete(ctx context.Context, key string) {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("redis cache delete failed", "error", err, "key", key)
	}
}

// DeletePrefix removes every key starting with prefix, scanning in batches
// to avoid blocking Redis with a single huge KEYS call.
func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) {
	s.deleteByPattern(ctx, prefix+"*")
}

// Clear removes every key in the database. SCAN+DEL in batches rather than
// FLUSHDB, keeping the operation incremental on a large keyspace.
func (s *RedisStore) Clear(ctx context.Context) {
	s.deleteByPattern(ctx, "*")
}

func (s *RedisStore) deleteByPattern(ctx context.Context, pattern string) {
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			s.logger.Warn("redis cache scan failed", "error", err, "pattern", pattern)
			return
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				s.logger.Warn("redis cache delete failed", "error", err, "pattern", pattern)
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}
