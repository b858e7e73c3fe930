package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// DefaultRedisPrefix namespaces shared result entries.
const DefaultRedisPrefix = "search:results"

// RedisCache shares computed results between replicas through Redis.
// Entries carry their own expiry which is re-checked on read, in addition to
// the Redis key TTL.
type RedisCache[V any] struct {
	redis  *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisCache creates a Redis-backed cache. An empty prefix uses DefaultRedisPrefix.
func NewRedisCache[V any](redisClient *redis.Client, prefix string) *RedisCache[V] {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisCache[V]{
		redis:  redisClient,
		prefix: prefix,
		now:    time.Now,
	}
}

func (c *RedisCache[V]) key(k string) string {
	return c.prefix + ":" + k
}

// Get retrieves a value by key.
// Returns ErrCacheMiss if the key doesn't exist or the entry is expired.
func (c *RedisCache[V]) Get(ctx context.Context, key string) (Entry[V], error) {
	var entry Entry[V]

	data, err := c.redis.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return entry, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return entry, fmt.Errorf("redis get: %w", err)
	}

	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return entry, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpiredAt(c.now()) {
		// Delete expired entry
		_ = c.Delete(ctx, key)
		return Entry[V]{}, ErrCacheMiss
	}

	return entry, nil
}

// Set stores value under key for ttl. Non-positive TTLs are not stored.
func (c *RedisCache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(Entry[V]{Value: value, ExpiresAt: c.now().Add(ttl)})
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := c.redis.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes a cache entry.
func (c *RedisCache[V]) Delete(ctx context.Context, key string) error {
	if err := c.redis.Del(ctx, c.key(key)).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Clear removes every entry under the cache prefix.
func (c *RedisCache[V]) Clear(ctx context.Context) error {
	keys, err := c.scan(ctx)
	if err != nil {
		CacheErrors.WithLabelValues("clear").Inc()
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		CacheErrors.WithLabelValues("clear").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// Size returns the number of entries under the cache prefix.
func (c *RedisCache[V]) Size(ctx context.Context) (int, error) {
	keys, err := c.scan(ctx)
	if err != nil {
		CacheErrors.WithLabelValues("size").Inc()
		return 0, err
	}
	return len(keys), nil
}

func (c *RedisCache[V]) scan(ctx context.Context) ([]string, error) {
	var keys []string
	iter := c.redis.Scan(ctx, 0, c.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}
