package cache

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Layered combines the in-memory TTL cache with an optional shared Redis layer.
// Reads try memory first, then Redis (back-filling memory). Writes go to both.
// Redis failures are logged and never fail the caller.
type Layered[V any] struct {
	memory *TTLCache[V]
	shared *RedisCache[V]
	logger zerolog.Logger
}

// NewLayered creates a layered cache. shared may be nil for memory-only operation.
func NewLayered[V any](memory *TTLCache[V], shared *RedisCache[V], logger zerolog.Logger) *Layered[V] {
	return &Layered[V]{
		memory: memory,
		shared: shared,
		logger: logger,
	}
}

// Get returns the cached value for key.
func (l *Layered[V]) Get(ctx context.Context, key string) (V, bool) {
	if v, ok := l.memory.Get(key); ok {
		return v, true
	}

	var zero V
	if l.shared == nil {
		return zero, false
	}

	entry, err := l.shared.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			l.logger.Warn().Err(err).Str("key", key).Msg("Shared cache get error")
		}
		return zero, false
	}

	CacheHits.WithLabelValues(l.memory.name, "redis").Inc()
	if ttl := entry.TTL(); ttl > 0 {
		l.memory.Set(key, entry.Value, ttl)
	}

	l.logger.Debug().Str("key", key).Msg("Shared cache hit")
	return entry.Value, true
}

// Set stores value in every layer.
func (l *Layered[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) {
	l.memory.Set(key, value, ttl)

	if l.shared == nil {
		return
	}
	if err := l.shared.Set(ctx, key, value, ttl); err != nil {
		l.logger.Warn().Err(err).Str("key", key).Msg("Shared cache set error")
	}
}

// Delete removes key from every layer.
func (l *Layered[V]) Delete(ctx context.Context, key string) {
	l.memory.Delete(key)

	if l.shared == nil {
		return
	}
	if err := l.shared.Delete(ctx, key); err != nil {
		l.logger.Warn().Err(err).Str("key", key).Msg("Shared cache delete error")
	}
}

// Clear empties every layer. The memory layer is always cleared; a shared
// layer error is returned.
func (l *Layered[V]) Clear(ctx context.Context) error {
	l.memory.Clear()

	if l.shared == nil {
		return nil
	}
	return l.shared.Clear(ctx)
}

// Size returns the number of entries held in memory.
func (l *Layered[V]) Size() int {
	return l.memory.Size()
}
