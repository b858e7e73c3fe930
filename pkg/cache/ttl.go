package cache

import (
	"sync"
	"time"
)

// TTLCache is an in-memory key/value store with per-entry expiry.
// Expiry is enforced only at read time; there is no background sweep.
type TTLCache[V any] struct {
	mu      sync.Mutex
	name    string
	entries map[string]Entry[V]
	now     func() time.Time
}

// NewTTLCache creates an empty cache. The name labels its metrics.
func NewTTLCache[V any](name string) *TTLCache[V] {
	return &TTLCache[V]{
		name:    name,
		entries: make(map[string]Entry[V]),
		now:     time.Now,
	}
}

// SetClock replaces the time source (for testing).
func (c *TTLCache[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Get returns the value for key. An entry read at or after its expiry is
// deleted and reported as a miss.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		CacheMisses.WithLabelValues(c.name).Inc()
		return zero, false
	}

	if entry.IsExpiredAt(c.now()) {
		delete(c.entries, key)
		CacheExpirations.WithLabelValues(c.name).Inc()
		CacheMisses.WithLabelValues(c.name).Inc()
		return zero, false
	}

	CacheHits.WithLabelValues(c.name, "memory").Inc()
	return entry.Value, true
}

// Set stores value under key for ttl, overwriting any existing entry.
// A non-positive ttl stores an entry that is already expired.
func (c *TTLCache[V]) Set(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = Entry[V]{Value: value, ExpiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Delete removes key.
func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Clear removes all entries.
func (c *TTLCache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]Entry[V])
	c.mu.Unlock()
}

// Size returns the number of stored entries, including expired entries not yet read.
func (c *TTLCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
