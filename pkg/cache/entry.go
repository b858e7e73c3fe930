package cache

import (
	"time"
)

// Entry is a cached value with its expiry.
type Entry[T any] struct {
	// Value is the cached payload
	Value T `json:"value"`

	// ExpiresAt is when the entry stops being served
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpiredAt returns true if the entry has expired at the given instant.
// An entry is expired from ExpiresAt onwards.
func (e *Entry[T]) IsExpiredAt(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// IsExpired returns true if the entry has expired.
func (e *Entry[T]) IsExpired() bool {
	return e.IsExpiredAt(time.Now())
}

// TTL returns the time until expiration.
// Returns 0 if already expired.
func (e *Entry[T]) TTL() time.Duration {
	ttl := time.Until(e.ExpiresAt)
	if ttl < 0 {
		return 0
	}
	return ttl
}
