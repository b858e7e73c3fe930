package cache

import (
	"container/list"
	"sync"
	"time"
)

const (
	// DefaultTokenCacheSize is the default maximum number of cached tokens.
	DefaultTokenCacheSize = 100

	tokenCacheName = "tokens"
)

// TokenEntry is a cached continuation token.
type TokenEntry struct {
	Token       string    `json:"token"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}

// TokenCacheConfig holds token cache limits.
type TokenCacheConfig struct {
	// MaxEntries bounds the cache; the oldest inserted entry is evicted beyond it.
	MaxEntries int

	// MaxAge makes older tokens read as a miss. Zero disables age checks.
	MaxAge time.Duration
}

// TokenCache maps search fingerprints to continuation tokens.
// Eviction is by insertion order, not by recency of use.
type TokenCache struct {
	mu      sync.Mutex
	order   *list.List // of *TokenEntry, oldest at the front
	index   map[string]*list.Element
	maxSize int
	maxAge  time.Duration
	now     func() time.Time
}

// NewTokenCache creates a token cache.
func NewTokenCache(cfg TokenCacheConfig) *TokenCache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultTokenCacheSize
	}
	return &TokenCache{
		order:   list.New(),
		index:   make(map[string]*list.Element),
		maxSize: cfg.MaxEntries,
		maxAge:  cfg.MaxAge,
		now:     time.Now,
	}
}

// SetClock replaces the time source (for testing).
func (c *TokenCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Get returns the token stored for fingerprint.
func (c *TokenCache) Get(fingerprint string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[fingerprint]
	if !ok {
		CacheMisses.WithLabelValues(tokenCacheName).Inc()
		return "", false
	}

	entry := el.Value.(*TokenEntry)
	if c.maxAge > 0 && c.now().Sub(entry.CreatedAt) >= c.maxAge {
		c.removeElement(el)
		CacheExpirations.WithLabelValues(tokenCacheName).Inc()
		CacheMisses.WithLabelValues(tokenCacheName).Inc()
		return "", false
	}

	CacheHits.WithLabelValues(tokenCacheName, "memory").Inc()
	return entry.Token, true
}

// Set stores token for fingerprint. Overwriting keeps the entry's position in
// the eviction order. Empty tokens are ignored.
func (c *TokenCache) Set(fingerprint, token string) {
	if token == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.index[fingerprint]; ok {
		entry := el.Value.(*TokenEntry)
		entry.Token = token
		entry.CreatedAt = now
		return
	}

	for c.order.Len() >= c.maxSize {
		c.removeElement(c.order.Front())
		TokenEvictions.Inc()
	}

	c.index[fingerprint] = c.order.PushBack(&TokenEntry{
		Token:       token,
		Fingerprint: fingerprint,
		CreatedAt:   now,
	})
}

// Delete drops the token for fingerprint.
func (c *TokenCache) Delete(fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[fingerprint]; ok {
		c.removeElement(el)
	}
}

// Clear removes all tokens.
func (c *TokenCache) Clear() {
	c.mu.Lock()
	c.order.Init()
	c.index = make(map[string]*list.Element)
	c.mu.Unlock()
}

// Size returns the number of cached tokens.
func (c *TokenCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Entries returns a copy of all entries, oldest first.
func (c *TokenCache) Entries() []TokenEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]TokenEntry, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		out = append(out, *el.Value.(*TokenEntry))
	}
	return out
}

func (c *TokenCache) removeElement(el *list.Element) {
	entry := c.order.Remove(el).(*TokenEntry)
	delete(c.index, entry.Fingerprint)
}
