// Package cache provides the caches used by the search client.
//
// Three stores live here:
//
// - TTLCache: generic in-memory store for computed results with per-entry expiry
// - TokenCache: bounded fingerprint -> continuation token store
// - RedisCache / Layered: optional shared layer for computed results
//
// Expiry is enforced lazily: an entry read at or after its expiry is removed and
// reported as a miss. Nothing sweeps in the background.
//
// # Basic Usage
//
//	results := cache.NewTTLCache[pagination.Result]("results")
//	results.Set(key, result, 5*time.Minute)
//
//	if v, ok := results.Get(key); ok {
//		// served from cache
//	}
//
// # Continuation Tokens
//
//	tokens := cache.NewTokenCache(cache.TokenCacheConfig{MaxEntries: 100})
//
//	fp := cache.Fingerprint{Query: "golang generics", Locale: "us-en"}.String()
//	tokens.Set(fp, "4-1234567890")
//
// When the cache is full the oldest inserted token is evicted. Overwriting a
// token keeps its place in the eviction order.
//
// # Shared Layer
//
//	shared := cache.NewRedisCache[pagination.Result](redisClient, "")
//	layered := cache.NewLayered(results, shared, logger)
//
// The shared layer only spreads short-lived results between replicas. Nothing
// depends on it for correctness and its errors degrade to memory-only caching.
//
// # Metrics
//
//   - search_cache_hits_total{cache, layer} - Cache hits
//   - search_cache_misses_total{cache} - Cache misses
//   - search_cache_expirations_total{cache} - Lazy expirations on read
//   - search_token_cache_evictions_total - Tokens evicted when full
//   - search_cache_errors_total{operation} - Shared cache errors
package cache
