package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by cache name and layer
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_hits_total",
			Help: "Total number of search cache hits",
		},
		[]string{"cache", "layer"}, // "results"/"tokens", "memory"/"redis"
	)

	// CacheMisses tracks cache misses by cache name
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_misses_total",
			Help: "Total number of search cache misses",
		},
		[]string{"cache"},
	)

	// CacheExpirations tracks entries dropped lazily on read after expiry
	CacheExpirations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_expirations_total",
			Help: "Total number of cache entries removed on read after expiry",
		},
		[]string{"cache"},
	)

	// TokenEvictions tracks continuation tokens evicted to admit new ones
	TokenEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "search_token_cache_evictions_total",
			Help: "Total number of continuation tokens evicted because the cache was full",
		},
	)

	// CacheErrors tracks shared cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_cache_errors_total",
			Help: "Total number of shared cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "clear", "size"
	)
)
