// Package client provides the search client facade: paginated searches with
// rate limiting and circuit breaking, cached single-page lookups and
// diagnostics.
package client

import (
	"context"
	"fmt"
	"maps"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/search-pager/pkg/cache"
	"github.com/Sternrassler/search-pager/pkg/errclass"
	"github.com/Sternrassler/search-pager/pkg/pagination"
	"github.com/Sternrassler/search-pager/pkg/ratelimit"
)

// Prometheus metrics for client operations.
var (
	searchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_client_requests_total",
		Help: "Total client calls by method and outcome",
	}, []string{"method", "outcome"})

	searchRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "search_client_request_duration_seconds",
		Help:    "Client call duration in seconds by method",
		Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"method"})
)

// resultCacheName labels the single-page result cache in metrics.
const resultCacheName = "results"

// Config holds the client configuration.
type Config struct {
	// Limiter configures the shared gate and retry behavior
	Limiter ratelimit.Config

	// Pagination holds the default options for Paginate and Search
	Pagination pagination.Options

	// ResultTTL is how long single-page lookups are cached (0 disables caching)
	ResultTTL time.Duration

	// TokenCacheSize bounds the continuation token cache
	TokenCacheSize int

	// TokenMaxAge expires cached tokens (0 = no age limit)
	TokenMaxAge time.Duration

	// Redis optionally shares cached results between replicas
	Redis *redis.Client
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig() Config {
	return Config{
		Limiter:        ratelimit.DefaultConfig(),
		Pagination:     pagination.DefaultOptions(),
		ResultTTL:      5 * time.Minute,
		TokenCacheSize: cache.DefaultTokenCacheSize,
		TokenMaxAge:    30 * time.Minute,
	}
}

// Client is the search client.
type Client struct {
	limiter   *ratelimit.Limiter
	tokens    *cache.TokenCache
	results   *cache.Layered[[]pagination.Record]
	paginator *pagination.Paginator
	config    Config
	logger    zerolog.Logger
}

// Diagnostics is a point-in-time view of client state.
type Diagnostics struct {
	Limiter         ratelimit.Snapshot `json:"limiter"`
	ResultCacheSize int                `json:"result_cache_size"`
	TokenCacheSize  int                `json:"token_cache_size"`
	SharedCache     bool               `json:"shared_cache"`
}

// New creates a new search client. reporter may be nil.
func New(cfg Config, provider pagination.Provider, reporter pagination.Reporter, logger zerolog.Logger) (*Client, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if err := cfg.Limiter.Validate(); err != nil {
		return nil, fmt.Errorf("limiter config: %w", err)
	}
	if ce := cfg.Pagination.Validate(); ce != nil {
		return nil, fmt.Errorf("pagination config: %w", ce)
	}
	if cfg.ResultTTL < 0 {
		return nil, fmt.Errorf("result ttl must be >= 0 (got %v)", cfg.ResultTTL)
	}

	logger = logger.With().Str("component", "search-client").Logger()

	limiter := ratelimit.NewLimiter(cfg.Limiter, logger)
	tokens := cache.NewTokenCache(cache.TokenCacheConfig{
		MaxEntries: cfg.TokenCacheSize,
		MaxAge:     cfg.TokenMaxAge,
	})

	var shared *cache.RedisCache[[]pagination.Record]
	if cfg.Redis != nil {
		shared = cache.NewRedisCache[[]pagination.Record](cfg.Redis, "")
	}
	results := cache.NewLayered(cache.NewTTLCache[[]pagination.Record](resultCacheName), shared, logger)

	return &Client{
		limiter:   limiter,
		tokens:    tokens,
		results:   results,
		paginator: pagination.NewPaginator(provider, limiter, tokens, reporter, logger),
		config:    cfg,
		logger:    logger,
	}, nil
}

// Paginate runs a paginated search. A nil opts uses the configured defaults.
func (c *Client) Paginate(ctx context.Context, query string, searchOpts pagination.SearchOptions, opts *pagination.Options) (*pagination.Result, error) {
	startTime := time.Now()
	defer func() {
		searchRequestDuration.WithLabelValues("paginate").Observe(time.Since(startTime).Seconds())
	}()

	o := c.config.Pagination
	if opts != nil {
		o = *opts
	}

	result, err := c.paginator.Paginate(ctx, query, searchOpts, o)
	searchRequestsTotal.WithLabelValues("paginate", outcome(err)).Inc()
	return result, err
}

// Search returns the first page of results for query, served from the result
// cache when possible. Only complete, uninterrupted pages are cached.
func (c *Client) Search(ctx context.Context, query string, searchOpts pagination.SearchOptions) ([]pagination.Record, error) {
	startTime := time.Now()
	defer func() {
		searchRequestDuration.WithLabelValues("search").Observe(time.Since(startTime).Seconds())
	}()

	key := searchOpts.Fingerprint(query) + ":single"

	if c.config.ResultTTL > 0 {
		if records, ok := c.results.Get(ctx, key); ok {
			c.logger.Debug().Str("key", key).Msg("Result cache hit")
			searchRequestsTotal.WithLabelValues("search", "cache_hit").Inc()
			return cloneRecords(records), nil
		}
	}

	opts := c.config.Pagination
	opts.MaxPages = 1
	opts.MaxResults = min(opts.PageSize, pagination.MaxResults)

	result, err := c.paginator.Paginate(ctx, query, searchOpts, opts)
	searchRequestsTotal.WithLabelValues("search", outcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	if c.config.ResultTTL > 0 && result.Interruption == nil {
		c.results.Set(ctx, key, cloneRecords(result.Results), c.config.ResultTTL)
	}

	return result.Results, nil
}

// Diagnostics returns cache sizes and the limiter snapshot.
func (c *Client) Diagnostics() Diagnostics {
	return Diagnostics{
		Limiter:         c.limiter.Metrics(),
		ResultCacheSize: c.results.Size(),
		TokenCacheSize:  c.tokens.Size(),
		SharedCache:     c.config.Redis != nil,
	}
}

// ClearCaches empties the result and token caches.
func (c *Client) ClearCaches(ctx context.Context) error {
	c.tokens.Clear()
	if err := c.results.Clear(ctx); err != nil {
		return fmt.Errorf("clear result cache: %w", err)
	}
	c.logger.Info().Msg("Caches cleared")
	return nil
}

// DefaultOptions returns the configured pagination defaults.
func (c *Client) DefaultOptions() pagination.Options {
	return c.config.Pagination
}

// Limiter returns the shared gate (for monitoring and testing).
func (c *Client) Limiter() *ratelimit.Limiter {
	return c.limiter
}

// Tokens returns the continuation token cache.
func (c *Client) Tokens() *cache.TokenCache {
	return c.tokens
}

// cloneRecords copies records so callers cannot change cached values.
func cloneRecords(records []pagination.Record) []pagination.Record {
	out := make([]pagination.Record, len(records))
	for i, r := range records {
		out[i] = maps.Clone(r)
	}
	return out
}

// outcome labels a call result for metrics.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if ce, ok := errclass.As(err); ok {
		return string(ce.Kind)
	}
	return "cancelled"
}
