// Package pagination stitches several search backend calls into one bounded
// result using a reusable continuation token.
//
// Pages of one run are fetched strictly in sequence. Every provider call goes
// through the shared ratelimit.Limiter; failures are classified by errclass and
// retried when retryable. Tokens are cached per query fingerprint so later runs
// for the same search continue the backend session.
//
// Example usage:
//
//	limiter := ratelimit.NewLimiter(ratelimit.DefaultConfig(), logger)
//	tokens := cache.NewTokenCache(cache.TokenCacheConfig{MaxEntries: 100})
//	p := pagination.NewPaginator(provider, limiter, tokens, nil, logger)
//
//	result, err := p.Paginate(ctx, "golang generics", pagination.SearchOptions{
//		Locale:     "us-en",
//		SafeSearch: "moderate",
//	}, pagination.DefaultOptions())
//
// A run:
//   - Stops at MaxResults, MaxPages or the first short page
//   - Drops a rejected token and re-issues the same page without it
//     (strategy fallback or hybrid)
//   - Fails fast with CIRCUIT_OPEN while the breaker blocks
//   - Returns partial results when a later page fails for good
package pagination
