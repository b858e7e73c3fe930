package pagination

import (
	"context"

	"github.com/Sternrassler/search-pager/pkg/cache"
)

// Record is one raw result as returned by the provider. Its shape is not
// interpreted beyond being appended to the result sequence.
type Record map[string]any

// SearchOptions are the provider options that select which results are returned.
type SearchOptions struct {
	// Locale is the backend locale (e.g., "us-en")
	Locale string `json:"locale,omitempty"`

	// Region is the backend region (e.g., "wt-wt")
	Region string `json:"region,omitempty"`

	// SafeSearch is one of strict, moderate or off (empty = backend default)
	SafeSearch string `json:"safe_search,omitempty"`

	// TimePeriod restricts result age: d, w, m, y (empty = any time)
	TimePeriod string `json:"time_period,omitempty"`
}

// Fingerprint returns the token cache key for query under these options.
func (o SearchOptions) Fingerprint(query string) string {
	return cache.Fingerprint{
		Query:      query,
		Locale:     o.Locale,
		Region:     o.Region,
		SafeSearch: o.SafeSearch,
		TimePeriod: o.TimePeriod,
	}.String()
}

// Request is a single page request.
type Request struct {
	Query   string
	Options SearchOptions

	// Token continues an existing backend session. Empty starts a fresh search.
	Token string

	// Offset is the number of records already fetched in this run. Providers
	// use it as a best-effort position when no token is sent.
	Offset int

	// PageSize is the number of records requested.
	PageSize int
}

// Page is one provider response.
type Page struct {
	Records []Record

	// Token is the continuation token for the next page, empty if none was issued.
	Token string
}

// Provider fetches one page of results, optionally continued by a token.
type Provider interface {
	Search(ctx context.Context, req Request) (*Page, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, req Request) (*Page, error)

// Search calls f(ctx, req).
func (f ProviderFunc) Search(ctx context.Context, req Request) (*Page, error) {
	return f(ctx, req)
}
