package pagination

import (
	"github.com/Sternrassler/search-pager/pkg/errclass"
)

// Strategy tells how a run used the continuation token.
type Strategy string

const (
	// StrategyPrimary means every continued page used a valid token.
	StrategyPrimary Strategy = "primary"

	// StrategyFallback means the token was rejected before any page succeeded
	// and the run continued without it.
	StrategyFallback Strategy = "fallback"

	// StrategyHybrid means some pages used the token before it was rejected.
	StrategyHybrid Strategy = "hybrid"
)

// Result is the outcome of a pagination run. It is not modified after being returned.
type Result struct {
	// Results holds the records in fetch order, trimmed to MaxResults.
	// Duplicates across pages are kept.
	Results []Record `json:"results"`

	TotalFetched   int    `json:"total_fetched"`
	PagesProcessed int    `json:"pages_processed"`
	VqdToken       string `json:"vqd_token,omitempty"`
	HasMore        bool   `json:"has_more"`

	Strategy Strategy `json:"strategy"`

	// RunID correlates log lines of one run.
	RunID string `json:"run_id"`

	// Interruption is the error that ended the run after partial progress.
	Interruption *errclass.ClassifiedError `json:"interruption,omitempty"`
}
