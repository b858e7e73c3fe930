package pagination

import (
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/search-pager/pkg/errclass"
)

// Bounds for Options.MaxResults.
const (
	MinResults = 1
	MaxResults = 50
)

// Options bound a pagination run.
type Options struct {
	// MaxResults is the number of records returned at most (1-50)
	MaxResults int

	// PageSize is the number of records requested per page. A page with
	// fewer records ends the run.
	PageSize int

	// MaxPages is the number of pages fetched at most
	MaxPages int

	// DelayBetweenRequests is waited before every page after the first
	DelayBetweenRequests time.Duration

	// DebugMode attaches technical detail to surfaced errors
	DebugMode bool
}

// DefaultOptions returns the default pagination options.
func DefaultOptions() Options {
	return Options{
		MaxResults:           20,
		PageSize:             10,
		MaxPages:             5,
		DelayBetweenRequests: 500 * time.Millisecond,
		DebugMode:            false,
	}
}

// Validate returns an INVALID_INPUT error for the first invalid field.
func (o Options) Validate() *errclass.ClassifiedError {
	switch {
	case o.MaxResults < MinResults || o.MaxResults > MaxResults:
		return errclass.NewInputError("maxResults", fmt.Sprintf("must be between %d and %d, got %d", MinResults, MaxResults, o.MaxResults))
	case o.PageSize < 1:
		return errclass.NewInputError("pageSize", fmt.Sprintf("must be at least 1, got %d", o.PageSize))
	case o.MaxPages < 1:
		return errclass.NewInputError("maxPages", fmt.Sprintf("must be at least 1, got %d", o.MaxPages))
	case o.DelayBetweenRequests < 0:
		return errclass.NewInputError("delayBetweenRequests", "must not be negative")
	}
	return nil
}

var safeSearchLevels = map[string]bool{
	"":         true,
	"strict":   true,
	"moderate": true,
	"off":      true,
}

var timePeriods = map[string]bool{
	"":  true,
	"d": true,
	"w": true,
	"m": true,
	"y": true,
}

// Validate returns an INVALID_INPUT error for an unknown option value.
func (o SearchOptions) Validate() *errclass.ClassifiedError {
	if !safeSearchLevels[strings.ToLower(o.SafeSearch)] {
		return errclass.NewInputError("safeSearch", fmt.Sprintf("must be strict, moderate or off, got %q", o.SafeSearch))
	}
	if !timePeriods[strings.ToLower(o.TimePeriod)] {
		return errclass.NewInputError("timePeriod", fmt.Sprintf("must be d, w, m or y, got %q", o.TimePeriod))
	}
	return nil
}
