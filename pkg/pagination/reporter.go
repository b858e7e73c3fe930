package pagination

import (
	"context"
	"time"

	"github.com/Sternrassler/search-pager/pkg/errclass"
)

// Reporter receives pagination telemetry. Implementations must be safe for
// concurrent use and must not block.
type Reporter interface {
	// ReportError is called for every classified failure of a page attempt.
	ReportError(ctx context.Context, operation string, err *errclass.ClassifiedError)

	// ReportRun is called once per run that produced a result.
	ReportRun(ctx context.Context, result *Result, duration time.Duration)
}

// NopReporter discards everything.
type NopReporter struct{}

// ReportError implements Reporter.
func (NopReporter) ReportError(context.Context, string, *errclass.ClassifiedError) {}

// ReportRun implements Reporter.
func (NopReporter) ReportRun(context.Context, *Result, time.Duration) {}
