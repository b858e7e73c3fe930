package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Sternrassler/search-pager/pkg/errclass"
	"github.com/Sternrassler/search-pager/pkg/pagination"
)

var (
	paginationRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_pagination_runs_total",
		Help: "Total pagination runs by strategy",
	}, []string{"strategy"})

	paginationRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "search_pagination_run_duration_seconds",
		Help:    "Pagination run duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	paginationResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "search_pagination_results",
		Help:    "Records returned per pagination run",
		Buckets: []float64{0, 1, 5, 10, 20, 30, 40, 50},
	})

	paginationInterruptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "search_pagination_interrupted_total",
		Help: "Total pagination runs ended early with partial results",
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_errors_total",
		Help: "Total classified errors by kind and severity",
	}, []string{"kind", "severity"})
)

// PrometheusReporter records pagination telemetry as Prometheus metrics.
type PrometheusReporter struct{}

// NewPrometheusReporter creates a reporter.
func NewPrometheusReporter() *PrometheusReporter {
	return &PrometheusReporter{}
}

// ReportError implements pagination.Reporter.
func (r *PrometheusReporter) ReportError(_ context.Context, _ string, err *errclass.ClassifiedError) {
	if err == nil {
		return
	}
	errorsTotal.WithLabelValues(string(err.Kind), string(err.Severity)).Inc()
}

// ReportRun implements pagination.Reporter.
func (r *PrometheusReporter) ReportRun(_ context.Context, result *pagination.Result, duration time.Duration) {
	if result == nil {
		return
	}
	paginationRunsTotal.WithLabelValues(string(result.Strategy)).Inc()
	paginationRunDuration.Observe(duration.Seconds())
	paginationResults.Observe(float64(result.TotalFetched))
	if result.Interruption != nil {
		paginationInterruptedTotal.Inc()
	}
}

var _ pagination.Reporter = (*PrometheusReporter)(nil)
