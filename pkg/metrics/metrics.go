// Package metrics provides the Prometheus registry and HTTP handler for the
// search client, plus a pagination.Reporter backed by Prometheus.
//
// Component metrics are defined in their own packages (cache, ratelimit,
// provider) via promauto to keep packages independent.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the search client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns the HTTP handler exposing all registered metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Gate Metrics (pkg/ratelimit):
//   - search_circuit_state{limiter} (Gauge): 0=closed, 1=half-open, 2=open
//   - search_circuit_transitions_total{from, to} (Counter): Circuit transitions
//   - search_gate_blocks_total{operation} (Counter): Calls blocked by the open circuit
//   - search_backoff_delay_seconds (Histogram): Backoff delays after empty results
//   - search_retries_total{kind} (Counter): Retry attempts by error kind
//   - search_retry_wait_seconds{kind} (Histogram): Wait before a retry
//   - search_retry_exhausted_total{kind} (Counter): Operations that exhausted retries
//
// Cache Metrics (pkg/cache):
//   - search_cache_hits_total{cache, layer} (Counter): Cache hits by layer
//   - search_cache_misses_total{cache} (Counter): Cache misses
//   - search_cache_expirations_total{cache} (Counter): Entries expired on read
//   - search_token_cache_evictions_total (Counter): Tokens evicted when full
//   - search_cache_errors_total{operation} (Counter): Shared cache errors
//
// Backend Metrics (pkg/provider):
//   - search_provider_requests_total{status} (Counter): Backend requests by status
//   - search_provider_request_duration_seconds (Histogram): Backend latency
//
// Pagination Metrics (this package, via PrometheusReporter):
//   - search_pagination_runs_total{strategy} (Counter): Completed runs by strategy
//   - search_pagination_run_duration_seconds (Histogram): Run duration
//   - search_pagination_results (Histogram): Records returned per run
//   - search_pagination_interrupted_total (Counter): Runs ended early with partial results
//   - search_errors_total{kind, severity} (Counter): Classified errors
//
// Example Prometheus Queries:
//
//   # Token fallback rate
//   sum(rate(search_pagination_runs_total{strategy!="primary"}[5m])) /
//   sum(rate(search_pagination_runs_total[5m]))
//
//   # Circuit open
//   search_circuit_state == 2
//
//   # Upstream rate limiting
//   rate(search_errors_total{kind="TOO_MANY_REQUESTS"}[5m])
//
//   # P95 Run Latency
//   histogram_quantile(0.95, rate(search_pagination_run_duration_seconds_bucket[5m]))
