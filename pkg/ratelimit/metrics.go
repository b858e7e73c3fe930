package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the request gate.
var (
	circuitStateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "search_circuit_state",
		Help: "Circuit breaker state by limiter (0=closed, 1=half-open, 2=open)",
	}, []string{"limiter"})

	circuitTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_circuit_transitions_total",
		Help: "Total number of circuit breaker transitions",
	}, []string{"from", "to"})

	gateBlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_gate_blocks_total",
		Help: "Total number of calls blocked by the circuit breaker",
	}, []string{"operation"})

	backoffDelaySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "search_backoff_delay_seconds",
		Help:    "Backoff delay applied before a call after consecutive empty results",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
	})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_retries_total",
		Help: "Total number of retry attempts by error kind",
	}, []string{"kind"})

	retryWaitSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "search_retry_wait_seconds",
		Help:    "Wait before a retry by error kind",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"kind"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error kind",
	}, []string{"kind"})
)
