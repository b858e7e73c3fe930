// Package ratelimit implements the shared request gate for the search backend.
// It combines adaptive backoff on empty results, jittered delay, a circuit
// breaker over upstream failures and a bounded retry wrapper.
//
// One Limiter is shared by every concurrent search in the process. State
// transitions are short mutex sections; the only blocking operation is the
// backoff wait inside CheckAndWait, which suspends only its caller.
package ratelimit

import (
	"time"
)

// CircuitState is the circuit breaker position.
type CircuitState string

// Circuit states.
const (
	// CircuitClosed lets calls through (subject to backoff).
	CircuitClosed CircuitState = "CLOSED"

	// CircuitOpen blocks all calls until the reset timeout elapses.
	CircuitOpen CircuitState = "OPEN"

	// CircuitHalfOpen admits a single trial call.
	CircuitHalfOpen CircuitState = "HALF_OPEN"
)

// gaugeValue maps the state onto the circuit state gauge.
func (s CircuitState) gaugeValue() float64 {
	switch s {
	case CircuitHalfOpen:
		return 1
	case CircuitOpen:
		return 2
	default:
		return 0
	}
}

// State is the mutable limiter state. It is only touched under the limiter mutex.
type State struct {
	// ConsecutiveEmptyResults counts successful calls in a row that returned nothing.
	ConsecutiveEmptyResults int

	// CurrentBackoff is the backoff base for the current empty streak.
	CurrentBackoff time.Duration

	// Circuit is the breaker position.
	Circuit CircuitState

	// FailureCount counts upstream failures since the last success.
	FailureCount int

	// LastFailureAt is when the last failure was recorded.
	LastFailureAt time.Time

	// LastTransitionAt is when the circuit last changed state.
	LastTransitionAt time.Time
}

// Snapshot is a read-only copy of the limiter state for monitoring.
type Snapshot struct {
	Circuit                 CircuitState  `json:"circuit_state"`
	FailureCount            int           `json:"failure_count"`
	ConsecutiveEmptyResults int           `json:"consecutive_empty_results"`
	CurrentBackoff          time.Duration `json:"current_backoff"`
	LastFailureAt           time.Time     `json:"last_failure_at"`
	LastTransitionAt        time.Time     `json:"last_transition_at"`
}

// CurrentBackoffMs returns the current backoff in milliseconds.
func (s Snapshot) CurrentBackoffMs() int64 {
	return s.CurrentBackoff.Milliseconds()
}

// IsOpen returns true if the circuit blocks calls.
func (s Snapshot) IsOpen() bool {
	return s.Circuit == CircuitOpen
}
