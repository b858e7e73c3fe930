package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Ticket identifies one admission by the gate. It marks the HALF_OPEN trial.
type Ticket struct {
	trial uint64
}

// IsTrial reports whether the holder was admitted as the HALF_OPEN trial.
func (t Ticket) IsTrial() bool {
	return t.trial != 0
}

// Limiter gates calls to the search backend.
type Limiter struct {
	mu     sync.Mutex
	cfg    Config
	state  State
	logger zerolog.Logger

	// trialInFlight marks the single HALF_OPEN trial as admitted.
	// trialSeq numbers trial calls so only the current holder can release the slot.
	trialInFlight  bool
	trialStartedAt time.Time
	trialSeq       uint64

	// stateGauge is this limiter's series of search_circuit_state.
	stateGauge prometheus.Gauge

	// jitter returns a duration in [lo, hi].
	jitter func(lo, hi time.Duration) time.Duration
}

// NewLimiter creates a limiter in the CLOSED state.
func NewLimiter(cfg Config, logger zerolog.Logger) *Limiter {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Name == "" {
		cfg.Name = DefaultName
	}

	gauge := circuitStateGauge.WithLabelValues(cfg.Name)
	gauge.Set(CircuitClosed.gaugeValue())

	return &Limiter{
		cfg: cfg,
		state: State{
			Circuit:          CircuitClosed,
			CurrentBackoff:   cfg.InitialBackoff,
			LastTransitionAt: cfg.Clock(),
		},
		logger:     logger.With().Str("component", "ratelimit").Str("limiter", cfg.Name).Logger(),
		jitter:     uniformJitter,
		stateGauge: gauge,
	}
}

// Config returns the limiter configuration.
func (l *Limiter) Config() Config {
	return l.cfg
}

// CheckAndWait decides whether a call may proceed now.
// Returns false without waiting while the circuit is open or a HALF_OPEN trial
// is already in flight. Otherwise applies the backoff delay (if the empty
// streak reached the threshold) and returns true. Cancellation during the
// wait returns ctx.Err().
func (l *Limiter) CheckAndWait(ctx context.Context, operation string) (bool, error) {
	_, allowed, err := l.Acquire(ctx, operation)
	return allowed, err
}

// Acquire is CheckAndWait returning the admission ticket. A caller holding the
// trial ticket must either record the outcome or call Release.
func (l *Limiter) Acquire(ctx context.Context, operation string) (Ticket, bool, error) {
	if err := ctx.Err(); err != nil {
		return Ticket{}, false, err
	}

	delay, ticket, allowed := l.admit(operation)
	if !allowed {
		gateBlocksTotal.WithLabelValues(operation).Inc()
		return Ticket{}, false, nil
	}

	if delay <= 0 {
		return ticket, true, nil
	}

	backoffDelaySeconds.Observe(delay.Seconds())
	l.logger.Debug().
		Str("operation", operation).
		Dur("delay", delay).
		Msg("Applying backoff delay")

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		l.Release(ticket)
		return Ticket{}, false, ctx.Err()
	case <-timer.C:
		return ticket, true, nil
	}
}

// Admits reports whether the ticket holder may issue another call right now
// without waiting: the circuit is CLOSED, or it is HALF_OPEN and the ticket
// is the trial in flight.
func (l *Limiter) Admits(t Ticket) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state.Circuit {
	case CircuitClosed:
		return true
	case CircuitHalfOpen:
		return l.holdsTrial(t)
	default:
		return false
	}
}

// Release frees the trial slot if t holds it and no outcome was recorded.
// Releasing any other ticket is a no-op.
func (l *Limiter) Release(t Ticket) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state.Circuit == CircuitHalfOpen && l.holdsTrial(t) {
		l.trialInFlight = false
	}
}

// holdsTrial reports whether t is the trial in flight. Caller must hold the lock.
func (l *Limiter) holdsTrial(t Ticket) bool {
	return t.trial != 0 && l.trialInFlight && t.trial == l.trialSeq
}

// admit runs the circuit decision and computes the delay under the lock.
func (l *Limiter) admit(operation string) (time.Duration, Ticket, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.cfg.Clock()

	var ticket Ticket
	switch l.state.Circuit {
	case CircuitOpen:
		if now.Before(l.state.LastTransitionAt.Add(l.cfg.CircuitResetTimeout)) {
			return 0, Ticket{}, false
		}
		l.transition(CircuitHalfOpen, now, operation)
		ticket = l.startTrial(now)

	case CircuitHalfOpen:
		// A trial that never reported back is replaced after another reset window.
		if l.trialInFlight && now.Before(l.trialStartedAt.Add(l.cfg.CircuitResetTimeout)) {
			return 0, Ticket{}, false
		}
		ticket = l.startTrial(now)
	}

	return l.delay(), ticket, true
}

// startTrial marks a new trial in flight. Caller must hold the lock.
func (l *Limiter) startTrial(now time.Time) Ticket {
	l.trialSeq++
	l.trialInFlight = true
	l.trialStartedAt = now
	return Ticket{trial: l.trialSeq}
}

// delay returns the wait before the next call. Caller must hold the lock.
func (l *Limiter) delay() time.Duration {
	if l.state.ConsecutiveEmptyResults < l.cfg.EmptyResultThreshold {
		return 0
	}
	return l.state.CurrentBackoff + l.jitter(l.cfg.MinJitter, l.cfg.MaxJitter)
}

// backoffFor returns min(MaxBackoff, InitialBackoff * 2^n).
func (l *Limiter) backoffFor(n int) time.Duration {
	backoff := l.cfg.InitialBackoff
	for i := 0; i < n && backoff < l.cfg.MaxBackoff; i++ {
		backoff *= 2
	}
	if backoff > l.cfg.MaxBackoff {
		backoff = l.cfg.MaxBackoff
	}
	return backoff
}

// RecordSuccess records a call that returned results.
func (l *Limiter) RecordSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state.ConsecutiveEmptyResults = 0
	l.state.FailureCount = 0
	l.state.CurrentBackoff = l.cfg.InitialBackoff

	if l.state.Circuit == CircuitHalfOpen {
		l.transition(CircuitClosed, l.cfg.Clock(), "")
	}
}

// RecordEmptyResult records a successful call that returned nothing.
// It is not a failure. A HALF_OPEN trial that comes back empty still closes
// the circuit; the empty streak is kept.
func (l *Limiter) RecordEmptyResult() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state.ConsecutiveEmptyResults++
	l.state.CurrentBackoff = l.backoffFor(l.state.ConsecutiveEmptyResults)

	if l.state.Circuit == CircuitHalfOpen {
		l.state.FailureCount = 0
		l.transition(CircuitClosed, l.cfg.Clock(), "")
	}
}

// RecordFailure records an upstream failure. A failed HALF_OPEN trial reopens
// the circuit and restarts the reset timer.
func (l *Limiter) RecordFailure() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.cfg.Clock()
	l.state.FailureCount++
	l.state.LastFailureAt = now

	switch l.state.Circuit {
	case CircuitHalfOpen:
		l.transition(CircuitOpen, now, "")
	case CircuitClosed:
		if l.state.FailureCount >= l.cfg.FailureThreshold {
			l.transition(CircuitOpen, now, "")
		}
	}
}

// transition moves the circuit to the given state. Caller must hold the lock.
func (l *Limiter) transition(to CircuitState, now time.Time, operation string) {
	from := l.state.Circuit
	l.state.Circuit = to
	l.state.LastTransitionAt = now
	if to != CircuitHalfOpen {
		l.trialInFlight = false
	}

	l.stateGauge.Set(to.gaugeValue())
	circuitTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()

	var event *zerolog.Event
	switch to {
	case CircuitOpen:
		event = l.logger.Warn().Dur("reset_timeout", l.cfg.CircuitResetTimeout)
	default:
		event = l.logger.Info()
	}
	if operation != "" {
		event = event.Str("operation", operation)
	}
	event.
		Str("from", string(from)).
		Str("circuit", string(to)).
		Int("failure_count", l.state.FailureCount).
		Msg("Circuit breaker transition")
}

// Metrics returns a snapshot of the limiter state.
func (l *Limiter) Metrics() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Snapshot{
		Circuit:                 l.state.Circuit,
		FailureCount:            l.state.FailureCount,
		ConsecutiveEmptyResults: l.state.ConsecutiveEmptyResults,
		CurrentBackoff:          l.state.CurrentBackoff,
		LastFailureAt:           l.state.LastFailureAt,
		LastTransitionAt:        l.state.LastTransitionAt,
	}
}

// RemainingCooldown returns how long until the gate admits a call again.
// Returns 0 when a call would be admitted now.
func (l *Limiter) RemainingCooldown() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	var until time.Time
	switch {
	case l.state.Circuit == CircuitOpen:
		until = l.state.LastTransitionAt.Add(l.cfg.CircuitResetTimeout)
	case l.state.Circuit == CircuitHalfOpen && l.trialInFlight:
		until = l.trialStartedAt.Add(l.cfg.CircuitResetTimeout)
	default:
		return 0
	}

	remaining := until.Sub(l.cfg.Clock())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// uniformJitter returns a uniformly distributed duration in [lo, hi].
func uniformJitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)+1))
}
