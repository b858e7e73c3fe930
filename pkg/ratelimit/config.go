package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

// DefaultName labels a limiter's metrics when Config.Name is empty.
const DefaultName = "search"

// Config holds limiter and retry settings.
type Config struct {
	// Name labels the limiter's circuit state metric.
	Name string

	// EmptyResultThreshold is the empty streak length from which backoff applies.
	EmptyResultThreshold int

	// InitialBackoff is the backoff base, doubled per consecutive empty result.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff before jitter.
	MaxBackoff time.Duration

	// MinJitter and MaxJitter bound the uniform jitter added to a backoff delay.
	MinJitter time.Duration
	MaxJitter time.Duration

	// FailureThreshold is the failure count that opens the circuit.
	FailureThreshold int

	// CircuitResetTimeout is how long the circuit stays open before a trial call.
	CircuitResetTimeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// RetryDelay is multiplied by the attempt number between retries.
	RetryDelay time.Duration

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// DefaultConfig returns the default limiter configuration.
func DefaultConfig() Config {
	return Config{
		Name:                 DefaultName,
		EmptyResultThreshold: 3,
		InitialBackoff:       1 * time.Second,
		MaxBackoff:           30 * time.Second,
		MinJitter:            100 * time.Millisecond,
		MaxJitter:            500 * time.Millisecond,
		FailureThreshold:     5,
		CircuitResetTimeout:  60 * time.Second,
		MaxRetries:           3,
		RetryDelay:           1 * time.Second,
		Clock:                time.Now,
	}
}

// Validate checks the configuration for impossible values.
func (c Config) Validate() error {
	var errs []error

	if c.EmptyResultThreshold < 0 {
		errs = append(errs, fmt.Errorf("emptyResultThreshold must be >= 0, got %d", c.EmptyResultThreshold))
	}
	if c.InitialBackoff < 0 || c.MaxBackoff < 0 {
		errs = append(errs, errors.New("backoff durations must be >= 0"))
	}
	if c.InitialBackoff > c.MaxBackoff {
		errs = append(errs, fmt.Errorf("initialBackoff (%v) exceeds maxBackoff (%v)", c.InitialBackoff, c.MaxBackoff))
	}
	if c.MinJitter < 0 || c.MaxJitter < 0 {
		errs = append(errs, errors.New("jitter durations must be >= 0"))
	}
	if c.MinJitter > c.MaxJitter {
		errs = append(errs, fmt.Errorf("minJitter (%v) exceeds maxJitter (%v)", c.MinJitter, c.MaxJitter))
	}
	if c.FailureThreshold < 1 {
		errs = append(errs, fmt.Errorf("failureThreshold must be >= 1, got %d", c.FailureThreshold))
	}
	if c.CircuitResetTimeout < 0 {
		errs = append(errs, errors.New("circuitResetTimeout must be >= 0"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("maxRetries must be >= 0, got %d", c.MaxRetries))
	}
	if c.RetryDelay < 0 {
		errs = append(errs, errors.New("retryDelay must be >= 0"))
	}

	return errors.Join(errs...)
}
