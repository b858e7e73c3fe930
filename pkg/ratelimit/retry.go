package ratelimit

import (
	"context"
	"time"

	"github.com/Sternrassler/search-pager/pkg/errclass"
)

// Retry invokes fn and retries classified retryable failures.
// At most cfg.MaxRetries retries follow the first attempt; retry n waits
// RetryDelay*n, or the upstream Retry-After hint when it is longer and within
// MaxBackoff. The final failure is returned as a *errclass.ClassifiedError.
// Context cancellation is returned as ctx.Err().
func Retry[T any](ctx context.Context, l *Limiter, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				l.logger.Info().
					Str("operation", operation).
					Int("attempt", attempt+1).
					Msg("Request succeeded after retry")
			}
			return result, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}

		classified := errclass.Classify(err)
		if classified.Operation == "" {
			classified = classified.WithOperation(operation)
		}
		kind := string(classified.Kind)

		if !classified.Retryable {
			return zero, classified
		}

		if attempt >= l.cfg.MaxRetries {
			retryExhaustedTotal.WithLabelValues(kind).Inc()
			l.logger.Error().
				Str("operation", operation).
				Str("kind", kind).
				Int("attempts", attempt+1).
				Msg("Retry attempts exhausted")
			return zero, classified
		}

		wait := l.retryWait(attempt+1, classified.RetryAfter)

		retriesTotal.WithLabelValues(kind).Inc()
		retryWaitSeconds.WithLabelValues(kind).Observe(wait.Seconds())

		l.logger.Warn().
			Str("operation", operation).
			Str("kind", kind).
			Int("attempt", attempt+1).
			Dur("wait", wait).
			Msg("Retrying after failure")

		if err := sleepContext(ctx, wait); err != nil {
			return zero, err
		}
	}
}

// WithRetry is Retry for operations without a result value.
func (l *Limiter) WithRetry(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	_, err := Retry(ctx, l, operation, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// retryWait returns the wait before retry number n (1-based).
func (l *Limiter) retryWait(n int, retryAfter time.Duration) time.Duration {
	wait := l.cfg.RetryDelay * time.Duration(n)
	if retryAfter > wait && retryAfter <= l.cfg.MaxBackoff {
		wait = retryAfter
	}
	return wait
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
