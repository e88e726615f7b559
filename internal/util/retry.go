package util

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Backoff returns how long to wait after the given 1-based failed attempt.
type Backoff func(attempt int) time.Duration

// LinearBackoff waits base*attempt after each failure (1.5s, 3s, 4.5s, ...).
func LinearBackoff(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return base * time.Duration(attempt)
	}
}

// ExponentialBackoff waits base*2^(attempt-1) after each failure.
func ExponentialBackoff(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		return base * time.Duration(1<<(attempt-1))
	}
}

// ErrPermanent marks an error that must not be retried. Wrap it with
// Permanent so RetryWithBackoff returns right away.
var ErrPermanent = errors.New("permanent failure")

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() []error {
	return []error{e.err, ErrPermanent}
}

// Permanent wraps err so that RetryWithBackoff stops retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// RetryWithBackoff calls fn up to attempts times, sleeping backoff(n) after the
// n-th failure. fn receives the current attempt number (1-based). There is no
// wait after the final attempt. If the context is cancelled, RetryWithBackoff
// returns the context error immediately.
func RetryWithBackoff(ctx context.Context, attempts int, backoff Backoff, fn func(attempt int) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrPermanent) {
			return lastErr
		}

		// Don't wait after the last attempt
		if attempt == attempts {
			break
		}

		// Check context before sleeping
		if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff(attempt)):
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
