package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func noWait(int) time.Duration { return 0 }

func TestRetryWithBackoff_SuccessFirstTry(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), 3, noWait, func(attempt int) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestRetryWithBackoff_SuccessAfterRetries(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), 3, noWait, func(attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("transient error")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls (2 failures + 1 success), got %d", calls)
	}
}

func TestRetryWithBackoff_AllAttemptsExhausted(t *testing.T) {
	calls := 0
	sentinel := errors.New("persistent error")
	err := RetryWithBackoff(context.Background(), 3, noWait, func(attempt int) error {
		calls++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Expected wrapped persistent error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestRetryWithBackoff_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), 5, noWait, func(attempt int) error {
		calls++
		return Permanent(errors.New("bad request"))
	})
	if !errors.Is(err, ErrPermanent) {
		t.Fatalf("Expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestRetryWithBackoff_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryWithBackoff(ctx, 3, LinearBackoff(time.Second), func(attempt int) error {
		calls++
		return errors.New("should not retry after cancellation")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context cancellation error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected only the first attempt to run, got %d", calls)
	}
}

func TestRetryWithBackoff_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), 0, noWait, func(attempt int) error {
		calls++
		return errors.New("fail")
	})
	if err == nil {
		t.Fatal("Expected error")
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestRetryWithBackoff_LinearSchedule(t *testing.T) {
	start := time.Now()
	_ = RetryWithBackoff(context.Background(), 3, LinearBackoff(50*time.Millisecond), func(attempt int) error {
		return errors.New("fail")
	})
	elapsed := time.Since(start)
	// 50ms*1 + 50ms*2, nothing after the last attempt
	if elapsed < 140*time.Millisecond {
		t.Errorf("Expected at least ~150ms of backoff, got %v", elapsed)
	}
	if elapsed > time.Second {
		t.Errorf("Backoff took too long: %v", elapsed)
	}
}

func TestBackoffSchedules(t *testing.T) {
	lin := LinearBackoff(1500 * time.Millisecond)
	if got := lin(2); got != 3*time.Second {
		t.Errorf("LinearBackoff(1.5s)(2) = %v, want 3s", got)
	}
	exp := ExponentialBackoff(time.Second)
	if got := exp(3); got != 4*time.Second {
		t.Errorf("ExponentialBackoff(1s)(3) = %v, want 4s", got)
	}
}
