package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func alwaysTransient(error) RetryClass    { return RetryClassTransient }
func alwaysNonRetryable(error) RetryClass { return RetryClassNonRetryable }

func TestRetryWithPolicySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	got, err := RetryWithPolicy(context.Background(), RetryPolicy{MaxRetries: 3},
		func(ctx context.Context) (string, error) {
			attempts++
			if attempts < 3 {
				return "", errors.New("flaky")
			}
			return "ok", nil
		},
		alwaysTransient, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || attempts != 3 {
		t.Errorf("got %q after %d attempts, want ok after 3", got, attempts)
	}
}

func TestRetryWithPolicyStopsOnNonRetryable(t *testing.T) {
	attempts := 0
	_, err := RetryWithPolicy(context.Background(), RetryPolicy{MaxRetries: 3},
		func(ctx context.Context) (string, error) {
			attempts++
			return "", errors.New("bad request")
		},
		alwaysNonRetryable, nil)
	if err == nil {
		t.Fatal("want error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	var exhausted *RetryExhaustedError
	if errors.As(err, &exhausted) {
		t.Error("non-retryable error must not be wrapped as exhaustion")
	}
}

func TestRetryWithPolicyExhaustion(t *testing.T) {
	attempts := 0
	_, err := RetryWithPolicy(context.Background(), RetryPolicy{MaxRetries: 2},
		func(ctx context.Context) (int, error) {
			attempts++
			return 0, errors.New("still down")
		},
		alwaysTransient, nil)

	var exhausted *RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("err = %v, want RetryExhaustedError", err)
	}
	if exhausted.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", exhausted.Attempts)
	}
	if attempts != 3 {
		t.Errorf("fn ran %d times, want 3", attempts)
	}
}

func TestBackoffDelayIsCapped(t *testing.T) {
	policy := RetryPolicy{
		InitialDelay: 2 * time.Second,
		MaxDelay:     15 * time.Second,
		Multiplier:   2.0,
	}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 8 * time.Second},
		{3, 15 * time.Second}, // 16s capped
		{6, 15 * time.Second},
	}
	for _, tt := range tests {
		if got := backoffDelay(policy, tt.attempt); got != tt.want {
			t.Errorf("backoffDelay(attempt=%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffJitterStaysInRange(t *testing.T) {
	policy := RetryPolicy{
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
	for i := 0; i < 50; i++ {
		d := backoffDelay(policy, 0)
		if d < time.Second || d > 1200*time.Millisecond {
			t.Fatalf("jittered delay %s outside [1s, 1.2s]", d)
		}
	}
}

func TestRetryHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RetryWithPolicy(ctx, RetryPolicy{MaxRetries: 5, InitialDelay: time.Hour},
		func(ctx context.Context) (string, error) {
			return "", errors.New("down")
		},
		alwaysTransient, nil)
	if err == nil || !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled in chain", err)
	}
}
