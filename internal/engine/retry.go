package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy defines capped exponential backoff for one operation type.
type RetryPolicy struct {
	MaxRetries   int           // retry attempts after the first call (0 = no retries)
	InitialDelay time.Duration // delay before the first retry
	MaxDelay     time.Duration // delay cap
	Multiplier   float64       // backoff multiplier
	Jitter       bool          // add 0-20% random jitter
}

// DefaultProviderRetryPolicy is applied per provider before failing over.
func DefaultProviderRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   2, // 3 attempts total
		InitialDelay: 2 * time.Second,
		MaxDelay:     15 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// DefaultToolRetryPolicy bounds retries of tool handler failures.
func DefaultToolRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   2,
		InitialDelay: time.Second,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
	}
}

// RetryWithPolicy runs fn until it succeeds, the classifier rejects the
// error, or the policy's attempts are exhausted. onRetry, when non-nil, is
// called before each sleep.
func RetryWithPolicy[T any](
	ctx context.Context,
	policy RetryPolicy,
	fn func(ctx context.Context) (T, error),
	classify func(error) RetryClass,
	onRetry func(attempt int, delay time.Duration, err error),
) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if classify(err) == RetryClassNonRetryable {
			return zero, err
		}
		if attempt >= policy.MaxRetries {
			return zero, &RetryExhaustedError{Err: err, Attempts: attempt + 1}
		}

		delay := backoffDelay(policy, attempt)
		if onRetry != nil {
			onRetry(attempt+1, delay, err)
		}

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}
}

func backoffDelay(policy RetryPolicy, attempt int) time.Duration {
	delay := float64(policy.InitialDelay) * math.Pow(policy.Multiplier, float64(attempt))
	if delay > float64(policy.MaxDelay) {
		delay = float64(policy.MaxDelay)
	}
	if policy.Jitter {
		delay += rand.Float64() * 0.2 * delay
	}
	return time.Duration(delay)
}
