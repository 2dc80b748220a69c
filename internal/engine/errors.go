// Error classification. Providers and tools surface failures as values;
// the classifier decides whether a retry or failover is worth attempting.

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// RetryClass indicates whether an error should be retried.
type RetryClass string

const (
	RetryClassTransient    RetryClass = "transient"     // retry, then fail over
	RetryClassNonRetryable RetryClass = "non_retryable" // surface immediately
)

// ProviderError wraps an LLM provider failure with classification metadata.
type ProviderError struct {
	Err      error
	Provider string
	Class    RetryClass
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a transient provider error: rate
// limits, timeouts, and connection failures. Semantic errors (bad request,
// auth, quota) are preserved for the caller and never trigger failover.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Class == RetryClassTransient
	}
	return classifyText(err.Error()) == RetryClassTransient
}

// ClassifyProviderError classifies a raw provider error.
func ClassifyProviderError(err error) RetryClass {
	if err == nil {
		return RetryClassNonRetryable
	}
	if errors.Is(err, context.Canceled) {
		return RetryClassNonRetryable
	}
	return classifyText(err.Error())
}

func classifyText(s string) RetryClass {
	s = strings.ToLower(s)

	// Rate limits.
	if strings.Contains(s, "429") ||
		strings.Contains(s, "rate limit") ||
		strings.Contains(s, "too many requests") {
		return RetryClassTransient
	}

	// Server-side failures.
	if strings.Contains(s, "500") ||
		strings.Contains(s, "502") ||
		strings.Contains(s, "503") ||
		strings.Contains(s, "504") ||
		strings.Contains(s, "internal server error") ||
		strings.Contains(s, "bad gateway") ||
		strings.Contains(s, "service unavailable") ||
		strings.Contains(s, "gateway timeout") {
		return RetryClassTransient
	}

	// Network problems.
	if strings.Contains(s, "timeout") ||
		strings.Contains(s, "deadline exceeded") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection") ||
		strings.Contains(s, "no such host") ||
		strings.Contains(s, "temporary failure") {
		return RetryClassTransient
	}

	// Everything else (400, 401, 402, 403, schema violations, safety
	// refusals) is semantic: retrying will not change the answer.
	return RetryClassNonRetryable
}

// WrapProviderError attaches provider name and classification to err.
func WrapProviderError(err error, provider string) error {
	if err == nil {
		return nil
	}
	return &ProviderError{
		Err:      err,
		Provider: provider,
		Class:    ClassifyProviderError(err),
	}
}

// RetryExhaustedError indicates all retry attempts on one provider failed.
type RetryExhaustedError struct {
	Err      error
	Attempts int
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryExhaustedError) Unwrap() error { return e.Err }
