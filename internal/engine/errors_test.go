package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifyProviderError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want RetryClass
	}{
		{"rate limit status", errors.New("status code 429"), RetryClassTransient},
		{"rate limit text", errors.New("Rate limit exceeded, slow down"), RetryClassTransient},
		{"server error", errors.New("500 internal server error"), RetryClassTransient},
		{"bad gateway", errors.New("502 Bad Gateway"), RetryClassTransient},
		{"timeout", errors.New("context deadline exceeded"), RetryClassTransient},
		{"connection refused", errors.New("dial tcp: connection refused"), RetryClassTransient},
		{"auth failure", errors.New("401 unauthorized"), RetryClassNonRetryable},
		{"bad request", errors.New("400 invalid request body"), RetryClassNonRetryable},
		{"quota", errors.New("402 payment required"), RetryClassNonRetryable},
		{"cancelled", context.Canceled, RetryClassNonRetryable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyProviderError(tt.err); got != tt.want {
				t.Errorf("ClassifyProviderError(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransientUnwraps(t *testing.T) {
	base := errors.New("429 too many requests")
	wrapped := WrapProviderError(base, "primary")

	if !IsTransient(wrapped) {
		t.Error("wrapped transient error not recognized")
	}

	exhausted := &RetryExhaustedError{Err: wrapped, Attempts: 3}
	if !IsTransient(exhausted) {
		t.Error("transient error behind RetryExhaustedError not recognized")
	}

	semantic := WrapProviderError(errors.New("400 bad request"), "primary")
	if IsTransient(semantic) {
		t.Error("semantic error misclassified as transient")
	}
}

func TestWrapProviderErrorPreservesChain(t *testing.T) {
	base := fmt.Errorf("underlying")
	wrapped := WrapProviderError(base, "backup-a")

	if !errors.Is(wrapped, base) {
		t.Error("errors.Is lost the base error")
	}
	var pe *ProviderError
	if !errors.As(wrapped, &pe) {
		t.Fatal("errors.As failed to find ProviderError")
	}
	if pe.Provider != "backup-a" {
		t.Errorf("Provider = %q, want %q", pe.Provider, "backup-a")
	}
}
