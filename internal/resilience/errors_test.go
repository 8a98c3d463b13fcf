// Copyright 2026 The KrishiMitra Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resilience

import (
	"errors"
	"fmt"
	"testing"

	"github.com/krishimitra/krishimitra/internal/provider"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"missing api key", provider.ErrNoAPIKey, KindConfiguration},
		{"wrapped missing api key", fmt.Errorf("client: %w", provider.ErrNoAPIKey), KindConfiguration},
		{"breaker open sentinel", ErrBreakerOpen, KindBreakerOpen},
		{"model not found", &provider.APIError{StatusCode: 404, Status: "NOT_FOUND"}, KindModelNotFound},
		{"rate limited by status code", &provider.APIError{StatusCode: 429}, KindRateLimited},
		{"rate limited by message", &provider.APIError{StatusCode: 400, Message: "Quota exceeded for project"}, KindRateLimited},
		{"resource exhausted status", &provider.APIError{StatusCode: 400, Status: "RESOURCE_EXHAUSTED"}, KindRateLimited},
		{"internal server error", &provider.APIError{StatusCode: 500}, KindTransient},
		{"bad gateway", &provider.APIError{StatusCode: 502}, KindTransient},
		{"service unavailable", &provider.APIError{StatusCode: 503}, KindTransient},
		{"gateway timeout", &provider.APIError{StatusCode: 504}, KindTransient},
		{"bad request", &provider.APIError{StatusCode: 400, Message: "Invalid argument"}, KindClientOther},
		{"forbidden", &provider.APIError{StatusCode: 403}, KindClientOther},
		{"plain network error", errors.New("connection reset by peer"), KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassify_AlreadyClassifiedPassthrough(t *testing.T) {
	// A ClassifiedError must keep its kind even when the wrapped error would
	// classify differently on its own.
	ce := &ClassifiedError{Kind: KindConfiguration, Err: &provider.APIError{StatusCode: 500}}
	if got := Classify(ce); got != KindConfiguration {
		t.Errorf("Classify(classified) = %s, want configuration", got)
	}

	wrapped := fmt.Errorf("outer: %w", ce)
	if got := Classify(wrapped); got != KindConfiguration {
		t.Errorf("Classify(wrapped classified) = %s, want configuration", got)
	}
}

func TestClassifyError_Idempotent(t *testing.T) {
	ce := ClassifyError(&provider.APIError{StatusCode: 429})
	if ce.Kind != KindRateLimited {
		t.Fatalf("Kind = %s, want rate_limited", ce.Kind)
	}
	if again := ClassifyError(ce); again != ce {
		t.Error("Re-classifying a ClassifiedError should return it unchanged")
	}
	if ClassifyError(nil) != nil {
		t.Error("ClassifyError(nil) should be nil")
	}
}

func TestFailureKind_Retryable(t *testing.T) {
	retryable := map[FailureKind]bool{
		KindConfiguration: false,
		KindValidation:    false,
		KindRateLimited:   true,
		KindModelNotFound: false,
		KindTransient:     true,
		KindClientOther:   false,
		KindBreakerOpen:   false,
	}
	for kind, want := range retryable {
		if got := kind.Retryable(); got != want {
			t.Errorf("%s.Retryable() = %v, want %v", kind, got, want)
		}
	}
}

func TestFailureKind_String(t *testing.T) {
	names := map[FailureKind]string{
		KindConfiguration: "configuration",
		KindValidation:    "validation",
		KindRateLimited:   "rate_limited",
		KindModelNotFound: "model_not_found",
		KindTransient:     "transient",
		KindClientOther:   "client_error",
		KindBreakerOpen:   "breaker_open",
	}
	for kind, want := range names {
		if got := kind.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}

func TestClassifiedError_Unwrap(t *testing.T) {
	inner := &provider.APIError{StatusCode: 404, Message: "model not found"}
	ce := ClassifyError(inner)

	var apiErr *provider.APIError
	if !errors.As(ce, &apiErr) {
		t.Fatal("ClassifiedError should unwrap to the provider error")
	}
	if apiErr.StatusCode != 404 {
		t.Errorf("Unwrapped StatusCode = %d, want 404", apiErr.StatusCode)
	}
}
