// Copyright 2026 The KrishiMitra Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package resilience contains the failure taxonomy, circuit breaker, and
// retry executor that guard every call to the generative-AI provider.
//
// The classifier is the single source of truth for failure handling: raw
// provider errors are inspected exactly once, and every downstream decision
// (retry, breaker, fallback) is made on the resulting FailureKind.
package resilience

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/krishimitra/krishimitra/internal/provider"
)

// FailureKind categorizes a failed provider call.
type FailureKind int

const (
	// KindConfiguration indicates a missing or unusable provider credential.
	KindConfiguration FailureKind = iota

	// KindValidation indicates invalid caller input. It never originates
	// from the provider and is assigned at the request gate.
	KindValidation

	// KindRateLimited indicates the provider rejected the call due to rate or quota limits.
	KindRateLimited

	// KindModelNotFound indicates the requested model identifier does not exist upstream.
	KindModelNotFound

	// KindTransient indicates a server-side or network failure that may resolve on its own.
	KindTransient

	// KindClientOther indicates a non-retryable 4xx the gateway cannot recover from.
	KindClientOther

	// KindBreakerOpen indicates the circuit breaker short-circuited the call.
	KindBreakerOpen
)

// String returns the wire name of the failure kind, used in logs and in the
// `reason` field of soft-failure responses.
func (k FailureKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindValidation:
		return "validation"
	case KindRateLimited:
		return "rate_limited"
	case KindModelNotFound:
		return "model_not_found"
	case KindTransient:
		return "transient"
	case KindClientOther:
		return "client_error"
	case KindBreakerOpen:
		return "breaker_open"
	default:
		return "unknown"
	}
}

// Retryable reports whether the retry executor may re-attempt a failure of
// this kind. The bias is toward fast failure: the caller always has a
// deterministic fallback ready, so only genuinely transient conditions retry.
func (k FailureKind) Retryable() bool {
	return k == KindRateLimited || k == KindTransient
}

// ClassifiedError pairs a failure kind with the underlying error.
type ClassifiedError struct {
	Kind FailureKind
	Err  error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// ErrBreakerOpen is returned by the circuit breaker when the circuit is open
// and the reset timeout has not elapsed.
var ErrBreakerOpen = errors.New("resilience: circuit breaker is open")

// rateLimitKeywords are message substrings that mark a rate/quota rejection
// even when the status code is not 429. Checked case-insensitively.
var rateLimitKeywords = []string{
	"rate limit",
	"quota",
	"resource_exhausted",
	"resource exhausted",
	"too many requests",
}

// Classify maps a raw failure to its FailureKind. It is a pure function and
// the only place raw provider errors are inspected.
func Classify(err error) FailureKind {
	if err == nil {
		return KindTransient
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, ErrBreakerOpen) {
		return KindBreakerOpen
	}
	if errors.Is(err, provider.ErrNoAPIKey) {
		return KindConfiguration
	}

	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusNotFound:
			return KindModelNotFound
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return KindRateLimited
		case isRateLimitMessage(apiErr.Message) || isRateLimitMessage(apiErr.Status):
			return KindRateLimited
		case apiErr.StatusCode == http.StatusInternalServerError,
			apiErr.StatusCode == http.StatusBadGateway,
			apiErr.StatusCode == http.StatusServiceUnavailable,
			apiErr.StatusCode == http.StatusGatewayTimeout:
			return KindTransient
		case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
			return KindClientOther
		}
	}

	// Errors without an HTTP status (connection reset, DNS failure, timeout)
	// are treated as transient.
	return KindTransient
}

// ClassifyError wraps err in a ClassifiedError carrying its kind. Already
// classified errors are returned unchanged.
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return nil
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}
	return &ClassifiedError{Kind: Classify(err), Err: err}
}

func isRateLimitMessage(message string) bool {
	lower := strings.ToLower(message)
	for _, kw := range rateLimitKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
