// Copyright 2026 The KrishiMitra Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resilience

import (
	"context"
	"sync"
	"time"
)

// BreakerState represents the circuit breaker state.
type BreakerState int

const (
	// StateClosed allows calls through and counts failures.
	StateClosed BreakerState = iota

	// StateOpen short-circuits calls until the reset timeout elapses.
	StateOpen

	// StateHalfOpen allows a single trial call after the reset timeout.
	StateHalfOpen
)

// String returns the wire name of the state, used by the health endpoint.
func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerSnapshot is a read-only copy of breaker state for the health endpoint.
type BreakerSnapshot struct {
	State         BreakerState `json:"-"`
	StateName     string       `json:"state"`
	Failures      int          `json:"failures"`
	LastFailureAt time.Time    `json:"lastFailureTime"`
}

// CircuitBreaker gates calls to one upstream provider. One instance exists
// per provider for the process lifetime; chat and vision share the provider
// and therefore the breaker.
//
// Transitions: CLOSED→OPEN when consecutive failures reach maxFailures,
// OPEN→HALF_OPEN once resetTimeout has elapsed since the last failure,
// HALF_OPEN→CLOSED on a successful trial, HALF_OPEN→OPEN on a failed trial.
type CircuitBreaker struct {
	mu            sync.Mutex
	state         BreakerState
	failureCount  int
	lastFailureAt time.Time

	maxFailures  int
	resetTimeout time.Duration

	// now is injectable for tests.
	now func() time.Time
}

// NewCircuitBreaker creates a closed breaker. Non-positive arguments fall
// back to the defaults of 5 failures and a 30s reset timeout.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		state:        StateClosed,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          time.Now,
	}
}

// Execute runs op under breaker protection. When the circuit is open and the
// reset timeout has not elapsed, op is never invoked and the call fails with
// ErrBreakerOpen (classified KindBreakerOpen).
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(ctx context.Context) (string, error)) (string, error) {
	cb.mu.Lock()
	if cb.state == StateOpen {
		if cb.now().Sub(cb.lastFailureAt) < cb.resetTimeout {
			cb.mu.Unlock()
			return "", &ClassifiedError{Kind: KindBreakerOpen, Err: ErrBreakerOpen}
		}
		cb.state = StateHalfOpen
	}
	cb.mu.Unlock()

	result, err := op(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.failureCount = 0
		cb.state = StateClosed
		return result, nil
	}

	cb.failureCount++
	cb.lastFailureAt = cb.now()
	if cb.state == StateHalfOpen {
		// A single failed trial reopens the circuit.
		cb.state = StateOpen
	} else if cb.failureCount >= cb.maxFailures {
		cb.state = StateOpen
	}
	return "", err
}

// Snapshot returns a copy of the breaker state for reporting.
func (cb *CircuitBreaker) Snapshot() BreakerSnapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerSnapshot{
		State:         cb.state,
		StateName:     cb.state.String(),
		Failures:      cb.failureCount,
		LastFailureAt: cb.lastFailureAt,
	}
}
