// Copyright 2026 The KrishiMitra Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/krishimitra/krishimitra/internal/provider"
)

// newInstantRetrier returns a retrier whose sleeps are recorded instead of
// executed, so tests run without waiting.
func newInstantRetrier(maxRetries int) (*Retrier, *[]time.Duration) {
	r := NewRetrier(maxRetries, 500*time.Millisecond, 8*time.Second)
	slept := &[]time.Duration{}
	r.sleep = func(ctx context.Context, d time.Duration) {
		*slept = append(*slept, d)
	}
	r.jitter = func() time.Duration { return 0 }
	return r, slept
}

func TestRetrier_TransientRetriedOnce(t *testing.T) {
	r, slept := newInstantRetrier(1)

	calls := 0
	_, err := r.Run(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "", &provider.APIError{StatusCode: 503}
	})

	if calls != 2 {
		t.Errorf("calls = %d, want 2 (initial + 1 retry)", calls)
	}
	if Classify(err) != KindTransient {
		t.Errorf("final error kind = %s, want transient", Classify(err))
	}
	if len(*slept) != 1 || (*slept)[0] != 500*time.Millisecond {
		t.Errorf("slept = %v, want [500ms]", *slept)
	}
}

func TestRetrier_RateLimitedRetried(t *testing.T) {
	r, _ := newInstantRetrier(2)

	calls := 0
	_, err := r.Run(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "", &provider.APIError{StatusCode: 429}
	})

	if calls != 3 {
		t.Errorf("calls = %d, want 3 (initial + 2 retries)", calls)
	}
	if Classify(err) != KindRateLimited {
		t.Errorf("final error kind = %s, want rate_limited", Classify(err))
	}
}

func TestRetrier_NonRetryableFailsFast(t *testing.T) {
	nonRetryable := []error{
		provider.ErrNoAPIKey,
		&provider.APIError{StatusCode: 404},
		&provider.APIError{StatusCode: 400, Message: "Invalid argument"},
		&ClassifiedError{Kind: KindBreakerOpen, Err: ErrBreakerOpen},
	}

	for _, cause := range nonRetryable {
		r, slept := newInstantRetrier(3)
		calls := 0
		_, err := r.Run(context.Background(), func(ctx context.Context) (string, error) {
			calls++
			return "", cause
		})

		if calls != 1 {
			t.Errorf("%v: calls = %d, want 1", cause, calls)
		}
		if len(*slept) != 0 {
			t.Errorf("%v: slept %v, want no sleeps", cause, *slept)
		}
		var ce *ClassifiedError
		if !errors.As(err, &ce) {
			t.Errorf("%v: error not classified: %v", cause, err)
		}
	}
}

func TestRetrier_SuccessAfterRetry(t *testing.T) {
	r, _ := newInstantRetrier(2)

	calls := 0
	result, err := r.Run(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", &provider.APIError{StatusCode: 500}
		}
		return "recovered", nil
	})

	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result != "recovered" {
		t.Errorf("result = %q, want recovered", result)
	}
}

func TestRetrier_ZeroRetriesSingleAttempt(t *testing.T) {
	r, _ := newInstantRetrier(0)

	calls := 0
	_, err := r.Run(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		return "", &provider.APIError{StatusCode: 503}
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if err == nil {
		t.Error("expected error")
	}
}

func TestRetrier_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	r := NewRetrier(3, 500*time.Millisecond, 8*time.Second)
	r.jitter = func() time.Duration { return 0 }
	r.sleep = func(ctx context.Context, d time.Duration) { cancel() }

	calls := 0
	_, err := r.Run(ctx, func(ctx context.Context) (string, error) {
		calls++
		return "", &provider.APIError{StatusCode: 503}
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no attempt after cancellation)", calls)
	}
	if Classify(err) != KindTransient {
		t.Errorf("error kind = %s, want transient", Classify(err))
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want wrapped context.Canceled", err)
	}
}

func TestBackoffDelay_Growth(t *testing.T) {
	r := NewRetrier(5, 500*time.Millisecond, 8*time.Second)

	want := []time.Duration{
		500 * time.Millisecond,
		750 * time.Millisecond,
		1125 * time.Millisecond,
	}
	for attempt, expected := range want {
		if got := r.backoffDelay(attempt); got != expected {
			t.Errorf("backoffDelay(%d) = %v, want %v", attempt, got, expected)
		}
	}
}

func TestBackoffDelay_CappedAtMax(t *testing.T) {
	r := NewRetrier(20, 500*time.Millisecond, 8*time.Second)

	for attempt := 0; attempt < 64; attempt++ {
		if got := r.backoffDelay(attempt); got > 8*time.Second {
			t.Fatalf("backoffDelay(%d) = %v exceeds cap", attempt, got)
		}
	}
	// Large attempt counts overflow float64→Duration conversion; the cap must
	// still hold.
	if got := r.backoffDelay(500); got != 8*time.Second {
		t.Errorf("backoffDelay(500) = %v, want cap 8s", got)
	}
}

func TestRetrier_JitterWithinBound(t *testing.T) {
	r := NewRetrier(1, 500*time.Millisecond, 8*time.Second)

	for i := 0; i < 1000; i++ {
		j := r.jitter()
		if j < 0 || j >= maxJitter {
			t.Fatalf("jitter = %v, want [0, %v)", j, maxJitter)
		}
	}
}
