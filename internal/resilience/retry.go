// Copyright 2026 The KrishiMitra Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	log "github.com/sirupsen/logrus"
)

// backoffMultiplier is the exponential growth factor between attempts.
const backoffMultiplier = 1.5

// maxJitter is the upper bound of the uniform jitter added to each delay.
const maxJitter = 500 * time.Millisecond

// Retrier re-runs a failed operation when the failure classifies as
// retryable. It deliberately biases toward fast failure: the request gate has
// a deterministic fallback ready, and retrying aggressively only delays a
// response the user is waiting on.
type Retrier struct {
	maxRetries   int
	initialDelay time.Duration
	maxDelay     time.Duration

	// sleep is injectable for tests. It must suspend only the calling
	// goroutine and honor context cancellation.
	sleep func(ctx context.Context, d time.Duration)

	// jitter returns a random duration in [0, maxJitter).
	jitter func() time.Duration
}

// NewRetrier creates a retry executor. Non-positive arguments fall back to
// the defaults of 1 retry, 500ms initial delay, and an 8s delay cap.
func NewRetrier(maxRetries int, initialDelay, maxDelay time.Duration) *Retrier {
	if maxRetries < 0 {
		maxRetries = 1
	}
	if initialDelay <= 0 {
		initialDelay = 500 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 8 * time.Second
	}
	return &Retrier{
		maxRetries:   maxRetries,
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
		sleep:        sleepContext,
		jitter: func() time.Duration {
			return time.Duration(rand.Int63n(int64(maxJitter)))
		},
	}
}

// Run executes op, retrying on RateLimited and Transient failures up to the
// configured bound. Configuration, Validation, ClientOther, and ModelNotFound
// failures are re-raised immediately; model recovery happens a layer above,
// not inside this policy.
func (r *Retrier) Run(ctx context.Context, op func(ctx context.Context) (string, error)) (string, error) {
	for attempt := 0; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		classified := ClassifyError(err)
		if !classified.Kind.Retryable() || attempt >= r.maxRetries {
			return "", classified
		}

		delay := r.backoffDelay(attempt) + r.jitter()
		log.WithFields(log.Fields{
			"attempt": attempt + 1,
			"kind":    classified.Kind.String(),
			"delay":   delay,
		}).Warn("Provider call failed, retrying")

		r.sleep(ctx, delay)
		if ctx.Err() != nil {
			return "", &ClassifiedError{Kind: KindTransient, Err: ctx.Err()}
		}
	}
}

// backoffDelay computes initialDelay * 1.5^attempt, capped at maxDelay. Pure
// so it is testable without sleeping.
func (r *Retrier) backoffDelay(attempt int) time.Duration {
	d := time.Duration(float64(r.initialDelay) * math.Pow(backoffMultiplier, float64(attempt)))
	if d > r.maxDelay || d <= 0 {
		return r.maxDelay
	}
	return d
}

// sleepContext blocks for d or until ctx is cancelled, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
