// Copyright 2026 The KrishiMitra Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package invoker orchestrates a provider call through the circuit breaker,
// retry executor, and runtime model discovery. It is the single entry point
// the request gate uses to talk to the generative-AI provider.
package invoker

import (
	"context"
	"sync"

	"github.com/krishimitra/krishimitra/internal/provider"
	"github.com/krishimitra/krishimitra/internal/resilience"
	log "github.com/sirupsen/logrus"
)

// Client is the subset of the provider client the invoker depends on.
type Client interface {
	GenerateContent(ctx context.Context, model string, parts []provider.Part) (string, error)
}

// ModelFinder locates a working model when the configured one disappears upstream.
type ModelFinder interface {
	FindWorkingModel(ctx context.Context) (string, bool)
}

// Invoker drives breaker → retry → provider call, recovering from
// model-not-found failures via discovery.
type Invoker struct {
	client  Client
	breaker *resilience.CircuitBreaker
	retrier *resilience.Retrier
	finder  ModelFinder

	// mu guards the model selection. discovered, once set, is authoritative
	// and never cleared: it is the last model proven to work, and the
	// configured model is assumed permanently broken once superseded.
	mu         sync.Mutex
	configured string
	discovered string

	// discovering serializes discovery so concurrent requests hitting
	// model-not-found at the same time run a single probe sequence.
	discovering sync.Mutex
}

// New creates an Invoker for the configured model.
func New(client Client, breaker *resilience.CircuitBreaker, retrier *resilience.Retrier, finder ModelFinder, configuredModel string) *Invoker {
	return &Invoker{
		client:     client,
		breaker:    breaker,
		retrier:    retrier,
		finder:     finder,
		configured: configuredModel,
	}
}

// Invoke sends parts to the selected model and returns the response text.
// Failures surface as *resilience.ClassifiedError.
func (inv *Invoker) Invoke(ctx context.Context, parts []provider.Part) (string, error) {
	model, superseded := inv.selectedModel()

	text, err := inv.callGuarded(ctx, model, parts)
	if err == nil {
		return text, nil
	}

	// Model recovery happens here, not inside the retry policy: a vanished
	// model needs discovery, not backoff.
	if resilience.Classify(err) == resilience.KindModelNotFound && !superseded {
		if name, ok := inv.discover(ctx); ok {
			// Exactly one more attempt with the discovered model, not
			// wrapped in additional retry.
			text, retryErr := inv.callOnce(ctx, name, parts)
			if retryErr != nil {
				return "", resilience.ClassifyError(retryErr)
			}
			return text, nil
		}
	}

	return "", resilience.ClassifyError(err)
}

// DiscoveredModel returns the model discovery settled on, if any.
func (inv *Invoker) DiscoveredModel() string {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.discovered
}

// selectedModel returns the model to call and whether discovery has already
// superseded the configured one.
func (inv *Invoker) selectedModel() (string, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.discovered != "" {
		return inv.discovered, true
	}
	return inv.configured, false
}

// discover runs model discovery under the single-flight lock and records the
// result. A request that lost the race reuses the winner's model.
func (inv *Invoker) discover(ctx context.Context) (string, bool) {
	inv.discovering.Lock()
	defer inv.discovering.Unlock()

	// Another request may have finished discovery while we waited.
	inv.mu.Lock()
	if inv.discovered != "" {
		name := inv.discovered
		inv.mu.Unlock()
		return name, true
	}
	inv.mu.Unlock()

	log.WithField("configured", inv.configured).Info("Configured model not found, starting discovery")
	name, ok := inv.finder.FindWorkingModel(ctx)
	if !ok {
		return "", false
	}

	inv.mu.Lock()
	inv.discovered = name
	inv.mu.Unlock()
	return name, true
}

// callGuarded runs the provider call under breaker and retry protection.
func (inv *Invoker) callGuarded(ctx context.Context, model string, parts []provider.Part) (string, error) {
	return inv.breaker.Execute(ctx, func(ctx context.Context) (string, error) {
		return inv.retrier.Run(ctx, func(ctx context.Context) (string, error) {
			return inv.client.GenerateContent(ctx, model, parts)
		})
	})
}

// callOnce runs a single unretried provider call, still recorded by the breaker.
func (inv *Invoker) callOnce(ctx context.Context, model string, parts []provider.Part) (string, error) {
	return inv.breaker.Execute(ctx, func(ctx context.Context) (string, error) {
		return inv.client.GenerateContent(ctx, model, parts)
	})
}
