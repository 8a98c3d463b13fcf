// Copyright 2026 The KrishiMitra Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package discovery locates a working model identifier at runtime when the
// configured one stops existing upstream (e.g. after a provider deprecation).
package discovery

import (
	"context"
	"strings"

	"github.com/krishimitra/krishimitra/internal/provider"
	log "github.com/sirupsen/logrus"
)

// familyKeyword filters listing candidates to the generative-text model family.
const familyKeyword = "gemini"

// Client is the subset of the provider client the finder depends on.
type Client interface {
	GenerateContent(ctx context.Context, model string, parts []provider.Part) (string, error)
	ListModels(ctx context.Context) ([]provider.ModelCandidate, error)
}

// Finder probes candidate models until one answers a real generation request.
type Finder struct {
	client Client

	// staticCandidates is the ordered hard-coded fallback list used when the
	// listing endpoint is unreachable or yields nothing usable. Kept as data,
	// not control flow, so the probe order is test-visible and configurable.
	staticCandidates []string

	// probePrompt is the minimal prompt sent to each candidate.
	probePrompt string
}

// NewFinder creates a Finder probing with probePrompt and falling back to the
// given ordered candidate list.
func NewFinder(client Client, staticCandidates []string, probePrompt string) *Finder {
	if probePrompt == "" {
		probePrompt = "Hello"
	}
	return &Finder{
		client:           client,
		staticCandidates: staticCandidates,
		probePrompt:      probePrompt,
	}
}

// FindWorkingModel returns the first candidate model that answers a minimal
// generation request, probing candidates strictly in order. Probing is
// deliberately sequential: provider rate limits make concurrent exploratory
// calls counter-productive, and the result is cached for the process lifetime
// by the caller, so the steady-state cost amortizes to zero.
//
// The second return value is false when every candidate failed.
func (f *Finder) FindWorkingModel(ctx context.Context) (string, bool) {
	candidates := f.listCandidates(ctx)
	if len(candidates) == 0 {
		log.Debug("Model listing yielded no usable candidates, using static fallback list")
		candidates = f.staticCandidates
	}

	probeParts := []provider.Part{provider.TextPart(f.probePrompt)}
	for _, name := range candidates {
		text, err := f.client.GenerateContent(ctx, name, probeParts)
		if err != nil {
			log.WithError(err).WithField("model", name).Debug("Model probe failed")
			continue
		}
		if text == "" {
			log.WithField("model", name).Debug("Model probe returned empty response")
			continue
		}
		log.WithField("model", name).Info("Discovered working model")
		return name, true
	}

	log.Warn("No working model found among candidates")
	return "", false
}

// listCandidates queries the provider's model listing and filters it to
// models that advertise generateContent and belong to the generative-text
// family. Listing failures are swallowed; the static list covers for them.
func (f *Finder) listCandidates(ctx context.Context) []string {
	listed, err := f.client.ListModels(ctx)
	if err != nil {
		log.WithError(err).Warn("Model listing failed")
		return nil
	}

	var names []string
	for _, m := range listed {
		if !m.SupportsGenerateContent {
			continue
		}
		if !strings.Contains(strings.ToLower(m.Name), familyKeyword) {
			continue
		}
		names = append(names, m.Name)
	}
	return names
}
