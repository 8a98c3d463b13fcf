// Copyright 2026 The KrishiMitra Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/krishimitra/krishimitra/internal/provider"
	"github.com/krishimitra/krishimitra/internal/resilience"
)

// retryAfterSeconds is the hint returned while the circuit breaker is open.
const retryAfterSeconds = 30

// defaultImageQuery is used when the analyze-image request omits a query.
const defaultImageQuery = "Identify the crop disease visible in this image and suggest treatment."

// ChatRequest is the body of POST /ai/chat.
type ChatRequest struct {
	Message      string `json:"message"`
	SystemPrompt string `json:"systemPrompt"`
	Language     string `json:"language"`
}

// AnalyzeImageRequest is the body of POST /ai/analyze-image.
type AnalyzeImageRequest struct {
	ImageBase64  string `json:"imageBase64"`
	MIMEType     string `json:"mimeType"`
	Query        string `json:"query"`
	SystemPrompt string `json:"systemPrompt"`
	Language     string `json:"language"`
}

// ChatResponse is the success or soft-failure body of the chat endpoint.
type ChatResponse struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// AnalyzeImageResponse is the body of the analyze-image endpoint. Fallback is
// always present so clients can distinguish live diagnoses from canned ones.
type AnalyzeImageResponse struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
	Reason   string `json:"reason,omitempty"`
}

// ChatHandler implements the chat path of the request gate.
//
// Validation failures return 400. Configuration and breaker-open failures
// return 503 with a structured body. Every other failure becomes a soft
// success: HTTP 200 with a static degraded-service message, because a user
// mid-conversation must never see a hard error.
func (s *Server) ChatHandler(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "message is required",
		})
		return
	}

	lang := s.language(req.Language)
	parts := buildParts(req.SystemPrompt, req.Message, nil)

	text, err := s.invoker.Invoke(c.Request.Context(), parts)
	if err == nil {
		c.JSON(http.StatusOK, ChatResponse{Text: text})
		return
	}

	kind := resilience.Classify(err)
	requestLogger(c).WithError(err).WithField("kind", kind.String()).Warn("Chat invocation failed")

	switch kind {
	case resilience.KindConfiguration:
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "service_unavailable",
			"message": "AI service is not configured",
		})
	case resilience.KindBreakerOpen:
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":      "service_unavailable",
			"message":    s.knowledge.DegradedChatMessage(lang),
			"retryAfter": retryAfterSeconds,
		})
	default:
		c.JSON(http.StatusOK, ChatResponse{
			Text:     s.knowledge.DegradedChatMessage(lang),
			Fallback: true,
			Reason:   kind.String(),
		})
	}
}

// AnalyzeImageHandler implements the image-diagnosis path of the request
// gate. Apart from input validation, it never returns a hard error: a farmer
// photographing a dying crop always gets some actionable guidance, from the
// live model when possible and from the offline knowledge base otherwise.
func (s *Server) AnalyzeImageHandler(c *gin.Context) {
	var req AnalyzeImageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ImageBase64 == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "imageBase64 is required",
		})
		return
	}

	lang := s.language(req.Language)
	mimeType := req.MIMEType
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	query := req.Query
	if query == "" {
		query = defaultImageQuery
	}
	image := provider.ImagePart(mimeType, req.ImageBase64)
	parts := buildParts(req.SystemPrompt, query, &image)

	text, err := s.invoker.Invoke(c.Request.Context(), parts)
	if err == nil {
		c.JSON(http.StatusOK, AnalyzeImageResponse{Text: text, Fallback: false})
		return
	}

	kind := resilience.Classify(err)
	requestLogger(c).WithError(err).WithField("kind", kind.String()).Warn("Image analysis degraded to offline knowledge base")

	c.JSON(http.StatusOK, AnalyzeImageResponse{
		Text:     s.knowledge.Diagnosis(lang),
		Fallback: true,
		Reason:   kind.String(),
	})
}

// HealthHandler reports per-provider breaker and configuration state.
func (s *Server) HealthHandler(c *gin.Context) {
	snapshot := s.breaker.Snapshot()

	status := "healthy"
	if !s.providerConfigured || snapshot.State != resilience.StateClosed {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"gemini": gin.H{
			"configured":      s.providerConfigured,
			"circuitBreaker":  snapshot,
			"discoveredModel": s.invoker.DiscoveredModel(),
			"status":          status,
		},
	})
}

// language normalizes the request language tag against the knowledge base.
func (s *Server) language(tag string) string {
	if tag == "" {
		return s.defaultLanguage
	}
	return tag
}

// buildParts assembles provider parts in prompt order: system prompt first,
// then the image (if any), then the user text.
func buildParts(systemPrompt, text string, image *provider.Part) []provider.Part {
	parts := make([]provider.Part, 0, 3)
	if systemPrompt != "" {
		parts = append(parts, provider.TextPart(systemPrompt))
	}
	if image != nil {
		parts = append(parts, *image)
	}
	parts = append(parts, provider.TextPart(text))
	return parts
}
