// Copyright 2026 The KrishiMitra Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package provider implements the Gemini REST API client used by the AI
// gateway. It covers the two upstream operations the resilience layer
// depends on: generateContent and the model-listing endpoint.
package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ErrNoAPIKey indicates the client was constructed without a provider credential.
// Calls fail immediately without any network I/O.
var ErrNoAPIKey = errors.New("provider: no API key configured")

// APIError is a failed provider response with its upstream HTTP status.
type APIError struct {
	// StatusCode is the upstream HTTP status code.
	StatusCode int

	// Status is the provider's error.status field (e.g. "RESOURCE_EXHAUSTED"), if present.
	Status string

	// Message is the provider's error.message field, or the raw body when absent.
	Message string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("provider: %d %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("provider: %d: %s", e.StatusCode, e.Message)
}

// Part is one element of a generateContent request. Either Text or InlineData
// is set, never both.
type Part struct {
	Text       string
	InlineData *Blob
}

// Blob carries base64-encoded binary data for image parts.
type Blob struct {
	MIMEType string
	Data     string
}

// TextPart returns a text-only Part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// ImagePart returns an inline-data Part for a base64-encoded image.
func ImagePart(mimeType, base64Data string) Part {
	return Part{InlineData: &Blob{MIMEType: mimeType, Data: base64Data}}
}

// ModelCandidate describes one entry of the provider's model listing.
type ModelCandidate struct {
	// Name is the bare model identifier, without the "models/" prefix.
	Name string

	// SupportsGenerateContent reports whether the listing advertises the
	// generateContent method for this model.
	SupportsGenerateContent bool
}

// Client talks to the Gemini REST API.
type Client struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
}

// NewClient creates a Gemini client. An empty apiKey is allowed; calls then
// fail with ErrNoAPIKey before reaching the network.
func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Configured reports whether a provider credential is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// GenerateContent performs a non-streaming generation request against the
// given model and returns the concatenated text of the first candidate.
func (c *Client) GenerateContent(ctx context.Context, model string, parts []Part) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	payload, err := buildGeneratePayload(parts)
	if err != nil {
		return "", fmt.Errorf("provider: failed to build payload: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(resp.ContentLength))
	}
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return "", err
	}
	data := buf.Bytes()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newAPIError(resp.StatusCode, data)
	}

	text := extractCandidateText(data)
	if text == "" {
		return "", &APIError{StatusCode: resp.StatusCode, Message: "empty candidate in generateContent response"}
	}
	return text, nil
}

// ListModels queries the provider's model-listing endpoint.
func (c *Client) ListModels(ctx context.Context) ([]ModelCandidate, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	url := c.baseURL + "/models?pageSize=200"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	data := buf.Bytes()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, data)
	}

	var candidates []ModelCandidate
	gjson.GetBytes(data, "models").ForEach(func(_, m gjson.Result) bool {
		name := strings.TrimPrefix(m.Get("name").String(), "models/")
		if name == "" {
			return true
		}
		supported := false
		m.Get("supportedGenerationMethods").ForEach(func(_, method gjson.Result) bool {
			if method.String() == "generateContent" {
				supported = true
				return false
			}
			return true
		})
		candidates = append(candidates, ModelCandidate{Name: name, SupportsGenerateContent: supported})
		return true
	})

	return candidates, nil
}

// buildGeneratePayload assembles the generateContent request body via sjson.
func buildGeneratePayload(parts []Part) ([]byte, error) {
	body := []byte(`{"contents":[{"parts":[]}]}`)
	var err error
	for _, p := range parts {
		if p.InlineData != nil {
			part := `{}`
			part, _ = sjson.Set(part, "inline_data.mime_type", p.InlineData.MIMEType)
			part, _ = sjson.Set(part, "inline_data.data", p.InlineData.Data)
			body, err = sjson.SetRawBytes(body, "contents.0.parts.-1", []byte(part))
		} else {
			part, _ := sjson.Set(`{}`, "text", p.Text)
			body, err = sjson.SetRawBytes(body, "contents.0.parts.-1", []byte(part))
		}
		if err != nil {
			return nil, err
		}
	}
	return body, nil
}

// extractCandidateText concatenates the text parts of the first candidate.
func extractCandidateText(data []byte) string {
	var sb strings.Builder
	gjson.GetBytes(data, "candidates.0.content.parts").ForEach(func(_, part gjson.Result) bool {
		sb.WriteString(part.Get("text").String())
		return true
	})
	return sb.String()
}

// newAPIError decodes the provider's error envelope, falling back to the raw
// body when it is not the expected JSON shape.
func newAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		StatusCode: statusCode,
		Status:     gjson.GetBytes(body, "error.status").String(),
		Message:    gjson.GetBytes(body, "error.message").String(),
	}
	if apiErr.Message == "" {
		msg := string(body)
		if len(msg) > 512 {
			msg = msg[:512]
		}
		apiErr.Message = strings.TrimSpace(msg)
	}
	return apiErr
}
