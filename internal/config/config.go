// Copyright 2026 The KrishiMitra Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the KrishiMitra AI
// gateway. It handles loading and parsing the YAML configuration file and
// provides structured access to the server, provider, circuit breaker, retry,
// and fallback settings.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Host is the network host/interface on which the API server will bind.
	// Default is empty ("") to bind all interfaces. Use "127.0.0.1" for local-only access.
	Host string `yaml:"host"`

	// Port is the network port on which the API server will listen.
	Port int `yaml:"port"`

	// Debug enables or disables debug-level logging and other debug features.
	Debug bool `yaml:"debug"`

	// LoggingToFile controls whether application logs are written to rotating files or stdout.
	LoggingToFile bool `yaml:"logging-to-file"`

	// LogDir is the directory used for rotating log files when LoggingToFile is set.
	LogDir string `yaml:"log-dir"`

	// Gemini configures the upstream generative-AI provider.
	Gemini GeminiConfig `yaml:"gemini"`

	// Breaker configures the per-provider circuit breaker.
	Breaker BreakerConfig `yaml:"breaker"`

	// Retry configures the retry/backoff executor wrapped around provider calls.
	Retry RetryConfig `yaml:"retry"`

	// Fallback configures the offline knowledge base used as last resort.
	Fallback FallbackConfig `yaml:"fallback"`
}

// GeminiConfig holds settings for the Gemini REST API provider.
type GeminiConfig struct {
	// APIKey is the provider credential. The GEMINI_API_KEY environment
	// variable takes precedence over the file value.
	APIKey string `yaml:"api-key"`

	// Model is the configured model identifier used until discovery supersedes it.
	Model string `yaml:"model"`

	// BaseURL is the API base endpoint. Override for tests or regional endpoints.
	BaseURL string `yaml:"base-url"`

	// ProbePrompt is the minimal generation prompt used when probing candidate models.
	ProbePrompt string `yaml:"probe-prompt"`

	// CandidateModels is the ordered fallback list of model identifiers probed
	// when the provider's model listing yields nothing usable. Most capable first.
	CandidateModels []string `yaml:"candidate-models"`
}

// BreakerConfig holds circuit breaker tunables.
type BreakerConfig struct {
	// MaxFailures is the consecutive-failure count that opens the circuit.
	MaxFailures int `yaml:"max-failures"`

	// ResetTimeout is how long an open circuit waits before allowing a trial call.
	ResetTimeout time.Duration `yaml:"reset-timeout"`
}

// RetryConfig holds retry/backoff tunables.
type RetryConfig struct {
	// MaxRetries is the number of additional attempts after the first failure.
	MaxRetries int `yaml:"max-retries"`

	// InitialDelay is the base backoff delay before the first retry.
	InitialDelay time.Duration `yaml:"initial-delay"`

	// MaxDelay caps the computed backoff delay.
	MaxDelay time.Duration `yaml:"max-delay"`
}

// FallbackConfig holds offline knowledge base settings.
type FallbackConfig struct {
	// DefaultLanguage is used when a request carries no recognized language tag.
	DefaultLanguage string `yaml:"default-language"`
}

// DefaultCandidateModels is the ordered hard-coded probe list used when the
// provider's model listing is unreachable or empty. Newest/most capable first.
var DefaultCandidateModels = []string{
	"gemini-2.5-flash",
	"gemini-2.0-flash",
	"gemini-1.5-flash",
	"gemini-1.5-flash-latest",
	"gemini-1.5-pro",
	"gemini-pro",
}

// LoadConfig reads YAML from configFile and returns the parsed configuration
// with defaults applied. The GEMINI_API_KEY environment variable overrides the
// file's api-key value.
func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig()
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Gemini.APIKey = key
	}
	cfg.applyDefaults()

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Port:   8317,
		LogDir: "logs",
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			BaseURL:     "https://generativelanguage.googleapis.com/v1beta",
			ProbePrompt: "Hello",
		},
		Breaker: BreakerConfig{MaxFailures: 5, ResetTimeout: 30 * time.Second},
		Retry:   RetryConfig{MaxRetries: 1, InitialDelay: 500 * time.Millisecond, MaxDelay: 8 * time.Second},
		Fallback: FallbackConfig{
			DefaultLanguage: "en",
		},
	}
}

// applyDefaults fills zero values that yaml.Unmarshal may have cleared when
// keys were present but empty.
func (c *Config) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 8317
	}
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.5-flash"
	}
	if c.Gemini.BaseURL == "" {
		c.Gemini.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if c.Gemini.ProbePrompt == "" {
		c.Gemini.ProbePrompt = "Hello"
	}
	if len(c.Gemini.CandidateModels) == 0 {
		c.Gemini.CandidateModels = append([]string(nil), DefaultCandidateModels...)
	}
	if c.Breaker.MaxFailures <= 0 {
		c.Breaker.MaxFailures = 5
	}
	if c.Breaker.ResetTimeout <= 0 {
		c.Breaker.ResetTimeout = 30 * time.Second
	}
	if c.Retry.MaxRetries < 0 {
		c.Retry.MaxRetries = 1
	}
	if c.Retry.InitialDelay <= 0 {
		c.Retry.InitialDelay = 500 * time.Millisecond
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = 8 * time.Second
	}
	if c.Fallback.DefaultLanguage == "" {
		c.Fallback.DefaultLanguage = "en"
	}
}
