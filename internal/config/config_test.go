// Copyright 2026 The KrishiMitra Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeTempConfig(t, "")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Port != 8317 {
		t.Errorf("Port default = %d, want 8317", cfg.Port)
	}
	if cfg.Breaker.MaxFailures != 5 {
		t.Errorf("Breaker.MaxFailures default = %d, want 5", cfg.Breaker.MaxFailures)
	}
	if cfg.Breaker.ResetTimeout != 30*time.Second {
		t.Errorf("Breaker.ResetTimeout default = %v, want 30s", cfg.Breaker.ResetTimeout)
	}
	if cfg.Retry.MaxRetries != 1 {
		t.Errorf("Retry.MaxRetries default = %d, want 1", cfg.Retry.MaxRetries)
	}
	if cfg.Retry.InitialDelay != 500*time.Millisecond {
		t.Errorf("Retry.InitialDelay default = %v, want 500ms", cfg.Retry.InitialDelay)
	}
	if cfg.Fallback.DefaultLanguage != "en" {
		t.Errorf("Fallback.DefaultLanguage default = %q, want en", cfg.Fallback.DefaultLanguage)
	}
	if len(cfg.Gemini.CandidateModels) == 0 {
		t.Error("Gemini.CandidateModels default should not be empty")
	}
}

func TestLoadConfig_ExplicitValues(t *testing.T) {
	path := writeTempConfig(t, `
port: 9000
debug: true
gemini:
  api-key: file-key
  model: gemini-1.5-pro
breaker:
  max-failures: 3
  reset-timeout: 10s
retry:
  max-retries: 2
  initial-delay: 250ms
fallback:
  default-language: hi
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if !cfg.Debug {
		t.Error("Debug should be true")
	}
	if cfg.Gemini.Model != "gemini-1.5-pro" {
		t.Errorf("Gemini.Model = %q, want gemini-1.5-pro", cfg.Gemini.Model)
	}
	if cfg.Breaker.MaxFailures != 3 {
		t.Errorf("Breaker.MaxFailures = %d, want 3", cfg.Breaker.MaxFailures)
	}
	if cfg.Breaker.ResetTimeout != 10*time.Second {
		t.Errorf("Breaker.ResetTimeout = %v, want 10s", cfg.Breaker.ResetTimeout)
	}
	if cfg.Retry.InitialDelay != 250*time.Millisecond {
		t.Errorf("Retry.InitialDelay = %v, want 250ms", cfg.Retry.InitialDelay)
	}
	if cfg.Fallback.DefaultLanguage != "hi" {
		t.Errorf("Fallback.DefaultLanguage = %q, want hi", cfg.Fallback.DefaultLanguage)
	}
}

func TestLoadConfig_EnvOverridesAPIKey(t *testing.T) {
	path := writeTempConfig(t, "gemini:\n  api-key: file-key\n")

	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Gemini.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env-key (environment must win)", cfg.Gemini.APIKey)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "port: [not a number")

	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}
