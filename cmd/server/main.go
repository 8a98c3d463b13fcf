// Copyright 2026 The KrishiMitra Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main provides the entry point for the KrishiMitra AI gateway.
// The gateway mediates every call to the external generative-AI provider for
// chat and image-based crop-disease diagnosis, and degrades to an offline
// knowledge base when the provider is slow, rate-limited, or down.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/krishimitra/krishimitra/internal/api"
	"github.com/krishimitra/krishimitra/internal/buildinfo"
	"github.com/krishimitra/krishimitra/internal/config"
	"github.com/krishimitra/krishimitra/internal/discovery"
	"github.com/krishimitra/krishimitra/internal/invoker"
	"github.com/krishimitra/krishimitra/internal/knowledge"
	"github.com/krishimitra/krishimitra/internal/logging"
	"github.com/krishimitra/krishimitra/internal/provider"
	"github.com/krishimitra/krishimitra/internal/resilience"
	log "github.com/sirupsen/logrus"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	port := flag.Int("port", 0, "override the configured server port")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("krishimitra %s (commit %s, built %s)\n", buildinfo.Version, buildinfo.Commit, buildinfo.BuildDate)
		return
	}

	// Load .env before the config so GEMINI_API_KEY can come from either.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Failed to load .env file")
	}

	watcher, err := config.NewWatcher(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	defer watcher.Close()
	cfg := watcher.Config()

	if *port != 0 {
		cfg.Port = *port
	}

	applyLogSettings(cfg)
	watcher.OnReload(applyLogSettings)

	if cfg.Gemini.APIKey == "" {
		log.Warn("No Gemini API key configured; all AI requests will degrade to offline fallbacks")
	}

	client := provider.NewClient(cfg.Gemini.APIKey, cfg.Gemini.BaseURL)
	breaker := resilience.NewCircuitBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.ResetTimeout)
	retrier := resilience.NewRetrier(cfg.Retry.MaxRetries, cfg.Retry.InitialDelay, cfg.Retry.MaxDelay)
	finder := discovery.NewFinder(client, cfg.Gemini.CandidateModels, cfg.Gemini.ProbePrompt)
	inv := invoker.New(client, breaker, retrier, finder, cfg.Gemini.Model)

	kb, err := knowledge.NewBase(cfg.Fallback.DefaultLanguage)
	if err != nil {
		log.WithError(err).Fatal("Failed to load fallback knowledge base")
	}

	server := api.NewServer(inv, breaker, kb, client.Configured(), cfg.Fallback.DefaultLanguage, cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{
			"host":    cfg.Host,
			"port":    cfg.Port,
			"model":   cfg.Gemini.Model,
			"version": buildinfo.Version,
		}).Info("Starting KrishiMitra AI gateway")
		errCh <- server.Run(cfg.Host, cfg.Port)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Fatal("HTTP server failed")
		}
	case <-ctx.Done():
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("Graceful shutdown failed")
		}
	}
}

// applyLogSettings applies log level and output destination from the config.
// Registered as a reload callback so both are hot-reloadable.
func applyLogSettings(cfg *config.Config) {
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
	if err := logging.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogDir); err != nil {
		log.WithError(err).Warn("Failed to configure log output")
	}
}
