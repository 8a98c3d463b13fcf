// Copyright 2026 The KrishiMitra Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api exposes the AI gateway's HTTP surface: the chat and
// image-diagnosis request gates and the per-provider health endpoint.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/krishimitra/krishimitra/internal/knowledge"
	"github.com/krishimitra/krishimitra/internal/provider"
	"github.com/krishimitra/krishimitra/internal/resilience"
)

// Invoker is the orchestration entry point the request gate drives.
type Invoker interface {
	Invoke(ctx context.Context, parts []provider.Part) (string, error)
	DiscoveredModel() string
}

// Server wires the request gate handlers onto a gin engine.
type Server struct {
	engine    *gin.Engine
	invoker   Invoker
	breaker   *resilience.CircuitBreaker
	knowledge *knowledge.Base

	providerConfigured bool
	defaultLanguage    string

	httpServer *http.Server
}

// NewServer creates the HTTP server. breaker is the same instance guarding
// the invoker; the health endpoint reads its snapshot.
func NewServer(invoker Invoker, breaker *resilience.CircuitBreaker, kb *knowledge.Base, providerConfigured bool, defaultLanguage string, debug bool) *Server {
	if debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestIDMiddleware())
	engine.Use(RequestLogMiddleware())

	s := &Server{
		engine:             engine,
		invoker:            invoker,
		breaker:            breaker,
		knowledge:          kb,
		providerConfigured: providerConfigured,
		defaultLanguage:    defaultLanguage,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	ai := s.engine.Group("/ai")
	ai.POST("/chat", s.ChatHandler)
	ai.POST("/analyze-image", s.AnalyzeImageHandler)

	s.engine.GET("/health/ai", s.HealthHandler)
}

// Engine returns the underlying gin engine, used by tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server on host:port and blocks until it stops.
func (s *Server) Run(host string, port int) error {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
