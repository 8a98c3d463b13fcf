// Copyright 2026 The KrishiMitra Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// requestIDKey is the gin context key carrying the short request ID.
const requestIDKey = "request_id"

// RequestIDMiddleware assigns each request a short ID, echoed in the
// X-Request-ID response header and attached to every log line.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()[:8]
		}
		c.Set(requestIDKey, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// RequestLogMiddleware logs method, path, status, and latency per request.
func RequestLogMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		requestLogger(c).WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Round(time.Millisecond),
		}).Info("Request completed")
	}
}

// requestLogger returns a logrus entry carrying the request ID.
func requestLogger(c *gin.Context) *log.Entry {
	id, _ := c.Get(requestIDKey)
	reqID, _ := id.(string)
	return log.WithField(requestIDKey, reqID)
}
