// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianReview/services/review/observability"
	"github.com/AleutianAI/AleutianReview/services/review/telemetry"
)

// RequestLogger logs each request and records request metrics.
//
// # Inputs
//
//   - logger: Access log destination. Nil uses slog.Default().
//   - metrics: Request metrics. May be nil.
func RequestLogger(logger *slog.Logger, metrics *observability.ReviewMetrics) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		if metrics != nil {
			metrics.RecordRequest(route, c.Request.Method, status, elapsed.Seconds())
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		telemetry.LoggerWithTrace(c.Request.Context(), logger).Log(c.Request.Context(), level, "request",
			"request_id", GetRequestID(c),
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}
