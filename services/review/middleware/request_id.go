// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides Gin middleware for the review service.
//
// # Middleware
//
//   - RequestID: assigns X-Request-ID and stores it in the request context
//   - RequestLogger: structured access log and Prometheus request metrics
//   - CORS: single allowed origin with credentials
//   - RateLimit: per-client token bucket (golang.org/x/time/rate)
//
// # Thread Safety
//
// All returned handlers are safe for concurrent use.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianReview/pkg/logging"
)

// RequestIDHeader is the header carrying the request ID.
const RequestIDHeader = "X-Request-ID"

// requestIDKey is the gin context key for the request ID.
const requestIDKey = "request_id"

// maxRequestIDLen bounds client-supplied request IDs.
const maxRequestIDLen = 128

// RequestID assigns a request ID to each request.
//
// # Description
//
// A client-supplied X-Request-ID of reasonable length is preserved;
// otherwise a UUID is generated. The ID is echoed in the response
// header, stored on the gin context, and attached to the request's
// context.Context so pipeline logs carry it.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}

		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logging.ContextWithRequestID(c.Request.Context(), id))

		c.Next()
	}
}

// GetRequestID returns the request ID assigned by RequestID, or "".
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
