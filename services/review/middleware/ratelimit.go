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
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianReview/services/review/datatypes"
	"github.com/AleutianAI/AleutianReview/services/review/observability"
)

// visitorTTL is how long an idle client's bucket is kept.
const visitorTTL = 3 * time.Minute

// RateLimit applies a per-client token bucket.
//
// # Description
//
// Each client IP gets rps tokens per second with the given burst. A
// rejected request receives 429 with the standard error body. Idle
// buckets are dropped by a background sweep that stops with ctx. A
// non-positive rps disables limiting.
//
// # Inputs
//
//   - ctx: Lifetime of the background sweep
//   - rps: Sustained requests per second per client
//   - burst: Maximum burst per client
//   - metrics: Rejection counter. May be nil.
func RateLimit(ctx context.Context, rps float64, burst int, metrics *observability.ReviewMetrics) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst < 1 {
		burst = 1
	}

	type visitor struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}
	var (
		mu       sync.Mutex
		visitors = make(map[string]*visitor)
	)

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mu.Lock()
				for ip, v := range visitors {
					if time.Since(v.lastSeen) > visitorTTL {
						delete(visitors, ip)
					}
				}
				mu.Unlock()
			}
		}
	}()

	return func(c *gin.Context) {
		ip := c.ClientIP()

		mu.Lock()
		v, ok := visitors[ip]
		if !ok {
			v = &visitor{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
			visitors[ip] = v
		}
		v.lastSeen = time.Now()
		mu.Unlock()

		if !v.limiter.Allow() {
			if metrics != nil {
				metrics.RecordRateLimited()
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				datatypes.NewErrorResponse("Too many requests. Please retry later."))
			return
		}
		c.Next()
	}
}
