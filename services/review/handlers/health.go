// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianReview/services/review/datatypes"
)

// ReadinessChecker reports whether the engine can be launched.
type ReadinessChecker interface {
	Ready() error
}

// HealthCheck answers GET /health unconditionally once serving.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, datatypes.HealthResponse{
		Status:  "OK",
		Message: "Server is running",
	})
}

// HandleReady answers GET /ready from the engine availability check.
func HandleReady(checker ReadinessChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := checker.Ready(); err != nil {
			c.JSON(http.StatusServiceUnavailable, datatypes.ReadinessResponse{
				Status:  "unavailable",
				Details: err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, datatypes.ReadinessResponse{Status: "ready"})
	}
}
