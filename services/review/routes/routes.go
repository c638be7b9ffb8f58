// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/AleutianReview/services/review/handlers"
	"github.com/AleutianAI/AleutianReview/services/review/observability"
)

// Deps carries what the routes need. Nil fields disable the matching
// feature: no Gatherer means no /metrics, no Readiness means /ready
// always reports ready, no RateLimit means uploads are not limited.
type Deps struct {
	Analyzer       handlers.Analyzer
	Readiness      handlers.ReadinessChecker
	Gatherer       prometheus.Gatherer
	Metrics        *observability.ReviewMetrics
	RateLimit      gin.HandlerFunc
	MaxUploadBytes int64
	Logger         *slog.Logger
}

type alwaysReady struct{}

func (alwaysReady) Ready() error { return nil }

// SetupRoutes registers the review endpoints on router.
//
// The analysis endpoint is served at /analysis and at /api/analysis,
// the path older clients post to.
func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HealthCheck)

	readiness := deps.Readiness
	if readiness == nil {
		readiness = alwaysReady{}
	}
	router.GET("/ready", handlers.HandleReady(readiness))

	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	analysis := handlers.HandleAnalysis(deps.Analyzer, handlers.AnalysisOptions{
		MaxUploadBytes: deps.MaxUploadBytes,
		Metrics:        deps.Metrics,
		Logger:         deps.Logger,
	})

	chain := []gin.HandlerFunc{analysis}
	if deps.RateLimit != nil {
		chain = []gin.HandlerFunc{deps.RateLimit, analysis}
	}
	router.POST("/analysis", chain...)
	router.POST("/api/analysis", chain...)
}
