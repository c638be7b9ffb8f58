// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the review service.
//
// # Description
//
// Metrics include:
//   - HTTP request counters and latency (by route and status code)
//   - Analysis outcome counters and duration (by outcome)
//   - In-flight analysis gauge
//   - Rate-limit rejections
//   - Upload size histogram
//
// Metrics are registered on a caller-supplied registry and exposed via the
// /metrics endpoint alongside the otel pipeline instruments.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "aleutian"

// Subsystem for review service metrics
const reviewSubsystem = "review"

// ReviewMetrics holds all Prometheus metrics for the review service.
//
// # Fields
//
//   - RequestsTotal: Counter of HTTP requests by route, method and status
//   - RequestDurationSeconds: Histogram of HTTP request latency by route
//   - AnalysesTotal: Counter of analysis runs by outcome
//   - AnalysisDurationSeconds: Histogram of analysis duration by outcome
//   - ActiveAnalyses: Gauge of analyses currently in progress
//   - RateLimitedTotal: Counter of requests rejected by the rate limiter
//   - UploadBytes: Histogram of accepted upload sizes
//
// # Thread Safety
//
// All operations are thread-safe.
type ReviewMetrics struct {
	RequestsTotal           *prometheus.CounterVec
	RequestDurationSeconds  *prometheus.HistogramVec
	AnalysesTotal           *prometheus.CounterVec
	AnalysisDurationSeconds *prometheus.HistogramVec
	ActiveAnalyses          prometheus.Gauge
	RateLimitedTotal        prometheus.Counter
	UploadBytes             prometheus.Histogram
}

// NewMetrics creates and registers all review metrics on reg.
//
// # Inputs
//
//   - reg: Target registry. Nil registers on the default registerer.
//
// # Outputs
//
//   - *ReviewMetrics: The initialized metrics instance.
//
// # Limitations
//
//   - Panics if called twice with the same registry (duplicate registration).
func NewMetrics(reg prometheus.Registerer) *ReviewMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &ReviewMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: reviewSubsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by route, method and status code",
			},
			[]string{"route", "method", "status"},
		),

		RequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: reviewSubsystem,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   []float64{0.005, 0.05, 0.25, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"route"},
		),

		AnalysesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: reviewSubsystem,
				Name:      "analyses_total",
				Help:      "Total number of analysis requests by outcome",
			},
			[]string{"outcome"},
		),

		AnalysisDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: reviewSubsystem,
				Name:      "analysis_duration_seconds",
				Help:      "Analysis duration in seconds, including upload storage",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"outcome"},
		),

		ActiveAnalyses: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Subsystem: reviewSubsystem,
				Name:      "active_analyses",
				Help:      "Number of analyses currently in progress",
			},
		),

		RateLimitedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: reviewSubsystem,
				Name:      "rate_limited_total",
				Help:      "Total number of requests rejected by the rate limiter",
			},
		),

		UploadBytes: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: reviewSubsystem,
				Name:      "upload_size_bytes",
				Help:      "Size of accepted uploads in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
			},
		),
	}
}

// =============================================================================
// Helper Methods
// =============================================================================

// RecordRequest records a completed HTTP request.
func (m *ReviewMetrics) RecordRequest(route, method string, status int, seconds float64) {
	m.RequestsTotal.WithLabelValues(route, method, statusLabel(status)).Inc()
	m.RequestDurationSeconds.WithLabelValues(route).Observe(seconds)
}

// AnalysisStarted increments the active analyses gauge.
func (m *ReviewMetrics) AnalysisStarted() {
	m.ActiveAnalyses.Inc()
}

// AnalysisEnded decrements the active analyses gauge and records the outcome.
//
// # Inputs
//
//   - outcome: One of the pipeline outcome labels (success, parse, ...).
//   - seconds: Total duration in seconds.
func (m *ReviewMetrics) AnalysisEnded(outcome string, seconds float64) {
	m.ActiveAnalyses.Dec()
	m.AnalysesTotal.WithLabelValues(outcome).Inc()
	m.AnalysisDurationSeconds.WithLabelValues(outcome).Observe(seconds)
}

// RecordRateLimited increments the rate-limit rejection counter.
func (m *ReviewMetrics) RecordRateLimited() {
	m.RateLimitedTotal.Inc()
}

// RecordUpload records the size of an accepted upload.
func (m *ReviewMetrics) RecordUpload(size int64) {
	m.UploadBytes.Observe(float64(size))
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
