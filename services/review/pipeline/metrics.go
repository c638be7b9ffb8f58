// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianReview/services/review/telemetry"
)

// instrumentationName names the pipeline's tracer and meter.
const instrumentationName = "aleutian.review.pipeline"

// Package-level meter for pipeline operations.
var meter = otel.Meter(instrumentationName)

// Metrics for pipeline operations.
var (
	analysisLatency metric.Float64Histogram
	analysisTotal   metric.Int64Counter
	engineLatency   metric.Float64Histogram
	issuesReported  metric.Int64Histogram
	artifactBytes   metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		analysisLatency, err = meter.Float64Histogram(
			"review_pipeline_duration_seconds",
			metric.WithDescription("Duration of a full pipeline run"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		analysisTotal, err = meter.Int64Counter(
			"review_pipeline_runs_total",
			metric.WithDescription("Total number of pipeline runs by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		engineLatency, err = meter.Float64Histogram(
			"review_engine_duration_seconds",
			metric.WithDescription("Wall time of the engine process"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		issuesReported, err = meter.Int64Histogram(
			"review_issues_reported",
			metric.WithDescription("Number of issues per successful report"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		artifactBytes, err = meter.Int64Histogram(
			"review_artifact_size_bytes",
			metric.WithDescription("Size of stored uploads"),
			metric.WithUnit("By"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// startAnalyzeSpan creates the root span for one pipeline run.
func startAnalyzeSpan(ctx context.Context, originalName string) (context.Context, trace.Span) {
	return telemetry.StartSpan(ctx, instrumentationName, "Pipeline.Analyze",
		trace.WithAttributes(
			attribute.String("review.original_name", originalName),
		),
	)
}

// startStageSpan creates a child span for one pipeline stage.
func startStageSpan(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return telemetry.StartSpan(ctx, instrumentationName, "Pipeline."+stage, trace.WithAttributes(attrs...))
}

// recordAnalysisMetrics records metrics for a finished pipeline run.
func recordAnalysisMetrics(ctx context.Context, outcome string, duration time.Duration, issueCount int) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	analysisLatency.Record(ctx, duration.Seconds(), attrs)
	analysisTotal.Add(ctx, 1, attrs)

	if outcome == OutcomeSuccess {
		issuesReported.Record(ctx, int64(issueCount))
	}
}

// recordEngineMetrics records the engine wall time and exit code.
func recordEngineMetrics(ctx context.Context, c Completion) {
	if err := initMetrics(); err != nil {
		return
	}
	engineLatency.Record(ctx, c.Duration().Seconds(), metric.WithAttributes(
		attribute.Int("exit_code", c.ExitCode),
	))
}

// recordArtifactMetrics records the size of a stored upload.
func recordArtifactMetrics(ctx context.Context, size int64) {
	if err := initMetrics(); err != nil {
		return
	}
	artifactBytes.Record(ctx, size)
}
