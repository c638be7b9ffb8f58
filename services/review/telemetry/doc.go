// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry initializes OpenTelemetry tracing and metrics for the
// review service.
//
// Traces go to an OTLP collector over gRPC, to stdout, or nowhere. Pipeline
// metrics recorded through otel.Meter are bridged into a Prometheus
// registry so that a single /metrics endpoint serves both the otel
// instruments and the service's native client_golang collectors.
//
// # Usage
//
//	reg := prometheus.NewRegistry()
//	shutdown, err := telemetry.Init(ctx, telemetry.DefaultConfig(), reg)
//	if err != nil {
//	    return fmt.Errorf("init telemetry: %w", err)
//	}
//	defer shutdown(context.Background())
//
// # Environment Variables
//
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
//   - OTEL_TRACES_EXPORTER: otlp, stdout, or none (default: none)
//   - OTEL_METRICS_EXPORTER: prometheus, stdout, or none (default: prometheus)
//   - REVIEW_ENV: environment name (default: development)
//
// # Thread Safety
//
// All exported functions are safe for concurrent use after Init returns.
package telemetry

import "errors"

var (
	// ErrNilContext is returned when Init is called with a nil context.
	ErrNilContext = errors.New("telemetry: nil context")

	// ErrUnknownExporter is returned for an unrecognized exporter name.
	ErrUnknownExporter = errors.New("telemetry: unknown exporter")
)
