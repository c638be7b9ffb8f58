// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Exporter names.
const (
	ExporterNone       = "none"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterPrometheus = "prometheus"
)

// Config controls telemetry behavior.
type Config struct {
	// ServiceName identifies this service in traces and metrics.
	ServiceName string `yaml:"service_name"`

	// ServiceVersion is the version string for this service.
	ServiceVersion string `yaml:"service_version"`

	// Environment identifies the deployment environment.
	Environment string `yaml:"environment"`

	// TraceExporter selects the trace exporter: "otlp", "stdout", or "none".
	TraceExporter string `yaml:"trace_exporter" validate:"omitempty,oneof=otlp stdout none"`

	// MetricExporter selects the metric exporter: "prometheus", "stdout", or "none".
	MetricExporter string `yaml:"metric_exporter" validate:"omitempty,oneof=prometheus stdout none"`

	// OTLPEndpoint is the OTLP gRPC receiver for traces (host:port).
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// DefaultConfig returns defaults suited to a local deployment.
//
// Tracing is off unless OTEL_TRACES_EXPORTER selects an exporter, since
// most installs have no collector listening.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "aleutian-review",
		ServiceVersion: "1.0.0",
		Environment:    getEnvOr("REVIEW_ENV", "development"),
		TraceExporter:  getEnvOr("OTEL_TRACES_EXPORTER", ExporterNone),
		MetricExporter: getEnvOr("OTEL_METRICS_EXPORTER", ExporterPrometheus),
		OTLPEndpoint:   getEnvOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}
}

// Init installs the global TracerProvider and MeterProvider.
//
// Description:
//
//	After Init returns, otel.Tracer() and otel.Meter() throughout the
//	process use the configured exporters. With the prometheus metric
//	exporter the otel instruments are registered on reg, which the
//	caller serves at /metrics.
//
// Inputs:
//
//	ctx - Context for exporter construction.
//	cfg - Telemetry configuration.
//	reg - Registerer for the prometheus bridge. Nil uses the default registerer.
//
// Outputs:
//
//	shutdown - Flushes and closes exporters. Must be called on exit.
//	error - Non-nil if an exporter could not be created.
//
// Thread Safety: Call once at application startup.
func Init(ctx context.Context, cfg Config, reg prometheus.Registerer) (shutdown func(context.Context) error, err error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	var shutdownFuncs []func(context.Context) error
	shutdown = func(ctx context.Context) error {
		var errs []error
		for i := len(shutdownFuncs) - 1; i >= 0; i-- {
			if err := shutdownFuncs[i](ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	defer func() {
		if err != nil {
			_ = shutdown(context.Background())
		}
	}()

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	)

	if cfg.TraceExporter != "" && cfg.TraceExporter != ExporterNone {
		tp, closeConn, err := initTracer(ctx, cfg, res)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
		if closeConn != nil {
			shutdownFuncs = append(shutdownFuncs, closeConn)
		}
		shutdownFuncs = append(shutdownFuncs, tp.Shutdown)
	}

	if cfg.MetricExporter != "" && cfg.MetricExporter != ExporterNone {
		mp, err := initMeter(cfg, res, reg)
		if err != nil {
			return nil, fmt.Errorf("init meter: %w", err)
		}
		otel.SetMeterProvider(mp)
		shutdownFuncs = append(shutdownFuncs, mp.Shutdown)
	}

	return shutdown, nil
}

// initTracer creates a TracerProvider and, for OTLP, the gRPC client
// it exports through.
func initTracer(ctx context.Context, cfg Config, res *resource.Resource) (*trace.TracerProvider, func(context.Context) error, error) {
	var (
		exporter  trace.SpanExporter
		closeConn func(context.Context) error
		err       error
	)

	switch cfg.TraceExporter {
	case ExporterOTLP:
		conn, dialErr := grpc.NewClient(cfg.OTLPEndpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		if dialErr != nil {
			return nil, nil, fmt.Errorf("create grpc client: %w", dialErr)
		}
		closeConn = func(context.Context) error { return conn.Close() }
		exporter, err = otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			_ = conn.Close()
		}

	case ExporterStdout:
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(os.Stderr))

	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.TraceExporter)
	}

	if err != nil {
		return nil, nil, fmt.Errorf("create exporter: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.AlwaysSample())),
	)
	return tp, closeConn, nil
}

// initMeter creates a MeterProvider for the selected exporter.
func initMeter(cfg Config, res *resource.Resource, reg prometheus.Registerer) (*metric.MeterProvider, error) {
	switch cfg.MetricExporter {
	case ExporterPrometheus:
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		exporter, err := promexporter.New(promexporter.WithRegisterer(reg))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		return metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(exporter),
		), nil

	case ExporterStdout:
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
		if err != nil {
			return nil, fmt.Errorf("create stdout metric exporter: %w", err)
		}
		return metric.NewMeterProvider(
			metric.WithResource(res),
			metric.WithReader(metric.NewPeriodicReader(exporter)),
		), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownExporter, cfg.MetricExporter)
	}
}

// getEnvOr returns the environment variable value or the fallback.
func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
