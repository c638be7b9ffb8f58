// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package review provides the code review analysis service.
//
// The service accepts a single uploaded source file, runs the external
// analysis engine on it as a child process, and returns the engine's
// report as JSON. It wires the pipeline, HTTP handlers, middleware,
// metrics and tracing together behind a small lifecycle interface.
//
// # Usage
//
//	cfg, err := config.Load("review.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svc, err := review.New(ctx, cfg, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := svc.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianReview/services/review/config"
	"github.com/AleutianAI/AleutianReview/services/review/handlers"
	"github.com/AleutianAI/AleutianReview/services/review/middleware"
	"github.com/AleutianAI/AleutianReview/services/review/observability"
	"github.com/AleutianAI/AleutianReview/services/review/pipeline"
	"github.com/AleutianAI/AleutianReview/services/review/routes"
	"github.com/AleutianAI/AleutianReview/services/review/telemetry"
)

// readHeaderTimeout bounds how long a client may take to send headers.
const readHeaderTimeout = 10 * time.Second

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the review service.
//
// # Thread Safety
//
// Run blocks and should only be called once per instance. Close may be
// called from any goroutine and is safe to repeat.
type Service interface {
	// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
	//
	// In-flight analyses get up to the configured shutdown timeout to
	// finish. Resources are released before Run returns.
	Run(ctx context.Context) error

	// Router returns the configured Gin engine for testing.
	Router() *gin.Engine

	// Pipeline returns the analysis pipeline, for local one-shot runs.
	Pipeline() *pipeline.Pipeline

	// Close releases background workers and flushes telemetry.
	Close(ctx context.Context) error
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config   config.Config
	logger   *slog.Logger
	router   *gin.Engine
	registry *prometheus.Registry
	metrics  *observability.ReviewMetrics
	pipeline *pipeline.Pipeline
	watcher  *pipeline.EngineWatcher

	stopBackground    context.CancelFunc
	telemetryShutdown func(context.Context) error

	closeOnce sync.Once
	closeErr  error
}

// New creates a review Service.
//
// # Description
//
// New initializes, in order:
//  1. Gin mode, when configured
//  2. A private Prometheus registry with Go and process collectors
//  3. OpenTelemetry tracing and metrics (telemetry.Init)
//  4. The artifact store, its directory, and a sweep of stale artifacts
//  5. The engine resolver, availability watcher and concurrency limiter
//  6. The pipeline, middleware chain and routes
//
// A missing engine is not fatal. The service starts, /ready reports
// unavailable, and analyses fail with the configuration error until the
// engine appears.
//
// # Inputs
//
//   - ctx: Context for exporter construction
//   - cfg: Validated configuration (see config.Load)
//   - logger: Base logger. Nil uses slog.Default().
//
// # Outputs
//
//   - Service: Ready-to-run service
//   - error: Non-nil if telemetry or the upload directory cannot be set up
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	s := &service{
		config:   cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry, s.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	s.telemetryShutdown = shutdown
	s.metrics = observability.NewMetrics(s.registry)

	store := pipeline.NewArtifactStore(cfg.UploadDir, logger)
	if err := store.EnsureDir(); err != nil {
		_ = shutdown(context.Background())
		return nil, fmt.Errorf("failed to prepare upload directory: %w", err)
	}
	if cfg.ArtifactMaxAge > 0 {
		if _, err := store.Sweep(cfg.ArtifactMaxAge); err != nil {
			logger.Warn("Startup artifact sweep failed", "error", err)
		}
	}

	resolver := pipeline.NewResolver(cfg.Engine.PipelineEngine())
	if err := resolver.Check(); err != nil {
		logger.Warn("Analysis engine unavailable at startup", "error", err)
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	s.stopBackground = cancel

	var readiness handlers.ReadinessChecker = resolver
	if watcher, err := pipeline.NewEngineWatcher(resolver, logger); err != nil {
		logger.Warn("Engine watcher disabled, readiness checks the filesystem per request", "error", err)
	} else {
		s.watcher = watcher
		readiness = watcher
		go watcher.Start(bgCtx)
	}

	s.pipeline = pipeline.New(store, resolver,
		pipeline.WithLogger(logger),
		pipeline.WithLimiter(pipeline.NewLimiter(cfg.Engine.MaxConcurrent)),
	)

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestLogger(logger, s.metrics))
	if cfg.CORSOrigin != "" {
		s.router.Use(middleware.CORS(cfg.CORSOrigin))
	}

	routes.SetupRoutes(s.router, routes.Deps{
		Analyzer:       s.pipeline,
		Readiness:      readiness,
		Gatherer:       s.registry,
		Metrics:        s.metrics,
		RateLimit:      middleware.RateLimit(bgCtx, cfg.RateLimit.RPS, cfg.RateLimit.Burst, s.metrics),
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger,
	})

	logger.Info("Review service initialized",
		"upload_dir", cfg.UploadDir,
		"engine", cfg.Engine.Path,
		"engine_timeout", cfg.Engine.Timeout,
		"max_concurrent", cfg.Engine.MaxConcurrent,
	)
	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

func (s *service) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("Starting review server", "port", s.config.Port)
		serveErr <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("Shutting down review server", "timeout", s.config.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			runErr = fmt.Errorf("graceful shutdown: %w", err)
		}
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return errors.Join(runErr, s.Close(closeCtx))
}

func (s *service) Router() *gin.Engine { return s.router }

func (s *service) Pipeline() *pipeline.Pipeline { return s.pipeline }

func (s *service) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		s.stopBackground()
		var errs []error
		if s.watcher != nil {
			if err := s.watcher.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop engine watcher: %w", err))
			}
		}
		if err := s.telemetryShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
