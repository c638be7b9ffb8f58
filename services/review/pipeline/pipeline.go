// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline runs one uploaded file through the external analysis
// engine and turns the result into a report or a classified error.
//
// # Stages
//
//  1. Check the engine configuration (nothing is stored on failure)
//  2. Store the upload as a uniquely named artifact
//  3. Wait for a concurrency slot
//  4. Invoke the engine with the artifact path as its only argument
//  5. Drain stdout and stderr concurrently until both reach EOF
//  6. Interpret the exit code and output
//  7. Remove the artifact (always, exactly once)
//
// # Thread Safety
//
// A Pipeline is safe for concurrent use; each Analyze call owns its own
// artifact and process.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/AleutianAI/AleutianReview/pkg/logging"
	"github.com/AleutianAI/AleutianReview/services/review/datatypes"
	"github.com/AleutianAI/AleutianReview/services/review/telemetry"
)

// Pipeline composes the analysis stages.
type Pipeline struct {
	store    *ArtifactStore
	resolver *Resolver
	invoker  *Invoker
	limiter  *Limiter
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithLimiter bounds concurrent engine runs. Default: unbounded.
func WithLimiter(limiter *Limiter) Option {
	return func(p *Pipeline) {
		if limiter != nil {
			p.limiter = limiter
		}
	}
}

// New creates a pipeline that stores uploads in store and launches the
// engine described by resolver.
func New(store *ArtifactStore, resolver *Resolver, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:    store,
		resolver: resolver,
		limiter:  NewLimiter(0),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.invoker = NewInvoker(resolver, p.logger)
	return p
}

// Limiter returns the pipeline's concurrency limiter.
func (p *Pipeline) Limiter() *Limiter { return p.limiter }

// Analyze runs one upload through the engine.
//
// # Description
//
// Blocks until the engine has exited and both of its streams are fully
// drained, or until the run is killed by the engine deadline or by ctx.
// The stored artifact is removed before Analyze returns on every path.
//
// # Inputs
//
//   - ctx: Request lifetime. Cancelling it kills the engine.
//   - r: Upload content
//   - originalName: Client filename (its extension is preserved)
//
// # Outputs
//
//   - *datatypes.AnalysisReport: The report on success
//   - error: *ConfigurationError, *StorageError, *SpawnError,
//     *ExecutionError, *OutputError, *ParseError, or an error wrapping
//     ErrCapacity
func (p *Pipeline) Analyze(ctx context.Context, r io.Reader, originalName string) (*datatypes.AnalysisReport, error) {
	ctx, span := startAnalyzeSpan(ctx, originalName)
	defer span.End()

	logger := logging.FromContext(ctx, p.logger)
	start := time.Now()

	report, err := p.analyze(ctx, logger, r, originalName)

	outcome := Classify(err)
	issueCount := 0
	if report != nil {
		issueCount = report.IssueCount()
	}
	recordAnalysisMetrics(ctx, outcome, time.Since(start), issueCount)
	span.SetAttributes(attribute.String("review.outcome", outcome))

	if err != nil {
		telemetry.RecordError(span, err)
		logger.Warn("analysis failed",
			"outcome", outcome,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err,
		)
		return nil, err
	}

	telemetry.SetSpanOK(span)
	logger.Info("analysis completed",
		"report_id", report.ID,
		"issues", issueCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

func (p *Pipeline) analyze(ctx context.Context, logger *slog.Logger, r io.Reader, originalName string) (*datatypes.AnalysisReport, error) {
	if err := p.resolver.Check(); err != nil {
		return nil, err
	}

	artifact, err := p.store.Store(ctx, r, originalName)
	if err != nil {
		return nil, err
	}
	recordArtifactMetrics(ctx, artifact.SizeBytes)
	logger = logger.With("artifact_id", artifact.ID)
	logger.Debug("artifact stored", "original_name", originalName, "size_bytes", artifact.SizeBytes)

	return WithArtifact(ctx, p.store, artifact, logger,
		func(ctx context.Context, artifact *UploadedArtifact) (*datatypes.AnalysisReport, error) {
			return p.run(ctx, logger, artifact)
		})
}

// run executes the engine against a stored artifact.
func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, artifact *UploadedArtifact) (*datatypes.AnalysisReport, error) {
	release, err := p.limiter.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	runCtx := ctx
	if timeout := p.resolver.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeoutCause(ctx, timeout, ErrEngineTimeout)
		defer cancel()
	}

	runCtx, span := startStageSpan(runCtx, "Invoke",
		attribute.String("review.engine_path", p.resolver.EnginePath()),
	)
	defer span.End()

	invocation, err := p.invoker.Invoke(runCtx, p.resolver.EnginePath(), artifact.Path)
	if err != nil {
		return nil, err
	}

	completion := invocation.Wait()
	recordEngineMetrics(ctx, completion)
	span.SetAttributes(
		attribute.Int("review.exit_code", completion.ExitCode),
		attribute.Int("review.stdout_bytes", len(completion.Output.Result)),
		attribute.Int("review.stderr_bytes", len(completion.Output.Diagnostic)),
	)
	logger.Debug("engine finished",
		"exit_code", completion.ExitCode,
		"duration_ms", completion.Duration().Milliseconds(),
	)

	if err := completionError(runCtx, completion); err != nil {
		return nil, err
	}
	return Interpret(completion.ExitCode, completion.Output.Result, completion.Output.Diagnostic)
}

// completionError returns the failure carried by a finished run, or nil
// when its output should be interpreted. A drain or wait failure after a
// clean exit is an OutputError since the exit code says nothing about it.
func completionError(runCtx context.Context, c Completion) error {
	if runCtx.Err() != nil && c.ExitCode != 0 {
		return killedError(runCtx, c)
	}
	if c.Err == nil {
		return nil
	}
	if c.ExitCode == 0 {
		return &OutputError{
			Diagnostic: string(c.Output.Diagnostic),
			Cause:      c.Err,
		}
	}
	return &ExecutionError{
		ExitCode:   c.ExitCode,
		Diagnostic: string(c.Output.Diagnostic),
		Cause:      c.Err,
	}
}

// killedError classifies a run that ended because its context did.
func killedError(runCtx context.Context, c Completion) error {
	cause := context.Cause(runCtx)
	if errors.Is(cause, context.DeadlineExceeded) {
		cause = ErrEngineTimeout
	}
	return &ExecutionError{
		ExitCode:   -1,
		Diagnostic: string(c.Output.Diagnostic),
		Cause:      cause,
	}
}
