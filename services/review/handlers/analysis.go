// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers adapts the analysis pipeline to HTTP.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianReview/pkg/logging"
	"github.com/AleutianAI/AleutianReview/services/review/datatypes"
	"github.com/AleutianAI/AleutianReview/services/review/observability"
	"github.com/AleutianAI/AleutianReview/services/review/pipeline"
)

// UploadField is the multipart field carrying the file.
const UploadField = "file"

// StatusClientClosedRequest is logged when the caller disconnects before
// the analysis finishes. Nothing is written to the connection.
const StatusClientClosedRequest = 499

// multipartOverhead is allowed on top of the file size limit for
// boundaries and part headers.
const multipartOverhead = 64 << 10

// Analyzer runs one upload through the analysis engine.
type Analyzer interface {
	Analyze(ctx context.Context, r io.Reader, originalName string) (*datatypes.AnalysisReport, error)
}

// AnalysisOptions configures HandleAnalysis.
type AnalysisOptions struct {
	// MaxUploadBytes limits the file size. Zero disables the limit.
	MaxUploadBytes int64

	// Metrics records outcomes. May be nil.
	Metrics *observability.ReviewMetrics

	// Logger receives request-level events. Nil uses slog.Default().
	Logger *slog.Logger
}

// HandleAnalysis returns the POST /analysis handler.
//
// # Description
//
// Reads the "file" multipart field and passes it to the analyzer. A
// request without a file is rejected with 400 before anything is
// stored or spawned. The handler blocks until the engine has exited
// and its output has been drained. A successful response body is the
// engine's own document, byte for byte apart from surrounding whitespace.
//
// # Inputs
//
//   - analyzer: Usually a *pipeline.Pipeline
//   - opts: Limits, metrics and logger
//
// # Outputs
//
//   - gin.HandlerFunc: Handler writing a report (200) or an ErrorResponse
func HandleAnalysis(analyzer Analyzer, opts AnalysisOptions) gin.HandlerFunc {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logging.FromContext(ctx, logger)

		if opts.MaxUploadBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, opts.MaxUploadBytes+multipartOverhead)
		}

		fileHeader, err := c.FormFile(UploadField)
		if c.Request.MultipartForm != nil {
			defer func() { _ = c.Request.MultipartForm.RemoveAll() }()
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusBadRequest, datatypes.NewErrorResponse(MsgFileTooLarge).
					WithDetails(fmt.Sprintf("limit is %d bytes", opts.MaxUploadBytes)))
				return
			}
			log.Info("analysis request without file", "error", err)
			c.JSON(http.StatusBadRequest, datatypes.NewErrorResponse(MsgNoFile))
			return
		}
		if opts.MaxUploadBytes > 0 && fileHeader.Size > opts.MaxUploadBytes {
			c.JSON(http.StatusBadRequest, datatypes.NewErrorResponse(MsgFileTooLarge).
				WithDetails(fmt.Sprintf("limit is %d bytes", opts.MaxUploadBytes)))
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			status, body := ErrorResponseFor(&pipeline.StorageError{Op: "read", Cause: err})
			c.JSON(status, body)
			return
		}
		defer func(f multipart.File) { _ = f.Close() }(file)

		if opts.Metrics != nil {
			opts.Metrics.RecordUpload(fileHeader.Size)
			opts.Metrics.AnalysisStarted()
		}
		start := time.Now()
		report, err := analyzer.Analyze(ctx, file, fileHeader.Filename)
		outcome := pipeline.Classify(err)
		if opts.Metrics != nil {
			opts.Metrics.AnalysisEnded(outcome, time.Since(start).Seconds())
		}

		if err != nil {
			if outcome == pipeline.OutcomeCanceled && ctx.Err() != nil {
				log.Info("client disconnected during analysis", "filename", fileHeader.Filename)
				c.AbortWithStatus(StatusClientClosedRequest)
				return
			}
			status, body := ErrorResponseFor(err)
			c.JSON(status, body)
			return
		}

		if len(report.Raw) > 0 {
			c.Data(http.StatusOK, "application/json; charset=utf-8", report.Raw)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}
