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
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianReview/services/review/datatypes"
	"github.com/AleutianAI/AleutianReview/services/review/observability"
	"github.com/AleutianAI/AleutianReview/services/review/pipeline"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeAnalyzer records the upload and returns a canned result.
type fakeAnalyzer struct {
	report  *datatypes.AnalysisReport
	err     error
	calls   int
	name    string
	content string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, r io.Reader, name string) (*datatypes.AnalysisReport, error) {
	f.calls++
	f.name = name
	b, _ := io.ReadAll(r)
	f.content = string(b)
	return f.report, f.err
}

func sampleReport() *datatypes.AnalysisReport {
	return &datatypes.AnalysisReport{
		ID:           "a1",
		ProjectName:  "p",
		Status:       "done",
		OverallScore: 90,
		Warnings:     1,
		Coverage:     80,
		CreatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Issues:       []datatypes.AnalysisIssue{},
	}
}

func multipartRequest(t *testing.T, field, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		part, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file here"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/analysis", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newRouter(analyzer Analyzer, opts AnalysisOptions) *gin.Engine {
	r := gin.New()
	r.POST("/analysis", HandleAnalysis(analyzer, opts))
	return r
}

// =============================================================================
// HandleAnalysis Tests
// =============================================================================

func TestHandleAnalysis_Success(t *testing.T) {
	// Arrange
	analyzer := &fakeAnalyzer{report: sampleReport()}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	router := newRouter(analyzer, AnalysisOptions{Metrics: metrics})
	w := httptest.NewRecorder()

	// Act
	router.ServeHTTP(w, multipartRequest(t, "file", "main.py", "import os"))

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"a1","projectName":"p","status":"done","overallScore":90,"criticalIssues":0,"warnings":1,"performanceIssues":0,"coverage":80,"createdAt":"2024-01-01T00:00:00Z","issues":[]}`, w.Body.String())
	assert.Equal(t, "main.py", analyzer.name)
	assert.Equal(t, "import os", analyzer.content)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AnalysesTotal.WithLabelValues(pipeline.OutcomeSuccess)))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.ActiveAnalyses))
}

func TestHandleAnalysis_WritesEngineDocument(t *testing.T) {
	// Arrange
	engineDoc := `{"id":"a1","projectName":"p","status":"done","overallScore":90,"criticalIssues":0,"warnings":1,"performanceIssues":0,"coverage":80,"createdAt":"2024-01-01T00:00:00.000Z","engineVersion":"1.2","issues":[{"id":"i1","severity":"warning","title":"t","description":"d","lineStart":1,"lineEnd":1,"suggestions":"s"}]}`
	report, err := datatypes.ParseReport([]byte(engineDoc))
	require.NoError(t, err)
	router := newRouter(&fakeAnalyzer{report: report}, AnalysisOptions{})
	w := httptest.NewRecorder()

	// Act
	router.ServeHTTP(w, multipartRequest(t, "file", "main.py", "x"))

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, engineDoc, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
}

func TestHandleAnalysis_NoFile(t *testing.T) {
	tests := []struct {
		name string
		req  func(t *testing.T) *http.Request
	}{
		{"multipart without file field", func(t *testing.T) *http.Request { return multipartRequest(t, "", "", "") }},
		{"wrong field name", func(t *testing.T) *http.Request { return multipartRequest(t, "upload", "a.py", "x") }},
		{"not multipart", func(t *testing.T) *http.Request {
			req := httptest.NewRequest(http.MethodPost, "/analysis", bytes.NewBufferString(`{"file":"x"}`))
			req.Header.Set("Content-Type", "application/json")
			return req
		}},
		{"empty body", func(t *testing.T) *http.Request {
			return httptest.NewRequest(http.MethodPost, "/analysis", nil)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			analyzer := &fakeAnalyzer{report: sampleReport()}
			w := httptest.NewRecorder()

			newRouter(analyzer, AnalysisOptions{}).ServeHTTP(w, tt.req(t))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error":"No file was uploaded."}`, w.Body.String())
			assert.Zero(t, analyzer.calls, "analyzer must not run without a file")
		})
	}
}

func TestHandleAnalysis_FileTooLarge(t *testing.T) {
	analyzer := &fakeAnalyzer{report: sampleReport()}
	w := httptest.NewRecorder()

	newRouter(analyzer, AnalysisOptions{MaxUploadBytes: 16}).
		ServeHTTP(w, multipartRequest(t, "file", "big.py", string(bytes.Repeat([]byte("x"), 1024))))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), MsgFileTooLarge)
	assert.Zero(t, analyzer.calls)
}

func TestHandleAnalysis_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{
			name:     "configuration",
			err:      &pipeline.ConfigurationError{EnginePath: "/e.py", Cause: errors.New("stat /e.py: no such file or directory")},
			wantCode: http.StatusInternalServerError,
			wantBody: `{"error":"Analysis engine not found","details":"stat /e.py: no such file or directory"}`,
		},
		{
			name:     "spawn",
			err:      &pipeline.SpawnError{Command: "python3", Cause: errors.New("executable file not found")},
			wantCode: http.StatusInternalServerError,
			wantBody: `{"error":"Failed to start analysis process","details":"executable file not found"}`,
		},
		{
			name:     "execution",
			err:      &pipeline.ExecutionError{ExitCode: 2, Diagnostic: "boom"},
			wantCode: http.StatusInternalServerError,
			wantBody: `{"error":"The analysis engine encountered an internal error.","details":"boom","exitCode":2}`,
		},
		{
			name:     "execution with empty stderr",
			err:      &pipeline.ExecutionError{ExitCode: 1},
			wantCode: http.StatusInternalServerError,
			wantBody: `{"error":"The analysis engine encountered an internal error.","details":"","exitCode":1}`,
		},
		{
			name:     "timeout",
			err:      &pipeline.ExecutionError{ExitCode: -1, Diagnostic: "partial", Cause: pipeline.ErrEngineTimeout},
			wantCode: http.StatusInternalServerError,
			wantBody: `{"error":"The analysis engine timed out.","details":"partial","exitCode":-1}`,
		},
		{
			name:     "output drain failure after clean exit",
			err:      &pipeline.OutputError{Diagnostic: "partial", Cause: errors.New("reading result stream: closed pipe")},
			wantCode: http.StatusInternalServerError,
			wantBody: `{"error":"Failed to read the analysis engine output.","details":"reading result stream: closed pipe"}`,
		},
		{
			name:     "parse",
			err:      &pipeline.ParseError{RawOutput: "not json", Cause: errors.New("invalid character")},
			wantCode: http.StatusInternalServerError,
			wantBody: `{"error":"Failed to parse the JSON results from the engine.","rawOutput":"not json"}`,
		},
		{
			name:     "storage",
			err:      &pipeline.StorageError{Op: "create", Path: "/up", Cause: errors.New("permission denied")},
			wantCode: http.StatusInternalServerError,
			wantBody: `{"error":"Failed to store the uploaded file","details":"permission denied"}`,
		},
		{
			name:     "capacity",
			err:      errors.Join(pipeline.ErrCapacity, context.DeadlineExceeded),
			wantCode: http.StatusServiceUnavailable,
			wantBody: `{"error":"The analysis service is busy. Please retry later."}`,
		},
		{
			name:     "unknown",
			err:      errors.New("surprise"),
			wantCode: http.StatusInternalServerError,
			wantBody: `{"error":"Internal server error"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			newRouter(&fakeAnalyzer{err: tt.err}, AnalysisOptions{}).
				ServeHTTP(w, multipartRequest(t, "file", "a.py", "x"))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}

func TestHandleAnalysis_ClientDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	analyzer := &fakeAnalyzer{err: &pipeline.ExecutionError{ExitCode: -1, Cause: context.Canceled}}
	w := httptest.NewRecorder()

	newRouter(analyzer, AnalysisOptions{}).
		ServeHTTP(w, multipartRequest(t, "file", "a.py", "x").WithContext(ctx))

	assert.Equal(t, StatusClientClosedRequest, w.Code)
	assert.Empty(t, w.Body.String())
}

// =============================================================================
// Health and Readiness Tests
// =============================================================================

type readyFunc func() error

func (f readyFunc) Ready() error { return f() }

func TestHealthCheck(t *testing.T) {
	r := gin.New()
	r.GET("/health", HealthCheck)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"OK","message":"Server is running"}`, w.Body.String())
}

func TestHandleReady(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"ready", nil, http.StatusOK, `{"status":"ready"}`},
		{"unavailable", errors.New("engine missing"), http.StatusServiceUnavailable, `{"status":"unavailable","details":"engine missing"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/ready", HandleReady(readyFunc(func() error { return tt.err })))
			w := httptest.NewRecorder()

			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.JSONEq(t, tt.wantBody, w.Body.String())
		})
	}
}
