// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleReport = `{"id":"a1","projectName":"p","status":"done","overallScore":90,"criticalIssues":0,"warnings":1,"performanceIssues":0,"coverage":80,"createdAt":"2024-01-01T00:00:00Z","issues":[{"id":"i1","severity":"warning","title":"Unused import","description":"x","lineStart":3,"lineEnd":3}]}`

// =============================================================================
// ParseReport Tests
// =============================================================================

func TestParseReport_Valid(t *testing.T) {
	report, err := ParseReport([]byte(sampleReport))
	require.NoError(t, err)

	assert.Equal(t, "a1", report.ID)
	assert.Equal(t, 90.0, report.OverallScore)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), report.CreatedAt.UTC())
	require.Len(t, report.Issues, 1)
	assert.Equal(t, SeverityWarning, report.Issues[0].Severity)
	assert.Nil(t, report.Issues[0].Suggestion)
}

func TestParseReport_RoundTripPreservesObject(t *testing.T) {
	report, err := ParseReport([]byte(sampleReport))
	require.NoError(t, err)

	out, err := json.Marshal(report)
	require.NoError(t, err)
	assert.JSONEq(t, sampleReport, string(out))
}

func TestParseReport_SurroundingWhitespace(t *testing.T) {
	_, err := ParseReport([]byte("\n\t" + sampleReport + "\n\n"))
	assert.NoError(t, err)
}

func TestParseReport_EmptyIssues(t *testing.T) {
	raw := strings.Replace(sampleReport, `"issues":[{"id":"i1","severity":"warning","title":"Unused import","description":"x","lineStart":3,"lineEnd":3}]`, `"issues":[]`, 1)
	report, err := ParseReport([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 0, report.IssueCount())
}

func TestParseReport_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "not json"},
		{"empty", ""},
		{"null", "null"},
		{"trailing document", sampleReport + sampleReport},
		{"trailing garbage", sampleReport + " extra"},
		{"engine error object", `{"error":"Failed to read file"}`},
		{"missing issues", strings.Replace(sampleReport, `,"issues":[{"id":"i1","severity":"warning","title":"Unused import","description":"x","lineStart":3,"lineEnd":3}]`, "", 1)},
		{"bad severity", strings.Replace(sampleReport, `"severity":"warning"`, `"severity":"fatal"`, 1)},
		{"line start zero", strings.Replace(sampleReport, `"lineStart":3`, `"lineStart":0`, 1)},
		{"line end before start", strings.Replace(sampleReport, `"lineEnd":3`, `"lineEnd":2`, 1)},
		{"score above range", strings.Replace(sampleReport, `"overallScore":90`, `"overallScore":120`, 1)},
		{"negative warnings", strings.Replace(sampleReport, `"warnings":1`, `"warnings":-1`, 1)},
		{"missing createdAt", strings.Replace(sampleReport, `"createdAt":"2024-01-01T00:00:00Z",`, "", 1)},
		{"wrong type", strings.Replace(sampleReport, `"coverage":80`, `"coverage":"high"`, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := ParseReport([]byte(tt.raw))
			assert.Error(t, err)
			assert.Nil(t, report)
		})
	}
}

func TestParseReport_TrailingDataSentinel(t *testing.T) {
	_, err := ParseReport([]byte(sampleReport + "{}"))
	assert.ErrorIs(t, err, ErrTrailingData)
}

func TestParseReport_IgnoresUnknownFields(t *testing.T) {
	raw := strings.Replace(sampleReport, `"status":"done"`, `"status":"done","engineVersion":"1.2"`, 1)
	_, err := ParseReport([]byte(raw))
	assert.NoError(t, err)
}

// =============================================================================
// AnalysisIssue Tests
// =============================================================================

func TestAnalysisIssue_SuggestionsAlias(t *testing.T) {
	var issue AnalysisIssue
	err := json.Unmarshal([]byte(`{"id":"i","severity":"info","title":"t","lineStart":1,"lineEnd":1,"suggestions":"use logging"}`), &issue)
	require.NoError(t, err)
	require.NotNil(t, issue.Suggestion)
	assert.Equal(t, "use logging", *issue.Suggestion)
}

func TestAnalysisIssue_SuggestionWinsOverAlias(t *testing.T) {
	var issue AnalysisIssue
	err := json.Unmarshal([]byte(`{"id":"i","severity":"info","title":"t","lineStart":1,"lineEnd":1,"suggestion":"a","suggestions":"b"}`), &issue)
	require.NoError(t, err)
	require.NotNil(t, issue.Suggestion)
	assert.Equal(t, "a", *issue.Suggestion)
}

func TestAnalysisReport_MarshalsEngineDocumentVerbatim(t *testing.T) {
	engineOutput := `{"id":"r7","projectName":"shop","status":"completed","overallScore":61,"criticalIssues":1,"warnings":0,"performanceIssues":0,"coverage":40,"createdAt":"2025-07-26T12:00:00.000Z","engineVersion":"1.2","issues":[{"id":"i1","severity":"critical","title":"Hardcoded secret","description":"API key in source","lineStart":4,"lineEnd":4,"suggestions":"Review this issue"}]}`

	report, err := ParseReport([]byte("  " + engineOutput + "\n"))
	require.NoError(t, err)
	require.NotNil(t, report.Issues[0].Suggestion)

	out, err := json.Marshal(report)
	require.NoError(t, err)
	assert.JSONEq(t, engineOutput, string(out))
	assert.Contains(t, string(out), `"createdAt":"2025-07-26T12:00:00.000Z"`)
	assert.Contains(t, string(out), `"suggestions":"Review this issue"`)
	assert.NotContains(t, string(out), `"suggestion":`)
}

func TestAnalysisReport_MarshalsTypedFieldsWithoutRaw(t *testing.T) {
	s := "fix it"
	report := AnalysisReport{
		ID: "r", ProjectName: "p", Status: "done",
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Issues:    []AnalysisIssue{{ID: "i", Severity: SeverityCritical, Title: "t", LineStart: 2, LineEnd: 4, Suggestion: &s}},
	}

	out, err := json.Marshal(report)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"suggestion":"fix it"`)
	assert.NotContains(t, string(out), "Raw")
}

// =============================================================================
// ErrorResponse Tests
// =============================================================================

func TestErrorResponse_OmitsUnsetFields(t *testing.T) {
	out, err := json.Marshal(NewErrorResponse("No file was uploaded."))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"No file was uploaded."}`, string(out))
}

func TestErrorResponse_KeepsEmptyDiagnostics(t *testing.T) {
	resp := NewErrorResponse("failed").WithDetails("").WithExitCode(0)
	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"failed","details":"","exitCode":0}`, string(out))
}
