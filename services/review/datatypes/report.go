// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the wire types of the review service: the
// analysis report produced by the external engine and the error body
// returned when no report can be produced.
package datatypes

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// reportValidate checks engine output against the report contract.
var reportValidate = validator.New(validator.WithRequiredStructEnabled())

// ErrTrailingData indicates the engine wrote more than one JSON document.
var ErrTrailingData = errors.New("unexpected data after report document")

// =============================================================================
// Severity
// =============================================================================

// Severity classifies a single finding.
type Severity string

const (
	// SeverityCritical marks findings that should block a merge.
	SeverityCritical Severity = "critical"

	// SeverityWarning marks findings worth fixing.
	SeverityWarning Severity = "warning"

	// SeverityInfo marks suggestions and style notes.
	SeverityInfo Severity = "info"
)

// =============================================================================
// Report Types
// =============================================================================

// AnalysisIssue is one finding within a report.
//
// # Validation
//
//   - ID, Title: required
//   - Severity: one of critical, warning, info
//   - LineStart >= 1, LineEnd >= LineStart
type AnalysisIssue struct {
	ID          string   `json:"id" validate:"required"`
	Severity    Severity `json:"severity" validate:"required,oneof=critical warning info"`
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	LineStart   int      `json:"lineStart" validate:"gte=1"`
	LineEnd     int      `json:"lineEnd" validate:"gtefield=LineStart"`
	Suggestion  *string  `json:"suggestion,omitempty"`
}

// UnmarshalJSON decodes an issue, accepting the older "suggestions" key
// as an alias of "suggestion".
func (i *AnalysisIssue) UnmarshalJSON(data []byte) error {
	type issueAlias AnalysisIssue
	var aux struct {
		issueAlias
		Suggestions *string `json:"suggestions"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*i = AnalysisIssue(aux.issueAlias)
	if i.Suggestion == nil && aux.Suggestions != nil {
		i.Suggestion = aux.Suggestions
	}
	return nil
}

// AnalysisReport is the structured result the engine writes to stdout.
//
// # Description
//
// The typed fields exist for validation and logging only. A report
// returned by ParseReport keeps the engine's document in Raw, and
// MarshalJSON writes that document back out, so unknown fields, key
// spellings and timestamp formats reach the caller exactly as the
// engine wrote them.
//
// # Validation
//
//   - ID, ProjectName, Status, CreatedAt: required
//   - OverallScore, Coverage: 0..100
//   - CriticalIssues, Warnings, PerformanceIssues: >= 0
//   - Issues: present (may be empty), each element validated
type AnalysisReport struct {
	ID                string          `json:"id" validate:"required"`
	ProjectName       string          `json:"projectName" validate:"required"`
	Status            string          `json:"status" validate:"required"`
	OverallScore      float64         `json:"overallScore" validate:"gte=0,lte=100"`
	CriticalIssues    int             `json:"criticalIssues" validate:"gte=0"`
	Warnings          int             `json:"warnings" validate:"gte=0"`
	PerformanceIssues int             `json:"performanceIssues" validate:"gte=0"`
	Coverage          float64         `json:"coverage" validate:"gte=0,lte=100"`
	CreatedAt         time.Time       `json:"createdAt" validate:"required"`
	Issues            []AnalysisIssue `json:"issues" validate:"required,dive"`

	// Raw is the validated engine document. Empty for reports built in code.
	Raw json.RawMessage `json:"-"`
}

// MarshalJSON writes Raw when present, otherwise the typed fields.
func (r AnalysisReport) MarshalJSON() ([]byte, error) {
	if len(r.Raw) > 0 {
		return r.Raw, nil
	}
	type reportAlias AnalysisReport
	return json.Marshal(reportAlias(r))
}

// Validate checks the report against the structural contract.
func (r *AnalysisReport) Validate() error {
	return reportValidate.Struct(r)
}

// IssueCount returns the number of findings in the report.
func (r *AnalysisReport) IssueCount() int {
	return len(r.Issues)
}

// ParseReport decodes and validates a single report document.
//
// # Description
//
// The input must contain exactly one JSON value (surrounding whitespace
// is allowed). Unknown fields are ignored by validation and kept in Raw,
// so engines may add data without breaking the service or losing it.
//
// # Inputs
//
//   - data: Raw engine output
//
// # Outputs
//
//   - *AnalysisReport: The decoded report, with Raw set to the trimmed input
//   - error: Decode, trailing data, or validation failure
func ParseReport(data []byte) (*AnalysisReport, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	var report AnalysisReport
	if err := dec.Decode(&report); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, ErrTrailingData
	}
	if err := report.Validate(); err != nil {
		return nil, fmt.Errorf("validating report: %w", err)
	}
	report.Raw = append(json.RawMessage(nil), bytes.TrimSpace(data)...)
	return &report, nil
}
