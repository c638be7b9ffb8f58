// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// ErrorResponse is the body of every non-2xx analysis response.
//
// Details, RawOutput and ExitCode are pointers so that an empty
// diagnostic ("" on stderr) is still distinguishable from an absent one.
type ErrorResponse struct {
	Error     string  `json:"error"`
	Details   *string `json:"details,omitempty"`
	RawOutput *string `json:"rawOutput,omitempty"`
	ExitCode  *int    `json:"exitCode,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ReadinessResponse is the body of GET /ready.
type ReadinessResponse struct {
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
}

// NewErrorResponse builds a response with only the error message set.
func NewErrorResponse(msg string) ErrorResponse {
	return ErrorResponse{Error: msg}
}

// WithDetails returns a copy with Details set.
func (r ErrorResponse) WithDetails(details string) ErrorResponse {
	r.Details = &details
	return r
}

// WithRawOutput returns a copy with RawOutput set.
func (r ErrorResponse) WithRawOutput(raw string) ErrorResponse {
	r.RawOutput = &raw
	return r
}

// WithExitCode returns a copy with ExitCode set.
func (r ErrorResponse) WithExitCode(code int) ErrorResponse {
	r.ExitCode = &code
	return r
}
