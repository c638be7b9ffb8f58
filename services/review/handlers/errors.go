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
	"errors"
	"net/http"

	"github.com/AleutianAI/AleutianReview/services/review/datatypes"
	"github.com/AleutianAI/AleutianReview/services/review/pipeline"
)

// Client-facing error messages.
const (
	MsgNoFile          = "No file was uploaded."
	MsgFileTooLarge    = "The uploaded file is too large."
	MsgEngineNotFound  = "Analysis engine not found"
	MsgSpawnFailed     = "Failed to start analysis process"
	MsgEngineFailed    = "The analysis engine encountered an internal error."
	MsgEngineTimeout   = "The analysis engine timed out."
	MsgOutputFailed    = "Failed to read the analysis engine output."
	MsgParseFailed     = "Failed to parse the JSON results from the engine."
	MsgStorageFailed   = "Failed to store the uploaded file"
	MsgBusy            = "The analysis service is busy. Please retry later."
	MsgInternalFailure = "Internal server error"
)

// ErrorResponseFor maps a pipeline error to its HTTP status and body.
//
// # Description
//
// Every failure kind carries the payload needed to tell it apart
// without re-running the request:
//
//	ConfigurationError  500 {error, details}
//	SpawnError          500 {error, details}
//	ExecutionError      500 {error, details, exitCode}
//	  (timeout)         500 {error, details, exitCode: -1}
//	OutputError         500 {error, details}
//	ParseError          500 {error, rawOutput}
//	StorageError        500 {error, details}
//	ErrCapacity         503 {error}
//	ErrValidation       400 {error}
//
// # Inputs
//
//   - err: A non-nil error from Pipeline.Analyze
//
// # Outputs
//
//   - int: HTTP status code
//   - datatypes.ErrorResponse: Response body
func ErrorResponseFor(err error) (int, datatypes.ErrorResponse) {
	var (
		cfgErr     *pipeline.ConfigurationError
		spawnErr   *pipeline.SpawnError
		execErr    *pipeline.ExecutionError
		outErr     *pipeline.OutputError
		parseErr   *pipeline.ParseError
		storageErr *pipeline.StorageError
	)

	switch {
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError,
			datatypes.NewErrorResponse(MsgEngineNotFound).WithDetails(causeText(cfgErr.Cause))

	case errors.As(err, &spawnErr):
		return http.StatusInternalServerError,
			datatypes.NewErrorResponse(MsgSpawnFailed).WithDetails(causeText(spawnErr.Cause))

	case errors.As(err, &execErr):
		msg := MsgEngineFailed
		if execErr.Timeout() {
			msg = MsgEngineTimeout
		}
		return http.StatusInternalServerError,
			datatypes.NewErrorResponse(msg).
				WithDetails(execErr.Diagnostic).
				WithExitCode(execErr.ExitCode)

	case errors.As(err, &outErr):
		return http.StatusInternalServerError,
			datatypes.NewErrorResponse(MsgOutputFailed).WithDetails(causeText(outErr.Cause))

	case errors.As(err, &parseErr):
		return http.StatusInternalServerError,
			datatypes.NewErrorResponse(MsgParseFailed).WithRawOutput(parseErr.RawOutput)

	case errors.As(err, &storageErr):
		return http.StatusInternalServerError,
			datatypes.NewErrorResponse(MsgStorageFailed).WithDetails(causeText(storageErr.Cause))

	case errors.Is(err, pipeline.ErrCapacity):
		return http.StatusServiceUnavailable, datatypes.NewErrorResponse(MsgBusy)

	case errors.Is(err, pipeline.ErrValidation):
		return http.StatusBadRequest, datatypes.NewErrorResponse(MsgNoFile)

	default:
		return http.StatusInternalServerError, datatypes.NewErrorResponse(MsgInternalFailure)
	}
}

func causeText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
