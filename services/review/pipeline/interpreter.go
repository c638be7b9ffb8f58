// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"github.com/AleutianAI/AleutianReview/services/review/datatypes"
)

// Interpret turns a finished run into a report or a classified error.
//
// # Description
//
// A non-zero exit is an *ExecutionError carrying the full diagnostic
// text; the result stream is discarded. A zero exit whose result is not
// exactly one conforming report is a *ParseError carrying the raw
// result text. Nothing is retried.
//
// # Inputs
//
//   - exitCode: Process exit status
//   - result: Full stdout
//   - diagnostic: Full stderr
//
// # Outputs
//
//   - *datatypes.AnalysisReport: The report on success
//   - error: *ExecutionError or *ParseError
func Interpret(exitCode int, result, diagnostic []byte) (*datatypes.AnalysisReport, error) {
	if exitCode != 0 {
		return nil, &ExecutionError{ExitCode: exitCode, Diagnostic: string(diagnostic)}
	}
	report, err := datatypes.ParseReport(result)
	if err != nil {
		return nil, &ParseError{RawOutput: string(result), Cause: err}
	}
	return report, nil
}
