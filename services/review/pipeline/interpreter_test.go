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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterpret(t *testing.T) {
	tests := []struct {
		name       string
		exitCode   int
		result     string
		diagnostic string
		check      func(t *testing.T, err error)
	}{
		{
			name:       "non-zero exit discards stdout",
			exitCode:   2,
			result:     validReport,
			diagnostic: "Traceback: boom",
			check: func(t *testing.T, err error) {
				var execErr *ExecutionError
				require.ErrorAs(t, err, &execErr)
				assert.Equal(t, 2, execErr.ExitCode)
				assert.Equal(t, "Traceback: boom", execErr.Diagnostic)
			},
		},
		{
			name:     "signal exit",
			exitCode: -1,
			check: func(t *testing.T, err error) {
				var execErr *ExecutionError
				require.ErrorAs(t, err, &execErr)
				assert.Equal(t, -1, execErr.ExitCode)
				assert.Equal(t, "", execErr.Diagnostic)
			},
		},
		{
			name:   "invalid json",
			result: "not json",
			check: func(t *testing.T, err error) {
				var parseErr *ParseError
				require.ErrorAs(t, err, &parseErr)
				assert.Equal(t, "not json", parseErr.RawOutput)
			},
		},
		{
			name:   "valid json that is not a report",
			result: `{"error":"Failed to read file"}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrParse)
			},
		},
		{
			name:   "two documents",
			result: validReport + "\n" + validReport,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrParse)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := Interpret(tt.exitCode, []byte(tt.result), []byte(tt.diagnostic))
			assert.Nil(t, report)
			tt.check(t, err)
		})
	}
}

func TestInterpret_Success(t *testing.T) {
	report, err := Interpret(0, []byte(validReport), []byte("warning: slow"))

	require.NoError(t, err)
	assert.Equal(t, "p", report.ProjectName)
	assert.Equal(t, 1, report.IssueCount())
}
