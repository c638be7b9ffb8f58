// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validReport = `{"id":"a1","projectName":"demo","status":"completed","overallScore":88,"criticalIssues":0,"warnings":1,"performanceIssues":0,"coverage":70,"createdAt":"2024-05-01T12:00:00Z","issues":[]}`

// setupEngine points the config environment at a shell-script engine.
func setupEngine(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-script engines require /bin/sh")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}

	dir := t.TempDir()
	engine := filepath.Join(dir, "engine.sh")
	require.NoError(t, os.WriteFile(engine, []byte("#!/bin/sh\n"+body), 0755))

	uploads := filepath.Join(dir, "uploads")
	t.Setenv("REVIEW_ENGINE_PATH", engine)
	t.Setenv("REVIEW_ENGINE_INTERPRETER", "/bin/sh")
	t.Setenv("REVIEW_UPLOAD_DIR", uploads)
	t.Setenv("REVIEW_LOG_LEVEL", "error")

	input := filepath.Join(dir, "main.py")
	require.NoError(t, os.WriteFile(input, []byte("print('hi')\n"), 0600))
	return input
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestAnalyzeCmd_PrintsReport(t *testing.T) {
	input := setupEngine(t, "cat <<'JSON'\n"+validReport+"\nJSON\n")

	out, err := execute(t, "analyze", input)

	require.NoError(t, err)
	assert.JSONEq(t, validReport, out)
}

func TestAnalyzeCmd_KeepsEngineFields(t *testing.T) {
	engineOutput := `{"id":"a1","projectName":"demo","status":"completed","overallScore":88,"criticalIssues":0,"warnings":1,"performanceIssues":0,"coverage":70,"createdAt":"2024-05-01T12:00:00.000Z","engineVersion":"1.2","issues":[{"id":"i1","severity":"warning","title":"t","description":"d","lineStart":2,"lineEnd":3,"suggestions":"Review this issue"}]}`
	input := setupEngine(t, "cat <<'JSON'\n"+engineOutput+"\nJSON\n")

	out, err := execute(t, "analyze", input)

	require.NoError(t, err)
	assert.JSONEq(t, engineOutput, out)
	assert.Contains(t, out, `"suggestions": "Review this issue"`)
}

func TestAnalyzeCmd_PrintsErrorBody(t *testing.T) {
	input := setupEngine(t, "printf 'engine crashed' >&2\nexit 3\n")

	out, err := execute(t, "analyze", input)

	require.Error(t, err)
	var exitErr *exitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, "execution", exitErr.outcome)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Equal(t, "The analysis engine encountered an internal error.", body["error"])
	assert.Equal(t, "engine crashed", body["details"])
	assert.Equal(t, float64(3), body["exitCode"])
}

func TestAnalyzeCmd_LeavesNoArtifacts(t *testing.T) {
	input := setupEngine(t, "echo not json\n")

	_, err := execute(t, "analyze", input)
	require.Error(t, err)

	entries, err := os.ReadDir(os.Getenv("REVIEW_UPLOAD_DIR"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAnalyzeCmd_MissingInput(t *testing.T) {
	setupEngine(t, "exit 0\n")

	_, err := execute(t, "analyze", filepath.Join(t.TempDir(), "absent.py"))

	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAnalyzeCmd_RequiresOneArgument(t *testing.T) {
	_, err := execute(t, "analyze")
	assert.Error(t, err)
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	input := setupEngine(t, "exit 0\n")
	t.Setenv("REVIEW_ENGINE_TIMEOUT", "later")

	_, err := execute(t, "analyze", input)

	assert.Error(t, err)
}

func TestRootCmd_LogLevelFlagIsValidated(t *testing.T) {
	input := setupEngine(t, "exit 0\n")

	_, err := execute(t, "--log-level", "chatty", "analyze", input)

	assert.Error(t, err)
}
