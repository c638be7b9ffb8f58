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
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// validReport is a minimal report that passes validation.
const validReport = `{"id":"a1","projectName":"p","status":"done","overallScore":90,"criticalIssues":0,"warnings":1,"performanceIssues":0,"coverage":80,"createdAt":"2024-01-01T00:00:00Z","issues":[{"id":"i1","severity":"warning","title":"Unused import","description":"x","lineStart":3,"lineEnd":3,"suggestions":"remove it"}]}`

// reportEngine prints validReport and exits 0.
const reportEngine = "cat <<'JSON'\n" + validReport + "\nJSON\n"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-script engines require /bin/sh")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
}

// writeEngine writes a shell-script engine and returns its path.
func writeEngine(t *testing.T, body string) string {
	t.Helper()
	requireShell(t)
	path := filepath.Join(t.TempDir(), "engine.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

// testPipeline holds a pipeline and the directory it stores uploads in.
type testPipeline struct {
	*Pipeline
	uploadDir string
}

func newTestPipeline(t *testing.T, engineBody string, timeout time.Duration, opts ...Option) *testPipeline {
	t.Helper()
	enginePath := writeEngine(t, engineBody)
	return newTestPipelineAt(t, enginePath, "/bin/sh", timeout, opts...)
}

func newTestPipelineAt(t *testing.T, enginePath, interpreter string, timeout time.Duration, opts ...Option) *testPipeline {
	t.Helper()
	uploadDir := filepath.Join(t.TempDir(), "uploads")
	store := NewArtifactStore(uploadDir, discardLogger())
	require.NoError(t, store.EnsureDir())

	resolver := NewResolver(EngineConfig{
		Path:        enginePath,
		Interpreter: interpreter,
		Timeout:     timeout,
	})
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	return &testPipeline{Pipeline: New(store, resolver, opts...), uploadDir: uploadDir}
}

// requireEmptyDir fails unless dir has no entries.
func requireEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.Empty(t, names, "artifacts left behind in %s", dir)
}
