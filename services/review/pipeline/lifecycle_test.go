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
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRemover records Remove calls.
type countingRemover struct {
	calls int
	err   error
}

func (r *countingRemover) Remove(*UploadedArtifact) error {
	r.calls++
	return r.err
}

func TestWithArtifact_RemovesOnSuccess(t *testing.T) {
	remover := &countingRemover{}

	got, err := WithArtifact(context.Background(), remover, &UploadedArtifact{ID: "a"}, discardLogger(),
		func(context.Context, *UploadedArtifact) (string, error) { return "ok", nil })

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, remover.calls)
}

func TestWithArtifact_RemovesOnError(t *testing.T) {
	remover := &countingRemover{}
	bodyErr := errors.New("engine failed")

	_, err := WithArtifact(context.Background(), remover, &UploadedArtifact{ID: "a"}, discardLogger(),
		func(context.Context, *UploadedArtifact) (int, error) { return 0, bodyErr })

	assert.ErrorIs(t, err, bodyErr)
	assert.Equal(t, 1, remover.calls)
}

func TestWithArtifact_RemovesOnPanic(t *testing.T) {
	remover := &countingRemover{}

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = WithArtifact(context.Background(), remover, &UploadedArtifact{ID: "a"}, discardLogger(),
			func(context.Context, *UploadedArtifact) (int, error) { panic("boom") })
	})
	assert.Equal(t, 1, remover.calls)
}

func TestWithArtifact_RemovalFailureDoesNotOverrideResult(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	remover := &countingRemover{err: &StorageError{Op: "remove", Path: "/x", Cause: errors.New("busy")}}

	got, err := WithArtifact(context.Background(), remover, &UploadedArtifact{ID: "a", Path: "/x"}, logger,
		func(context.Context, *UploadedArtifact) (string, error) { return "report", nil })

	require.NoError(t, err)
	assert.Equal(t, "report", got)
	assert.Contains(t, buf.String(), "failed to remove artifact")
}
