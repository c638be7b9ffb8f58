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
	"context"
	"log/slog"
)

// ArtifactRemover deletes a stored artifact.
type ArtifactRemover interface {
	Remove(artifact *UploadedArtifact) error
}

// WithArtifact runs body while owning artifact and removes it afterwards.
//
// # Description
//
// Removal is deferred, so it runs exactly once whether body returns a
// value, returns an error, or panics (the panic continues after
// removal). A removal failure is logged and never replaces body's
// result.
//
// # Inputs
//
//   - ctx: Passed through to body
//   - remover: Usually the *ArtifactStore that created artifact
//   - artifact: The artifact to own
//   - logger: Receives removal failures
//   - body: The work to run
//
// # Outputs
//
//   - T, error: Whatever body returned
func WithArtifact[T any](
	ctx context.Context,
	remover ArtifactRemover,
	artifact *UploadedArtifact,
	logger *slog.Logger,
	body func(ctx context.Context, artifact *UploadedArtifact) (T, error),
) (T, error) {
	defer func() {
		if err := remover.Remove(artifact); err != nil {
			if logger == nil {
				logger = slog.Default()
			}
			logger.Error("failed to remove artifact",
				"artifact_id", artifact.ID,
				"path", artifact.Path,
				"error", err,
			)
		}
	}()
	return body(ctx, artifact)
}
