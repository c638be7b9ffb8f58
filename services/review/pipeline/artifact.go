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
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// artifactPrefix marks files owned by the store so Sweep never touches
// anything else in the directory.
const artifactPrefix = "artifact-"

// maxExtLen bounds the preserved extension, dot included.
const maxExtLen = 16

// UploadedArtifact is one persisted upload.
//
// Owned by exactly one pipeline run; removed exactly once.
type UploadedArtifact struct {
	ID           string
	Path         string
	OriginalName string
	SizeBytes    int64
}

// ArtifactStore persists uploads as uniquely named files in one directory.
//
// # Thread Safety
//
// Safe for concurrent use. Names are random UUIDs and files are created
// with O_EXCL, so two requests never share a path.
type ArtifactStore struct {
	dir    string
	logger *slog.Logger
}

// NewArtifactStore creates a store rooted at dir.
func NewArtifactStore(dir string, logger *slog.Logger) *ArtifactStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArtifactStore{dir: dir, logger: logger.With("component", "artifact_store")}
}

// Dir returns the store directory.
func (s *ArtifactStore) Dir() string { return s.dir }

// EnsureDir creates the store directory if it does not exist.
func (s *ArtifactStore) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return &StorageError{Op: "create", Path: s.dir, Cause: err}
	}
	return nil
}

// Store writes r to a new artifact file.
//
// # Description
//
// The file is named "artifact-<uuid><ext>" where ext is the sanitized
// extension of originalName. A partially written file is removed before
// the error is returned, so a failed Store leaves nothing behind.
//
// # Inputs
//
//   - ctx: Checked before the file is created
//   - r: Upload content
//   - originalName: Client-supplied filename (only the extension is used)
//
// # Outputs
//
//   - *UploadedArtifact: The stored artifact
//   - error: *StorageError or the context error
func (s *ArtifactStore) Store(ctx context.Context, r io.Reader, originalName string) (*UploadedArtifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := uuid.NewString()
	path := filepath.Join(s.dir, artifactPrefix+id+sanitizeExt(originalName))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return nil, &StorageError{Op: "create", Path: path, Cause: err}
	}

	n, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			s.logger.Warn("failed to remove partial artifact", "path", path, "error", rmErr)
		}
		return nil, &StorageError{Op: "write", Path: path, Cause: err}
	}

	s.logger.Debug("artifact stored", "artifact_id", id, "path", path, "size_bytes", n)
	return &UploadedArtifact{
		ID:           id,
		Path:         path,
		OriginalName: originalName,
		SizeBytes:    n,
	}, nil
}

// Remove deletes the artifact file. A missing file is not an error.
func (s *ArtifactStore) Remove(artifact *UploadedArtifact) error {
	if artifact == nil {
		return nil
	}
	if err := os.Remove(artifact.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &StorageError{Op: "remove", Path: artifact.Path, Cause: err}
	}
	return nil
}

// Sweep removes artifacts older than olderThan.
//
// Run at startup to clear files a crashed process left behind. Returns
// the number of files removed.
func (s *ArtifactStore) Sweep(olderThan time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, &StorageError{Op: "sweep", Path: s.dir, Cause: err}
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), artifactPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to sweep artifact", "path", path, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info("swept stale artifacts", "count", removed)
	}
	return removed, nil
}

// sanitizeExt returns the extension of name if it is short and purely
// alphanumeric, otherwise "".
func sanitizeExt(name string) string {
	ext := filepath.Ext(filepath.Base(strings.ReplaceAll(name, `\`, "/")))
	if len(ext) < 2 || len(ext) > maxExtLen {
		return ""
	}
	for _, r := range ext[1:] {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return ""
		}
	}
	return ext
}
