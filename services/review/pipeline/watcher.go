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
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// EngineWatcher caches engine availability for the readiness endpoint.
//
// # Description
//
// Watches the directory containing the engine and re-runs
// Resolver.Check whenever the engine file is created, written, renamed,
// removed or has its mode changed. Ready returns the cached result, so
// readiness checks never touch the filesystem.
//
// # Thread Safety
//
// Safe for concurrent use. Start should only be called once.
type EngineWatcher struct {
	resolver *Resolver
	target   string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	mu      sync.RWMutex
	lastErr error
}

// NewEngineWatcher creates a watcher and records the initial state.
//
// The engine directory is registered before the first check, so a change
// landing between construction and Start is still delivered to Start.
func NewEngineWatcher(resolver *Resolver, logger *slog.Logger) (*EngineWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &EngineWatcher{
		resolver: resolver,
		target:   filepath.Clean(resolver.EnginePath()),
		watcher:  watcher,
		logger:   logger.With("component", "engine_watcher"),
	}

	dir := filepath.Dir(w.target)
	if err := watcher.Add(dir); err != nil {
		w.logger.Warn("Failed to watch engine directory", "path", dir, "error", err)
	}
	w.refresh()
	return w, nil
}

// Start watches for engine changes until ctx is cancelled or Stop is
// called. Run it in a goroutine.
func (w *EngineWatcher) Start(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Engine watcher error", "error", err)

		case <-ctx.Done():
			return
		}
	}
}

func (w *EngineWatcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.target {
		return
	}
	w.refresh()
}

func (w *EngineWatcher) refresh() {
	err := w.resolver.Check()

	w.mu.Lock()
	changed := (err == nil) != (w.lastErr == nil)
	w.lastErr = err
	w.mu.Unlock()

	if !changed {
		return
	}
	if err != nil {
		w.logger.Warn("Analysis engine became unavailable", "path", w.target, "error", err)
	} else {
		w.logger.Info("Analysis engine available", "path", w.target)
	}
}

// Ready returns the cached result of the last engine check.
func (w *EngineWatcher) Ready() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastErr
}

// Stop releases the underlying watcher. Safe to call multiple times.
func (w *EngineWatcher) Stop() error {
	return w.watcher.Close()
}
