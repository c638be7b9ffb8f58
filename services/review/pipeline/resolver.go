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
	"errors"
	"os"
	"runtime"
	"time"
)

// EngineConfig describes how to run the analysis engine.
type EngineConfig struct {
	// Path is the engine script or executable.
	Path string

	// Interpreter runs Path. Empty selects DefaultInterpreter.
	Interpreter string

	// Direct runs Path itself with no interpreter.
	Direct bool

	// Timeout bounds one engine run. Zero disables the deadline.
	Timeout time.Duration
}

// DefaultInterpreter returns the interpreter name for the given GOOS.
func DefaultInterpreter(goos string) string {
	if goos == "windows" {
		return "py"
	}
	return "python3"
}

// Resolver is the single decision point for how the engine is launched.
//
// # Thread Safety
//
// Immutable after creation.
type Resolver struct {
	cfg EngineConfig
}

// NewResolver creates a resolver, filling in the platform interpreter.
func NewResolver(cfg EngineConfig) *Resolver {
	if !cfg.Direct && cfg.Interpreter == "" {
		cfg.Interpreter = DefaultInterpreter(runtime.GOOS)
	}
	return &Resolver{cfg: cfg}
}

// EnginePath returns the configured engine location.
func (r *Resolver) EnginePath() string { return r.cfg.Path }

// Timeout returns the configured run deadline.
func (r *Resolver) Timeout() time.Duration { return r.cfg.Timeout }

// Check verifies the engine can be launched.
//
// # Description
//
// The engine must exist and be a regular file. In direct mode it must
// also be executable. Any failure is a *ConfigurationError.
//
// # Outputs
//
//   - error: nil when the engine looks usable
func (r *Resolver) Check() error {
	if r.cfg.Path == "" {
		return &ConfigurationError{EnginePath: r.cfg.Path, Cause: errors.New("engine path is empty")}
	}
	info, err := os.Stat(r.cfg.Path)
	if err != nil {
		return &ConfigurationError{EnginePath: r.cfg.Path, Cause: err}
	}
	if info.IsDir() {
		return &ConfigurationError{EnginePath: r.cfg.Path, Cause: errors.New("engine path is a directory")}
	}
	if r.cfg.Direct && runtime.GOOS != "windows" && info.Mode().Perm()&0111 == 0 {
		return &ConfigurationError{EnginePath: r.cfg.Path, Cause: errors.New("engine is not executable")}
	}
	return nil
}

// Ready implements the readiness check using Check.
func (r *Resolver) Ready() error { return r.Check() }

// Command returns the program and argv for one run.
//
// The engine receives exactly one argument, the artifact path.
func (r *Resolver) Command(enginePath, artifactPath string) (string, []string) {
	if r.cfg.Direct {
		return enginePath, []string{artifactPath}
	}
	return r.cfg.Interpreter, []string{enginePath, artifactPath}
}
