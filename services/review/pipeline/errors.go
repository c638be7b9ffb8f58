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
	"fmt"
)

// Sentinel errors for the pipeline package.
//
// Typed errors below match their sentinel through errors.Is, so callers
// can branch on the class without caring about the concrete type.
var (
	// ErrValidation indicates the request carried no usable upload.
	ErrValidation = errors.New("invalid upload")

	// ErrConfiguration indicates the engine is missing or misconfigured.
	ErrConfiguration = errors.New("engine not configured")

	// ErrSpawn indicates the engine process could not be started.
	ErrSpawn = errors.New("engine failed to start")

	// ErrExecution indicates the engine ran and exited unsuccessfully.
	ErrExecution = errors.New("engine execution failed")

	// ErrOutput indicates the engine's output streams could not be read.
	ErrOutput = errors.New("engine output unreadable")

	// ErrEngineTimeout indicates the engine was killed by the run deadline.
	ErrEngineTimeout = errors.New("engine timeout")

	// ErrParse indicates the engine exited 0 but its output is not a report.
	ErrParse = errors.New("failed to parse engine output")

	// ErrStorage indicates the upload could not be persisted or removed.
	ErrStorage = errors.New("artifact storage failed")

	// ErrCapacity indicates the request gave up waiting for an engine slot.
	ErrCapacity = errors.New("engine capacity exhausted")
)

// ConfigurationError reports an engine that cannot be used.
type ConfigurationError struct {
	// EnginePath is the configured engine location.
	EnginePath string

	// Cause is the underlying stat or permission error.
	Cause error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("engine %q unavailable: %v", e.EnginePath, e.Cause)
}

func (e *ConfigurationError) Unwrap() error { return e.Cause }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// SpawnError reports a process that never started.
type SpawnError struct {
	// Command is the program that was launched.
	Command string

	// Cause is the error returned by the OS.
	Cause error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("starting %s: %v", e.Command, e.Cause)
}

func (e *SpawnError) Unwrap() error { return e.Cause }

func (e *SpawnError) Is(target error) bool { return target == ErrSpawn }

// ExecutionError reports a non-zero exit.
//
// ExitCode is -1 when the process was terminated by a signal, which is
// how deadline and cancellation kills surface. Diagnostic holds the full
// stderr text, possibly empty.
type ExecutionError struct {
	ExitCode   int
	Diagnostic string

	// Cause is ErrEngineTimeout or context.Canceled when the run was
	// killed, nil for an ordinary failing exit.
	Cause error
}

func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("engine exited with code %d: %v", e.ExitCode, e.Cause)
	}
	return fmt.Sprintf("engine exited with code %d", e.ExitCode)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

func (e *ExecutionError) Is(target error) bool { return target == ErrExecution }

// Timeout reports whether the run was killed by its deadline.
func (e *ExecutionError) Timeout() bool { return errors.Is(e.Cause, ErrEngineTimeout) }

// OutputError reports a run whose exit status was clean but whose
// output could not be collected. There is no meaningful exit code.
type OutputError struct {
	// Diagnostic is whatever stderr text was read before the failure.
	Diagnostic string

	Cause error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("reading engine output: %v", e.Cause)
}

func (e *OutputError) Unwrap() error { return e.Cause }

func (e *OutputError) Is(target error) bool { return target == ErrOutput }

// ParseError reports a successful exit with unusable output.
type ParseError struct {
	// RawOutput is the full stdout text, preserved for debugging.
	RawOutput string

	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing engine output: %v", e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// StorageError reports a filesystem failure on the artifact.
type StorageError struct {
	// Op is "create", "write" or "remove".
	Op   string
	Path string

	Cause error
}

func (e *StorageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("artifact %s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("artifact %s %s: %v", e.Op, e.Path, e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// Outcome labels used in logs and metrics.
const (
	OutcomeSuccess       = "success"
	OutcomeValidation    = "validation"
	OutcomeConfiguration = "configuration"
	OutcomeSpawn         = "spawn"
	OutcomeExecution     = "execution"
	OutcomeTimeout       = "timeout"
	OutcomeOutput        = "output"
	OutcomeParse         = "parse"
	OutcomeStorage       = "storage"
	OutcomeCapacity      = "capacity"
	OutcomeCanceled      = "canceled"
	OutcomeUnknown       = "unknown"
)

// Classify maps a pipeline result to its outcome label.
//
// # Description
//
// Timeout and cancellation are checked before the generic execution
// class because both are carried by an ExecutionError.
//
// # Inputs
//
//   - err: The error returned by Pipeline.Analyze, or nil
//
// # Outputs
//
//   - string: One of the Outcome* constants
func Classify(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrEngineTimeout):
		return OutcomeTimeout
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	case errors.Is(err, ErrValidation):
		return OutcomeValidation
	case errors.Is(err, ErrConfiguration):
		return OutcomeConfiguration
	case errors.Is(err, ErrSpawn):
		return OutcomeSpawn
	case errors.Is(err, ErrExecution):
		return OutcomeExecution
	case errors.Is(err, ErrOutput):
		return OutcomeOutput
	case errors.Is(err, ErrParse):
		return OutcomeParse
	case errors.Is(err, ErrStorage):
		return OutcomeStorage
	case errors.Is(err, ErrCapacity):
		return OutcomeCapacity
	default:
		return OutcomeUnknown
	}
}
