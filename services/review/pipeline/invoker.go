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
	"log/slog"
	"os/exec"
	"sync/atomic"
	"time"
)

// waitDelay bounds how long Wait waits for pipes after a kill.
const waitDelay = 5 * time.Second

// InvocationState is the lifecycle position of one engine run.
type InvocationState int32

const (
	// StateSpawned means the process object exists but has not started.
	StateSpawned InvocationState = iota

	// StateRunning means the process started and has not been reaped.
	StateRunning

	// StateExited means the process was reaped and both streams drained.
	StateExited

	// StateSpawnFailed means the process never started.
	StateSpawnFailed
)

func (s InvocationState) String() string {
	switch s {
	case StateSpawned:
		return "spawned"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateSpawnFailed:
		return "spawn_failed"
	default:
		return "unknown"
	}
}

// Completion is the terminal result of an invocation.
type Completion struct {
	// ExitCode is the process exit status, -1 when killed by a signal.
	ExitCode int

	// Output holds both streams, fully drained.
	Output *Output

	// Err is a drain or wait failure other than a non-zero exit.
	Err error

	StartedAt time.Time
	EndedAt   time.Time
}

// Duration returns the wall time of the run.
func (c Completion) Duration() time.Duration { return c.EndedAt.Sub(c.StartedAt) }

// Invocation is one running engine process.
//
// # Description
//
// Created by Invoker.Invoke after a successful start. Completion is
// delivered once, when the process has exited and both streams reached
// EOF. Done can be used in select statements; Wait blocks.
//
// # Thread Safety
//
// Safe for concurrent use.
type Invocation struct {
	Command string
	Args    []string

	state      atomic.Int32
	done       chan struct{}
	completion Completion
}

// State returns the current lifecycle state.
func (inv *Invocation) State() InvocationState {
	return InvocationState(inv.state.Load())
}

// Done is closed once the completion is available.
func (inv *Invocation) Done() <-chan struct{} { return inv.done }

// Wait blocks until the process exits and both streams are drained.
func (inv *Invocation) Wait() Completion {
	<-inv.done
	return inv.completion
}

// Invoker launches the engine as a child process.
type Invoker struct {
	resolver *Resolver
	logger   *slog.Logger
}

// NewInvoker creates an invoker using resolver for the command line.
func NewInvoker(resolver *Resolver, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{resolver: resolver, logger: logger.With("component", "invoker")}
}

// Invoke starts the engine with the artifact as its single argument.
//
// # Description
//
// Stdout and stderr are piped and drained by Aggregate in the
// background. Cancelling ctx kills the engine (its whole process group
// on unix), which ends the drain and completes the invocation.
//
// # Inputs
//
//   - ctx: Lifetime of the process
//   - enginePath: The engine script or executable
//   - artifactPath: The stored upload
//
// # Outputs
//
//   - *Invocation: The running process
//   - error: *SpawnError if the process could not be started
func (inv *Invoker) Invoke(ctx context.Context, enginePath, artifactPath string) (*Invocation, error) {
	name, args := inv.resolver.Command(enginePath, artifactPath)

	cmd := exec.CommandContext(ctx, name, args...)
	configureProcessGroup(cmd)
	cmd.WaitDelay = waitDelay

	invocation := &Invocation{
		Command: name,
		Args:    args,
		done:    make(chan struct{}),
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		invocation.state.Store(int32(StateSpawnFailed))
		return nil, &SpawnError{Command: name, Cause: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		invocation.state.Store(int32(StateSpawnFailed))
		return nil, &SpawnError{Command: name, Cause: err}
	}

	startedAt := time.Now()
	if err := cmd.Start(); err != nil {
		invocation.state.Store(int32(StateSpawnFailed))
		return nil, &SpawnError{Command: name, Cause: err}
	}
	invocation.state.Store(int32(StateRunning))
	inv.logger.Debug("engine started", "command", name, "args", args, "pid", cmd.Process.Pid)

	go func() {
		// Pipes must be fully read before Wait closes them.
		output, drainErr := Aggregate(ctx, stdout, stderr)
		waitErr := cmd.Wait()

		c := Completion{
			ExitCode:  -1,
			Output:    output,
			StartedAt: startedAt,
			EndedAt:   time.Now(),
		}
		if cmd.ProcessState != nil {
			c.ExitCode = cmd.ProcessState.ExitCode()
		}
		var exitErr *exec.ExitError
		switch {
		case drainErr != nil && !errors.Is(drainErr, ctx.Err()):
			c.Err = drainErr
		case waitErr != nil && !errors.As(waitErr, &exitErr) && ctx.Err() == nil:
			c.Err = waitErr
		}

		invocation.completion = c
		invocation.state.Store(int32(StateExited))
		close(invocation.done)

		inv.logger.Debug("engine exited",
			"command", name,
			"exit_code", c.ExitCode,
			"duration_ms", c.Duration().Milliseconds(),
			"stdout_bytes", len(output.Result),
			"stderr_bytes", len(output.Diagnostic),
		)
	}()

	return invocation, nil
}
