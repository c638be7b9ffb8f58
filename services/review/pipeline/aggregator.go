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
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
)

// Output holds the fully drained engine streams.
type Output struct {
	// Result is everything written to stdout.
	Result []byte

	// Diagnostic is everything written to stderr.
	Diagnostic []byte
}

// Aggregate drains both streams concurrently until each reaches EOF.
//
// # Description
//
// Each stream gets its own goroutine and an unbounded buffer, so a
// process that fills one pipe while the other is idle never blocks.
// Chunks are appended in arrival order. If ctx is cancelled, readers
// that implement io.Closer are closed to unblock the drains and the
// context error is returned.
//
// # Inputs
//
//   - ctx: Cancellation for the drain
//   - result: The engine's stdout
//   - diagnostic: The engine's stderr
//
// # Outputs
//
//   - *Output: Both buffers, complete
//   - error: A read error or the context error
func Aggregate(ctx context.Context, result, diagnostic io.Reader) (*Output, error) {
	stop := context.AfterFunc(ctx, func() {
		closeReader(result)
		closeReader(diagnostic)
	})
	defer stop()

	var stdout, stderr bytes.Buffer
	g := new(errgroup.Group)
	g.Go(func() error {
		if _, err := stdout.ReadFrom(result); err != nil {
			return fmt.Errorf("reading result stream: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if _, err := stderr.ReadFrom(diagnostic); err != nil {
			return fmt.Errorf("reading diagnostic stream: %w", err)
		}
		return nil
	})
	err := g.Wait()

	out := &Output{Result: stdout.Bytes(), Diagnostic: stderr.Bytes()}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return out, ctxErr
	}
	return out, err
}

func closeReader(r io.Reader) {
	if c, ok := r.(io.Closer); ok {
		_ = c.Close()
	}
}
