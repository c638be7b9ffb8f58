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
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Limiter bounds the number of engines running at once.
//
// A Limiter created with a non-positive size never blocks. The zero
// value is not usable; use NewLimiter.
type Limiter struct {
	sem      *semaphore.Weighted
	size     int64
	inFlight atomic.Int64
}

// NewLimiter creates a limiter admitting size concurrent runs.
func NewLimiter(size int) *Limiter {
	l := &Limiter{size: int64(size)}
	if size > 0 {
		l.sem = semaphore.NewWeighted(int64(size))
	}
	return l
}

// Acquire waits for a slot.
//
// The returned release function must be called exactly once. If ctx
// ends first, the error wraps ErrCapacity.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	if l.sem != nil {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCapacity, err)
		}
	}
	l.inFlight.Add(1)

	var once atomic.Bool
	return func() {
		if !once.CompareAndSwap(false, true) {
			return
		}
		l.inFlight.Add(-1)
		if l.sem != nil {
			l.sem.Release(1)
		}
	}, nil
}

// InFlight returns the number of slots currently held.
func (l *Limiter) InFlight() int64 { return l.inFlight.Load() }

// Size returns the configured bound, 0 when unbounded.
func (l *Limiter) Size() int64 {
	if l.size < 0 {
		return 0
	}
	return l.size
}
