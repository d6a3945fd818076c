// Copyright 2026 The Cando Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package sink

import (
	"context"
	"sync"

	"github.com/cando-sh/cando/cando"
)

// MemSink is a non-durable Sink backed by a plain slice. It is meant for
// tests and for short-lived processes that accept losing the journal on
// restart; ReadAll after a restart would return nothing, since nothing
// outlives the process.
type MemSink[GranteeId, ActionId comparable] struct {
	mu       sync.Mutex
	flushed  []cando.Change[GranteeId, ActionId]
	pending  []cando.Change[GranteeId, ActionId]
	failNext failures
}

type failures struct {
	write bool
	flush bool
	clear bool
}

// NewMemSink returns an empty MemSink.
func NewMemSink[G, A comparable]() *MemSink[G, A] {
	return &MemSink[G, A]{}
}

// FailNextWrite makes the next Write call return ErrWrite.
func (s *MemSink[G, A]) FailNextWrite() { s.mu.Lock(); s.failNext.write = true; s.mu.Unlock() }

// FailNextFlush makes the next Flush call return ErrFlush.
func (s *MemSink[G, A]) FailNextFlush() { s.mu.Lock(); s.failNext.flush = true; s.mu.Unlock() }

// FailNextClear makes the next Clear call return ErrClear.
func (s *MemSink[G, A]) FailNextClear() { s.mu.Lock(); s.failNext.clear = true; s.mu.Unlock() }

func (s *MemSink[G, A]) ReadAll(_ context.Context) ([]cando.Change[G, A], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]cando.Change[G, A], len(s.flushed))
	copy(out, s.flushed)
	return out, nil
}

func (s *MemSink[G, A]) Write(_ context.Context, change cando.Change[G, A]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext.write {
		s.failNext.write = false
		return ErrWrite
	}
	s.pending = append(s.pending, change)
	return nil
}

func (s *MemSink[G, A]) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext.flush {
		s.failNext.flush = false
		return ErrFlush
	}
	s.flushed = append(s.flushed, s.pending...)
	s.pending = nil
	return nil
}

func (s *MemSink[G, A]) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext.clear {
		s.failNext.clear = false
		return ErrClear
	}
	s.pending = nil
	return nil
}

// Rewrite replaces the flushed history wholesale with changes, implementing
// sink.Compactor.
func (s *MemSink[G, A]) Rewrite(_ context.Context, changes []cando.Change[G, A]) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushed = append([]cando.Change[G, A](nil), changes...)
	s.pending = nil
	return nil
}
