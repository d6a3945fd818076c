// Copyright 2026 The Cando Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package sink defines the durable I/O contract Permission journals changes
// through, plus a handful of concrete implementations (in-memory, a
// checksummed append-only file, and a Badger-backed store).
package sink

import (
	"context"
	"errors"

	"github.com/cando-sh/cando/cando"
)

// ErrWrite is returned when a sink fails to append a record.
var ErrWrite = errors.New("sink: write failed")

// ErrFlush is returned when a sink fails to durably persist written records.
var ErrFlush = errors.New("sink: flush failed")

// ErrClear is returned when a sink fails to discard unflushed records.
var ErrClear = errors.New("sink: clear failed")

// Sink is the durable journal contract Permission depends on. A correct
// Sink is crash-safe: after a process restart, ReadAll replays exactly the
// sequence of Changes for which Flush previously returned success, never a
// partial batch and never a cleared one.
type Sink[GranteeId, ActionId comparable] interface {
	// ReadAll returns every historically flushed change, in the order they
	// were written. It is called once, at Permission construction.
	ReadAll(ctx context.Context) ([]cando.Change[GranteeId, ActionId], error)

	// Write appends a single record. A write error wraps ErrWrite.
	Write(ctx context.Context, change cando.Change[GranteeId, ActionId]) error

	// Flush durably persists every record written since the previous
	// flush. A flush error wraps ErrFlush.
	Flush(ctx context.Context) error

	// Clear discards every record written since the last successful
	// flush, undoing a failed batch. A clear error wraps ErrClear.
	Clear(ctx context.Context) error
}

// Compactor is an optional capability a Sink implementation may provide:
// replacing its entire flushed history with a fresh, minimal sequence of
// records in one durable step, rather than only ever appending. Permission
// uses this after cando.CanDo.Compact to shrink the on-disk journal to the
// replay log of the residual graph. A Sink that does not implement
// Compactor still works with Permission; compaction just shrinks the live
// graph without shrinking the journal on disk.
type Compactor[GranteeId, ActionId comparable] interface {
	Rewrite(ctx context.Context, changes []cando.Change[GranteeId, ActionId]) error
}
