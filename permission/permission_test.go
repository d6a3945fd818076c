// Copyright 2026 The Cando Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package permission

import (
	"context"
	"errors"
	"testing"

	"github.com/cando-sh/cando/cando"
	"github.com/cando-sh/cando/sink"
)

func newTestPermission(t *testing.T) (*Permission[string, string], *sink.MemSink[string, string]) {
	t.Helper()
	s := sink.NewMemSink[string, string]()
	p, err := New[string, string](s)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, s
}

func TestChangeAppliesBatchAndCheckObservesIt(t *testing.T) {
	p, _ := newTestPermission(t)
	ctx := context.Background()

	batch := []cando.Change[string, string]{
		cando.ConnectGranteesChange[string, string]("user", "group1"),
		cando.ConnectGranteesChange[string, string]("group1", "group2"),
		cando.AddGrantChange[string, string]("group2", "read"),
	}
	if err := p.Change(ctx, batch); err != nil {
		t.Fatalf("Change: %v", err)
	}

	for _, grantee := range []string{"user", "group1", "group2"} {
		ok, err := p.Check(ctx, grantee, "read")
		if err != nil {
			t.Fatalf("Check(%s): %v", grantee, err)
		}
		if !ok {
			t.Fatalf("Check(%s, read) = false, want true", grantee)
		}
	}
}

func TestChangeReplaysHistoryOnConstruction(t *testing.T) {
	s := sink.NewMemSink[string, string]()
	ctx := context.Background()

	first, err := New[string, string](s)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := first.Change(ctx, []cando.Change[string, string]{
		cando.AddGrantChange[string, string]("alice", "read"),
	}); err != nil {
		t.Fatalf("Change: %v", err)
	}

	reopened, err := New[string, string](s)
	if err != nil {
		t.Fatalf("reopen New: %v", err)
	}
	ok, err := reopened.Check(ctx, "alice", "read")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !ok {
		t.Fatal("Check(alice, read) = false after replaying history, want true")
	}
}

func TestCheckUnknownGranteeReturnsWrappedError(t *testing.T) {
	p, _ := newTestPermission(t)
	_, err := p.Check(context.Background(), "nobody", "read")
	if !errors.Is(err, cando.ErrGranteeNotFound) {
		t.Fatalf("Check(unknown) error = %v, want wrapping ErrGranteeNotFound", err)
	}
}

// Scenario 5 from the engine's testable properties: a sink that fails both
// flush and clear poisons the engine, and the poison is sticky.
func TestPoisonPropagation(t *testing.T) {
	p, s := newTestPermission(t)
	ctx := context.Background()

	s.FailNextFlush()
	s.FailNextClear()

	err := p.Change(ctx, []cando.Change[string, string]{
		cando.AddGrantChange[string, string]("alice", "read"),
	})
	if !errors.Is(err, ErrFailed) {
		t.Fatalf("Change with failing flush+clear = %v, want ErrFailed", err)
	}
	if !p.Poisoned() {
		t.Fatal("Poisoned() = false after a failed clear, want true")
	}

	if _, err := p.Check(ctx, "alice", "read"); !errors.Is(err, ErrFailed) {
		t.Fatalf("Check after poisoning = %v, want ErrFailed", err)
	}
	if err := p.Change(ctx, nil); !errors.Is(err, ErrFailed) {
		t.Fatalf("Change after poisoning = %v, want ErrFailed", err)
	}
}

// A failed flush that successfully clears leaves the engine healthy and the
// published snapshot untouched.
func TestFailedFlushWithSuccessfulClearLeavesEngineHealthy(t *testing.T) {
	p, s := newTestPermission(t)
	ctx := context.Background()

	if err := p.Change(ctx, []cando.Change[string, string]{
		cando.AddGrantChange[string, string]("alice", "read"),
	}); err != nil {
		t.Fatalf("seed Change: %v", err)
	}

	s.FailNextFlush()
	err := p.Change(ctx, []cando.Change[string, string]{
		cando.AddGrantChange[string, string]("bob", "write"),
	})
	if !errors.Is(err, errIoFlush) {
		t.Fatalf("Change with failing flush = %v, want wrapped errIoFlush", err)
	}
	if p.Poisoned() {
		t.Fatal("Poisoned() = true after a recovered flush failure, want false")
	}

	if ok, err := p.Check(ctx, "alice", "read"); err != nil || !ok {
		t.Fatalf("Check(alice, read) = (%v, %v), want (true, nil)", ok, err)
	}
	if ok, err := p.Check(ctx, "bob", "write"); !errors.Is(err, cando.ErrGranteeNotFound) {
		t.Fatalf("Check(bob, write) = (%v, %v), want ErrGranteeNotFound: rejected batch must not be visible", ok, err)
	}
}

// Scenario 6: a snapshot obtained before a publish must keep answering
// against the pre-publish graph even after a later Change removes the node
// under inspection.
func TestReaderSnapshotIsImmutableAcrossPublish(t *testing.T) {
	p, _ := newTestPermission(t)
	ctx := context.Background()

	if err := p.Change(ctx, []cando.Change[string, string]{
		cando.AddGrantChange[string, string]("alice", "read"),
	}); err != nil {
		t.Fatalf("Change: %v", err)
	}

	preRemoval := p.read.Load()

	if err := p.Change(ctx, []cando.Change[string, string]{
		cando.RemoveGranteeChange[string, string]("alice"),
	}); err != nil {
		t.Fatalf("Change: %v", err)
	}

	ok, err := preRemoval.CanGranteeDo("alice", "read")
	if err != nil {
		t.Fatalf("CanGranteeDo against retained snapshot: %v", err)
	}
	if !ok {
		t.Fatal("retained snapshot stopped observing alice's grant after a later removal, want it preserved")
	}

	ok, err = p.Check(ctx, "alice", "read")
	if !errors.Is(err, cando.ErrGranteeNotFound) {
		t.Fatalf("Check against the live snapshot after removal = (%v, %v), want ErrGranteeNotFound", ok, err)
	}
}

func TestFailedWriteRejectsBatch(t *testing.T) {
	p, s := newTestPermission(t)
	ctx := context.Background()

	s.FailNextWrite()
	err := p.Change(ctx, []cando.Change[string, string]{
		cando.AddGrantChange[string, string]("alice", "read"),
	})
	if !errors.Is(err, errIoWrite) {
		t.Fatalf("Change with failing write = %v, want wrapped errIoWrite", err)
	}
	if p.Poisoned() {
		t.Fatal("Poisoned() = true after a recovered write failure, want false")
	}
	if _, err := p.Check(ctx, "alice", "read"); !errors.Is(err, cando.ErrGranteeNotFound) {
		t.Fatalf("Check(alice, read) after rejected batch = %v, want ErrGranteeNotFound", err)
	}
}

// A journal that replays a RemoveGrant for a grantee/action no longer
// present is treated as corrupt. New surfaces that loudly instead of
// silently continuing.
func TestNewPanicsOnCorruptJournalRemoveGrant(t *testing.T) {
	s := sink.NewMemSink[string, string]()
	if err := s.Rewrite(context.Background(), []cando.Change[string, string]{
		cando.RemoveGrantChange[string, string]("alice", "read"),
	}); err != nil {
		t.Fatalf("seed Rewrite: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("New() over a journal with a dangling RemoveGrant did not panic")
		}
	}()
	New[string, string](s)
}

func TestCompactRewritesJournalAndKeepsReachability(t *testing.T) {
	p, s := newTestPermission(t)
	ctx := context.Background()

	if err := p.Change(ctx, []cando.Change[string, string]{
		cando.AddGrantChange[string, string]("u", "read"),
		cando.ConnectGranteesChange[string, string]("u", "g1"),
		cando.ConnectGranteesChange[string, string]("g2", "g1"),
		cando.AddRootChange[string, string]("g1"),
	}); err != nil {
		t.Fatalf("Change: %v", err)
	}

	if err := p.Compact(ctx); err != nil {
		t.Fatalf("Compact: %v", err)
	}

	ok, err := p.Check(ctx, "u", "read")
	if err != nil || !ok {
		t.Fatalf("Check(u, read) after compact = (%v, %v), want (true, nil)", ok, err)
	}

	journaled, err := s.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(journaled) != 3 {
		t.Fatalf("journal after compact has %d entries, want 3 (grant, connect-grantees, root)", len(journaled))
	}

	reopened, err := New[string, string](s)
	if err != nil {
		t.Fatalf("reopen New: %v", err)
	}
	ok, err = reopened.Check(ctx, "u", "read")
	if err != nil || !ok {
		t.Fatalf("Check(u, read) after reopening compacted journal = (%v, %v), want (true, nil)", ok, err)
	}
	if _, err := reopened.Check(ctx, "g2", "read"); !errors.Is(err, cando.ErrGranteeNotFound) {
		t.Fatalf("Check(g2, read) after compact = %v, want ErrGranteeNotFound: g2 should have been pruned", err)
	}
}
