// Copyright 2026 The Cando Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package arena

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestInsertGrowsBackingStorage(t *testing.T) {
	a := New[int]()
	a.Insert(1)
	a.Insert(2)

	if got := a.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
}

func TestRemoveTombstonesWithoutShrinking(t *testing.T) {
	a := New[int]()
	i1 := a.Insert(1)
	i2 := a.Insert(2)

	a.Remove(i1)
	a.Remove(i2)

	if got := a.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2 (tombstones keep slots around)", got)
	}
}

func TestRemovedPositionsAreReused(t *testing.T) {
	a := New[int]()
	a.Insert(1)
	toDelete := a.Insert(2)

	a.Remove(toDelete)
	reused := a.Insert(3)

	if reused != toDelete {
		t.Fatalf("Insert() = %d, want reused position %d", reused, toDelete)
	}
	if got := a.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
	if got := *a.Get(reused); got != 3 {
		t.Fatalf("Get(%d) = %d, want 3", reused, got)
	}
}

func TestCompactNoTombstonesIsNoop(t *testing.T) {
	a := New[int]()
	a.Insert(1)

	moves := a.Compact()
	if len(moves) != 0 {
		t.Fatalf("Compact() = %v, want empty", moves)
	}
	if got := a.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}
}

func TestCompactAllTombstonedClears(t *testing.T) {
	a := New[int]()
	pos := a.Insert(1)
	a.Remove(pos)

	moves := a.Compact()
	if len(moves) != 0 {
		t.Fatalf("Compact() = %v, want empty", moves)
	}
	if got := a.Len(); got != 0 {
		t.Fatalf("Len() = %d, want 0", got)
	}
}

func TestCompactTrailingTombstonesOnlyTruncate(t *testing.T) {
	a := New[int]()
	a.Insert(1)
	last := a.Insert(2)
	a.Remove(last)

	moves := a.Compact()
	if len(moves) != 0 {
		t.Fatalf("Compact() = %v, want empty (trailing tombstone needs no move)", moves)
	}
	if got := a.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1", got)
	}
}

// TestCompactReportsMinimalMoves checks that compacting a tombstoned arena
// reports the minimal end-to-start swap sequence needed to pack live slots.
func TestCompactReportsMinimalMoves(t *testing.T) {
	a := New[int]()
	a.Insert(1)
	i2 := a.Insert(2)
	i3 := a.Insert(3)
	a.Insert(4)
	i5 := a.Insert(5)

	a.Remove(i2)
	a.Remove(i3)
	a.Remove(i5)

	moves := a.Compact()

	want := []Move{{From: 3, To: 1}}
	if diff := cmp.Diff(want, moves); diff != "" {
		t.Fatalf("Compact() mismatch (-want +got):\n%s", diff)
	}
	if got := a.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}
	if got := *a.Get(0); got != 1 {
		t.Fatalf("Get(0) = %d, want 1", got)
	}
	if got := *a.Get(1); got != 4 {
		t.Fatalf("Get(1) = %d, want 4 (moved from position 3)", got)
	}
}

func TestGetOutOfBoundsPanics(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on out-of-bounds Get")
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrDanglingAccess) {
			t.Fatalf("recovered %v, want error wrapping ErrDanglingAccess", r)
		}
	}()

	a := New[int]()
	a.Get(0)
}

func TestGetRemovedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on Get of removed position")
		}
	}()

	a := New[int]()
	pos := a.Insert(1)
	a.Remove(pos)
	a.Get(pos)
}

func TestRemoveTwicePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double Remove")
		}
	}()

	a := New[int]()
	pos := a.Insert(1)
	a.Remove(pos)
	a.Remove(pos)
}

// TestInsertRemoveSequenceMatchesLiveSet is a light property check: for a
// fixed scripted sequence of inserts/removes that never reads a tombstone,
// the set of live values must equal inserted-but-not-removed values.
func TestInsertRemoveSequenceMatchesLiveSet(t *testing.T) {
	a := New[string]()
	positions := map[string]int{}

	insert := func(v string) {
		positions[v] = a.Insert(v)
	}
	remove := func(v string) {
		a.Remove(positions[v])
		delete(positions, v)
	}

	insert("a")
	insert("b")
	insert("c")
	remove("b")
	insert("d") // reuses b's slot
	remove("a")
	insert("e")

	live := map[string]bool{}
	for v, pos := range positions {
		live[v] = *a.Get(pos) == v
	}

	want := map[string]bool{"c": true, "d": true, "e": true}
	if diff := cmp.Diff(want, live); diff != "" {
		t.Fatalf("live set mismatch (-want +got):\n%s", diff)
	}
}

func TestCloneIsIndependentOfOriginal(t *testing.T) {
	a := New[[]int]()
	pos := a.Insert([]int{1, 2, 3})

	clone := a.Clone(func(v []int) []int {
		out := make([]int, len(v))
		copy(out, v)
		return out
	})

	*a.GetMut(pos) = append(*a.GetMut(pos), 4)

	got := *clone.Get(pos)
	want := []int{1, 2, 3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("clone observed a mutation made to the original (-want +got):\n%s", diff)
	}
}
