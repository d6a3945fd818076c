// Copyright 2026 The Cando Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cando

import "golang.org/x/sync/errgroup"

// Replay is the narrower, reconstruction-sufficient record Compact emits.
// Applying every Replay entry in a log to a fresh CanDo reproduces the
// residual graph; the order in which entries are applied does not affect
// the end state.
type Replay[GranteeId, ActionId comparable] struct {
	Kind       ReplayKind
	Grantee    GranteeId
	GranteeOf  GranteeId
	MainAction ActionId
	SubAction  ActionId
	Action     ActionId
	RootOf     GranteeId
}

// ReplayKind tags the variant of a Replay entry.
type ReplayKind int

const (
	// ReplayGrant records that Grantee directly holds Action.
	ReplayGrant ReplayKind = iota
	// ReplayConnectGrantees records that Grantee inherits from GranteeOf.
	ReplayConnectGrantees
	// ReplayConnectActions records that SubAction is implied by MainAction.
	ReplayConnectActions
	// ReplayRoot records that RootOf is a root grantee.
	ReplayRoot
)

// NewGrantReplay builds a Replay entry for a direct grant.
func NewGrantReplay[G, A comparable](grantee G, action A) Replay[G, A] {
	return Replay[G, A]{Kind: ReplayGrant, Grantee: grantee, Action: action}
}

// NewConnectGranteesReplay builds a Replay entry for a grantee inheritance edge.
func NewConnectGranteesReplay[G, A comparable](grantee, granteeOf G) Replay[G, A] {
	return Replay[G, A]{Kind: ReplayConnectGrantees, Grantee: grantee, GranteeOf: granteeOf}
}

// NewConnectActionsReplay builds a Replay entry for an action inheritance edge.
func NewConnectActionsReplay[G, A comparable](main, sub A) Replay[G, A] {
	return Replay[G, A]{Kind: ReplayConnectActions, MainAction: main, SubAction: sub}
}

// NewRootReplay builds a Replay entry marking a grantee as root.
func NewRootReplay[G, A comparable](grantee G) Replay[G, A] {
	return Replay[G, A]{Kind: ReplayRoot, RootOf: grantee}
}

// ToChange converts a Replay entry into the equivalent Change entry. Callers
// that rewrite a sink's journal to the minimal form after Compact use this
// to turn the returned replay log back into journal records.
func (r Replay[G, A]) ToChange() Change[G, A] {
	switch r.Kind {
	case ReplayGrant:
		return AddGrantChange[G, A](r.Grantee, r.Action)
	case ReplayConnectGrantees:
		return ConnectGranteesChange[G, A](r.Grantee, r.GranteeOf)
	case ReplayConnectActions:
		return ConnectActionsChange[G, A](r.MainAction, r.SubAction)
	case ReplayRoot:
		return AddRootChange[G, A](r.RootOf)
	default:
		panic("cando: replay: unknown kind")
	}
}

// ReplayAll applies every entry in log to cd. It is meant for reconstructing
// a graph from empty (e.g. when Permission.Compact rebuilds its write-side
// graph), not for incremental mutation of a live graph.
//
// The four replay kinds are independent of one another (connecting
// grantees, connecting actions, granting and rooting never race against
// each other's inputs), so ReplayAll fans the log out across goroutines to
// partition it by kind before applying the partitions to cd sequentially,
// in the engine's canonical order: connect-grantees, connect-actions,
// grants, roots. CanDo itself is not safe for concurrent mutation, so only
// the read-only partitioning step runs concurrently; applying the
// partitions always happens on the calling goroutine.
func ReplayAll[G, A comparable](cd *CanDo[G, A], log []Replay[G, A]) error {
	var connectGrantees, connectActions, grants, roots []Replay[G, A]

	g := new(errgroup.Group)
	g.Go(func() error {
		for _, r := range log {
			if r.Kind == ReplayConnectGrantees {
				connectGrantees = append(connectGrantees, r)
			}
		}
		return nil
	})
	g.Go(func() error {
		for _, r := range log {
			if r.Kind == ReplayConnectActions {
				connectActions = append(connectActions, r)
			}
		}
		return nil
	})
	g.Go(func() error {
		for _, r := range log {
			if r.Kind == ReplayGrant {
				grants = append(grants, r)
			}
		}
		return nil
	})
	g.Go(func() error {
		for _, r := range log {
			if r.Kind == ReplayRoot {
				roots = append(roots, r)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	for _, r := range connectGrantees {
		cd.ConnectGrantees(r.Grantee, r.GranteeOf)
	}
	for _, r := range connectActions {
		cd.ConnectActions(r.MainAction, r.SubAction)
	}
	for _, r := range grants {
		cd.AddGrant(r.Grantee, r.Action)
	}
	for _, r := range roots {
		cd.AddRoot(r.RootOf)
	}
	return nil
}
