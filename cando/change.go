// Copyright 2026 The Cando Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cando

// ChangeKind tags the variant of a Change entry.
type ChangeKind int

const (
	ChangeClear ChangeKind = iota
	ChangeRemoveGrantee
	ChangeRemoveAction
	ChangeAddGrant
	ChangeRemoveGrant
	ChangeConnectGrantees
	ChangeDisconnectGrantees
	ChangeConnectActions
	ChangeDisconnectActions
	ChangeAddRoot
	ChangeRemoveRoot
)

// Change is the journaled mutation record Permission writes to its sink and
// applies to CanDo. Unlike Replay, Change covers every mutating operation,
// including removals and disconnects that Compact never needs to re-emit.
type Change[GranteeId, ActionId comparable] struct {
	Kind ChangeKind

	Grantee    GranteeId
	GranteeOf  GranteeId
	Action     ActionId
	MainAction ActionId
	SubAction  ActionId
}

func ClearChange[G, A comparable]() Change[G, A] {
	return Change[G, A]{Kind: ChangeClear}
}

func RemoveGranteeChange[G, A comparable](grantee G) Change[G, A] {
	return Change[G, A]{Kind: ChangeRemoveGrantee, Grantee: grantee}
}

func RemoveActionChange[G, A comparable](action A) Change[G, A] {
	return Change[G, A]{Kind: ChangeRemoveAction, Action: action}
}

func AddGrantChange[G, A comparable](grantee G, action A) Change[G, A] {
	return Change[G, A]{Kind: ChangeAddGrant, Grantee: grantee, Action: action}
}

func RemoveGrantChange[G, A comparable](grantee G, action A) Change[G, A] {
	return Change[G, A]{Kind: ChangeRemoveGrant, Grantee: grantee, Action: action}
}

func ConnectGranteesChange[G, A comparable](grantee, granteeOf G) Change[G, A] {
	return Change[G, A]{Kind: ChangeConnectGrantees, Grantee: grantee, GranteeOf: granteeOf}
}

func DisconnectGranteesChange[G, A comparable](grantee, granteeOf G) Change[G, A] {
	return Change[G, A]{Kind: ChangeDisconnectGrantees, Grantee: grantee, GranteeOf: granteeOf}
}

func ConnectActionsChange[G, A comparable](main, sub A) Change[G, A] {
	return Change[G, A]{Kind: ChangeConnectActions, MainAction: main, SubAction: sub}
}

func DisconnectActionsChange[G, A comparable](main, sub A) Change[G, A] {
	return Change[G, A]{Kind: ChangeDisconnectActions, MainAction: main, SubAction: sub}
}

func AddRootChange[G, A comparable](grantee G) Change[G, A] {
	return Change[G, A]{Kind: ChangeAddRoot, Grantee: grantee}
}

func RemoveRootChange[G, A comparable](grantee G) Change[G, A] {
	return Change[G, A]{Kind: ChangeRemoveRoot, Grantee: grantee}
}

// Absorb applies change to cd. RemoveGrantee, RemoveAction, DisconnectGrantees
// and DisconnectActions tolerate a missing endpoint silently: the journal may
// be replayed out of order (e.g. during eventual-consistency recovery), and a
// remove of an already-absent node must not abort the batch. RemoveGrant is
// the one exception: Absorb treats a RemoveGrant whose grantee or action does
// not exist as a sign of a corrupt journal and panics rather than silently
// accepting it.
func (cd *CanDo[G, A]) Absorb(change Change[G, A]) {
	switch change.Kind {
	case ChangeClear:
		cd.Clear()
	case ChangeRemoveGrantee:
		_ = cd.RemoveGrantee(change.Grantee)
	case ChangeRemoveAction:
		_ = cd.RemoveAction(change.Action)
	case ChangeAddGrant:
		cd.AddGrant(change.Grantee, change.Action)
	case ChangeRemoveGrant:
		if err := cd.RemoveGrant(change.Grantee, change.Action); err != nil {
			panic("cando: absorb: remove grant for an unknown grantee or action: " + err.Error())
		}
	case ChangeConnectGrantees:
		cd.ConnectGrantees(change.Grantee, change.GranteeOf)
	case ChangeDisconnectGrantees:
		_ = cd.DisconnectGrantees(change.Grantee, change.GranteeOf)
	case ChangeConnectActions:
		cd.ConnectActions(change.MainAction, change.SubAction)
	case ChangeDisconnectActions:
		_ = cd.DisconnectActions(change.MainAction, change.SubAction)
	case ChangeAddRoot:
		cd.AddRoot(change.Grantee)
	case ChangeRemoveRoot:
		cd.RemoveRoot(change.Grantee)
	}
}
