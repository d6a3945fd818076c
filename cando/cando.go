// Copyright 2026 The Cando Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package cando implements an in-memory, inheritance-aware access-control
// graph: grantees inherit from other grantees, actions imply other actions,
// and grantees hold direct grants on actions. CanGranteeDo answers whether
// a grantee can, transitively, perform an action.
//
// CanDo is not safe for concurrent use; see package permission for a
// journaled, concurrently-readable façade built on top of it.
package cando

import (
	"github.com/cando-sh/cando/arena"
)

// CanDo is a bidirectional inheritance graph over grantees and actions.
type CanDo[GranteeId, ActionId comparable] struct {
	grantees      map[GranteeId]int
	granteesArena *arena.Arena[granteeNode]
	actions       map[ActionId]int
	actionsArena  *arena.Arena[actionNode]
}

// New returns an empty CanDo.
func New[GranteeId, ActionId comparable]() *CanDo[GranteeId, ActionId] {
	return &CanDo[GranteeId, ActionId]{
		grantees:      map[GranteeId]int{},
		granteesArena: arena.New[granteeNode](),
		actions:       map[ActionId]int{},
		actionsArena:  arena.New[actionNode](),
	}
}

// Clear discards every grant and inheritance edge, returning the graph to
// its initial empty state.
func (cd *CanDo[G, A]) Clear() {
	cd.grantees = map[G]int{}
	cd.granteesArena = arena.New[granteeNode]()
	cd.actions = map[A]int{}
	cd.actionsArena = arena.New[actionNode]()
}

// Clone returns a deep copy of cd. The returned graph shares no mutable
// state with cd: permission.Permission uses this to publish an immutable
// reader snapshot while the writer keeps mutating its own working copy.
func (cd *CanDo[G, A]) Clone() *CanDo[G, A] {
	grantees := make(map[G]int, len(cd.grantees))
	for id, pos := range cd.grantees {
		grantees[id] = pos
	}
	actions := make(map[A]int, len(cd.actions))
	for id, pos := range cd.actions {
		actions[id] = pos
	}
	return &CanDo[G, A]{
		grantees:      grantees,
		granteesArena: cd.granteesArena.Clone(cloneGranteeNode),
		actions:       actions,
		actionsArena:  cd.actionsArena.Clone(cloneActionNode),
	}
}

// GranteeCount returns the number of live grantee nodes.
func (cd *CanDo[G, A]) GranteeCount() int { return len(cd.grantees) }

// ActionCount returns the number of live action nodes.
func (cd *CanDo[G, A]) ActionCount() int { return len(cd.actions) }

func (cd *CanDo[G, A]) getGrantee(id G) int {
	if pos, ok := cd.grantees[id]; ok {
		return pos
	}
	pos := cd.granteesArena.Insert(granteeNode{})
	cd.grantees[id] = pos
	return pos
}

func (cd *CanDo[G, A]) getAction(id A) int {
	if pos, ok := cd.actions[id]; ok {
		return pos
	}
	pos := cd.actionsArena.Insert(actionNode{})
	cd.actions[id] = pos
	return pos
}

// RemoveGrantee removes a grantee and every edge that referenced it. This
// may orphan grantees or actions; see Compact.
func (cd *CanDo[G, A]) RemoveGrantee(id G) error {
	pos, ok := cd.grantees[id]
	if !ok {
		return ErrGranteeNotFound
	}
	delete(cd.grantees, id)

	removed := cd.granteesArena.Remove(pos)
	for _, parent := range removed.GranteeOf {
		n := cd.granteesArena.GetMut(parent)
		n.Grantees = dropAll(n.Grantees, pos)
	}
	for _, child := range removed.Grantees {
		n := cd.granteesArena.GetMut(child)
		n.GranteeOf = dropAll(n.GranteeOf, pos)
	}
	for _, action := range removed.Actions {
		n := cd.actionsArena.GetMut(action)
		n.Grantees = dropAll(n.Grantees, pos)
	}
	return nil
}

// RemoveAction removes an action and every edge that referenced it. This
// may orphan grantees; see Compact.
func (cd *CanDo[G, A]) RemoveAction(id A) error {
	pos, ok := cd.actions[id]
	if !ok {
		return ErrActionNotFound
	}
	delete(cd.actions, id)

	removed := cd.actionsArena.Remove(pos)
	for _, grantee := range removed.Grantees {
		n := cd.granteesArena.GetMut(grantee)
		n.Actions = dropAll(n.Actions, pos)
	}
	for _, sub := range removed.SubActionOf {
		n := cd.actionsArena.GetMut(sub)
		n.MainActionOf = dropAll(n.MainActionOf, pos)
	}
	for _, main := range removed.MainActionOf {
		n := cd.actionsArena.GetMut(main)
		n.SubActionOf = dropAll(n.SubActionOf, pos)
	}
	return nil
}

// AddGrant grants grantee the permission to perform action directly,
// auto-creating either node if it does not yet exist.
func (cd *CanDo[G, A]) AddGrant(grantee G, action A) {
	g := cd.getGrantee(grantee)
	a := cd.getAction(action)

	cd.actionsArena.GetMut(a).Grantees = append(cd.actionsArena.GetMut(a).Grantees, g)
	cd.granteesArena.GetMut(g).Actions = append(cd.granteesArena.GetMut(g).Actions, a)
}

// RemoveGrant revokes a direct grant. It is not an error if the grant was
// already absent, but both grantee and action must exist.
func (cd *CanDo[G, A]) RemoveGrant(grantee G, action A) error {
	g, ok := cd.grantees[grantee]
	if !ok {
		return ErrGranteeNotFound
	}
	a, ok := cd.actions[action]
	if !ok {
		return ErrActionNotFound
	}

	cd.granteesArena.GetMut(g).Actions = dropAll(cd.granteesArena.GetMut(g).Actions, a)
	cd.actionsArena.GetMut(a).Grantees = dropAll(cd.actionsArena.GetMut(a).Grantees, g)
	return nil
}

// ConnectGrantees records that grantee inherits every right of granteeOf,
// auto-creating either node if it does not yet exist. Self-edges are
// silently ignored.
func (cd *CanDo[G, A]) ConnectGrantees(grantee, granteeOf G) {
	g := cd.getGrantee(grantee)
	gOf := cd.getGrantee(granteeOf)
	if g == gOf {
		return
	}

	cd.granteesArena.GetMut(g).GranteeOf = append(cd.granteesArena.GetMut(g).GranteeOf, gOf)
	cd.granteesArena.GetMut(gOf).Grantees = append(cd.granteesArena.GetMut(gOf).Grantees, g)
}

// DisconnectGrantees removes the inheritance edge between grantee and
// granteeOf symmetrically from both endpoints. It is not an error if the
// edge was already absent, but both grantees must exist.
func (cd *CanDo[G, A]) DisconnectGrantees(grantee, granteeOf G) error {
	g, ok := cd.grantees[grantee]
	if !ok {
		return ErrGranteeNotFound
	}
	gOf, ok := cd.grantees[granteeOf]
	if !ok {
		return ErrGranteeNotFound
	}
	if g == gOf {
		return nil
	}

	cd.granteesArena.GetMut(g).GranteeOf = dropAll(cd.granteesArena.GetMut(g).GranteeOf, gOf)
	cd.granteesArena.GetMut(gOf).Grantees = dropAll(cd.granteesArena.GetMut(gOf).Grantees, g)
	return nil
}

// ConnectActions records that anyone granted main is also granted sub,
// auto-creating either node if it does not yet exist. Self-edges are
// silently ignored.
func (cd *CanDo[G, A]) ConnectActions(main, sub A) {
	mainIdx := cd.getAction(main)
	subIdx := cd.getAction(sub)
	if mainIdx == subIdx {
		return
	}

	cd.actionsArena.GetMut(subIdx).SubActionOf = append(cd.actionsArena.GetMut(subIdx).SubActionOf, mainIdx)
	cd.actionsArena.GetMut(mainIdx).MainActionOf = append(cd.actionsArena.GetMut(mainIdx).MainActionOf, subIdx)
}

// DisconnectActions removes the inheritance edge between main and sub
// symmetrically from both endpoints. It is not an error if the edge was
// already absent, but both actions must exist.
func (cd *CanDo[G, A]) DisconnectActions(main, sub A) error {
	mainIdx, ok := cd.actions[main]
	if !ok {
		return ErrActionNotFound
	}
	subIdx, ok := cd.actions[sub]
	if !ok {
		return ErrActionNotFound
	}
	if mainIdx == subIdx {
		return nil
	}

	cd.actionsArena.GetMut(subIdx).SubActionOf = dropAll(cd.actionsArena.GetMut(subIdx).SubActionOf, mainIdx)
	cd.actionsArena.GetMut(mainIdx).MainActionOf = dropAll(cd.actionsArena.GetMut(mainIdx).MainActionOf, subIdx)
	return nil
}

// AddRoot marks grantee as a root, protecting it from orphan removal during
// Compact. It auto-creates the grantee if it does not yet exist.
func (cd *CanDo[G, A]) AddRoot(grantee G) {
	g := cd.getGrantee(grantee)
	cd.granteesArena.GetMut(g).IsRoot = true
}

// RemoveRoot clears grantee's root flag, making it eligible for orphan
// removal again. It auto-creates the grantee if it does not yet exist.
func (cd *CanDo[G, A]) RemoveRoot(grantee G) {
	g := cd.getGrantee(grantee)
	cd.granteesArena.GetMut(g).IsRoot = false
}

// ascendActions walks SubActionOf edges upward from actionIdx, collecting
// every action whose permission implies actionIdx (including actionIdx
// itself). The visited bitmap makes the walk cycle-safe.
func (cd *CanDo[G, A]) ascendActions(actionIdx int) []int {
	visited := make([]bool, cd.actionsArena.Len())
	visited[actionIdx] = true

	frontier := [][]int{cd.actionsArena.Get(actionIdx).SubActionOf}
	for len(frontier) > 0 {
		var next [][]int
		for _, subActions := range frontier {
			for _, candidate := range subActions {
				if visited[candidate] {
					continue
				}
				visited[candidate] = true
				next = append(next, cd.actionsArena.Get(candidate).SubActionOf)
			}
		}
		frontier = next
	}

	equivalent := make([]int, 0, len(visited))
	for idx, ok := range visited {
		if ok {
			equivalent = append(equivalent, idx)
		}
	}
	return equivalent
}

// CanGranteeDo reports whether grantee can, directly or transitively,
// perform action. It fails if either id is unknown.
//
// The check runs a two-phase breadth-first search: first ascending action
// inheritance edges to collect every action equivalent to the requested
// one, then descending grantee inheritance edges from the grantees of those
// actions until grantee is found or the frontier empties. Both phases use a
// visited bitmap sized to the current node count, so cycles terminate the
// search rather than looping it.
func (cd *CanDo[G, A]) CanGranteeDo(grantee G, action A) (bool, error) {
	granteeIdx, ok := cd.grantees[grantee]
	if !ok {
		return false, ErrGranteeNotFound
	}
	actionIdx, ok := cd.actions[action]
	if !ok {
		return false, ErrActionNotFound
	}

	visited := make([]bool, cd.granteesArena.Len())

	var frontier [][]int
	for _, equivalentAction := range cd.ascendActions(actionIdx) {
		frontier = append(frontier, cd.actionsArena.Get(equivalentAction).Grantees)
	}

	for len(frontier) > 0 {
		var next [][]int
		for _, candidates := range frontier {
			for _, candidate := range candidates {
				if visited[candidate] {
					continue
				}
				if candidate == granteeIdx {
					return true, nil
				}
				visited[candidate] = true
				next = append(next, cd.granteesArena.Get(candidate).Grantees)
			}
		}
		frontier = next
	}

	return false, nil
}

// Compact removes every node that cannot contribute to a true
// CanGranteeDo answer, defragments both arenas, and returns the replay log
// needed to reconstruct the residual graph from empty.
//
// Orphan rules are applied to a fixpoint (re-scanning after each pass):
//   - an action is orphaned iff it has no direct grantees and is not a
//     super-action of anything;
//   - a grantee is orphaned iff it is not a root and either (it grants
//     nothing and has no children) or (it has no parents).
func (cd *CanDo[G, A]) Compact() []Replay[G, A] {
	for {
		var toRemove []A
		for id, pos := range cd.actions {
			node := cd.actionsArena.Get(pos)
			if len(node.Grantees) == 0 && len(node.MainActionOf) == 0 {
				toRemove = append(toRemove, id)
			}
		}
		if len(toRemove) == 0 {
			break
		}
		for _, id := range toRemove {
			if err := cd.RemoveAction(id); err != nil {
				panic("cando: compact: expected action to be removable: " + err.Error())
			}
		}
	}

	for {
		var toRemove []G
		for id, pos := range cd.grantees {
			node := cd.granteesArena.Get(pos)
			if node.IsRoot {
				continue
			}
			tailWithNothingToGrant := len(node.Actions) == 0 && len(node.Grantees) == 0
			headWithNoParent := len(node.GranteeOf) == 0
			if tailWithNothingToGrant || headWithNoParent {
				toRemove = append(toRemove, id)
			}
		}
		if len(toRemove) == 0 {
			break
		}
		for _, id := range toRemove {
			if err := cd.RemoveGrantee(id); err != nil {
				panic("cando: compact: expected grantee to be removable: " + err.Error())
			}
		}
	}

	granteeMoves := make(map[int]int, len(cd.grantees))
	for _, mv := range cd.granteesArena.Compact() {
		granteeMoves[mv.From] = mv.To
	}
	for id, pos := range cd.grantees {
		if newPos, moved := granteeMoves[pos]; moved {
			cd.grantees[id] = newPos
		}
	}

	actionMoves := make(map[int]int, len(cd.actions))
	for _, mv := range cd.actionsArena.Compact() {
		actionMoves[mv.From] = mv.To
	}
	for id, pos := range cd.actions {
		if newPos, moved := actionMoves[pos]; moved {
			cd.actions[id] = newPos
		}
	}

	reverseGrantees := make(map[int]G, len(cd.grantees))
	for id, pos := range cd.grantees {
		reverseGrantees[pos] = id
	}
	reverseActions := make(map[int]A, len(cd.actions))
	for id, pos := range cd.actions {
		reverseActions[pos] = id
	}

	var log []Replay[G, A]

	for id, pos := range cd.grantees {
		node := cd.granteesArena.Get(pos)
		if node.IsRoot {
			continue
		}
		for _, parentPos := range node.GranteeOf {
			log = append(log, NewConnectGranteesReplay[G, A](id, reverseGrantees[parentPos]))
		}
	}

	for id, pos := range cd.actions {
		node := cd.actionsArena.Get(pos)
		for _, subPos := range node.MainActionOf {
			log = append(log, NewConnectActionsReplay[G, A](id, reverseActions[subPos]))
		}
	}

	for id, pos := range cd.actions {
		node := cd.actionsArena.Get(pos)
		for _, granteePos := range node.Grantees {
			log = append(log, NewGrantReplay[G, A](reverseGrantees[granteePos], id))
		}
	}

	for id, pos := range cd.grantees {
		if cd.granteesArena.Get(pos).IsRoot {
			log = append(log, NewRootReplay[G, A](id))
		}
	}

	return log
}
