// Copyright 2026 The Cando Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cando

import "slices"

// granteeNode is the arena-backed representation of a grantee.
//
// GranteeOf holds positions of grantees this one inherits rights from;
// Grantees is the inverse (positions of grantees that inherit from this
// one). Actions holds positions of directly granted actions. IsRoot is
// sticky across compaction and protects the node from orphan removal.
type granteeNode struct {
	GranteeOf []int
	Grantees  []int
	Actions   []int
	IsRoot    bool
}

// actionNode is the arena-backed representation of an action.
//
// Grantees holds positions granted this action directly. MainActionOf holds
// positions of actions for which this one is a super-action; SubActionOf is
// the inverse.
type actionNode struct {
	Grantees     []int
	MainActionOf []int
	SubActionOf  []int
}

// dropAll removes every occurrence of v from s, tolerating a v that is
// already absent (no-op rather than an error).
func dropAll(s []int, v int) []int {
	out := s[:0]
	for _, el := range s {
		if el != v {
			out = append(out, el)
		}
	}
	return out
}

func contains(s []int, v int) bool {
	for _, el := range s {
		if el == v {
			return true
		}
	}
	return false
}

// cloneGranteeNode returns a copy of n whose slices share no backing array
// with n's, for use by Arena.Clone.
func cloneGranteeNode(n granteeNode) granteeNode {
	return granteeNode{
		GranteeOf: slices.Clone(n.GranteeOf),
		Grantees:  slices.Clone(n.Grantees),
		Actions:   slices.Clone(n.Actions),
		IsRoot:    n.IsRoot,
	}
}

// cloneActionNode returns a copy of n whose slices share no backing array
// with n's, for use by Arena.Clone.
func cloneActionNode(n actionNode) actionNode {
	return actionNode{
		Grantees:     slices.Clone(n.Grantees),
		MainActionOf: slices.Clone(n.MainActionOf),
		SubActionOf:  slices.Clone(n.SubActionOf),
	}
}
