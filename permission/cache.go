// Copyright 2026 The Cando Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package permission

import lru "github.com/hashicorp/golang-lru/v2"

// defaultCacheSize bounds the check cache when the caller does not override
// it via WithCacheSize.
const defaultCacheSize = 4096

// checkKey identifies a single (grantee, action) Check query.
type checkKey[GranteeId, ActionId comparable] struct {
	Grantee GranteeId
	Action  ActionId
}

// checkCache memoizes recent Check answers against the currently published
// graph generation. It is purged wholesale on every publish, so an entry
// never survives the mutation that could have invalidated it.
type checkCache[GranteeId, ActionId comparable] struct {
	lru *lru.Cache[checkKey[GranteeId, ActionId], bool]
}

func newCheckCache[G, A comparable](size int) *checkCache[G, A] {
	if size <= 0 {
		size = defaultCacheSize
	}
	c, err := lru.New[checkKey[G, A], bool](size)
	if err != nil {
		// Only returns an error for a non-positive size, which is excluded
		// above.
		panic("permission: check cache: " + err.Error())
	}
	return &checkCache[G, A]{lru: c}
}

func (c *checkCache[G, A]) get(grantee G, action A) (bool, bool) {
	return c.lru.Get(checkKey[G, A]{Grantee: grantee, Action: action})
}

func (c *checkCache[G, A]) put(grantee G, action A, result bool) {
	c.lru.Add(checkKey[G, A]{Grantee: grantee, Action: action}, result)
}

func (c *checkCache[G, A]) purge() {
	c.lru.Purge()
}
