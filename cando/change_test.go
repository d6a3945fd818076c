// Copyright 2026 The Cando Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cando

import "testing"

func TestAbsorbToleratesMissingRemovalsAndDisconnects(t *testing.T) {
	cd := New[grantee, action]()

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("Absorb panicked on a tolerated operation: %v", r)
		}
	}()

	cd.Absorb(RemoveGranteeChange[grantee, action](user(1)))
	cd.Absorb(RemoveActionChange[grantee, action](read(1)))
	cd.Absorb(DisconnectGranteesChange[grantee, action](user(1), user(2)))
	cd.Absorb(DisconnectActionsChange[grantee, action](read(1), read(2)))
}

func TestAbsorbPanicsOnRemoveGrantForUnknownEdge(t *testing.T) {
	cd := New[grantee, action]()

	defer func() {
		if recover() == nil {
			t.Fatal("Absorb(RemoveGrant) for an unknown grantee/action did not panic")
		}
	}()

	cd.Absorb(RemoveGrantChange[grantee, action](user(1), read(1)))
}
