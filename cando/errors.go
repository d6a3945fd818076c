// Copyright 2026 The Cando Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cando

import "errors"

// ErrGranteeNotFound is returned by strict-mode operations that reference a
// grantee id with no corresponding live node.
var ErrGranteeNotFound = errors.New("cando: grantee not found")

// ErrActionNotFound is returned by strict-mode operations that reference an
// action id with no corresponding live node.
var ErrActionNotFound = errors.New("cando: action not found")
