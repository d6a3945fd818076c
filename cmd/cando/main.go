// Copyright 2026 The Cando Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Command cando is a small operator CLI over the permission engine: it
// applies batches of changes described in YAML, runs ad-hoc reachability
// checks, and triggers graph compaction against a journal file or Badger
// store. It is a client of the library's own API, not a server.
package main

import (
	"fmt"
	"os"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/cando-sh/cando/cmd/cando/internal/cli"
)

func main() {
	if _, err := maxprocs.Set(maxprocs.Logger(func(string, ...any) {})); err != nil {
		fmt.Fprintf(os.Stderr, "cando: GOMAXPROCS left at runtime default: %v\n", err)
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
