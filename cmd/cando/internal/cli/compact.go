// Copyright 2026 The Cando Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cli

import "github.com/spf13/cobra"

func newCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Remove orphaned grantees and actions and shrink the journal.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, closeEngine, err := openEngine()
			if err != nil {
				return err
			}
			defer closeEngine()

			if err := p.Compact(cmd.Context()); err != nil {
				return err
			}
			cmd.Println("compaction complete")
			return nil
		},
	}
}
