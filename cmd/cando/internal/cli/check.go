// Copyright 2026 The Cando Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cli

import "github.com/spf13/cobra"

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <grantee> <action>",
		Short: "Ask whether a grantee can perform an action.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, closeEngine, err := openEngine()
			if err != nil {
				return err
			}
			defer closeEngine()

			ok, err := p.Check(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			cmd.Println(ok)
			return nil
		},
	}
}
