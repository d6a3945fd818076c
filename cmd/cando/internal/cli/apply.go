// Copyright 2026 The Cando Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cli

import "github.com/spf13/cobra"

func newApplyCmd() *cobra.Command {
	var batchPath string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a batch of changes described in a YAML file to the journal.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			batch, err := loadBatch(batchPath)
			if err != nil {
				return err
			}

			p, closeEngine, err := openEngine()
			if err != nil {
				return err
			}
			defer closeEngine()

			if err := p.Change(cmd.Context(), batch); err != nil {
				return err
			}
			cmd.Printf("applied %d changes\n", len(batch))
			return nil
		},
	}

	cmd.Flags().StringVar(&batchPath, "file", "", "path to the YAML batch file")
	if err := cmd.MarkFlagRequired("file"); err != nil {
		panic("cando: apply: " + err.Error())
	}
	return cmd
}
