// Copyright 2026 The Cando Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package cli wires the cando command's subcommands. Configuration is
// loaded with pflag and viper and bound into a plain Config struct; the
// core library packages never import either.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cando-sh/cando/permission"
	"github.com/cando-sh/cando/sink"
)

// Config holds the operator-facing settings every subcommand reads.
type Config struct {
	JournalPath string
	SinkKind    string
	CacheSize   int
}

var cfg Config

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cando",
		Short: "Operate a cando permission engine journal from the command line.",
		Long: "cando is an operator CLI over the permission engine's own API: it applies\n" +
			"batches of changes described in YAML, runs ad-hoc reachability checks, and\n" +
			"triggers graph compaction. It never implements authentication, routing, or\n" +
			"password handling; it is a thin client over the library's own API.",
		SilenceUsage:      true,
		PersistentPreRunE: bindConfig,
	}

	flags := root.PersistentFlags()
	// Accept underscores in flag names as dashes, so --cache_size is read
	// as --cache-size.
	flags.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	flags.String("journal", "cando.journal", "path to the journal (file path or Badger directory)")
	flags.String("sink", "file", "journal backend: file, badger, or mem")
	flags.Int("cache-size", 4096, "check-result cache capacity")
	if err := viper.BindPFlags(flags); err != nil {
		panic("cando: bind flags: " + err.Error())
	}
	viper.SetEnvPrefix("cando")
	viper.AutomaticEnv()

	root.AddCommand(newApplyCmd(), newCheckCmd(), newCompactCmd())
	return root
}

func bindConfig(*cobra.Command, []string) error {
	cfg = Config{
		JournalPath: viper.GetString("journal"),
		SinkKind:    viper.GetString("sink"),
		CacheSize:   viper.GetInt("cache-size"),
	}
	return nil
}

// openEngine opens the configured sink and builds a Permission over it. The
// returned close func releases the sink's resources (a no-op for the
// in-memory backend) and must be called once the caller is done.
func openEngine() (*permission.Permission[string, string], func() error, error) {
	switch cfg.SinkKind {
	case "file":
		s, err := sink.OpenFileSink[string, string](cfg.JournalPath)
		if err != nil {
			return nil, nil, err
		}
		p, err := permission.New[string, string](s, permission.WithCacheSize(cfg.CacheSize))
		if err != nil {
			s.Close()
			return nil, nil, err
		}
		return p, s.Close, nil

	case "badger":
		s, err := sink.OpenBadgerSink[string, string](cfg.JournalPath)
		if err != nil {
			return nil, nil, err
		}
		p, err := permission.New[string, string](s, permission.WithCacheSize(cfg.CacheSize))
		if err != nil {
			s.Close()
			return nil, nil, err
		}
		return p, s.Close, nil

	case "mem":
		s := sink.NewMemSink[string, string]()
		p, err := permission.New[string, string](s, permission.WithCacheSize(cfg.CacheSize))
		if err != nil {
			return nil, nil, err
		}
		return p, func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("cando: unknown sink kind %q (want file, badger, or mem)", cfg.SinkKind)
	}
}
