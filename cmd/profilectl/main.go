package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/symbiobot/internal/config"
	"github.com/dmitrijs2005/symbiobot/internal/migrate"
	"github.com/dmitrijs2005/symbiobot/internal/repositories/records"
	"github.com/spf13/cobra"
)

// openRepo is a test seam for records.Open.
var openRepo = records.Open

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	defaults := &config.Config{}
	defaults.LoadDefaults()
	opts := defaults.StorageOptions()
	var backend string

	root := &cobra.Command{
		Use:           "profilectl",
		Short:         "Inspect and migrate stored profile records",
		SilenceUsage:  true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&backend, "storage", string(opts.Backend), "Storage backend: sqlite, postgres, redis or json")
	pf.StringVar(&opts.DSN, "dsn", opts.DSN, "SQLite file or PostgreSQL connection string")
	pf.StringVar(&opts.JSONPath, "json", opts.JSONPath, "Document used by the json backend")
	pf.StringVar(&opts.RedisAddr, "redis-addr", opts.RedisAddr, "Redis address")
	pf.StringVar(&opts.RedisPassword, "redis-password", "", "Redis password")
	pf.IntVar(&opts.RedisDB, "redis-db", opts.RedisDB, "Redis database")
	pf.StringVar(&opts.RedisPrefix, "redis-prefix", opts.RedisPrefix, "Redis key prefix")

	// run opens the configured backend for the duration of fn.
	run := func(cmd *cobra.Command, fn func(ctx context.Context, repo records.Repository) error) error {
		opts.Backend = records.Backend(backend)
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		repo, closeRepo, err := openRepo(ctx, opts)
		if err != nil {
			return err
		}
		defer closeRepo()
		return fn(ctx, repo)
	}

	apply := func(cmd *cobra.Command, op migrate.Op, report func(n int) string) error {
		return run(cmd, func(ctx context.Context, repo records.Repository) error {
			n, err := migrate.Apply(ctx, repo, op)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, report(n))
			return nil
		})
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "add-key <key> <value>",
			Short: "Set a key on every profile; the value is parsed as JSON when possible",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return apply(cmd, migrate.AddKey(args[0], migrate.ParseValue(args[1])),
					func(n int) string {
						return fmt.Sprintf("Key %q added to %d profiles.", args[0], n)
					})
			},
		},
		&cobra.Command{
			Use:   "edit-key <key> <value>",
			Short: "Change a key on the profiles that have it",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return apply(cmd, migrate.EditKey(args[0], migrate.ParseValue(args[1])),
					func(n int) string {
						return fmt.Sprintf("Key %q updated in %d profiles.", args[0], n)
					})
			},
		},
		&cobra.Command{
			Use:   "rename-key <old> <new>",
			Short: "Rename a key on the profiles that have it",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return apply(cmd, migrate.RenameKey(args[0], args[1]),
					func(n int) string {
						return fmt.Sprintf("Key %q renamed to %q in %d profiles.", args[0], args[1], n)
					})
			},
		},
		&cobra.Command{
			Use:   "delete-key <key>",
			Short: "Remove a key from every profile",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return apply(cmd, migrate.DeleteKey(args[0]),
					func(n int) string {
						return fmt.Sprintf("Key %q deleted from %d profiles.", args[0], n)
					})
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print every profile record",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd, func(ctx context.Context, repo records.Repository) error {
					return migrate.Show(ctx, repo, out)
				})
			},
		},
	)
	return root
}
