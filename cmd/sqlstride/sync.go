package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm/sqlstride/internal/cli"
	"github.com/pthm/sqlstride/pkg/migrator"
)

var (
	syncDryRun          bool
	syncVerifyChecksums bool
	syncLockTTL         time.Duration
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Apply pending steps",
	Long: `Apply every step in the schema directory that is not yet in the ledger.

Steps run in category order (tables before views, and so on), each in its own
transaction. A step that fails is rolled back and reported; the steps before it
stay applied and the next sync resumes from the failed step.`,
	Example: `  # Apply pending steps
  sqlstride sync --db postgres://localhost/mydb

  # Preview the SQL that would run
  sqlstride sync --dry-run

  # Refuse to run if an applied step was edited
  sqlstride sync --verify-checksums

  # Render templates with extra variables
  sqlstride sync --vars env=prod,owner=app`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun := resolveBool(syncDryRun, cfg.Sync.DryRun)
		verify := resolveBool(syncVerifyChecksums, cfg.Sync.VerifyChecksums)

		ttl := syncLockTTL
		if ttl == 0 {
			var err error
			if ttl, err = cfg.ParsedLockTTL(); err != nil {
				return cli.ConfigError("lock configuration", err)
			}
		}

		schemaDir, err := resolveSchemaDir()
		if err != nil {
			return err
		}

		return runSync(cmd.Context(), schemaDir, migrator.Options{
			DryRun:          dryRun,
			VerifyChecksums: verify,
			Vars:            cfg.Vars,
			LockTTL:         ttl,
			Logger:          logger,
			Reporter:        newReporter(os.Stdout),
		})
	},
}

func init() {
	f := syncCmd.Flags()
	f.BoolVar(&syncDryRun, "dry-run", false, "print pending steps and their SQL without applying")
	f.BoolVar(&syncVerifyChecksums, "verify-checksums", false, "fail if an applied step changed since it was recorded")
	f.DurationVar(&syncLockTTL, "lock-ttl", 0, "lock lease renewed before each step (default from lock_ttl)")
}

func runSync(ctx context.Context, schemaDir string, opts migrator.Options) error {
	a, closeAll, err := openAdapter(ctx)
	if err != nil {
		return err
	}
	defer closeAll()

	e, err := migrator.New(a, os.DirFS(schemaDir), opts)
	if err != nil {
		return cli.Classify("sync", err)
	}

	if opts.DryRun && !quiet {
		fmt.Fprintln(os.Stderr, "-- Dry-run mode: SQL will be printed but not applied")
		fmt.Fprintln(os.Stderr)
	}

	if _, err := e.Sync(ctx); err != nil {
		return cli.Classify("sync failed", err)
	}
	return nil
}
