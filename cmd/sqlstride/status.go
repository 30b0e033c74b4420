package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm/sqlstride/internal/cli"
	"github.com/pthm/sqlstride/pkg/migrator"
)

var statusVerifyChecksums bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending steps",
	Long:  `Show how many steps are applied, which are pending, and who holds the lock.`,
	Example: `  # Check status
  sqlstride status --db postgres://localhost/mydb

  # Also check applied steps for drift
  sqlstride status --verify-checksums`,
	RunE: func(cmd *cobra.Command, args []string) error {
		schemaDir, err := resolveSchemaDir()
		if err != nil {
			return err
		}
		verify := resolveBool(statusVerifyChecksums, cfg.Sync.VerifyChecksums)
		return runStatus(cmd.Context(), os.Stdout, schemaDir, verify)
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusVerifyChecksums, "verify-checksums", false, "report applied steps whose SQL changed")
}

func runStatus(ctx context.Context, w io.Writer, schemaDir string, verify bool) error {
	a, closeAll, err := openAdapter(ctx)
	if err != nil {
		return err
	}
	defer closeAll()

	e, err := migrator.New(a, os.DirFS(schemaDir), migrator.Options{Vars: cfg.Vars, Logger: logger})
	if err != nil {
		return cli.Classify("status", err)
	}
	s, err := e.Status(ctx, verify)
	if err != nil {
		return cli.Classify("getting status", err)
	}

	printStatus(w, schemaDir, a.LedgerTable(), s)
	return nil
}

func printStatus(w io.Writer, schemaDir, ledger string, s *migrator.Status) {
	_, _ = fmt.Fprintf(w, "Schema dir:  %s\n", schemaDir)
	_, _ = fmt.Fprintf(w, "Ledger:      %s (%d applied)\n", ledger, len(s.Applied))

	switch {
	case s.Lock == nil:
		_, _ = fmt.Fprintln(w, "Lock:        free")
	case s.Locked:
		_, _ = fmt.Fprintf(w, "Lock:        held by %s until %s\n", s.Lock.Owner, s.Lock.ExpiresAt.UTC().Format(time.RFC3339))
	default:
		_, _ = fmt.Fprintf(w, "Lock:        stale (left by %s, expired %s)\n", s.Lock.Owner, s.Lock.ExpiresAt.UTC().Format(time.RFC3339))
	}

	if len(s.Pending) == 0 {
		_, _ = fmt.Fprintln(w, "\nUp to date.")
	} else {
		_, _ = fmt.Fprintf(w, "\n%d pending:\n", len(s.Pending))
		for _, p := range s.Pending {
			_, _ = fmt.Fprintf(w, "  %s %s\n", statusLabel("pending", pendingStyle), p.Step)
		}
	}

	if len(s.Drift) > 0 {
		_, _ = fmt.Fprintf(w, "\n%d changed since applied:\n", len(s.Drift))
		for _, k := range s.Drift {
			_, _ = fmt.Fprintf(w, "  %s %s\n", statusLabel("drift", errorStyle), k)
		}
	}

	if len(s.Orphans) > 0 {
		_, _ = fmt.Fprintf(w, "\n%d in ledger but not in %s:\n", len(s.Orphans), schemaDir)
		for _, o := range s.Orphans {
			_, _ = fmt.Fprintf(w, "  %s %s\n", statusLabel("orphan", skipStyle), o.Key())
		}
	}
}
