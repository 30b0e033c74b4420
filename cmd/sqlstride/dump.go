package main

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/pthm/sqlstride/internal/cli"
	"github.com/pthm/sqlstride/pkg/adapter"
	"github.com/pthm/sqlstride/pkg/introspect"
)

var (
	dumpOut     string
	dumpAuthor  string
	dumpExclude []string
	dumpAll     bool
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Write existing database objects out as steps",
	Long: `Read the tables, views, routines, triggers and sequences of an existing
database and emit each one as a step, so an established database can be
brought under sqlstride.

Without --out the steps are printed. With --out one file per object is written
under category directories (tables/, views/, ...); existing files are never
overwritten. The ledger and lock tables are always left out.

Supported dialects: mariadb, sqlite.`,
	Example: `  # Print every object as a step
  sqlstride dump --dialect mariadb --db 'app:secret@tcp(localhost:3306)/app'

  # Seed a schema directory
  sqlstride dump --out schema --author alice`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDump(cmd.Context(), dumpOut, resolveString(dumpAuthor, currentUser()), dumpExclude)
	},
}

func init() {
	f := dumpCmd.Flags()
	f.StringVar(&dumpOut, "out", "", "write step files under this directory instead of printing")
	f.StringVar(&dumpAuthor, "author", "", "author recorded in the step markers (default: current user)")
	f.StringSliceVar(&dumpExclude, "exclude", nil, "object names to leave out")
	f.BoolVar(&dumpAll, "all-schemas", false, "mariadb: read every database on the server, not just the connected one")
}

func runDump(ctx context.Context, out, author string, exclude []string) error {
	db, d, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	in, err := introspect.For(d)
	if err != nil {
		return cli.ConfigError("dump", err)
	}
	if m, ok := in.(introspect.MariaDB); ok {
		m.AllSchemas = dumpAll
		in = m
	}

	objs, err := in.Discover(ctx, db)
	if err != nil {
		return cli.GeneralError("reading database objects", err)
	}
	exclude = append(exclude,
		resolveString(cfg.LedgerTable, adapter.DefaultLedgerTable),
		resolveString(cfg.LockTable, adapter.DefaultLockTable))
	objs = introspect.Exclude(objs, exclude...)
	logger.Info("objects discovered", "count", len(objs))

	if out == "" {
		if err := introspect.Print(os.Stdout, author, objs); err != nil {
			return cli.GeneralError("printing steps", err)
		}
		return nil
	}

	written, err := introspect.WriteSteps(out, author, objs)
	if err != nil {
		return cli.GeneralError("writing steps", err)
	}
	if !quiet {
		for _, p := range written {
			fmt.Printf("%s %s\n", statusLabel("wrote", appliedStyle), p)
		}
		fmt.Printf("%d step files written to %s\n", len(written), out)
	}
	return nil
}

var authorUnsafe = regexp.MustCompile(`[^\w.\-]+`)

// currentUser returns the login name made safe for a step marker, or
// "sqlstride" when it is unknown.
func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return authorUnsafe.ReplaceAllString(u.Username, "_")
	}
	return "sqlstride"
}
