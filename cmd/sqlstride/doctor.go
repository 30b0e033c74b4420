package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm/sqlstride/internal/cli"
	"github.com/pthm/sqlstride/internal/doctor"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks",
	Long:  `Check the schema directory, the ledger and lock tables, and the state of the ledger.`,
	Example: `  # Run health checks
  sqlstride doctor --db postgres://localhost/mydb

  # Show the steps behind each finding
  sqlstride doctor --verbose`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDoctor(cmd.Context(), resolveString(flagSchemaDir, cfg.SchemaDir), verbose > 0)
	},
}

func runDoctor(ctx context.Context, schemaDir string, verboseFlag bool) error {
	db, d, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if !quiet {
		fmt.Println("sqlstride doctor - Health Check")
	}

	report, err := doctor.New(db, d, schemaDir, doctor.Options{
		Vars:           cfg.Vars,
		AdapterOptions: adapterOptions(),
	}).Run(ctx)
	if err != nil {
		return cli.GeneralError("running doctor", err)
	}

	report.Print(os.Stdout, verboseFlag)

	if report.HasErrors() {
		return cli.GeneralError("health checks failed", nil)
	}
	return nil
}
