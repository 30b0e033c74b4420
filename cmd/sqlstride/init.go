package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/pthm/sqlstride/internal/cli"
	"github.com/pthm/sqlstride/internal/scaffold"
	"github.com/pthm/sqlstride/pkg/dialect"
)

var (
	initNoInput bool
	initForce   bool
	initAuthor  string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create sqlstride.yaml and a schema directory",
	Long: `Create sqlstride.yaml in the current directory and a schema directory with
one subdirectory per category (tables/, views/, grants/, ...).

Prompts for the dialect and connection when run in a terminal. Use --no-input
to take everything from flags.`,
	Example: `  # Interactive setup
  sqlstride init

  # Non-interactive
  sqlstride init --no-input --dialect mariadb --schema-dir db --author alice`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := scaffold.Options{
			Dialect:     resolveString(flagDialect, "postgres"),
			SchemaDir:   resolveString(flagSchemaDir, "schema"),
			DatabaseURL: flagDB,
			Author:      initAuthor,
			Force:       initForce,
		}

		if !initNoInput && isTerminal(os.Stdin) {
			if err := promptInit(cmd.Context(), &opts); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return nil
				}
				return cli.GeneralError("prompting", err)
			}
		}

		return runInit(opts)
	},
}

func init() {
	f := initCmd.Flags()
	f.BoolVar(&initNoInput, "no-input", false, "do not prompt; use flags and defaults")
	f.BoolVar(&initForce, "force", false, "overwrite an existing sqlstride.yaml")
	f.StringVar(&initAuthor, "author", "", "write an example step by this author")
}

func promptInit(ctx context.Context, opts *scaffold.Options) error {
	d, err := dialect.Lookup(opts.Dialect)
	if err == nil {
		opts.Dialect = d.Name()
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Database dialect").
				Options(huh.NewOptions(dialect.Names()...)...).
				Value(&opts.Dialect),
			huh.NewInput().
				Title("Schema directory").
				Value(&opts.SchemaDir).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Database URL").
				Description("Leave empty to fill in host, name and user in sqlstride.yaml.").
				Value(&opts.DatabaseURL),
			huh.NewInput().
				Title("Author for an example step").
				Description("Leave empty to skip the example.").
				Value(&opts.Author),
		),
	).RunWithContext(ctx)
}

func runInit(opts scaffold.Options) error {
	res, err := scaffold.Run(opts)
	if err != nil {
		if errors.Is(err, dialect.ErrUnknownDialect) || errors.Is(err, scaffold.ErrExists) {
			return cli.ConfigError("init", err)
		}
		return cli.GeneralError("init", err)
	}

	if !quiet {
		for _, p := range res.Created {
			fmt.Printf("%s %s\n", statusLabel("created", appliedStyle), p)
		}
		fmt.Printf("\nNext: add steps under %s and run 'sqlstride sync'.\n", res.SchemaDir)
	}
	return nil
}

// isTerminal reports whether f is an interactive character device.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}
