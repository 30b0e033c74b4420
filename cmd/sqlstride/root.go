package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pthm/sqlstride/internal/cli"
)

var (
	// Global state set during PersistentPreRunE
	cfg        *cli.Config
	configPath string
	logger     *slog.Logger

	// Persistent flags
	cfgFile       string
	verbose       int
	quiet         bool
	flagDB        string
	flagDialect   string
	flagSchemaDir string
	flagVars      string
)

var rootCmd = &cobra.Command{
	Use:   "sqlstride",
	Short: "Ordered, tracked SQL steps for any database",
	Long: `sqlstride - ordered, tracked SQL steps

sqlstride applies author-tagged SQL steps from a schema directory in a fixed
order, records each one in a ledger table and skips it on every later run.
A leased lock keeps concurrent runs apart.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(verbose, quiet)
		slog.SetDefault(logger)

		// Skip config loading for commands that do not need it
		switch cmd.Name() {
		case "help", "completion", "version", "init":
			return nil
		}

		var err error
		cfg, configPath, err = cli.LoadConfig(cfgFile)
		if err != nil {
			return cli.ConfigError("loading configuration", err)
		}

		vars, err := cli.ParseVars(flagVars)
		if err != nil {
			return cli.ConfigError("parsing --vars", err)
		}
		cfg.MergeVars(vars)

		logger.Debug("configuration loaded", "path", configPath, "vars", cfg.VarNames())
		return nil
	},
	SilenceUsage:  true, // Don't show usage on errors
	SilenceErrors: true, // We handle errors ourselves
}

// Command group IDs
const (
	groupSteps    = "steps"
	groupDatabase = "database"
	groupUtility  = "utility"
)

func init() {
	// Persistent flags (available to all commands)
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: auto-discover sqlstride.yaml)")
	pf.CountVarP(&verbose, "verbose", "v", "increase verbosity (can be repeated)")
	pf.BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	pf.StringVar(&flagDB, "db", "", "database URL (overrides database.*)")
	pf.StringVar(&flagDialect, "dialect", "", "database dialect: postgres, mssql, mariadb or sqlite")
	pf.StringVar(&flagSchemaDir, "schema-dir", "", "directory containing step files")
	pf.StringVar(&flagVars, "vars", "", "template variables as key=value,key2=value2")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupSteps, Title: "Steps:"},
		&cobra.Group{ID: groupDatabase, Title: "Database:"},
		&cobra.Group{ID: groupUtility, Title: "Utility:"},
	)

	// Step commands
	syncCmd.GroupID = groupSteps
	statusCmd.GroupID = groupSteps
	doctorCmd.GroupID = groupSteps
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(doctorCmd)

	// Database commands
	unlockCmd.GroupID = groupDatabase
	dumpCmd.GroupID = groupDatabase
	rootCmd.AddCommand(unlockCmd)
	rootCmd.AddCommand(dumpCmd)

	// Utility commands
	initCmd.GroupID = groupUtility
	configCmd.GroupID = groupUtility
	versionCmd.GroupID = groupUtility
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context; a running step is rolled back and the lock released.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		cli.ExitWithError(err)
	}
}

// newLogger returns a text logger on stderr. Warnings are shown by default,
// each -v lowers the threshold one level, --quiet shows errors only.
func newLogger(verbosity int, quiet bool) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case quiet:
		level = slog.LevelError
	case verbosity == 1:
		level = slog.LevelInfo
	case verbosity >= 2:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// resolveString returns the first non-empty string from the provided values.
// Used to implement precedence: flag > config > default.
func resolveString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// resolveBool returns true if any of the provided values is true.
// Used for boolean flags where any true value should win.
func resolveBool(values ...bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}
