// Package doctor provides health checks for a sqlstride schema directory and
// its target database.
//
// The doctor command validates that the schema directory parses and renders,
// that the ledger and lock tables are usable, and reports stale locks,
// drifted steps, orphaned ledger rows and pending work.
//
// Example usage:
//
//	d := doctor.New(db, dialect.Postgres{}, "schema", doctor.Options{})
//	report, err := d.Run(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report.Print(os.Stdout, true) // verbose=true
package doctor

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pthm/sqlstride/pkg/adapter"
	"github.com/pthm/sqlstride/pkg/dialect"
	"github.com/pthm/sqlstride/pkg/migrator"
	"github.com/pthm/sqlstride/pkg/parser"
)

// Status represents the result of a health check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical issue that will cause failures.
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns a status indicator symbol for terminal output.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return "✓"
	case StatusWarn:
		return "⚠"
	case StatusFail:
		return "✗"
	default:
		return "?"
	}
}

// CheckResult represents the outcome of a single health check.
type CheckResult struct {
	// Category groups related checks (e.g., "Schema Directory", "Lock").
	Category string

	// Name is a short identifier for the check.
	Name string

	// Status is the check outcome.
	Status Status

	// Message is a human-readable description of the result.
	Message string

	// Details provides additional information for verbose output.
	Details string

	// FixHint suggests how to resolve issues.
	FixHint string
}

// Report contains all health check results.
type Report struct {
	Checks []CheckResult

	// Summary counts.
	Passed   int
	Warnings int
	Errors   int
}

// AddCheck adds a check result and updates summary counts.
func (r *Report) AddCheck(check CheckResult) {
	r.Checks = append(r.Checks, check)
	switch check.Status {
	case StatusPass:
		r.Passed++
	case StatusWarn:
		r.Warnings++
	case StatusFail:
		r.Errors++
	}
}

// Print writes the report to the given writer.
func (r *Report) Print(w io.Writer, verbose bool) {
	// Group checks by category
	categories := make(map[string][]CheckResult)
	var categoryOrder []string
	for _, check := range r.Checks {
		if _, exists := categories[check.Category]; !exists {
			categoryOrder = append(categoryOrder, check.Category)
		}
		categories[check.Category] = append(categories[check.Category], check)
	}

	for _, cat := range categoryOrder {
		_, _ = fmt.Fprintf(w, "\n%s\n", cat)
		for _, check := range categories[cat] {
			_, _ = fmt.Fprintf(w, "  %s %s\n", check.Status.Symbol(), check.Message)
			if verbose && check.Details != "" {
				for _, line := range strings.Split(check.Details, "\n") {
					_, _ = fmt.Fprintf(w, "      %s\n", line)
				}
			}
			if check.Status != StatusPass && check.FixHint != "" {
				_, _ = fmt.Fprintf(w, "      Fix: %s\n", check.FixHint)
			}
		}
	}

	_, _ = fmt.Fprintf(w, "\nSummary: %d passed, %d warnings, %d errors\n",
		r.Passed, r.Warnings, r.Errors)
}

// HasErrors returns true if any check failed.
func (r *Report) HasErrors() bool {
	return r.Errors > 0
}

// Options configures the checks.
type Options struct {
	// Vars are the template variables used to render steps.
	Vars map[string]any

	// Adapter options, such as custom ledger and lock table names.
	AdapterOptions []adapter.Option

	// Now returns the current time. Nil means time.Now.
	Now func() time.Time
}

// Doctor performs health checks on a schema directory and its database.
type Doctor struct {
	db        *sql.DB
	dialect   dialect.Dialect
	schemaDir string
	opts      Options
}

// New creates a new Doctor instance.
func New(db *sql.DB, d dialect.Dialect, schemaDir string, opts Options) *Doctor {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Doctor{
		db:        db,
		dialect:   d,
		schemaDir: schemaDir,
		opts:      opts,
	}
}

// Run executes all health checks and returns a report. Checks that depend
// on an earlier failed check are skipped.
func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	if !d.checkSchemaDir(report) {
		return report, nil
	}

	a, ok := d.checkTables(ctx, report)
	if !ok {
		return report, nil
	}
	defer func() { _ = a.Close() }()

	if err := d.checkLock(ctx, a, report); err != nil {
		return nil, fmt.Errorf("checking lock: %w", err)
	}
	if err := d.checkLedger(ctx, a, report); err != nil {
		return nil, fmt.Errorf("checking ledger: %w", err)
	}

	return report, nil
}

// checkSchemaDir validates the schema directory exists and parses.
func (d *Doctor) checkSchemaDir(report *Report) bool {
	const category = "Schema Directory"

	info, err := os.Stat(d.schemaDir)
	if err != nil || !info.IsDir() {
		report.AddCheck(CheckResult{
			Category: category,
			Name:     "exists",
			Status:   StatusFail,
			Message:  fmt.Sprintf("Schema directory not found at %s", d.schemaDir),
			FixHint:  "Run 'sqlstride init' or set schema_dir in sqlstride.yaml",
		})
		return false
	}

	report.AddCheck(CheckResult{
		Category: category,
		Name:     "exists",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Schema directory exists at %s", d.schemaDir),
	})

	steps, err := parser.ParseDir(d.schemaDir)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: category,
			Name:     "parse",
			Status:   StatusFail,
			Message:  "Schema directory has errors",
			Details:  err.Error(),
			FixHint:  "Give every step in a file a distinct author:id",
		})
		return false
	}

	if len(steps) == 0 {
		report.AddCheck(CheckResult{
			Category: category,
			Name:     "parse",
			Status:   StatusWarn,
			Message:  "No steps found",
			FixHint:  "Add a file such as tables/001_users.sql starting with '-- step you:create_users'",
		})
		return true
	}

	files := make(map[string]struct{})
	for _, s := range steps {
		files[s.Filename] = struct{}{}
	}
	report.AddCheck(CheckResult{
		Category: category,
		Name:     "parse",
		Status:   StatusPass,
		Message:  fmt.Sprintf("%d steps in %d files", len(steps), len(files)),
	})
	return true
}

// checkTables opens the adapter, which creates the ledger and lock tables
// when they are missing.
func (d *Doctor) checkTables(ctx context.Context, report *Report) (*adapter.Adapter, bool) {
	const category = "Tracking Tables"

	a, err := migrator.Open(ctx, d.db, d.dialect, d.opts.AdapterOptions...)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: category,
			Name:     "ready",
			Status:   StatusFail,
			Message:  "Ledger and lock tables are not usable",
			Details:  err.Error(),
			FixHint:  "Check the database connection and that the user may create tables",
		})
		return nil, false
	}

	report.AddCheck(CheckResult{
		Category: category,
		Name:     "ready",
		Status:   StatusPass,
		Message:  fmt.Sprintf("%s and %s are ready", a.LedgerTable(), a.LockTable()),
	})
	return a, true
}

// checkLock reports a held or stale lock.
func (d *Doctor) checkLock(ctx context.Context, a *adapter.Adapter, report *Report) error {
	const category = "Lock"

	info, err := a.LockInfo(ctx)
	if err != nil {
		return err
	}

	switch {
	case info == nil:
		report.AddCheck(CheckResult{
			Category: category,
			Name:     "free",
			Status:   StatusPass,
			Message:  "No lock held",
		})
	case info.Expired(d.opts.Now()):
		report.AddCheck(CheckResult{
			Category: category,
			Name:     "stale",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("Stale lock left by %s", info.Owner),
			Details:  fmt.Sprintf("locked at %s, expired at %s", formatTime(info.LockedAt), formatTime(info.ExpiresAt)),
			FixHint:  "The next sync clears it automatically, or run 'sqlstride unlock'",
		})
	default:
		report.AddCheck(CheckResult{
			Category: category,
			Name:     "held",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("Lock held by %s until %s", info.Owner, formatTime(info.ExpiresAt)),
			FixHint:  "Wait for the running sync to finish, or run 'sqlstride unlock --force' if it crashed",
		})
	}
	return nil
}

// checkLedger compares the ledger with the schema directory.
func (d *Doctor) checkLedger(ctx context.Context, a *adapter.Adapter, report *Report) error {
	const category = "Ledger"

	e, err := migrator.New(a, os.DirFS(d.schemaDir), migrator.Options{
		Vars:   d.opts.Vars,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		return err
	}

	status, err := e.Status(ctx, true)
	if err != nil {
		report.AddCheck(CheckResult{
			Category: category,
			Name:     "render",
			Status:   StatusFail,
			Message:  "Steps could not be rendered",
			Details:  err.Error(),
			FixHint:  "Define the missing template variables in sqlstride.yaml or pass --vars",
		})
		return nil
	}

	if len(status.Drift) > 0 {
		report.AddCheck(CheckResult{
			Category: category,
			Name:     "drift",
			Status:   StatusFail,
			Message:  fmt.Sprintf("%d applied steps changed since they were recorded", len(status.Drift)),
			Details:  joinKeys(status.Drift),
			FixHint:  "Restore the original SQL and put the change in a new step",
		})
	} else {
		report.AddCheck(CheckResult{
			Category: category,
			Name:     "drift",
			Status:   StatusPass,
			Message:  fmt.Sprintf("%d applied steps match their checksums", len(status.Applied)),
		})
	}

	if len(status.Orphans) > 0 {
		keys := make([]parser.Key, len(status.Orphans))
		for i, o := range status.Orphans {
			keys[i] = o.Key()
		}
		report.AddCheck(CheckResult{
			Category: category,
			Name:     "orphans",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("%d ledger rows have no matching step", len(status.Orphans)),
			Details:  joinKeys(keys),
			FixHint:  "A step file was renamed or removed after it was applied",
		})
	}

	if n := len(status.Pending); n > 0 {
		keys := make([]parser.Key, n)
		for i, s := range status.Pending {
			keys[i] = s.Key()
		}
		report.AddCheck(CheckResult{
			Category: category,
			Name:     "pending",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("%d steps pending", n),
			Details:  joinKeys(keys),
			FixHint:  "Run 'sqlstride sync'",
		})
	} else {
		report.AddCheck(CheckResult{
			Category: category,
			Name:     "pending",
			Status:   StatusPass,
			Message:  "Database is up to date",
		})
	}
	return nil
}

func joinKeys(keys []parser.Key) string {
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k.String()
	}
	return strings.Join(lines, "\n")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
