package doctor

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/sqlstride/internal/testutil"
	"github.com/pthm/sqlstride/pkg/adapter"
	"github.com/pthm/sqlstride/pkg/dialect"
	"github.com/pthm/sqlstride/pkg/migrator"
)

func writeSchema(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func find(t *testing.T, r *Report, name string) CheckResult {
	t.Helper()
	for _, c := range r.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %q not in report", name)
	return CheckResult{}
}

func run(t *testing.T, db *sql.DB, dir string, opts Options) *Report {
	t.Helper()
	report, err := New(db, dialect.SQLite{}, dir, opts).Run(context.Background())
	require.NoError(t, err)
	return report
}

func TestRun_MissingSchemaDir(t *testing.T) {
	db := testutil.SQLite(t)

	report := run(t, db, filepath.Join(t.TempDir(), "nope"), Options{})
	require.Len(t, report.Checks, 1)
	assert.Equal(t, StatusFail, report.Checks[0].Status)
	assert.True(t, report.HasErrors())
}

func TestRun_DuplicateStep(t *testing.T) {
	db := testutil.SQLite(t)
	dir := writeSchema(t, map[string]string{
		"tables/a.sql": "-- step a:1\nSELECT 1;\n-- step a:1\nSELECT 2;",
	})

	report := run(t, db, dir, Options{})
	check := find(t, report, "parse")
	assert.Equal(t, StatusFail, check.Status)
	assert.Contains(t, check.Details, "duplicate step")
}

func TestRun_PendingThenHealthy(t *testing.T) {
	db := testutil.SQLite(t)
	dir := writeSchema(t, map[string]string{
		"tables/001_users.sql": "-- step alice:1\nCREATE TABLE users (id INT);",
		"views/001_v.sql":      "-- step bob:1\nCREATE VIEW v AS SELECT * FROM users;",
	})

	report := run(t, db, dir, Options{})
	assert.False(t, report.HasErrors())
	assert.Equal(t, StatusPass, find(t, report, "ready").Status)
	assert.Equal(t, StatusPass, find(t, report, "free").Status)
	pending := find(t, report, "pending")
	assert.Equal(t, StatusWarn, pending.Status)
	assert.Equal(t, "2 steps pending", pending.Message)

	_, err := migrator.Sync(context.Background(), db, dialect.SQLite{}, dir, migrator.Options{})
	require.NoError(t, err)

	report = run(t, db, dir, Options{})
	assert.Equal(t, 0, report.Warnings)
	assert.Equal(t, 0, report.Errors)
	assert.Equal(t, "Database is up to date", find(t, report, "pending").Message)
}

func TestRun_DriftAndOrphans(t *testing.T) {
	db := testutil.SQLite(t)
	dir := writeSchema(t, map[string]string{
		"tables/001_users.sql": "-- step alice:1\nCREATE TABLE users (id INT);",
		"tables/002_old.sql":   "-- step alice:2\nCREATE TABLE old (id INT);",
	})
	_, err := migrator.Sync(context.Background(), db, dialect.SQLite{}, dir, migrator.Options{})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tables", "001_users.sql"),
		[]byte("-- step alice:1\nCREATE TABLE users (id BIGINT);"), 0o644))
	require.NoError(t, os.Remove(filepath.Join(dir, "tables", "002_old.sql")))

	report := run(t, db, dir, Options{})
	assert.True(t, report.HasErrors())

	drift := find(t, report, "drift")
	assert.Equal(t, StatusFail, drift.Status)
	assert.Contains(t, drift.Details, "alice:1 (tables/001_users.sql)")

	orphans := find(t, report, "orphans")
	assert.Equal(t, StatusWarn, orphans.Status)
	assert.Contains(t, orphans.Details, "alice:2 (tables/002_old.sql)")
}

func TestRun_MissingVariable(t *testing.T) {
	db := testutil.SQLite(t)
	dir := writeSchema(t, map[string]string{
		"tables/001_users.sql": "-- step alice:1\nCREATE TABLE {{ .prefix }}users (id INT);",
	})

	report := run(t, db, dir, Options{})
	assert.Equal(t, StatusFail, find(t, report, "render").Status)

	report = run(t, db, dir, Options{Vars: map[string]any{"prefix": "app_"}})
	assert.False(t, report.HasErrors())
}

func TestRun_Lock(t *testing.T) {
	db := testutil.SQLite(t)
	dir := writeSchema(t, map[string]string{
		"tables/001_users.sql": "-- step alice:1\nCREATE TABLE users (id INT);",
	})

	past := time.Now().Add(-time.Hour)
	a, err := adapter.Open(context.Background(), db, dialect.SQLite{}, adapter.WithClock(func() time.Time { return past }))
	require.NoError(t, err)
	defer func() { _ = a.Close() }()
	require.NoError(t, a.Lock(context.Background(), "crashed-run", time.Minute))

	report := run(t, db, dir, Options{})
	stale := find(t, report, "stale")
	assert.Equal(t, StatusWarn, stale.Status)
	assert.Contains(t, stale.Message, "crashed-run")

	report = run(t, db, dir, Options{Now: func() time.Time { return past }})
	held := find(t, report, "held")
	assert.Contains(t, held.Message, "crashed-run")
}

func TestReport_Print(t *testing.T) {
	r := &Report{}
	r.AddCheck(CheckResult{Category: "Lock", Name: "free", Status: StatusPass, Message: "No lock held"})
	r.AddCheck(CheckResult{
		Category: "Ledger",
		Name:     "pending",
		Status:   StatusWarn,
		Message:  "1 steps pending",
		Details:  "alice:1 (tables/a.sql)",
		FixHint:  "Run 'sqlstride sync'",
	})

	var quiet bytes.Buffer
	r.Print(&quiet, false)
	assert.Contains(t, quiet.String(), "✓ No lock held")
	assert.Contains(t, quiet.String(), "Fix: Run 'sqlstride sync'")
	assert.NotContains(t, quiet.String(), "alice:1")
	assert.Contains(t, quiet.String(), "Summary: 1 passed, 1 warnings, 0 errors")

	var verbose bytes.Buffer
	r.Print(&verbose, true)
	assert.Contains(t, verbose.String(), "alice:1 (tables/a.sql)")
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "pass", StatusPass.String())
	assert.Equal(t, "warn", StatusWarn.String())
	assert.Equal(t, "fail", StatusFail.String())
	assert.Equal(t, "unknown", Status(42).String())
}
