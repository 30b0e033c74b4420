// Package sqlstride applies author-tagged SQL steps to a database in a
// deterministic order, records what ran in a ledger table and keeps
// concurrent runs apart with a leased lock.
//
// # Schema Directory
//
// Steps live in .sql (or .sql.tmpl) files grouped into category directories
// such as tables/, views/ and grants/. Each step starts with a marker line:
//
//	-- step alice:create_users
//	CREATE TABLE users (id INT PRIMARY KEY);
//
// Steps are identified by file, author and id. Once a step is recorded in the
// ledger it is never run again; new work goes in new steps.
//
// # Basic Usage
//
//	res, err := sqlstride.Sync(ctx, db, "postgres", "schema", sqlstride.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// For dry runs, drift checks and custom table names see pkg/migrator and
// pkg/adapter. The sqlstride command wraps the same engine with
// configuration files and status reporting.
//
// # Error Handling
//
// Errors carry the sentinels declared in this package:
//
//	switch {
//	case sqlstride.IsLockHeldErr(err):
//	    // another run is in progress
//	case sqlstride.IsDriftErr(err):
//	    // an applied step was edited
//	}
package sqlstride

import (
	"context"
	"database/sql"

	"github.com/pthm/sqlstride/pkg/dialect"
	"github.com/pthm/sqlstride/pkg/migrator"
)

// Options controls a run. See migrator.Options.
type Options = migrator.Options

// Result summarizes a run. See migrator.Result.
type Result = migrator.Result

// Sync applies the pending steps in schemaDir to db using the named dialect.
// The caller registers the database/sql driver.
func Sync(ctx context.Context, db *sql.DB, dialectName, schemaDir string, opts Options) (*Result, error) {
	d, err := dialect.Lookup(dialectName)
	if err != nil {
		return nil, &migrator.ConfigError{Key: "dialect", Err: err}
	}
	return migrator.Sync(ctx, db, d, schemaDir, opts)
}
