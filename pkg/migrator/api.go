package migrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/pthm/sqlstride/pkg/adapter"
	"github.com/pthm/sqlstride/pkg/dialect"
)

// Sync applies the steps in schemaDir to db in one call. It is safe to call
// on every application startup: already-applied steps are skipped and
// concurrent callers are excluded by the run lock.
//
// Example usage on application startup:
//
//	d, _ := dialect.Lookup("postgres")
//	if _, err := migrator.Sync(ctx, db, d, "schema", migrator.Options{}); err != nil {
//	    log.Fatalf("migration failed: %v", err)
//	}
//
// Use adapter.Open and New directly for custom table names or to inspect
// the plan before applying it.
func Sync(ctx context.Context, db *sql.DB, d dialect.Dialect, schemaDir string, opts Options, adapterOpts ...adapter.Option) (*Result, error) {
	if schemaDir == "" {
		return nil, &ConfigError{Key: "schema_dir", Err: errors.New("not set")}
	}
	info, err := os.Stat(schemaDir)
	if err != nil {
		return nil, &ConfigError{Key: "schema_dir", Err: err}
	}
	if !info.IsDir() {
		return nil, &ConfigError{Key: "schema_dir", Err: fmt.Errorf("%s is not a directory", schemaDir)}
	}

	a, err := Open(ctx, db, d, adapterOpts...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = a.Close() }()

	e, err := New(a, os.DirFS(schemaDir), opts)
	if err != nil {
		return nil, err
	}
	return e.Sync(ctx)
}

// Open wraps adapter.Open, reporting invalid table names as configuration
// errors.
func Open(ctx context.Context, db *sql.DB, d dialect.Dialect, opts ...adapter.Option) (*adapter.Adapter, error) {
	if d == nil {
		return nil, &ConfigError{Key: "dialect", Err: errors.New("not set")}
	}
	a, err := adapter.Open(ctx, db, d, opts...)
	if errors.Is(err, adapter.ErrInvalidTableName) {
		return nil, &ConfigError{Err: err}
	}
	return a, err
}
