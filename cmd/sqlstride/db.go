package main

import (
	"context"
	"database/sql"
	"os"
	"time"

	"github.com/pthm/sqlstride/internal/cli"
	"github.com/pthm/sqlstride/pkg/adapter"
	"github.com/pthm/sqlstride/pkg/dialect"
	"github.com/pthm/sqlstride/pkg/migrator"
)

const pingTimeout = 15 * time.Second

// resolveDialect returns the dialect from --dialect or the config.
func resolveDialect() (dialect.Dialect, error) {
	d, err := dialect.Lookup(resolveString(flagDialect, cfg.Dialect))
	if err != nil {
		return nil, cli.ConfigError("resolving dialect", err)
	}
	return d, nil
}

// resolveSchemaDir returns the schema directory from --schema-dir or the
// config and checks that it exists.
func resolveSchemaDir() (string, error) {
	dir := resolveString(flagSchemaDir, cfg.SchemaDir)
	info, err := os.Stat(dir)
	if err != nil {
		return "", cli.ConfigError("schema directory", err)
	}
	if !info.IsDir() {
		return "", cli.ConfigError("schema directory "+dir+" is not a directory", nil)
	}
	return dir, nil
}

// resolveDSN gets the database DSN from flag or config.
func resolveDSN(d dialect.Dialect) (string, error) {
	if flagDB != "" {
		return flagDB, nil
	}

	dsn, err := cfg.DSN(d)
	if err != nil {
		return "", cli.ConfigError("database configuration", err)
	}
	return dsn, nil
}

// openDatabase opens and pings the configured database.
func openDatabase(ctx context.Context) (*sql.DB, dialect.Dialect, error) {
	d, err := resolveDialect()
	if err != nil {
		return nil, nil, err
	}
	dsn, err := resolveDSN(d)
	if err != nil {
		return nil, nil, err
	}

	driver := cfg.DriverName(d)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, cli.DBConnectError("opening database", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, cli.DBConnectError("connecting to database", err)
	}

	logger.Debug("connected", "dialect", d.Name(), "driver", driver)
	return db, d, nil
}

// openAdapter opens the database and the ledger/lock adapter on top of it.
// The returned function closes both.
func openAdapter(ctx context.Context) (*adapter.Adapter, func(), error) {
	db, d, err := openDatabase(ctx)
	if err != nil {
		return nil, nil, err
	}

	a, err := migrator.Open(ctx, db, d, adapterOptions()...)
	if err != nil {
		_ = db.Close()
		return nil, nil, cli.Classify("preparing ledger and lock tables", err)
	}

	closeAll := func() {
		_ = a.Close()
		_ = db.Close()
	}
	return a, closeAll, nil
}

func adapterOptions() []adapter.Option {
	return []adapter.Option{
		adapter.WithLedgerTable(cfg.LedgerTable),
		adapter.WithLockTable(cfg.LockTable),
	}
}
