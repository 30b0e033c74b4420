// Package adapter binds a database connection to a dialect and exposes the
// ledger and lock primitives the migration engine is built on.
//
// An Adapter owns exactly one connection taken from the pool, so session
// state (and, for in-memory SQLite, the database itself) is stable for the
// lifetime of a run:
//
//	a, err := adapter.Open(ctx, db, dialect.Postgres{})
//	if err != nil {
//	    return err
//	}
//	defer func() { _ = a.Close() }()
//
//	applied, err := a.AppliedSteps(ctx)
package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/pthm/sqlstride/pkg/dialect"
)

// Default table names.
const (
	DefaultLedgerTable = "sqlstride_log"
	DefaultLockTable   = "sqlstride_lock"
)

// ErrInvalidTableName is returned by Open when a configured table name is not
// a plain or schema-qualified identifier.
var ErrInvalidTableName = errors.New("invalid table name")

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ValidateTableName reports whether name may be used as a ledger or lock
// table.
func ValidateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, name)
	}
	return nil
}

// Adapter is one live connection bound to a dialect and the ledger/lock
// tables. It is not safe for concurrent use.
type Adapter struct {
	conn    *sql.Conn
	dialect dialect.Dialect
	ledger  string
	lock    string
	now     func() time.Time
	q       queries
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLedgerTable overrides the ledger table name.
func WithLedgerTable(name string) Option {
	return func(a *Adapter) {
		if name != "" {
			a.ledger = name
		}
	}
}

// WithLockTable overrides the lock table name.
func WithLockTable(name string) Option {
	return func(a *Adapter) {
		if name != "" {
			a.lock = name
		}
	}
}

// WithClock replaces time.Now for lease bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) {
		a.now = now
	}
}

// Open takes a connection from db, validates the table names and creates the
// ledger and lock tables if they do not exist yet.
func Open(ctx context.Context, db *sql.DB, d dialect.Dialect, opts ...Option) (*Adapter, error) {
	a := &Adapter{
		dialect: d,
		ledger:  DefaultLedgerTable,
		lock:    DefaultLockTable,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := ValidateTableName(a.ledger); err != nil {
		return nil, fmt.Errorf("ledger table: %w", err)
	}
	if err := ValidateTableName(a.lock); err != nil {
		return nil, fmt.Errorf("lock table: %w", err)
	}
	if a.ledger == a.lock {
		return nil, fmt.Errorf("%w: ledger and lock tables are both %q", ErrInvalidTableName, a.ledger)
	}
	a.q = buildQueries(d, a.ledger, a.lock)

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	a.conn = conn

	if err := a.ensureTables(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return a, nil
}

// Close returns the connection to the pool.
func (a *Adapter) Close() error {
	return a.conn.Close()
}

// Dialect returns the dialect the adapter was opened with.
func (a *Adapter) Dialect() dialect.Dialect { return a.dialect }

// LedgerTable returns the ledger table name.
func (a *Adapter) LedgerTable() string { return a.ledger }

// LockTable returns the lock table name.
func (a *Adapter) LockTable() string { return a.lock }

// Querier exposes the underlying connection for read-only inspection such as
// introspection and health checks.
func (a *Adapter) Querier() Execer { return a.conn }

// Begin starts a transaction on the adapter's connection. The caller executes
// the step and RecordStep on it, then commits or rolls back.
func (a *Adapter) Begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := a.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	return tx, nil
}

func (a *Adapter) ensureTables(ctx context.Context) error {
	if _, err := a.conn.ExecContext(ctx, a.q.createLedger); err != nil {
		return fmt.Errorf("creating ledger table %s: %w", a.ledger, err)
	}
	if _, err := a.conn.ExecContext(ctx, a.q.createLock); err != nil {
		return fmt.Errorf("creating lock table %s: %w", a.lock, err)
	}
	return nil
}

// utcNow returns the current time in UTC truncated to whole seconds, the
// precision every supported datetime column can hold.
func (a *Adapter) utcNow() time.Time {
	return a.now().UTC().Truncate(time.Second)
}
