// Package testutil provides shared database fixtures for sqlstride tests.
//
// SQLite returns a throwaway file-backed database and needs nothing
// installed. Postgres starts a single PostgreSQL container per test binary
// (or uses DATABASE_URL) and hands each test its own database.
package testutil

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	_ "modernc.org/sqlite"

	"github.com/pthm/sqlstride/pkg/dialect"
)

// Singleton container state
var (
	singletonOnce sync.Once
	singletonDSN  string
	singletonErr  error
)

// SQLite opens a new SQLite database in a temporary directory. Several
// connections share the same file, so separate adapters observe each
// other's writes. The database is closed when the test completes.
func SQLite(tb testing.TB) *sql.DB {
	tb.Helper()

	dsn, err := dialect.SQLite{}.BuildDSN(dialect.ConnParams{
		Name: filepath.Join(tb.TempDir(), "sqlstride.db"),
	})
	require.NoError(tb, err)

	db, err := sql.Open("sqlite", dsn)
	require.NoError(tb, err, "failed to open sqlite database")
	require.NoError(tb, db.Ping(), "failed to ping sqlite database")

	tb.Cleanup(func() { _ = db.Close() })
	return db
}

// ensureSingleton lazily starts the shared PostgreSQL container, unless
// DATABASE_URL points at an existing server.
func ensureSingleton() (string, error) {
	singletonOnce.Do(func() {
		if cfg := GetDatabaseConfig(); cfg.URL != "" {
			singletonDSN = cfg.URL
			return
		}

		ctx := context.Background()
		container, err := postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("postgres"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			singletonErr = fmt.Errorf("failed to start PostgreSQL container: %w", err)
			return
		}

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			_ = container.Terminate(ctx)
			singletonErr = fmt.Errorf("failed to get PostgreSQL connection string: %w", err)
			return
		}
		singletonDSN = dsn
		// ryuk terminates the container when the test binary exits
	})

	return singletonDSN, singletonErr
}

// Postgres returns a connection to a new, empty PostgreSQL database. The
// database is dropped when the test completes.
func Postgres(tb testing.TB) *sql.DB {
	tb.Helper()

	adminDSN, err := ensureSingleton()
	require.NoError(tb, err, "failed to start PostgreSQL")

	name := uniqueDBName("sqlstride")
	require.NoError(tb, execAdmin(context.Background(), adminDSN, "CREATE DATABASE "+name),
		"failed to create test database")

	db, err := sql.Open("pgx", replaceDBName(adminDSN, name))
	require.NoError(tb, err, "failed to connect to test database")
	require.NoError(tb, db.Ping(), "failed to ping test database")

	tb.Cleanup(func() {
		_ = db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = execAdmin(ctx, adminDSN, fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", name))
	})
	return db
}

// uniqueDBName generates a unique database name with the given prefix.
func uniqueDBName(prefix string) string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b))
}

func execAdmin(ctx context.Context, adminDSN, stmt string) error {
	db, err := sql.Open("pgx", adminDSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	_, err = db.ExecContext(ctx, stmt)
	return err
}

// replaceDBName replaces the database name in a postgres:// URL.
func replaceDBName(dsn, newDB string) string {
	query := ""
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		dsn, query = dsn[:i], dsn[i:]
	}
	for i := len(dsn) - 1; i >= 0; i-- {
		if dsn[i] == '/' {
			return dsn[:i+1] + newDB + query
		}
	}
	return dsn + query
}

