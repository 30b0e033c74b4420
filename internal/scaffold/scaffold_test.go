package scaffold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/sqlstride/internal/cli"
	"github.com/pthm/sqlstride/pkg/dialect"
	"github.com/pthm/sqlstride/pkg/parser"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()

	res, err := Run(Options{Dir: dir, Dialect: "mariadb", SchemaDir: "db", Author: "alice"})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, ConfigFile), res.ConfigPath)
	for _, c := range parser.Categories {
		assert.DirExists(t, filepath.Join(dir, "db", c))
	}

	steps, err := parser.ParseDir(filepath.Join(dir, "db"))
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "alice", steps[0].Author)
	assert.Equal(t, "create_example", steps[0].ID)

	// The generated file loads through the regular config path.
	cfg, _, err := cli.LoadConfig(res.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, "mariadb", cfg.Dialect)
	assert.Equal(t, "db", cfg.SchemaDir)
	assert.Equal(t, "DB_PASSWORD", cfg.Database.PasswordEnv)
	assert.True(t, cfg.Sync.VerifyChecksums)
	assert.Equal(t, "sqlstride_log", cfg.LedgerTable)
}

func TestRun_DatabaseURL(t *testing.T) {
	dir := t.TempDir()

	res, err := Run(Options{Dir: dir, Dialect: "pg", DatabaseURL: "postgres://localhost/app"})
	require.NoError(t, err)

	cfg, _, err := cli.LoadConfig(res.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Dialect)
	assert.Equal(t, "postgres://localhost/app", cfg.Database.URL)
	assert.Empty(t, cfg.Database.Host)
	assert.NoFileExists(t, filepath.Join(dir, "schema", "tables", "001_example.sql"))
}

func TestRun_SQLiteDefaults(t *testing.T) {
	dir := t.TempDir()

	res, err := Run(Options{Dir: dir, Dialect: "sqlite"})
	require.NoError(t, err)

	cfg, _, err := cli.LoadConfig(res.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, "app.db", cfg.Database.Name)
	_, err = cfg.DSN(dialect.SQLite{})
	require.NoError(t, err)
}

func TestRun_ExistingConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFile)
	require.NoError(t, os.WriteFile(path, []byte("dialect: mssql\n"), 0o644))

	_, err := Run(Options{Dir: dir, Dialect: "postgres"})
	require.ErrorIs(t, err, ErrExists)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "dialect: mssql\n", string(data))

	_, err = Run(Options{Dir: dir, Dialect: "postgres", Force: true})
	require.NoError(t, err)
}

func TestRun_KeepsExistingSteps(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "schema", "tables", "001_example.sql")
	require.NoError(t, os.MkdirAll(filepath.Dir(existing), 0o755))
	require.NoError(t, os.WriteFile(existing, []byte("-- step bob:mine\nSELECT 1;"), 0o644))

	res, err := Run(Options{Dir: dir, Dialect: "postgres", Author: "alice"})
	require.NoError(t, err)
	assert.NotContains(t, res.Created, existing)
	assert.NotContains(t, res.Created, filepath.Join(dir, "schema", "tables"))

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bob:mine")
}

func TestRun_UnknownDialect(t *testing.T) {
	_, err := Run(Options{Dir: t.TempDir(), Dialect: "oracle"})
	require.ErrorIs(t, err, dialect.ErrUnknownDialect)
}
