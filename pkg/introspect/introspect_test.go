package introspect

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/sqlstride/internal/testutil"
	"github.com/pthm/sqlstride/pkg/adapter"
	"github.com/pthm/sqlstride/pkg/dialect"
	"github.com/pthm/sqlstride/pkg/parser"
)

func TestFor(t *testing.T) {
	i, err := For(dialect.SQLite{})
	require.NoError(t, err)
	assert.IsType(t, SQLite{}, i)

	i, err = For(dialect.MariaDB{})
	require.NoError(t, err)
	assert.IsType(t, MariaDB{}, i)

	for _, d := range []dialect.Dialect{dialect.Postgres{}, dialect.MSSQL{}} {
		_, err := For(d)
		assert.True(t, errors.Is(err, ErrUnsupported), d.Name())
	}
}

func TestSQLite_Discover(t *testing.T) {
	ctx := context.Background()
	db := testutil.SQLite(t)
	a, err := adapter.Open(ctx, db, dialect.SQLite{})
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	_, err = db.ExecContext(ctx, `
		CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT UNIQUE);
		CREATE INDEX users_email ON users (email);
		CREATE VIEW active_users AS SELECT * FROM users;
		CREATE TRIGGER users_ai AFTER INSERT ON users BEGIN SELECT 1; END;
	`)
	require.NoError(t, err)

	objs, err := SQLite{}.Discover(ctx, a.Querier())
	require.NoError(t, err)
	objs = Exclude(objs, a.LedgerTable(), a.LockTable())

	var got []string
	for _, o := range objs {
		got = append(got, o.Kind+":"+o.Name)
	}
	assert.Equal(t, []string{"table:users", "index:users_email", "view:active_users", "trigger:users_ai"}, got)
	assert.Contains(t, objs[0].DDL, "CREATE TABLE users")
	assert.Equal(t, "views", objs[2].Category())
}

func TestObject_Step(t *testing.T) {
	o := Object{Kind: KindTable, Schema: "app", Name: "user accounts", DDL: "CREATE TABLE x (id INT);  "}
	assert.Equal(t, "table_app.user_accounts", o.StepID())
	assert.Equal(t, "-- step sqlstride:table_app.user_accounts\nCREATE TABLE x (id INT);\n", o.Step("sqlstride"))

	steps := parser.ParseContent("tables/x.sql", o.Step("sqlstride"))
	require.Len(t, steps, 1)
	assert.Equal(t, "table_app.user_accounts", steps[0].ID)
}

func TestExclude(t *testing.T) {
	objs := []Object{
		{Kind: KindTable, Schema: "app", Name: "sqlstride_log"},
		{Kind: KindTable, Name: "SQLSTRIDE_LOCK"},
		{Kind: KindTable, Name: "users"},
	}
	got := Exclude(objs, "app.sqlstride_log", "sqlstride_lock")
	require.Len(t, got, 1)
	assert.Equal(t, "users", got[0].Name)
	assert.Len(t, objs, 3)
}

func TestWriteSteps(t *testing.T) {
	dir := t.TempDir()
	objs := []Object{
		{Kind: KindTable, Name: "users", DDL: "CREATE TABLE users (id INT)"},
		{Kind: KindView, Name: "v", DDL: "CREATE VIEW v AS SELECT * FROM users"},
		{Kind: KindSequence, Schema: "app", Name: "seq", DDL: "CREATE SEQUENCE seq"},
	}

	written, err := WriteSteps(dir, "dump", objs)
	require.NoError(t, err)
	assert.Equal(t, []string{"tables/users.sql", "views/v.sql", "types/app.seq.sql"}, written)

	steps, err := parser.ParseDir(dir)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, "types/app.seq.sql", steps[0].Filename)
	assert.Equal(t, "CREATE TABLE users (id INT);", steps[1].SQL)

	_, err = WriteSteps(dir, "dump", objs[:1])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	data, err := os.ReadFile(filepath.Join(dir, "views", "v.sql"))
	require.NoError(t, err)
	assert.Equal(t, "-- step dump:view_v\nCREATE VIEW v AS SELECT * FROM users;\n", string(data))
}

func TestPrint(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Print(&buf, "me", []Object{{Kind: KindView, Name: "v", DDL: "CREATE VIEW v AS SELECT 1"}}))
	assert.Equal(t, "-- view v\n-- step me:view_v\nCREATE VIEW v AS SELECT 1;\n\n", buf.String())
}

func TestMariaDB_DDL(t *testing.T) {
	r := routine{schema: "app", name: "add_user", body: "BEGIN INSERT INTO users VALUES (p_id); END", returns: "int(11)"}
	params := []param{
		{mode: "IN", name: "p_id", dataType: "int(11)"},
		{mode: "OUT", name: "p_out", dataType: "varchar(10)"},
	}
	assert.Equal(t,
		"CREATE PROCEDURE `app`.`add_user`(IN `p_id` int(11), OUT `p_out` varchar(10))\nBEGIN INSERT INTO users VALUES (p_id); END",
		procedureDDL(r, params))

	fnParams := []param{{dataType: "int(11)"}, {mode: "IN", name: "x", dataType: "int(11)"}}
	assert.Equal(t,
		"CREATE FUNCTION `app`.`add_user`(`x` int(11)) RETURNS int(11)\nBEGIN INSERT INTO users VALUES (p_id); END",
		functionDDL(r, fnParams))

	assert.Equal(t,
		"CREATE TRIGGER `app`.`users_bi` BEFORE INSERT ON `app`.`users` FOR EACH ROW\nSET NEW.id = 1",
		triggerDDL(trigger{schema: "app", name: "users_bi", timing: "BEFORE", event: "INSERT", table: "users", action: "SET NEW.id = 1"}))
}

// queryLog records queries and fails each one.
type queryLog struct {
	queries []string
}

var errNoServer = errors.New("no server")

func (l *queryLog) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	l.queries = append(l.queries, query)
	return nil, errNoServer
}

func (l *queryLog) QueryContext(_ context.Context, query string, _ ...any) (*sql.Rows, error) {
	l.queries = append(l.queries, query)
	return nil, errNoServer
}

func (l *queryLog) QueryRowContext(_ context.Context, query string, _ ...any) *sql.Row {
	l.queries = append(l.queries, query)
	return nil
}

func TestMariaDB_Scope(t *testing.T) {
	ctx := context.Background()

	var current queryLog
	_, err := MariaDB{}.Discover(ctx, &current)
	require.ErrorIs(t, err, errNoServer)
	require.Len(t, current.queries, 1)
	assert.Contains(t, current.queries[0], "table_schema = DATABASE()")
	assert.NotContains(t, current.queries[0], "NOT IN")

	var all queryLog
	_, err = MariaDB{AllSchemas: true}.Discover(ctx, &all)
	require.ErrorIs(t, err, errNoServer)
	require.Len(t, all.queries, 1)
	assert.Contains(t, all.queries[0], "table_schema NOT IN ('mysql'")

	assert.Equal(t, "routine_schema = DATABASE()", MariaDB{}.scope("routine_schema"))
	assert.Equal(t, "trigger_schema = DATABASE()", MariaDB{}.scope("trigger_schema"))
}
