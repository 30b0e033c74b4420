package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pthm/sqlstride/pkg/adapter"
	"github.com/pthm/sqlstride/pkg/dialect"
)

var quote = dialect.MariaDB{}.QuoteIdent

// systemSchemas are never reported.
const systemSchemas = `('mysql', 'information_schema', 'performance_schema', 'sys')`

// MariaDB discovers tables, views, procedures, functions, triggers and (on
// MariaDB 10.3+) sequences through information_schema and SHOW CREATE.
// Only the connection's current database is read unless AllSchemas is set.
//
// Every listing is read to completion before the per-object queries run,
// since a connection cannot serve a second query while rows are open.
type MariaDB struct {
	// AllSchemas reads every non-system schema on the server.
	AllSchemas bool
}

// scope returns the WHERE condition restricting column to the schemas
// being dumped.
func (m MariaDB) scope(column string) string {
	if m.AllSchemas {
		return column + " NOT IN " + systemSchemas
	}
	return column + " = DATABASE()"
}

type schemaName struct {
	schema, name string
}

func (m MariaDB) Discover(ctx context.Context, q adapter.Execer) ([]Object, error) {
	var objs []Object

	tables, err := m.list(ctx, q, `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		  AND `+m.scope("table_schema")+`
		ORDER BY table_schema, table_name`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	for _, t := range tables {
		ddl, err := showCreate(ctx, q, "TABLE", t)
		if err != nil {
			return nil, err
		}
		objs = append(objs, Object{Kind: KindTable, Schema: t.schema, Name: t.name, DDL: ddl})
	}

	views, err := m.list(ctx, q, `
		SELECT table_schema, table_name
		FROM information_schema.views
		WHERE `+m.scope("table_schema")+`
		ORDER BY table_schema, table_name`)
	if err != nil {
		return nil, fmt.Errorf("listing views: %w", err)
	}
	for _, v := range views {
		ddl, err := showCreate(ctx, q, "VIEW", v)
		if err != nil {
			return nil, err
		}
		objs = append(objs, Object{Kind: KindView, Schema: v.schema, Name: v.name, DDL: ddl})
	}

	routines, err := m.routines(ctx, q)
	if err != nil {
		return nil, err
	}
	objs = append(objs, routines...)

	triggers, err := m.triggers(ctx, q)
	if err != nil {
		return nil, err
	}
	objs = append(objs, triggers...)

	// Sequences exist from MariaDB 10.3 on; older servers and MySQL simply
	// report none or reject the query.
	sequences, err := m.list(ctx, q, `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_type = 'SEQUENCE'
		  AND `+m.scope("table_schema")+`
		ORDER BY table_schema, table_name`)
	if err == nil {
		for _, s := range sequences {
			ddl, err := showCreate(ctx, q, "TABLE", s)
			if err != nil {
				continue
			}
			objs = append(objs, Object{Kind: KindSequence, Schema: s.schema, Name: s.name, DDL: ddl})
		}
	}

	return objs, nil
}

func (MariaDB) list(ctx context.Context, q adapter.Execer, query string) ([]schemaName, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []schemaName
	for rows.Next() {
		var sn schemaName
		if err := rows.Scan(&sn.schema, &sn.name); err != nil {
			return nil, err
		}
		out = append(out, sn)
	}
	return out, rows.Err()
}

// showCreate returns the DDL column of SHOW CREATE TABLE/VIEW. The column
// position differs between the two, so the row is scanned generically.
func showCreate(ctx context.Context, q adapter.Execer, what string, sn schemaName) (string, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("SHOW CREATE %s %s.%s", what, quote(sn.schema), quote(sn.name)))
	if err != nil {
		return "", fmt.Errorf("show create %s %s.%s: %w", strings.ToLower(what), sn.schema, sn.name, err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("show create %s %s.%s: no rows", strings.ToLower(what), sn.schema, sn.name)
	}

	values := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return "", err
	}
	if len(values) < 2 {
		return "", fmt.Errorf("show create %s: unexpected result shape", strings.ToLower(what))
	}
	return values[1].String, nil
}

type routine struct {
	schema, name, kind, body, returns string
}

type param struct {
	mode, name, dataType string
}

func (m MariaDB) routines(ctx context.Context, q adapter.Execer) ([]Object, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT routine_schema, routine_name, routine_type,
		       COALESCE(routine_definition, ''), COALESCE(dtd_identifier, data_type, '')
		FROM information_schema.routines
		WHERE routine_type IN ('PROCEDURE', 'FUNCTION')
		  AND `+m.scope("routine_schema")+`
		ORDER BY routine_type DESC, routine_schema, routine_name`)
	if err != nil {
		return nil, fmt.Errorf("listing routines: %w", err)
	}
	var list []routine
	for rows.Next() {
		var r routine
		if err := rows.Scan(&r.schema, &r.name, &r.kind, &r.body, &r.returns); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scanning routine: %w", err)
		}
		list = append(list, r)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading routines: %w", err)
	}

	objs := make([]Object, 0, len(list))
	for _, r := range list {
		params, err := routineParams(ctx, q, r.schema, r.name)
		if err != nil {
			return nil, err
		}
		if r.kind == "FUNCTION" {
			objs = append(objs, Object{Kind: KindFunction, Schema: r.schema, Name: r.name, DDL: functionDDL(r, params)})
		} else {
			objs = append(objs, Object{Kind: KindProcedure, Schema: r.schema, Name: r.name, DDL: procedureDDL(r, params)})
		}
	}
	return objs, nil
}

func routineParams(ctx context.Context, q adapter.Execer, schema, name string) ([]param, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT COALESCE(parameter_mode, ''), COALESCE(parameter_name, ''), COALESCE(dtd_identifier, data_type, '')
		FROM information_schema.parameters
		WHERE specific_schema = ? AND specific_name = ?
		ORDER BY ordinal_position`, schema, name)
	if err != nil {
		return nil, fmt.Errorf("listing parameters of %s.%s: %w", schema, name, err)
	}
	defer func() { _ = rows.Close() }()

	var params []param
	for rows.Next() {
		var p param
		if err := rows.Scan(&p.mode, &p.name, &p.dataType); err != nil {
			return nil, fmt.Errorf("scanning parameter: %w", err)
		}
		params = append(params, p)
	}
	return params, rows.Err()
}

// procedureDDL assembles CREATE PROCEDURE from its body and parameters.
func procedureDDL(r routine, params []param) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p.name == "" {
			continue
		}
		parts = append(parts, strings.TrimSpace(p.mode+" "+quote(p.name)+" "+p.dataType))
	}
	return fmt.Sprintf("CREATE PROCEDURE %s.%s(%s)\n%s",
		quote(r.schema), quote(r.name), strings.Join(parts, ", "), r.body)
}

// functionDDL assembles CREATE FUNCTION. The unnamed parameter row that
// information_schema reports for the return value is skipped.
func functionDDL(r routine, params []param) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p.name == "" {
			continue
		}
		parts = append(parts, quote(p.name)+" "+p.dataType)
	}
	return fmt.Sprintf("CREATE FUNCTION %s.%s(%s) RETURNS %s\n%s",
		quote(r.schema), quote(r.name), strings.Join(parts, ", "), r.returns, r.body)
}

type trigger struct {
	schema, name, timing, event, table, action string
}

func (m MariaDB) triggers(ctx context.Context, q adapter.Execer) ([]Object, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT trigger_schema, trigger_name, action_timing, event_manipulation,
		       event_object_table, action_statement
		FROM information_schema.triggers
		WHERE `+m.scope("trigger_schema")+`
		ORDER BY trigger_schema, event_object_table, action_order, trigger_name`)
	if err != nil {
		return nil, fmt.Errorf("listing triggers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var objs []Object
	for rows.Next() {
		var t trigger
		if err := rows.Scan(&t.schema, &t.name, &t.timing, &t.event, &t.table, &t.action); err != nil {
			return nil, fmt.Errorf("scanning trigger: %w", err)
		}
		objs = append(objs, Object{Kind: KindTrigger, Schema: t.schema, Name: t.name, DDL: triggerDDL(t)})
	}
	return objs, rows.Err()
}

func triggerDDL(t trigger) string {
	return fmt.Sprintf("CREATE TRIGGER %s.%s %s %s ON %s.%s FOR EACH ROW\n%s",
		quote(t.schema), quote(t.name), t.timing, t.event, quote(t.schema), quote(t.table), t.action)
}
