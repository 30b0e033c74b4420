package introspect

import (
	"context"
	"fmt"

	"github.com/pthm/sqlstride/pkg/adapter"
)

// SQLite reads object definitions from sqlite_master. Internal objects and
// automatic indexes are skipped.
type SQLite struct{}

func (SQLite) Discover(ctx context.Context, q adapter.Execer) ([]Object, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT type, name, sql
		FROM sqlite_master
		WHERE sql IS NOT NULL
		  AND name NOT LIKE 'sqlite_%'
		ORDER BY CASE type
			WHEN 'table' THEN 1
			WHEN 'index' THEN 2
			WHEN 'view' THEN 3
			WHEN 'trigger' THEN 4
			ELSE 5
		END, name`)
	if err != nil {
		return nil, fmt.Errorf("querying sqlite_master: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var objs []Object
	for rows.Next() {
		var o Object
		if err := rows.Scan(&o.Kind, &o.Name, &o.DDL); err != nil {
			return nil, fmt.Errorf("scanning sqlite_master: %w", err)
		}
		objs = append(objs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading sqlite_master: %w", err)
	}
	return objs, nil
}
