package dialect

import (
	"errors"
	"strings"
)

// SQLite targets SQLite 3 through the pure Go modernc.org/sqlite driver.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) IdentityFragment(string) string { return "id INTEGER PRIMARY KEY AUTOINCREMENT" }

func (SQLite) DatetimeType() string { return "TIMESTAMP" }

func (SQLite) Placeholder(int) string { return "?" }

func (s SQLite) CreateTableIfAbsent(table string, columns []string) string {
	return createTable(s, table, columns)
}

func (SQLite) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (SQLite) DriverName() string { return "sqlite" }

// BuildDSN treats the database name as the file path and sets a busy timeout
// so concurrent runs wait on the file lock instead of failing immediately.
func (SQLite) BuildDSN(p ConnParams) (string, error) {
	if p.Name == "" {
		return "", errors.New("sqlite: database name (file path) is required")
	}
	if p.Name == ":memory:" || strings.Contains(p.Name, "?") {
		return p.Name, nil
	}
	return "file:" + p.Name + "?_pragma=busy_timeout(5000)", nil
}
