// Package dialect describes the per-database syntax differences the engine
// depends on: how to declare an auto-increment primary key, which column type
// holds a timestamp, how bind parameters are written, and how to connect.
//
// Dialects are looked up by name:
//
//	d, err := dialect.Lookup("postgres")
//	if err != nil {
//	    return err
//	}
//	ddl := d.CreateTableIfAbsent("sqlstride_log", []string{
//	    d.IdentityFragment("sqlstride_log"),
//	    "author VARCHAR(255) NOT NULL",
//	})
package dialect

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownDialect is returned by Lookup for a name that is not registered.
var ErrUnknownDialect = errors.New("unknown dialect")

// Dialect is the syntax policy for one database family.
type Dialect interface {
	// Name is the canonical dialect name.
	Name() string

	// IdentityFragment returns the column definition of the auto-increment
	// "id" primary key for table.
	IdentityFragment(table string) string

	// DatetimeType is the column type used for timestamps.
	DatetimeType() string

	// Placeholder returns the bind parameter marker for the n-th argument,
	// starting at 1.
	Placeholder(n int) string

	// CreateTableIfAbsent returns a statement creating table with the given
	// column definitions unless it already exists.
	CreateTableIfAbsent(table string, columns []string) string

	// QuoteIdent quotes a single identifier.
	QuoteIdent(name string) string

	// DriverName is the database/sql driver registered for this family.
	DriverName() string

	// BuildDSN assembles a driver connection string from discrete parts.
	BuildDSN(p ConnParams) (string, error)
}

// ConnParams holds discrete connection settings used when no URL is
// configured.
type ConnParams struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
	Instance string
}

var (
	registry = map[string]Dialect{}
	names    []string
)

func init() {
	register(Postgres{}, "postgresql", "pg")
	register(MSSQL{}, "sqlserver")
	register(MariaDB{}, "mysql")
	register(SQLite{}, "sqlite3")
}

func register(d Dialect, aliases ...string) {
	registry[d.Name()] = d
	for _, a := range aliases {
		registry[a] = d
	}
	names = append(names, d.Name())
	sort.Strings(names)
}

// Lookup returns the dialect registered under name or one of its aliases.
// Matching ignores case and surrounding whitespace.
func Lookup(name string) (Dialect, error) {
	d, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w %q (supported: %s)", ErrUnknownDialect, name, strings.Join(names, ", "))
	}
	return d, nil
}

// Names lists the canonical dialect names in lexical order.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// QuoteQualified quotes a possibly schema-qualified name part by part.
func QuoteQualified(d Dialect, name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}

// Placeholders returns n consecutive bind markers joined by ", ".
func Placeholders(d Dialect, n int) string {
	marks := make([]string, n)
	for i := range marks {
		marks[i] = d.Placeholder(i + 1)
	}
	return strings.Join(marks, ", ")
}

// constraintName derives a primary key constraint name from a table name.
func constraintName(table string) string {
	return "pk_" + strings.ReplaceAll(table, ".", "_")
}

func createTable(d Dialect, table string, columns []string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		QuoteQualified(d, table), strings.Join(columns, ",\n\t"))
}
