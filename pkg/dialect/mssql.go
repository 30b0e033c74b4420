package dialect

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// MSSQL targets Microsoft SQL Server 2016 and later.
type MSSQL struct{}

func (MSSQL) Name() string { return "mssql" }

func (m MSSQL) IdentityFragment(table string) string {
	return fmt.Sprintf("id INT IDENTITY(1,1) CONSTRAINT %s PRIMARY KEY", m.QuoteIdent(constraintName(table)))
}

func (MSSQL) DatetimeType() string { return "DATETIME2" }

func (MSSQL) Placeholder(n int) string { return "@p" + strconv.Itoa(n) }

// CreateTableIfAbsent guards CREATE TABLE with OBJECT_ID, since SQL Server
// has no IF NOT EXISTS clause for tables.
func (m MSSQL) CreateTableIfAbsent(table string, columns []string) string {
	return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\nCREATE TABLE %s (\n\t%s\n)",
		strings.ReplaceAll(table, "'", "''"), QuoteQualified(m, table), strings.Join(columns, ",\n\t"))
}

func (MSSQL) QuoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (MSSQL) DriverName() string { return "sqlserver" }

// BuildDSN returns a sqlserver:// URL. A named instance goes in the path and
// replaces the port.
func (MSSQL) BuildDSN(p ConnParams) (string, error) {
	if p.Host == "" {
		return "", errors.New("mssql: host is required")
	}
	u := &url.URL{Scheme: "sqlserver", Host: p.Host}
	switch {
	case p.Instance != "":
		u.Path = "/" + p.Instance
	case p.Port != 0:
		u.Host = p.Host + ":" + strconv.Itoa(p.Port)
	}
	if p.User != "" {
		u.User = url.UserPassword(p.User, p.Password)
	}
	q := url.Values{}
	if p.Name != "" {
		q.Set("database", p.Name)
	}
	switch p.SSLMode {
	case "":
	case "disable":
		q.Set("encrypt", "disable")
	case "require":
		q.Set("encrypt", "true")
		q.Set("TrustServerCertificate", "true")
	default:
		q.Set("encrypt", "true")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
