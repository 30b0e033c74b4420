package dialect

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/lib/pq"
)

// Postgres targets PostgreSQL 10 and later.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) IdentityFragment(table string) string {
	return fmt.Sprintf("id INTEGER GENERATED BY DEFAULT AS IDENTITY CONSTRAINT %s PRIMARY KEY",
		pq.QuoteIdentifier(constraintName(table)))
}

func (Postgres) DatetimeType() string { return "TIMESTAMP" }

func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (p Postgres) CreateTableIfAbsent(table string, columns []string) string {
	return createTable(p, table, columns)
}

func (Postgres) QuoteIdent(name string) string { return pq.QuoteIdentifier(name) }

// DriverName returns the pgx stdlib driver. The lib/pq driver, registered as
// "postgres", accepts the same DSNs.
func (Postgres) DriverName() string { return "pgx" }

// BuildDSN returns a postgres:// URL understood by both pgx and lib/pq.
func (Postgres) BuildDSN(p ConnParams) (string, error) {
	if p.Host == "" {
		return "", errors.New("postgres: host is required")
	}
	port := p.Port
	if port == 0 {
		port = 5432
	}
	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(p.Host, strconv.Itoa(port)),
		Path:   "/" + p.Name,
	}
	if p.User != "" {
		if p.Password != "" {
			u.User = url.UserPassword(p.User, p.Password)
		} else {
			u.User = url.User(p.User)
		}
	}
	if p.SSLMode != "" {
		q := url.Values{}
		q.Set("sslmode", p.SSLMode)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
