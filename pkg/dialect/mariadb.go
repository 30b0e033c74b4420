package dialect

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// MariaDB targets MariaDB 10.3+ and MySQL 8.
type MariaDB struct{}

func (MariaDB) Name() string { return "mariadb" }

func (MariaDB) IdentityFragment(string) string { return "id INT AUTO_INCREMENT PRIMARY KEY" }

func (MariaDB) DatetimeType() string { return "DATETIME" }

func (MariaDB) Placeholder(int) string { return "?" }

func (m MariaDB) CreateTableIfAbsent(table string, columns []string) string {
	return createTable(m, table, columns)
}

func (MariaDB) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (MariaDB) DriverName() string { return "mysql" }

// BuildDSN formats a go-sql-driver/mysql DSN. Time columns are parsed into
// time.Time and multi-statement steps are allowed.
func (MariaDB) BuildDSN(p ConnParams) (string, error) {
	if p.Host == "" {
		return "", errors.New("mariadb: host is required")
	}
	port := p.Port
	if port == 0 {
		port = 3306
	}

	cfg := mysql.NewConfig()
	cfg.User = p.User
	cfg.Passwd = p.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(p.Host, strconv.Itoa(port))
	cfg.DBName = p.Name
	cfg.ParseTime = true
	cfg.MultiStatements = true

	switch p.SSLMode {
	case "", "disable":
	case "require":
		cfg.TLSConfig = "skip-verify"
	case "verify-ca", "verify-full":
		cfg.TLSConfig = "true"
	default:
		return "", fmt.Errorf("mariadb: unsupported sslmode %q", p.SSLMode)
	}
	return cfg.FormatDSN(), nil
}
