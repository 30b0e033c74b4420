package main

// database/sql drivers for every dialect. Each dialect names its default
// driver; database.driver in sqlstride.yaml selects another registered one.
import (
	_ "github.com/go-sql-driver/mysql"  // mariadb: "mysql"
	_ "github.com/jackc/pgx/v5/stdlib"  // postgres: "pgx"
	_ "github.com/lib/pq"               // postgres: "postgres"
	_ "github.com/microsoft/go-mssqldb" // mssql: "sqlserver"
	_ "modernc.org/sqlite"              // sqlite: "sqlite"
)
