package adapter

import (
	"fmt"

	"github.com/pthm/sqlstride/pkg/dialect"
)

// queries holds the dialect-specific statements for one ledger/lock pair.
type queries struct {
	createLedger string
	createLock   string

	insertEntry string
	selectKeys  string
	selectAll   string

	selectLock  string
	insertLock  string
	deleteByID  string
	deleteOwned string
	deleteAll   string
	refreshLock string
}

func buildQueries(d dialect.Dialect, ledgerTable, lockTable string) queries {
	ledger := dialect.QuoteQualified(d, ledgerTable)
	lock := dialect.QuoteQualified(d, lockTable)
	ph := d.Placeholder
	dt := d.DatetimeType()

	return queries{
		createLedger: d.CreateTableIfAbsent(ledgerTable, []string{
			d.IdentityFragment(ledgerTable),
			"author VARCHAR(255) NOT NULL",
			"step_id VARCHAR(255) NOT NULL",
			"filename VARCHAR(1024) NOT NULL",
			"checksum VARCHAR(128) NOT NULL",
			"applied_at " + dt + " NOT NULL DEFAULT CURRENT_TIMESTAMP",
		}),
		createLock: d.CreateTableIfAbsent(lockTable, []string{
			d.IdentityFragment(lockTable),
			"lock_name VARCHAR(64) NOT NULL UNIQUE",
			"owner VARCHAR(64) NOT NULL",
			"locked_at " + dt + " NOT NULL DEFAULT CURRENT_TIMESTAMP",
			"expires_at " + dt + " NOT NULL",
		}),

		insertEntry: fmt.Sprintf("INSERT INTO %s (author, step_id, filename, checksum) VALUES (%s)",
			ledger, dialect.Placeholders(d, 4)),
		selectKeys: fmt.Sprintf("SELECT filename, author, step_id, checksum FROM %s ORDER BY id", ledger),
		selectAll: fmt.Sprintf("SELECT id, filename, author, step_id, checksum, applied_at FROM %s ORDER BY id",
			ledger),

		selectLock: fmt.Sprintf("SELECT id, lock_name, owner, locked_at, expires_at FROM %s ORDER BY id", lock),
		insertLock: fmt.Sprintf("INSERT INTO %s (lock_name, owner, locked_at, expires_at) VALUES (%s)",
			lock, dialect.Placeholders(d, 4)),
		deleteByID:  fmt.Sprintf("DELETE FROM %s WHERE id = %s", lock, ph(1)),
		deleteOwned: fmt.Sprintf("DELETE FROM %s WHERE lock_name = %s AND owner = %s", lock, ph(1), ph(2)),
		deleteAll:   fmt.Sprintf("DELETE FROM %s", lock),
		refreshLock: fmt.Sprintf("UPDATE %s SET expires_at = %s WHERE lock_name = %s AND owner = %s",
			lock, ph(1), ph(2), ph(3)),
	}
}
