package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/pthm/sqlstride/pkg/parser"
)

// LedgerEntry is one row of the ledger table.
type LedgerEntry struct {
	ID        int64
	Filename  string
	Author    string
	StepID    string
	Checksum  string
	AppliedAt time.Time
}

// Key returns the identity of the recorded step.
func (e LedgerEntry) Key() parser.Key {
	return parser.Key{Filename: e.Filename, Author: e.Author, ID: e.StepID}
}

// AppliedSteps returns a fresh snapshot of the ledger as identity to checksum.
func (a *Adapter) AppliedSteps(ctx context.Context) (map[parser.Key]string, error) {
	rows, err := a.conn.QueryContext(ctx, a.q.selectKeys)
	if err != nil {
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[parser.Key]string)
	for rows.Next() {
		var k parser.Key
		var checksum string
		if err := rows.Scan(&k.Filename, &k.Author, &k.ID, &checksum); err != nil {
			return nil, fmt.Errorf("scanning ledger row: %w", err)
		}
		applied[k] = checksum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	return applied, nil
}

// Entries returns every ledger row in the order it was recorded.
func (a *Adapter) Entries(ctx context.Context) ([]LedgerEntry, error) {
	rows, err := a.conn.QueryContext(ctx, a.q.selectAll)
	if err != nil {
		return nil, fmt.Errorf("querying ledger: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []LedgerEntry
	for rows.Next() {
		var e LedgerEntry
		var appliedAt timestamp
		if err := rows.Scan(&e.ID, &e.Filename, &e.Author, &e.StepID, &e.Checksum, &appliedAt); err != nil {
			return nil, fmt.Errorf("scanning ledger row: %w", err)
		}
		e.AppliedAt = appliedAt.Time
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	return entries, nil
}

// RecordStep appends a ledger row for step. Pass the step's transaction as ex
// so the row commits or rolls back together with the step.
func (a *Adapter) RecordStep(ctx context.Context, ex Execer, step parser.Step, checksum string) error {
	if _, err := ex.ExecContext(ctx, a.q.insertEntry, step.Author, step.ID, step.Filename, checksum); err != nil {
		return fmt.Errorf("recording %s: %w", step, err)
	}
	return nil
}
