package migrator

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/pthm/sqlstride/pkg/adapter"
	"github.com/pthm/sqlstride/pkg/parser"
)

// PlannedStep is a step with its rendered SQL and checksum.
type PlannedStep struct {
	parser.Step
	Rendered string
	Checksum string
}

// Plan is the outcome of diffing the parsed steps against the ledger. It is
// computed once and then either previewed or applied.
type Plan struct {
	// Pending are the steps absent from the ledger, in application order.
	Pending []PlannedStep

	// Applied are the parsed steps already recorded in the ledger, in
	// application order.
	Applied []parser.Step

	// Drift lists applied steps whose checksum changed. Only populated when
	// checksum verification is enabled.
	Drift []parser.Key

	// Orphans are ledger entries with no matching step in the schema
	// directory, in the order they were recorded.
	Orphans []adapter.LedgerEntry
}

// UpToDate reports whether there is nothing to apply.
func (p *Plan) UpToDate() bool {
	return len(p.Pending) == 0
}

// Err returns a *DriftError when drift was detected.
func (p *Plan) Err() error {
	if len(p.Drift) == 0 {
		return nil
	}
	return &DriftError{Steps: p.Drift}
}

// Checksum returns the lowercase hex SHA-256 of rendered step SQL. The same
// function is used when recording a step and when checking it for drift.
func Checksum(rendered string) string {
	h := sha256.Sum256([]byte(rendered))
	return hex.EncodeToString(h[:])
}
