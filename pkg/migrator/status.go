package migrator

import (
	"context"
	"fmt"

	"github.com/pthm/sqlstride/pkg/adapter"
)

// Status is a read-only snapshot of the schema directory, the ledger and
// the lock.
type Status struct {
	*Plan

	// Lock is the current lock row, or nil when the lock table is empty.
	Lock *adapter.LockInfo

	// Locked reports whether Lock holds an unexpired lease.
	Locked bool
}

// Status diffs the schema directory against the ledger without taking or
// respecting the lock. Drift is computed when verifyChecksums is set.
func (e *Engine) Status(ctx context.Context, verifyChecksums bool) (*Status, error) {
	plan, err := e.diff(ctx, verifyChecksums)
	if err != nil {
		return nil, err
	}

	info, err := e.adapter.LockInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading lock: %w", err)
	}
	locked, err := e.adapter.IsLocked(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading lock: %w", err)
	}

	return &Status{Plan: plan, Lock: info, Locked: locked}, nil
}
