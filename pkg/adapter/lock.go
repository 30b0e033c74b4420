package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// LockName is the lock_name value of the run lock row.
const LockName = "sqlstride"

var (
	// ErrLockHeld is returned by Lock when another owner holds an unexpired
	// lease.
	ErrLockHeld = errors.New("lock held")

	// ErrNotLockOwner is returned by Unlock and RefreshLock when the caller
	// does not hold the lock, for example because its lease expired and was
	// taken over.
	ErrNotLockOwner = errors.New("lock not held by owner")
)

// LockInfo describes the current lock row.
type LockInfo struct {
	Name      string
	Owner     string
	LockedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the lease has run out at now.
func (l LockInfo) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

type lockRow struct {
	id int64
	LockInfo
}

func (a *Adapter) lockRows(ctx context.Context) ([]lockRow, error) {
	rows, err := a.conn.QueryContext(ctx, a.q.selectLock)
	if err != nil {
		return nil, fmt.Errorf("querying lock table: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []lockRow
	for rows.Next() {
		var r lockRow
		var lockedAt, expiresAt timestamp
		if err := rows.Scan(&r.id, &r.Name, &r.Owner, &lockedAt, &expiresAt); err != nil {
			return nil, fmt.Errorf("scanning lock row: %w", err)
		}
		r.LockedAt = lockedAt.Time
		r.ExpiresAt = expiresAt.Time
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading lock table: %w", err)
	}
	return out, nil
}

// LockInfo returns the current lock row, expired or not, or nil when the
// lock table is empty.
func (a *Adapter) LockInfo(ctx context.Context) (*LockInfo, error) {
	rows, err := a.lockRows(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if r.Name == LockName {
			info := r.LockInfo
			return &info, nil
		}
	}
	return nil, nil
}

// IsLocked reports whether an unexpired lease exists.
func (a *Adapter) IsLocked(ctx context.Context) (bool, error) {
	info, err := a.LockInfo(ctx)
	if err != nil {
		return false, err
	}
	return info != nil && !info.Expired(a.utcNow()), nil
}

// Lock acquires the run lock for owner with a lease of ttl. Expired leases
// are purged first. If another owner holds an unexpired lease the result
// wraps ErrLockHeld. Each statement commits on its own.
func (a *Adapter) Lock(ctx context.Context, owner string, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("lock ttl must be positive, got %s", ttl)
	}
	now := a.utcNow()

	if err := a.purgeExpired(ctx, now); err != nil {
		return err
	}

	_, insertErr := a.conn.ExecContext(ctx, a.q.insertLock, LockName, owner, now, now.Add(ttl))
	if insertErr == nil {
		return nil
	}

	// The unique lock_name rejected the insert: report the holder if the
	// lease is live, otherwise surface the database error.
	info, err := a.LockInfo(ctx)
	if err != nil {
		return fmt.Errorf("acquiring lock: %w", insertErr)
	}
	if info != nil && !info.Expired(now) {
		return fmt.Errorf("%w by %s until %s", ErrLockHeld, info.Owner, info.ExpiresAt.Format(time.RFC3339))
	}
	return fmt.Errorf("acquiring lock: %w", insertErr)
}

func (a *Adapter) purgeExpired(ctx context.Context, now time.Time) error {
	_, err := a.deleteExpired(ctx, now)
	return err
}

// deleteExpired removes the rows whose lease had run out at now, each by
// the id it was read with, so a lease inserted in the meantime is kept.
func (a *Adapter) deleteExpired(ctx context.Context, now time.Time) ([]LockInfo, error) {
	rows, err := a.lockRows(ctx)
	if err != nil {
		return nil, err
	}
	var removed []LockInfo
	for _, r := range rows {
		if !r.Expired(now) {
			continue
		}
		res, err := a.conn.ExecContext(ctx, a.q.deleteByID, r.id)
		if err != nil {
			return removed, fmt.Errorf("purging expired lock of %s: %w", r.Owner, err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			removed = append(removed, r.LockInfo)
		}
	}
	return removed, nil
}

// ReleaseExpired removes expired leases and returns them. Live leases are
// never touched.
func (a *Adapter) ReleaseExpired(ctx context.Context) ([]LockInfo, error) {
	return a.deleteExpired(ctx, a.utcNow())
}

// RefreshLock extends owner's lease to now+ttl.
func (a *Adapter) RefreshLock(ctx context.Context, owner string, ttl time.Duration) error {
	res, err := a.conn.ExecContext(ctx, a.q.refreshLock, a.utcNow().Add(ttl), LockName, owner)
	if err != nil {
		return fmt.Errorf("refreshing lock: %w", err)
	}
	err = expectRow(res, owner)
	if !errors.Is(err, ErrNotLockOwner) {
		return err
	}

	// MySQL counts changed rows, not matched ones, so an update within the
	// same second reports zero. Confirm ownership directly.
	info, infoErr := a.LockInfo(ctx)
	if infoErr != nil {
		return infoErr
	}
	if info != nil && info.Owner == owner {
		return nil
	}
	return err
}

// Unlock releases the lock if owner holds it.
func (a *Adapter) Unlock(ctx context.Context, owner string) error {
	res, err := a.conn.ExecContext(ctx, a.q.deleteOwned, LockName, owner)
	if err != nil {
		return fmt.Errorf("releasing lock: %w", err)
	}
	return expectRow(res, owner)
}

// ForceUnlock deletes every lock row regardless of owner and returns how
// many were removed.
func (a *Adapter) ForceUnlock(ctx context.Context) (int64, error) {
	res, err := a.conn.ExecContext(ctx, a.q.deleteAll)
	if err != nil {
		return 0, fmt.Errorf("clearing lock table: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clearing lock table: %w", err)
	}
	return n, nil
}

func expectRow(res interface{ RowsAffected() (int64, error) }, owner string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking lock update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotLockOwner, owner)
	}
	return nil
}
