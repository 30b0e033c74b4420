package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm/sqlstride/internal/cli"
	"github.com/pthm/sqlstride/pkg/adapter"
)

var unlockForce bool

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Release a stale migration lock",
	Long: `Release the migration lock left behind by a crashed run.

Without --force only an expired lease is removed; a live lock is reported and
left alone. With --force the lock is removed whoever holds it.`,
	Example: `  # Clear an expired lock
  sqlstride unlock

  # Clear the lock even if its lease is still running
  sqlstride unlock --force`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUnlock(cmd.Context(), unlockForce)
	},
}

func init() {
	unlockCmd.Flags().BoolVar(&unlockForce, "force", false, "remove the lock even if it has not expired")
}

func runUnlock(ctx context.Context, force bool) error {
	a, closeAll, err := openAdapter(ctx)
	if err != nil {
		return err
	}
	defer closeAll()

	info, err := a.LockInfo(ctx)
	if err != nil {
		return cli.GeneralError("reading lock", err)
	}
	if info == nil {
		if !quiet {
			fmt.Println("No lock held.")
		}
		return nil
	}

	if force {
		n, err := a.ForceUnlock(ctx)
		if err != nil {
			return cli.GeneralError("releasing lock", err)
		}
		logger.Info("lock released", "owner", info.Owner, "rows", n, "forced", true)
		if !quiet {
			fmt.Printf("Released lock held by %s.\n", info.Owner)
		}
		return nil
	}

	// Only expired leases go; a run that took the lock since it was read
	// keeps it.
	removed, err := a.ReleaseExpired(ctx)
	if err != nil {
		return cli.GeneralError("releasing lock", err)
	}
	if len(removed) == 0 {
		holder, err := a.LockInfo(ctx)
		if err != nil {
			return cli.GeneralError("reading lock", err)
		}
		if holder == nil {
			if !quiet {
				fmt.Println("No lock held.")
			}
			return nil
		}
		return lockHeldError(holder)
	}
	for _, r := range removed {
		logger.Info("lock released", "owner", r.Owner, "expired", r.ExpiresAt, "forced", false)
		if !quiet {
			fmt.Printf("Released expired lock held by %s.\n", r.Owner)
		}
	}
	return nil
}

func lockHeldError(info *adapter.LockInfo) error {
	return &cli.ExitError{
		Code: cli.ExitLockHeld,
		Message: fmt.Sprintf("lock is held by %s until %s (use --force if that run is gone)",
			info.Owner, info.ExpiresAt.UTC().Format(time.RFC3339)),
		Err: adapter.ErrLockHeld,
	}
}
