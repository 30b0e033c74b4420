package migrator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pthm/sqlstride/pkg/adapter"
	"github.com/pthm/sqlstride/pkg/parser"
)

// Sentinel errors for the failure classes of a run. Each typed error below
// unwraps to its sentinel, so callers can branch with errors.Is and still
// reach the details with errors.As.
var (
	// ErrConfig marks invalid or incomplete run configuration. Nothing has
	// been read from or written to the database when it is returned.
	ErrConfig = errors.New("invalid configuration")

	// ErrLockHeld is returned when another invocation holds the run lock.
	ErrLockHeld = adapter.ErrLockHeld

	// ErrDrift is returned when an applied step no longer renders to the SQL
	// that was recorded.
	ErrDrift = errors.New("checksum drift")

	// ErrStepFailed is returned when the database rejects a step.
	ErrStepFailed = errors.New("step failed")
)

// ConfigError describes one invalid configuration value.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("invalid configuration: %v", e.Err)
	}
	return fmt.Sprintf("invalid configuration %s: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() []error {
	return []error{ErrConfig, e.Err}
}

// LockError reports the current holder of the run lock.
type LockError struct {
	Owner     string
	ExpiresAt time.Time
}

func (e *LockError) Error() string {
	if e.Owner == "" {
		return "migration lock is held by another process"
	}
	return fmt.Sprintf("migration lock is held by %s until %s",
		e.Owner, e.ExpiresAt.UTC().Format(time.RFC3339))
}

func (e *LockError) Unwrap() error {
	return ErrLockHeld
}

// DriftError lists every applied step whose current checksum differs from
// the ledger.
type DriftError struct {
	Steps []parser.Key
}

func (e *DriftError) Error() string {
	names := make([]string, len(e.Steps))
	for i, k := range e.Steps {
		names[i] = k.String()
	}
	return fmt.Sprintf("%d applied step(s) changed since they were recorded: %s",
		len(e.Steps), strings.Join(names, ", "))
}

func (e *DriftError) Unwrap() error {
	return ErrDrift
}

// StepError wraps the database error of the step that failed. Steps
// committed before it stay applied.
type StepError struct {
	Step parser.Key
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("failed on %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() []error {
	return []error{ErrStepFailed, e.Err}
}
