package sqlstride

import (
	"errors"

	"github.com/pthm/sqlstride/pkg/dialect"
	"github.com/pthm/sqlstride/pkg/migrator"
	"github.com/pthm/sqlstride/pkg/parser"
	"github.com/pthm/sqlstride/pkg/render"
)

// Sentinel errors for the failure classes of a run. Use the Is*Err helpers
// to branch on them; typed details (*migrator.LockError, *migrator.DriftError,
// *migrator.StepError) are available through errors.As.
var (
	// ErrConfig is returned for missing connection settings, invalid table
	// names or an unknown dialect. Nothing has touched the database.
	ErrConfig = migrator.ErrConfig

	// ErrUnknownDialect is returned for a dialect name that is not
	// registered. It always comes wrapped in ErrConfig.
	ErrUnknownDialect = dialect.ErrUnknownDialect

	// ErrLockHeld is returned when another run holds an unexpired lock.
	// Wait for it to finish, or run `sqlstride unlock` if it crashed.
	ErrLockHeld = migrator.ErrLockHeld

	// ErrDrift is returned when checksum verification finds applied steps
	// whose SQL changed. Restore the original text or add a new step.
	ErrDrift = migrator.ErrDrift

	// ErrStepFailed is returned when the database rejected a step. Earlier
	// steps stay applied; fix the step and run again.
	ErrStepFailed = migrator.ErrStepFailed

	// ErrDuplicateStep is returned when a file declares the same author:id
	// twice.
	ErrDuplicateStep = parser.ErrDuplicateStep

	// ErrTemplate is returned when a step template fails to parse or
	// references an undefined variable.
	ErrTemplate = render.ErrTemplate
)

// IsConfigErr returns true if err is or wraps ErrConfig.
func IsConfigErr(err error) bool {
	return errors.Is(err, ErrConfig)
}

// IsLockHeldErr returns true if err is or wraps ErrLockHeld.
func IsLockHeldErr(err error) bool {
	return errors.Is(err, ErrLockHeld)
}

// IsDriftErr returns true if err is or wraps ErrDrift.
func IsDriftErr(err error) bool {
	return errors.Is(err, ErrDrift)
}

// IsStepFailedErr returns true if err is or wraps ErrStepFailed.
func IsStepFailedErr(err error) bool {
	return errors.Is(err, ErrStepFailed)
}

// IsSchemaErr returns true if err comes from reading the schema directory:
// an unreadable file, a duplicate step or a broken template.
func IsSchemaErr(err error) bool {
	var fileErr *parser.FileError
	return errors.As(err, &fileErr) || errors.Is(err, ErrDuplicateStep) || errors.Is(err, ErrTemplate)
}
