// Package cli provides shared configuration and utilities for the sqlstride CLI.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/pthm/sqlstride"
)

// Exit codes.
const (
	ExitSuccess     = 0
	ExitGeneral     = 1
	ExitConfig      = 2
	ExitSchemaParse = 3
	ExitDBConnect   = 4
	ExitLockHeld    = 5
	ExitDrift       = 6
	ExitStepFailed  = 7
)

// ExitError wraps an error with an exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitWithError prints the error and exits with the appropriate code.
func ExitWithError(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(ExitCode(err))
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitGeneral
}

// Classify wraps an error returned by the library with the exit code of its
// class. Errors that already carry an exit code are returned unchanged.
func Classify(msg string, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}

	switch {
	case sqlstride.IsLockHeldErr(err):
		return &ExitError{Code: ExitLockHeld, Message: msg, Err: err}
	case sqlstride.IsDriftErr(err):
		return &ExitError{Code: ExitDrift, Message: msg, Err: err}
	case sqlstride.IsStepFailedErr(err):
		return &ExitError{Code: ExitStepFailed, Message: msg, Err: err}
	case sqlstride.IsSchemaErr(err):
		return SchemaParseError(msg, err)
	case sqlstride.IsConfigErr(err):
		return ConfigError(msg, err)
	default:
		return GeneralError(msg, err)
	}
}

// ConfigError creates an ExitError with ExitConfig code.
func ConfigError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitConfig, Message: msg, Err: err}
}

// SchemaParseError creates an ExitError with ExitSchemaParse code.
func SchemaParseError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitSchemaParse, Message: msg, Err: err}
}

// DBConnectError creates an ExitError with ExitDBConnect code.
func DBConnectError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitDBConnect, Message: msg, Err: err}
}

// GeneralError creates an ExitError with ExitGeneral code.
func GeneralError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitGeneral, Message: msg, Err: err}
}
