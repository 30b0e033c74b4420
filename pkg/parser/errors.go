package parser

import (
	"errors"
	"fmt"
)

// ErrDuplicateStep is returned when the same file declares the same
// author:id pair twice.
var ErrDuplicateStep = errors.New("duplicate step")

// FileError wraps a filesystem failure while reading the schema directory.
type FileError struct {
	Path string // file or directory path
	Op   string // operation being performed
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
