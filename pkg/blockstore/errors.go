package blockstore

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Common sentinel errors
var (
	ErrBadMagic     = errors.New("not a block file")
	ErrCorruptBlock = errors.New("corrupt block")
	ErrClosed       = errors.New("block file is closed")
	ErrUnsorted     = errors.New("rows are not sorted on the join columns")
	ErrRowWidth     = errors.New("row width does not match the file")
)

// StoreError provides structured error information for block file operations.
type StoreError struct {
	Op    string // Operation that failed (e.g., "open", "append", "read")
	Path  string // Block file path
	Block int    // Block number, or -1 if not block specific
	Cause error  // Underlying error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Block >= 0 {
		return fmt.Sprintf("%s %s block %d: %v", e.Op, e.Path, e.Block, e.Cause)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Cause)
}

// Unwrap returns the underlying cause for error chain support.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target error matches this error's cause.
func (e *StoreError) Is(target error) bool {
	if target == nil {
		return false
	}
	return errors.Is(e.Cause, target)
}

func storeErr(op, path string, block int, cause error) error {
	return &StoreError{Op: op, Path: path, Block: block, Cause: cause}
}

func corruptf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrCorruptBlock)
}
