// Package core provides the main memcore client: a configured memory
// store plus the ranker, behind one facade.
package core

import (
	"errors"
	"fmt"
)

// Predefined errors for common failure scenarios.
var (
	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnknownProvider indicates that the configured store provider
	// is not one of list, kv, or sqlite.
	ErrUnknownProvider = errors.New("unknown store provider")
)

// MemoryError wraps errors with operation context.
//
// It provides additional context about which operation failed, making
// error messages more informative for debugging.
//
// Example:
//
//	err := &MemoryError{
//	    Op:  "Write",
//	    Err: store.ErrInvalidNamespace,
//	}
//	// Error() returns: "memcore: Write: invalid namespace"
type MemoryError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "memcore: <Op>: <Err>"
func (e *MemoryError) Error() string {
	return fmt.Sprintf("memcore: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
//
// This allows using errors.Is() and errors.As() with MemoryError.
func (e *MemoryError) Unwrap() error {
	return e.Err
}

// NewMemoryError creates a new MemoryError wrapping the given error.
//
// If err is nil, returns nil. This allows safe error wrapping:
//
//	if err != nil {
//	    return NewMemoryError("Write", err)
//	}
//
// Parameters:
//   - op: Name of the operation (e.g., "Write", "Retrieve", "Evict")
//   - err: The underlying error to wrap
//
// Returns a MemoryError, or nil if err is nil.
func NewMemoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &MemoryError{
		Op:  op,
		Err: err,
	}
}
