package registry

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a channel id does not exist.
var ErrNotFound = errors.New("channel not found")

// StoreError wraps a storage-layer failure with the operation that
// produced it.
type StoreError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("channel store %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chain support.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// ValidationError reports a rejected registration or update.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid channel %s: %s", e.Field, e.Reason)
}
