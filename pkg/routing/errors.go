package routing

import (
	"errors"
	"fmt"
)

// ErrNoChannel is returned when no eligible channel exists for the
// requested model and tenant. Callers surface it as a capacity error.
var ErrNoChannel = errors.New("no eligible channel available")

// NoChannelError is returned when selection finds no eligible channel.
type NoChannelError struct {
	// Model is the requested model.
	Model string

	// TenantID is the requesting tenant.
	TenantID string

	// Candidates is how many channels were considered before the
	// health filter.
	Candidates int
}

// Error implements the error interface.
func (e *NoChannelError) Error() string {
	if e.Candidates == 0 {
		return fmt.Sprintf("no channel registered for model %q", e.Model)
	}
	return fmt.Sprintf("no healthy channel for model %q (%d candidates filtered)", e.Model, e.Candidates)
}

// Is implements error matching for errors.Is().
func (e *NoChannelError) Is(target error) bool {
	return target == ErrNoChannel
}
