package repository

import "errors"

var (
	// ErrNotFound is returned when a requested entity is not found.
	ErrNotFound = errors.New("entity not found")

	// ErrStaleTransition is returned when a conditional state transition
	// touches zero rows: another caller already moved the row out of the
	// expected state.
	ErrStaleTransition = errors.New("conditional transition lost")
)
