package domain

import "errors"

var (
	// ErrDrawingNotFound is returned when a referenced drawing does not exist.
	ErrDrawingNotFound = errors.New("drawing not found")

	// ErrInvalidTransition is returned for a status change outside the
	// defined state machine.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotLockHolder is returned when a mutation requires the live lock
	// and the caller does not hold it.
	ErrNotLockHolder = errors.New("caller does not hold the edit lock")
)
