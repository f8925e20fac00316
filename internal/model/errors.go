package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an event, participant or token does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an email is already registered for an event.
	ErrConflict = errors.New("email already registered for this event")

	// ErrInvalidState is returned when an operation does not apply to the
	// participant's or event's current state.
	ErrInvalidState = errors.New("invalid state")

	// ErrCapacityExceeded never reaches callers of the registration paths;
	// admission turns it into a waitlist assignment.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation error")
)

// InvalidStatef builds an ErrInvalidState with a description.
func InvalidStatef(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// Validationf builds an ErrValidation with a description.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
