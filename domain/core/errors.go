package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound    = errors.New("resource not found")
	ErrRunNotFound = fmt.Errorf("%w: run", ErrNotFound)

	// Configuration errors
	ErrUnknownMode      = errors.New("unknown mode")
	ErrNonPositive      = errors.New("value must be positive")
	ErrOutOfRange       = errors.New("value out of range")
	ErrEmptyReference   = errors.New("external reference is empty")
	ErrMissingColumn    = errors.New("required column missing")
	ErrInsufficientData = errors.New("insufficient data for analysis")

	// Determinism errors
	ErrNonDeterministic = errors.New("non-deterministic result")
	ErrHashMismatch     = errors.New("hash mismatch")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("validation failed for %s: %s", field, reason)
}

func NewUnknownModeError(field, value string) error {
	return fmt.Errorf("%w for %s: %q", ErrUnknownMode, field, value)
}

func NewMissingColumnError(column string) error {
	return fmt.Errorf("%w: %s", ErrMissingColumn, column)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConfigError(err error) bool {
	return errors.Is(err, ErrUnknownMode) ||
		errors.Is(err, ErrNonPositive) ||
		errors.Is(err, ErrOutOfRange) ||
		errors.Is(err, ErrEmptyReference)
}

func IsDeterminismError(err error) bool {
	return errors.Is(err, ErrNonDeterministic) ||
		errors.Is(err, ErrHashMismatch)
}
