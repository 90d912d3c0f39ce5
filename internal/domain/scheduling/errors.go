package scheduling

import "errors"

var (
	// ErrConflict is returned when a write would double-book a provider.
	ErrConflict     = errors.New("schedule conflict")
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)
