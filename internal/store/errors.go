package store

import "errors"

var (
	// ErrNotFound is returned when no record matches a load or update filter.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("store: conflict")

	// ErrInvalidFilter is returned when a Where key does not name a column.
	ErrInvalidFilter = errors.New("store: invalid filter")

	// ErrInvalidField is returned when an update names an unknown or immutable column.
	ErrInvalidField = errors.New("store: invalid field")
)
