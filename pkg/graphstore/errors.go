package graphstore

import "errors"

var (
	// ErrNotInitialized is returned when an operation runs before Open.
	ErrNotInitialized = errors.New("graphstore: not initialized")
	// ErrDanglingReference is returned when a synapse mutation names an
	// endpoint that does not exist. The operation is aborted with no
	// partial write.
	ErrDanglingReference = errors.New("graphstore: dangling reference")
	// ErrValidation is returned when an input fails a declared
	// constraint (embedding length, UUID shape, weight range).
	ErrValidation = errors.New("graphstore: validation failed")
	// ErrNotFound is returned when a lookup by id finds no record.
	ErrNotFound = errors.New("graphstore: not found")
)
