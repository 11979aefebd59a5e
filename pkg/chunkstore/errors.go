package chunkstore

import "errors"

var (
	// ErrNotInitialized is returned when an operation runs before the
	// store has completed initialization.
	ErrNotInitialized = errors.New("chunkstore: not initialized")
	// ErrIntegrity is returned when stored bytes do not hash to their key.
	ErrIntegrity = errors.New("chunkstore: integrity check failed")
)
