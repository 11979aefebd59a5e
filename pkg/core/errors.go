// Package core binds every component into one engine, the top-level
// facade a host (CLI, HTTP API, MCP server) opens once per data
// directory.
package core

import "errors"

// Canonical error taxonomy. Sub-packages define their own
// sentinel errors for package-local callers (graphstore.ErrDanglingReference,
// chunkstore.ErrNotInitialized, hashvec.ErrDimensionMismatch, ...); these
// are the stable values a host-level caller should errors.Is against
// regardless of which component produced the failure.
var (
	// ErrNotInitialized is returned when an operation runs before Open.
	ErrNotInitialized = errors.New("core: not initialized")
	// ErrDimensionMismatch is returned when a vector's length does not
	// match the configured embedding dimension.
	ErrDimensionMismatch = errors.New("core: embedding dimension mismatch")
	// ErrIntegrity is returned when stored bytes or a Merkle tree fail
	// to verify against their declared hash.
	ErrIntegrity = errors.New("core: integrity check failed")
	// ErrDanglingReference is returned when a synapse mutation names an
	// endpoint that does not exist.
	ErrDanglingReference = errors.New("core: dangling reference")
	// ErrValidation is returned when an input fails a declared
	// constraint (length, range, shape).
	ErrValidation = errors.New("core: validation failed")
	// ErrEmbeddingTimeout is returned when the injected embedding
	// provider exceeds its configured budget.
	ErrEmbeddingTimeout = errors.New("core: embedding provider timed out")
	// ErrEmbeddingUnavailable is returned when the injected embedding
	// provider is absent or otherwise cannot be invoked.
	ErrEmbeddingUnavailable = errors.New("core: embedding provider unavailable")
	// ErrNotFound is returned when a lookup by id finds no record.
	ErrNotFound = errors.New("core: not found")
	// ErrRegistryDenied is returned when the optional dataset-id
	// registry guard is enabled and the requested dataset id is not
	// registered.
	ErrRegistryDenied = errors.New("core: dataset id not registered")
	// ErrInvalidContent is returned by content validation for empty,
	// whitespace-only, or non-UTF-8 text.
	ErrInvalidContent = errors.New("core: invalid content")
	// ErrContentTooLarge is returned by content validation when text
	// exceeds the configured size ceiling.
	ErrContentTooLarge = errors.New("core: content exceeds maximum allowed size")
)
