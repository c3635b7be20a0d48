package types

import "errors"

// Domain error taxonomy. Services wrap these with context via fmt.Errorf and
// %w; pkg/response maps them to HTTP status codes.
var (
	// ErrNotFound indicates an order or user id that does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRequest indicates a constraint-violating request, rejected
	// before any state mutation.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrConflict indicates a duplicate order id in a book side. Under
	// correct per-pair serialization this should never surface.
	ErrConflict = errors.New("conflict")

	// ErrStoreUnavailable indicates an I/O failure in an underlying store.
	ErrStoreUnavailable = errors.New("store unavailable")
)
