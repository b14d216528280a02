package generation

import "errors"

var (
	// ErrInvalidRequest is returned for unknown kinds or missing fields
	ErrInvalidRequest = errors.New("invalid generation request")

	// ErrDuplicateRequest is returned when a client request id was already
	// accepted within the dedup window
	ErrDuplicateRequest = errors.New("duplicate generation request")

	// ErrNotFound is returned when no generation exists for the id
	ErrNotFound = errors.New("generation not found")

	ErrInternal = errors.New("internal error")
)
