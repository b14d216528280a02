package idempotency

import "errors"

var (
	// ErrInvalidRef is returned for empty or oversized references
	ErrInvalidRef = errors.New("invalid reference")

	ErrInternal = errors.New("internal error")
)
