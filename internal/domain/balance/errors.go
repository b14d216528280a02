package balance

import "errors"

var (
	// ErrInsufficientCredits is returned when an identity doesn't have enough credits
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrInvalidAmount is returned when amount is <= 0
	ErrInvalidAmount = errors.New("invalid amount: must be greater than 0")

	// ErrDuplicateReference is returned when an external_ref was already applied
	ErrDuplicateReference = errors.New("duplicate external reference")

	// ErrInvalidKey is returned for empty or oversized identity keys
	ErrInvalidKey = errors.New("invalid identity key")

	// ErrNotFound is returned when no balance exists for the identity
	ErrNotFound = errors.New("balance not found")

	ErrInternal = errors.New("internal error")
)
