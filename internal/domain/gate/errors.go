package gate

import "errors"

var (
	// ErrInsufficientBalance is the admission denial; it has no side effects
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidCost is returned when cost is <= 0
	ErrInvalidCost = errors.New("invalid cost: must be greater than 0")

	// ErrNotFound is returned when no reservation exists for the correlation id
	ErrNotFound = errors.New("reservation not found")

	// ErrDuplicateReservation is returned when a correlation id is reused
	ErrDuplicateReservation = errors.New("duplicate correlation id")

	// ErrAlreadyReleased is returned by Commit when the reservation was
	// refunded first, typically by the sweep racing a late success
	ErrAlreadyReleased = errors.New("reservation already released")

	ErrInternal = errors.New("internal error")
)
