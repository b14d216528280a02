package payment

import "errors"

var (
	// ErrNoMatch means no qualifying transfer was found yet. Callers are
	// expected to retry; this is not a failure.
	ErrNoMatch = errors.New("no matching transfer found yet")

	// ErrAllChainsFailed is returned only when every configured chain errored
	ErrAllChainsFailed = errors.New("all chain providers unavailable")

	// ErrChargeNotConfirmed is returned when the processor does not report
	// the charge as succeeded
	ErrChargeNotConfirmed = errors.New("charge not confirmed by processor")

	// ErrInvalidInput is returned for malformed amounts or identities
	ErrInvalidInput = errors.New("invalid input")

	ErrInternal = errors.New("internal error")
)
