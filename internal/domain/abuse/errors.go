package abuse

import "errors"

var (
	// ErrOriginCapExceeded is returned when an origin used up its free grants
	// across all device signatures
	ErrOriginCapExceeded = errors.New("free grant cap exceeded for origin")

	// ErrDeviceCapExceeded is returned when a device signature used up its
	// free grants across all origins
	ErrDeviceCapExceeded = errors.New("free grant cap exceeded for device")

	// ErrCooldownActive is returned between grants for the same signal pair
	ErrCooldownActive = errors.New("free grant cooldown active")

	// ErrAccountTooNew is returned before the minimum account age has passed
	ErrAccountTooNew = errors.New("account too new for free grant")

	// ErrBlockedEmailDomain is returned for disposable email domains
	ErrBlockedEmailDomain = errors.New("email domain not eligible for free grant")

	ErrInternal = errors.New("internal error")
)
