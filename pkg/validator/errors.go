package validator

import "errors"

var (
	// ErrValidationFailed matches any ValidationErrors value.
	ErrValidationFailed = errors.New("validation failed")

	// ErrInvalidEmail is returned for malformed addresses.
	ErrInvalidEmail = errors.New("invalid email address")

	// ErrDisposableEmail is returned when disposable domains are rejected.
	ErrDisposableEmail = errors.New("disposable email domain")

	// ErrRoleEmail is returned when role addresses are not allowed.
	ErrRoleEmail = errors.New("role email address not allowed")

	// ErrLookup is returned when the domain has no mail-capable host or DNS fails.
	// It is distinct from format errors: the address may be well-formed.
	ErrLookup = errors.New("mail domain lookup failed")

	// ErrInvalidPhone is returned for numbers that do not match the regional pattern.
	ErrInvalidPhone = errors.New("invalid phone number")

	// ErrUnknownRegion is returned when a phone region has no registered pattern.
	ErrUnknownRegion = errors.New("unknown phone region")
)
