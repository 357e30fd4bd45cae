package attachment

import "errors"

var (
	ErrInvalidReference   = errors.New("attachment: invalid reference")
	ErrUnsupportedScheme  = errors.New("attachment: no resolver for reference scheme")
	ErrNotFound           = errors.New("attachment: object not found")
	ErrTooLarge           = errors.New("attachment: object exceeds the size limit")
	ErrAccessDenied       = errors.New("attachment: access denied")
	ErrServiceUnavailable = errors.New("attachment: storage temporarily unavailable")
	ErrOperationTimeout   = errors.New("attachment: operation timed out")
	ErrInvalidConfig      = errors.New("attachment: invalid configuration")
	ErrFailedToLoadConfig = errors.New("attachment: failed to load AWS config")
)
