package tracking

import "errors"

var (
	ErrStoreNil         = errors.New("tracking: store cannot be nil")
	ErrStatsSourceNil   = errors.New("tracking: queue stats source cannot be nil")
	ErrInvalidEmailID   = errors.New("tracking: email id is required")
	ErrInvalidRecord    = errors.New("tracking: invalid record")
	ErrNotTracked       = errors.New("tracking: no records for email")
	ErrStoreUnavailable = errors.New("tracking: store unavailable")
	ErrUnknownEmail     = errors.New("tracking: webhook does not reference a queued email")
	ErrUnsupportedEvent = errors.New("tracking: unsupported webhook record type")
)
