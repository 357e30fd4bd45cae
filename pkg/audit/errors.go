package audit

import "errors"

var (
	// ErrStorageNotAvailable indicates the storage backend is unavailable
	ErrStorageNotAvailable = errors.New("audit: storage backend is unavailable")

	// ErrInvalidEntry indicates the entry failed validation
	ErrInvalidEntry = errors.New("audit: invalid entry")

	// ErrStorageTimeout indicates a storage operation timed out
	ErrStorageTimeout = errors.New("audit: storage operation timed out")

	// ErrChainBroken indicates an entry hash or link does not verify
	ErrChainBroken = errors.New("audit: hash chain broken")

	// ErrStorageNil is returned when a log is built without storage
	ErrStorageNil = errors.New("audit: storage cannot be nil")
)
