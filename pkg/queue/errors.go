package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when enqueue or patch input is incomplete or malformed.
	ErrValidation = errors.New("queue: validation failed")

	// ErrNotFound is returned when no record exists for an id.
	ErrNotFound = errors.New("queue: email not found")

	// ErrAlreadyExists is returned by Storage.Create for a duplicate id.
	ErrAlreadyExists = errors.New("queue: email already exists")

	// ErrQueueFull is returned when pending plus draft records reach MaxQueueSize.
	ErrQueueFull = errors.New("queue: queue is full")

	// ErrInvalidStateTransition is returned when a status change is not in the transition table.
	ErrInvalidStateTransition = errors.New("queue: invalid state transition")

	// ErrRetriesExhausted is returned when a failed record has no retries left.
	ErrRetriesExhausted = errors.New("queue: retries exhausted")

	// ErrAlreadyClaimed is returned when a worker holds the claim on a record.
	ErrAlreadyClaimed = errors.New("queue: email is claimed by a worker")

	// ErrClaimLost is returned when a worker writes to a record it no longer holds.
	ErrClaimLost = errors.New("queue: claim is no longer held by this worker")

	// ErrNotClaimable is returned by ClaimByID when the record is not pending or not yet due.
	ErrNotClaimable = errors.New("queue: email is not claimable")

	// ErrNoEmailToClaim is returned by Claim when nothing is eligible.
	ErrNoEmailToClaim = errors.New("queue: no email to claim")

	// ErrRejected is returned when approving a draft that was rejected.
	ErrRejected = errors.New("queue: email was rejected")

	// ErrEmptyIDs is returned by bulk operations called without ids.
	ErrEmptyIDs = errors.New("queue: no ids given")

	// ErrStorageNil is returned when a service is built without storage.
	ErrStorageNil = errors.New("queue: storage cannot be nil")

	// ErrInvalidPriority is returned when priority is outside 0-100.
	ErrInvalidPriority = errors.New("queue: priority must be between 0 and 100")

	// ErrInvalidConfig is returned when a policy config fails validation.
	ErrInvalidConfig = errors.New("queue: invalid config")
)

// TransitionError describes a rejected status change.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidStateTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidStateTransition
}

// ErrInvalidSchedule is returned when a schedule string cannot be parsed.
var ErrInvalidSchedule = errors.New("queue: invalid schedule format")
