package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UpdateFunc mutates a record inside Storage.Update. Returning an error aborts
// the update and leaves the stored record unchanged.
type UpdateFunc func(e *QueuedEmail) error

// Storage persists queued emails. Implementations return copies, never
// references to their internal state.
type Storage interface {
	// Create stores a new record. ErrAlreadyExists on duplicate id.
	Create(ctx context.Context, e *QueuedEmail) error

	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*QueuedEmail, error)

	// List returns matching records in dispatch order (see Less).
	List(ctx context.Context, f Filter) ([]*QueuedEmail, error)

	// Count returns the number of matching records, ignoring Limit and Offset.
	Count(ctx context.Context, f Filter) (int, error)

	// Update runs fn on the current record and stores the result atomically.
	Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (*QueuedEmail, error)

	// Delete removes a record. ErrNotFound when absent.
	Delete(ctx context.Context, id uuid.UUID) error

	// Claim marks the first eligible record (pending, due at now, not claimed
	// or claim expired) as held by workerID until now+ttl. ErrNoEmailToClaim when none.
	Claim(ctx context.Context, workerID string, now time.Time, ttl time.Duration) (*QueuedEmail, error)

	// ClaimByID claims one specific record under the same eligibility rules.
	// ErrAlreadyClaimed when another claim is live, ErrNotClaimable otherwise.
	ClaimByID(ctx context.Context, id uuid.UUID, workerID string, now time.Time, ttl time.Duration) (*QueuedEmail, error)

	// Release clears the claim if it is still held by workerID.
	Release(ctx context.Context, id uuid.UUID, workerID string) error

	// ReleaseExpired clears claims that ended before now and returns how many.
	ReleaseExpired(ctx context.Context, now time.Time) (int, error)

	// DeleteOlderThan removes records in status last updated before the cutoff.
	DeleteOlderThan(ctx context.Context, status Status, before time.Time) (int, error)

	// Stats summarizes all records.
	Stats(ctx context.Context, w StatsWindow) (Stats, error)
}
