package audit

import (
	"context"
	"time"
)

// Storage persists audit entries. Entries are never modified after Store.
type Storage interface {
	// Store appends entries in order.
	Store(ctx context.Context, entries ...Entry) error

	// Query returns matching entries ordered by Seq ascending.
	Query(ctx context.Context, f Filter) ([]Entry, error)

	// Count returns the number of matching entries, ignoring Limit and Offset.
	Count(ctx context.Context, f Filter) (int64, error)

	// Last returns the entry with the highest Seq, or nil when empty.
	Last(ctx context.Context) (*Entry, error)

	// DeleteBefore removes entries with a timestamp before cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// BatchWriter receives entries in batches. Search mirrors implement it.
type BatchWriter interface {
	StoreBatch(ctx context.Context, entries []Entry) error
}
