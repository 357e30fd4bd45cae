package tracking

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Store persists tracking records per email.
type Store interface {
	// Append adds r to the history of emailID and updates the totals.
	Append(ctx context.Context, emailID uuid.UUID, r Record) error

	// Records returns the history of emailID in append order.
	// An email without records yields an empty slice.
	Records(ctx context.Context, emailID uuid.UUID) ([]Record, error)

	// Totals returns counters across all emails.
	Totals(ctx context.Context) (Totals, error)
}

// MemoryStore keeps tracking records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID][]Record
	totals  Totals
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID][]Record)}
}

func (s *MemoryStore) Append(ctx context.Context, emailID uuid.UUID, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[emailID] = append(s.records[emailID], r)
	s.totals.add(r)
	return nil
}

func (s *MemoryStore) Records(ctx context.Context, emailID uuid.UUID) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.records[emailID]), nil
}

func (s *MemoryStore) Totals(ctx context.Context) (Totals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totals, nil
}
