package queue

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements Storage for tests and local development.
type MemoryStorage struct {
	mu     sync.RWMutex
	emails map[uuid.UUID]*QueuedEmail

	// byStatus keeps ids per status so claims only scan pending records
	byStatus map[Status][]uuid.UUID
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		emails:   make(map[uuid.UUID]*QueuedEmail),
		byStatus: make(map[Status][]uuid.UUID),
	}
}

func (ms *MemoryStorage) Create(ctx context.Context, e *QueuedEmail) error {
	if e == nil {
		return fmt.Errorf("%w: email cannot be nil", ErrValidation)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.emails[e.ID]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, e.ID)
	}

	ms.emails[e.ID] = e.Clone()
	ms.byStatus[e.Status] = append(ms.byStatus[e.Status], e.ID)
	return nil
}

func (ms *MemoryStorage) Get(ctx context.Context, id uuid.UUID) (*QueuedEmail, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	e, ok := ms.emails[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.Clone(), nil
}

func (ms *MemoryStorage) List(ctx context.Context, f Filter) ([]*QueuedEmail, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	matched := ms.match(f)
	slices.SortFunc(matched, compare)

	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			return []*QueuedEmail{}, nil
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(matched) {
		matched = matched[:f.Limit]
	}

	out := make([]*QueuedEmail, len(matched))
	for i, e := range matched {
		out[i] = e.Clone()
	}
	return out, nil
}

func (ms *MemoryStorage) Count(ctx context.Context, f Filter) (int, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.match(f)), nil
}

func (ms *MemoryStorage) Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (*QueuedEmail, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	current, ok := ms.emails[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = id

	ms.store(current.Status, next)
	return next.Clone(), nil
}

func (ms *MemoryStorage) Delete(ctx context.Context, id uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	e, ok := ms.emails[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	ms.removeFromStatusIndex(id, e.Status)
	delete(ms.emails, id)
	return nil
}

func (ms *MemoryStorage) Claim(ctx context.Context, workerID string, now time.Time, ttl time.Duration) (*QueuedEmail, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var best *QueuedEmail
	for _, id := range ms.byStatus[StatusPending] {
		e := ms.emails[id]
		if !e.IsDue(now) || e.IsClaimed(now) {
			continue
		}
		if best == nil || Less(e, best) {
			best = e
		}
	}
	if best == nil {
		return nil, ErrNoEmailToClaim
	}

	claim(best, workerID, now, ttl)
	return best.Clone(), nil
}

func (ms *MemoryStorage) ClaimByID(ctx context.Context, id uuid.UUID, workerID string, now time.Time, ttl time.Duration) (*QueuedEmail, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	e, ok := ms.emails[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := claimable(e, now); err != nil {
		return nil, err
	}

	claim(e, workerID, now, ttl)
	return e.Clone(), nil
}

func (ms *MemoryStorage) Release(ctx context.Context, id uuid.UUID, workerID string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	e, ok := ms.emails[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.ClaimedBy == workerID {
		e.ClaimedBy = ""
		e.ClaimedUntil = nil
	}
	return nil
}

func (ms *MemoryStorage) ReleaseExpired(ctx context.Context, now time.Time) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	released := 0
	for _, e := range ms.emails {
		if e.ClaimedBy != "" && !e.IsClaimed(now) {
			e.ClaimedBy = ""
			e.ClaimedUntil = nil
			released++
		}
	}
	return released, nil
}

func (ms *MemoryStorage) DeleteOlderThan(ctx context.Context, status Status, before time.Time) (int, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	deleted := 0
	for _, id := range slices.Clone(ms.byStatus[status]) {
		if ms.emails[id].UpdatedAt.Before(before) {
			ms.removeFromStatusIndex(id, status)
			delete(ms.emails, id)
			deleted++
		}
	}
	return deleted, nil
}

func (ms *MemoryStorage) Stats(ctx context.Context, w StatsWindow) (Stats, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	acc := NewStatsAccumulator(w)
	for _, e := range ms.emails {
		acc.Add(e)
	}
	return acc.Result(), nil
}

// Helper methods

func (ms *MemoryStorage) match(f Filter) []*QueuedEmail {
	var out []*QueuedEmail
	for _, e := range ms.emails {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

func (ms *MemoryStorage) store(prev Status, e *QueuedEmail) {
	if prev != e.Status {
		ms.removeFromStatusIndex(e.ID, prev)
		ms.byStatus[e.Status] = append(ms.byStatus[e.Status], e.ID)
	}
	ms.emails[e.ID] = e
}

func (ms *MemoryStorage) removeFromStatusIndex(id uuid.UUID, status Status) {
	ms.byStatus[status] = slices.DeleteFunc(ms.byStatus[status], func(v uuid.UUID) bool {
		return v == id
	})
}

func claimable(e *QueuedEmail, now time.Time) error {
	if e.IsClaimed(now) {
		return fmt.Errorf("%w: held by %s", ErrAlreadyClaimed, e.ClaimedBy)
	}
	if e.Status != StatusPending {
		return fmt.Errorf("%w: status is %s", ErrNotClaimable, e.Status)
	}
	if !e.IsDue(now) {
		return fmt.Errorf("%w: scheduled for %s", ErrNotClaimable, e.ScheduledFor.Format(time.RFC3339))
	}
	return nil
}

func claim(e *QueuedEmail, workerID string, now time.Time, ttl time.Duration) {
	until := now.Add(ttl)
	e.ClaimedBy = workerID
	e.ClaimedUntil = &until
}

func compare(a, b *QueuedEmail) int {
	switch {
	case Less(a, b):
		return -1
	case Less(b, a):
		return 1
	}
	return 0
}
