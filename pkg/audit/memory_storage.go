package audit

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStorage keeps entries in process memory. For tests and development.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryStorage creates an empty storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Store(ctx context.Context, entries ...Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		e.Recipients = slices.Clone(e.Recipients)
		i, _ := slices.BinarySearchFunc(s.entries, e.Seq, func(a Entry, seq int64) int {
			return cmp.Compare(a.Seq, seq)
		})
		s.entries = slices.Insert(s.entries, i, e)
	}
	return nil
}

func (s *MemoryStorage) Query(ctx context.Context, f Filter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for _, e := range s.entries {
		if f.Match(e) {
			e.Recipients = slices.Clone(e.Recipients)
			out = append(out, e)
		}
	}
	return page(out, f.Offset, f.Limit), nil
}

func (s *MemoryStorage) Count(ctx context.Context, f Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.entries {
		if f.Match(e) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStorage) Last(ctx context.Context) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return nil, nil
	}
	e := s.entries[len(s.entries)-1]
	return &e, nil
}

func (s *MemoryStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.entries)
	s.entries = slices.DeleteFunc(s.entries, func(e Entry) bool {
		return e.Timestamp.Before(cutoff)
	})
	return int64(before - len(s.entries)), nil
}
