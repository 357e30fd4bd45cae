package audit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/audit"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Store(ctx context.Context, entries ...audit.Entry) error {
	args := m.Called(ctx, entries)
	return args.Error(0)
}

func (m *MockStorage) Query(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]audit.Entry), args.Error(1)
}

func (m *MockStorage) Count(ctx context.Context, f audit.Filter) (int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) Last(ctx context.Context) (*audit.Entry, error) {
	args := m.Called(ctx)
	e, _ := args.Get(0).(*audit.Entry)
	return e, args.Error(1)
}

func (m *MockStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func seed(t *testing.T, s audit.Storage) (uuid.UUID, uuid.UUID) {
	t.Helper()

	a, b := uuid.New(), uuid.New()
	entries := []audit.Entry{
		{ID: uuid.New(), Seq: 3, EmailID: b, Timestamp: epoch.Add(2 * time.Hour), Status: audit.StatusSuccess, Subject: "Reminder", Recipients: []string{"x@club.example"}},
		{ID: uuid.New(), Seq: 1, EmailID: a, Timestamp: epoch, Status: audit.StatusError, Subject: "Event approved", Recipients: []string{"member@club.example"}, ErrorDetails: "connection refused"},
		{ID: uuid.New(), Seq: 2, EmailID: a, Timestamp: epoch.Add(time.Hour), Status: audit.StatusSuccess, Subject: "Event approved", Recipients: []string{"member@club.example"}, Actor: "admin@federation.example"},
	}
	require.NoError(t, s.Store(context.Background(), entries...))
	return a, b
}

func TestMemoryStorage_QueryOrderAndFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := audit.NewMemoryStorage()
	a, b := seed(t, s)

	all, err := s.Query(ctx, audit.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, e := range all {
		assert.Equal(t, int64(i+1), e.Seq)
	}

	tests := []struct {
		name   string
		filter audit.Filter
		want   []int64
	}{
		{"by email", audit.Filter{EmailID: a}, []int64{1, 2}},
		{"other email", audit.Filter{EmailID: b}, []int64{3}},
		{"by status", audit.Filter{Statuses: []audit.Status{audit.StatusError}}, []int64{1}},
		{"by recipient", audit.Filter{Recipient: " Member@Club.example "}, []int64{1, 2}},
		{"by actor", audit.Filter{Actor: "admin@federation.example"}, []int64{2}},
		{"since", audit.Filter{Since: epoch.Add(time.Hour)}, []int64{2, 3}},
		{"until exclusive", audit.Filter{Until: epoch.Add(time.Hour)}, []int64{1}},
		{"search error details", audit.Filter{Search: "REFUSED"}, []int64{1}},
		{"search subject", audit.Filter{Search: "remind"}, []int64{3}},
		{"paged", audit.Filter{Offset: 1, Limit: 1}, []int64{2}},
		{"offset past end", audit.Filter{Offset: 5}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Query(ctx, tt.filter)
			require.NoError(t, err)

			var seqs []int64
			for _, e := range got {
				seqs = append(seqs, e.Seq)
			}
			assert.Equal(t, tt.want, seqs)
		})
	}

	n, err := s.Count(ctx, audit.Filter{EmailID: a, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "count ignores paging")
}

func TestMemoryStorage_LastAndDeleteBefore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := audit.NewMemoryStorage()

	last, err := s.Last(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	seed(t, s)

	last, err = s.Last(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, int64(3), last.Seq)

	n, err := s.DeleteBefore(ctx, epoch.Add(90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rest, err := s.Query(ctx, audit.Filter{})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, int64(3), rest[0].Seq)
}

func TestMemoryStorage_ReturnsCopies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := audit.NewMemoryStorage()
	seed(t, s)

	got, err := s.Query(ctx, audit.Filter{Limit: 1})
	require.NoError(t, err)
	got[0].Recipients[0] = "changed@example.com"

	again, err := s.Query(ctx, audit.Filter{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, "member@club.example", again[0].Recipients[0])
}

func TestAsyncWriter_BatchesConcurrentWrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := audit.NewMemoryStorage()
	w, closeFn := audit.NewAsyncWriter(store, audit.AsyncOptions{
		BatchSize:    4,
		BatchTimeout: 10 * time.Millisecond,
	})

	const writers = 5
	const perWriter = 3

	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range perWriter {
				e := audit.Entry{ID: uuid.New(), Seq: int64(i*perWriter + j + 1), EmailID: uuid.New(), Status: audit.StatusSuccess}
				assert.NoError(t, w.Store(ctx, e))
			}
		}()
	}
	wg.Wait()

	// Store returns only after its batch is written.
	n, err := w.Count(ctx, audit.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(writers*perWriter), n)

	require.NoError(t, closeFn(ctx))
}

func TestAsyncWriter_PropagatesStorageErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := new(MockStorage)
	storeErr := errors.New("disk full")
	store.On("Store", mock.Anything, mock.Anything).Return(storeErr)

	w, closeFn := audit.NewAsyncWriter(store, audit.AsyncOptions{BatchTimeout: 5 * time.Millisecond})
	defer func() { _ = closeFn(ctx) }()

	err := w.Store(ctx, audit.Entry{ID: uuid.New(), EmailID: uuid.New(), Status: audit.StatusError})
	assert.ErrorIs(t, err, storeErr)
	store.AssertExpectations(t)
}

func TestAsyncWriter_CloseFlushesAndRejects(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := audit.NewMemoryStorage()
	w, closeFn := audit.NewAsyncWriter(store, audit.AsyncOptions{
		BatchSize:    100,
		BatchTimeout: time.Hour,
	})

	done := make(chan error, 1)
	go func() {
		done <- w.Store(ctx, audit.Entry{ID: uuid.New(), Seq: 1, EmailID: uuid.New(), Status: audit.StatusSuccess})
	}()

	// the write can only complete through the close-time flush
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, closeFn(ctx))
	require.NoError(t, <-done)

	n, err := store.Count(ctx, audit.Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	err = w.Store(ctx, audit.Entry{ID: uuid.New(), Seq: 2, EmailID: uuid.New(), Status: audit.StatusSuccess})
	assert.ErrorIs(t, err, audit.ErrStorageNotAvailable)
	assert.NoError(t, closeFn(ctx), "close is idempotent")
}

func TestAsyncWriter_StoreHonorsContext(t *testing.T) {
	t.Parallel()

	store := audit.NewMemoryStorage()
	w, closeFn := audit.NewAsyncWriter(store, audit.AsyncOptions{BatchSize: 100, BatchTimeout: time.Hour})
	defer func() { _ = closeFn(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := w.Store(ctx, audit.Entry{ID: uuid.New(), Seq: 1, EmailID: uuid.New(), Status: audit.StatusSuccess})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
