package queue_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/queue"
)

func TestCanTransition_Table(t *testing.T) {
	t.Parallel()

	allowed := map[[2]queue.Status]bool{
		{queue.StatusDraft, queue.StatusPending}:     true,
		{queue.StatusPending, queue.StatusSent}:      true,
		{queue.StatusPending, queue.StatusFailed}:    true,
		{queue.StatusPending, queue.StatusCancelled}: true,
		{queue.StatusFailed, queue.StatusPending}:    true,
	}

	for _, from := range queue.Statuses {
		for _, to := range queue.Statuses {
			want := allowed[[2]queue.Status{from, to}]
			assert.Equal(t, want, queue.CanTransition(from, to), "%s -> %s", from, to)

			e := &queue.QueuedEmail{Status: from, MaxRetries: 3}
			err := queue.Transition(e, to)
			if want {
				assert.NoError(t, err, "%s -> %s", from, to)
				assert.Equal(t, to, e.Status)
				continue
			}
			require.Error(t, err, "%s -> %s", from, to)
			assert.ErrorIs(t, err, queue.ErrInvalidStateTransition)
			assert.Equal(t, from, e.Status, "failed transition must not change status")

			var te *queue.TransitionError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, from, te.From)
			assert.Equal(t, to, te.To)
		}
	}
}

func TestStatus_Terminal(t *testing.T) {
	t.Parallel()

	for _, s := range queue.Statuses {
		assert.True(t, s.Valid())
		assert.Equal(t, s == queue.StatusSent || s == queue.StatusCancelled, s.Terminal(), s)
	}
	assert.False(t, queue.Status("archived").Valid())
}

func TestTransition_RetryCap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		retryCount int
		maxRetries int
		wantErr    error
	}{
		{"retries left", 1, 3, nil},
		{"last retry", 2, 3, nil},
		{"exhausted", 3, 3, queue.ErrRetriesExhausted},
		{"no retries configured", 0, 0, queue.ErrRetriesExhausted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := &queue.QueuedEmail{Status: queue.StatusFailed, RetryCount: tt.retryCount, MaxRetries: tt.maxRetries}
			assert.Equal(t, tt.wantErr == nil, queue.CanRetry(e))

			err := queue.Transition(e, queue.StatusPending)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, queue.StatusPending, e.Status)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, queue.StatusFailed, e.Status)
		})
	}
}

func TestPatch_Apply(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	base := func() *queue.QueuedEmail {
		return &queue.QueuedEmail{
			Status:     queue.StatusDraft,
			Priority:   queue.PriorityMedium,
			To:         []string{"a@club.example"},
			Subject:    "Original",
			MaxRetries: 3,
			Metadata:   map[string]string{"club": "north"},
		}
	}
	ptr := func(s string) *string { return &s }

	t.Run("merges fields", func(t *testing.T) {
		t.Parallel()

		e := base()
		pending := queue.StatusPending
		high := queue.PriorityHigh
		at := now.Add(time.Hour)
		err := queue.Patch{
			Status:       &pending,
			To:           []string{" B@Club.Example ", ""},
			Subject:      ptr("Updated"),
			Priority:     &high,
			ScheduledFor: &at,
			Metadata:     map[string]string{"event": "42"},
		}.Apply(e, now)
		require.NoError(t, err)

		assert.Equal(t, queue.StatusPending, e.Status)
		assert.Equal(t, []string{"b@club.example"}, e.To)
		assert.Equal(t, "Updated", e.Subject)
		assert.Equal(t, queue.PriorityHigh, e.Priority)
		assert.Equal(t, at, *e.ScheduledFor)
		assert.Equal(t, map[string]string{"club": "north", "event": "42"}, e.Metadata)
		assert.Equal(t, now, e.UpdatedAt)
	})

	t.Run("clear schedule wins", func(t *testing.T) {
		t.Parallel()

		e := base()
		at := now
		e.ScheduledFor = &at
		require.NoError(t, queue.Patch{ClearSchedule: true, ScheduledFor: &at}.Apply(e, now))
		assert.Nil(t, e.ScheduledFor)
	})

	errorCases := []struct {
		name  string
		patch func() queue.Patch
		err   error
	}{
		{"empty recipients", func() queue.Patch { return queue.Patch{To: []string{" "}} }, queue.ErrValidation},
		{"empty subject", func() queue.Patch { return queue.Patch{Subject: ptr("")} }, queue.ErrValidation},
		{"bad priority", func() queue.Patch { p := queue.Priority(120); return queue.Patch{Priority: &p} }, queue.ErrInvalidPriority},
		{"negative retries", func() queue.Patch { n := -1; return queue.Patch{MaxRetries: &n} }, queue.ErrValidation},
		{"illegal status", func() queue.Patch { s := queue.StatusSent; return queue.Patch{Status: &s} }, queue.ErrInvalidStateTransition},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := base()
			p := tt.patch()
			p.Subject = coalesce(p.Subject, ptr("Changed"))
			err := p.Apply(e, now)
			require.ErrorIs(t, err, tt.err)
			assert.Equal(t, base(), e, "record must be untouched on error")
		})
	}
}

func coalesce(a, b *string) *string {
	if a != nil {
		return a
	}
	return b
}
