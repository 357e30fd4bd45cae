package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/queue"
)

type MockPruner struct {
	mock.Mock
}

func (m *MockPruner) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

func TestNewJanitor_NilService(t *testing.T) {
	t.Parallel()

	_, err := queue.NewJanitor(nil)
	assert.Error(t, err)
}

func TestJanitor_RunAll(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()

	sent := f.add(t, queue.EnqueueParams{})
	f.setStatus(t, sent.ID, queue.StatusSent, 0)
	failed := f.add(t, queue.EnqueueParams{})
	f.setStatus(t, failed.ID, queue.StatusFailed, 3)
	cancelled := f.add(t, queue.EnqueueParams{})
	_, err := f.svc.Cancel(ctx, cancelled.ID)
	require.NoError(t, err)

	f.clock.Advance(31 * 24 * time.Hour)

	pending := f.add(t, queue.EnqueueParams{})
	_, err = f.svc.ClaimByID(ctx, pending.ID, "crashed-worker", time.Minute)
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)

	pruner := new(MockPruner)
	pruner.On("Prune", mock.Anything, queue.DefaultConfig().AuditRetention).Return(int64(4), nil)

	j, err := queue.NewJanitor(f.svc, queue.WithJanitorLogger(discard), queue.WithAuditPruner(pruner))
	require.NoError(t, err)

	report, err := j.RunAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		queue.JobReleaseClaims: 1,
		queue.JobArchive:       2,
		queue.JobPruneAudit:    4,
	}, report)
	pruner.AssertExpectations(t)

	_, err = f.svc.Get(ctx, failed.ID)
	assert.NoError(t, err, "failed records are kept for 90 days")
	_, err = f.svc.Get(ctx, sent.ID)
	assert.ErrorIs(t, err, queue.ErrNotFound)

	claimed, err := f.svc.ClaimNext(ctx, "w1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, claimed.ID)
}

func TestJanitor_RunDueFollowsSchedules(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()

	j, err := queue.NewJanitor(f.svc,
		queue.WithJanitorLogger(discard),
		queue.WithJobSchedule(queue.JobArchive, queue.EveryInterval(time.Hour)),
	)
	require.NoError(t, err)

	first := j.RunDue(ctx)
	assert.Len(t, first, 2, "every job runs on the first check")
	assert.NotContains(t, first, queue.JobPruneAudit, "no pruner configured")

	assert.Empty(t, j.RunDue(ctx))

	f.clock.Advance(time.Minute)
	assert.Equal(t, map[string]int{queue.JobReleaseClaims: 0}, j.RunDue(ctx))

	f.clock.Advance(time.Hour)
	assert.Len(t, j.RunDue(ctx), 2)
}

func TestJanitor_RunAllJoinsErrors(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	pruner := new(MockPruner)
	pruneErr := errors.New("mongo down")
	pruner.On("Prune", mock.Anything, mock.Anything).Return(int64(0), pruneErr)

	j, err := queue.NewJanitor(f.svc, queue.WithJanitorLogger(discard), queue.WithAuditPruner(pruner))
	require.NoError(t, err)

	report, err := j.RunAll(context.Background())
	require.ErrorIs(t, err, pruneErr)
	assert.Contains(t, report, queue.JobArchive)
	assert.NotContains(t, report, queue.JobPruneAudit)
}

func TestJanitor_StartStopsOnCancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	j, err := queue.NewJanitor(f.svc, queue.WithJanitorLogger(discard), queue.WithCheckInterval(time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx)() }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
