package clock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/clock"
)

func TestFake_SleepAdvancesTime(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := clock.NewFake(start)

	require.NoError(t, c.Sleep(context.Background(), 3*time.Second))
	require.NoError(t, c.Sleep(context.Background(), 0))

	assert.Equal(t, start.Add(3*time.Second), c.Now())
	assert.Equal(t, 3*time.Second, c.Slept())
}

func TestFake_SleepHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	c := clock.NewFake(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, time.Unix(0, 0), c.Now())
}

func TestReal_SleepInterruptedByContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := clock.New().Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOrDefault(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, clock.OrDefault(nil))

	f := clock.NewFake(time.Unix(10, 0))
	assert.Same(t, f, clock.OrDefault(f))
}
