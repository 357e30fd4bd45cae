package queue_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailqueue/pkg/queue"
)

func TestScheduleNext(t *testing.T) {
	t.Parallel()

	// Wednesday
	base := time.Date(2026, 3, 11, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		schedule queue.Schedule
		want     time.Time
		str      string
	}{
		{"interval", queue.EveryInterval(90 * time.Second), base.Add(90 * time.Second), "every 1m30s"},
		{"every minute", queue.EveryMinute(), base.Add(time.Minute), "every 1m0s"},
		{"hourly", queue.Hourly(), base.Add(time.Hour), "every 1h0m0s"},
		{"daily later today", queue.DailyAt(15, 0), time.Date(2026, 3, 11, 15, 0, 0, 0, time.UTC), "daily at 15:00"},
		{"daily tomorrow", queue.DailyAt(3, 0), time.Date(2026, 3, 12, 3, 0, 0, 0, time.UTC), "daily at 03:00"},
		{"daily same minute rolls over", queue.DailyAt(10, 30), time.Date(2026, 3, 12, 10, 30, 0, 0, time.UTC), "daily at 10:30"},
		{"weekly this week", queue.WeeklyOn(time.Friday, 9, 0), time.Date(2026, 3, 13, 9, 0, 0, 0, time.UTC), "weekly on Friday at 09:00"},
		{"weekly next week", queue.WeeklyOn(time.Monday, 9, 0), time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC), "weekly on Monday at 09:00"},
		{"weekly same day passed", queue.WeeklyOn(time.Wednesday, 8, 0), time.Date(2026, 3, 18, 8, 0, 0, 0, time.UTC), "weekly on Wednesday at 08:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.schedule.Next(base))
			assert.Equal(t, tt.str, tt.schedule.String())
		})
	}
}

func TestParseSchedule(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 3, 11, 10, 30, 0, 0, time.UTC)

	for _, in := range []string{"every 10m", "daily at 03:00", "weekly on Sunday at 04:30"} {
		s, err := queue.ParseSchedule(in)
		require.NoError(t, err, in)
		again, err := queue.ParseSchedule(s.String())
		require.NoError(t, err, s.String())
		assert.Equal(t, s.Next(from), again.Next(from), in)
	}

	for _, in := range []string{"", "every", "every -1m", "daily 03:00", "daily at 25:00", "weekly on someday at 01:00", "monthly"} {
		_, err := queue.ParseSchedule(in)
		assert.ErrorIs(t, err, queue.ErrInvalidSchedule, in)
	}
}
