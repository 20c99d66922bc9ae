package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDailyJobNext(t *testing.T) {
	job := &DailyJob{JobName: "daily", Hour: 0, Minute: 0}

	t.Run("before the wall time runs today", func(t *testing.T) {
		after := time.Date(2025, 6, 11, 0, 0, 0, 1, time.UTC)
		assert.Equal(t, time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC), job.Next(after))
	})

	t.Run("midday rolls to tomorrow", func(t *testing.T) {
		after := time.Date(2025, 6, 11, 15, 30, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC), job.Next(after))
	})

	t.Run("exactly at the wall time rolls forward", func(t *testing.T) {
		after := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2025, 6, 12, 0, 0, 0, 0, time.UTC), job.Next(after))
	})
}

func TestWeeklyJobNext(t *testing.T) {
	job := &WeeklyJob{JobName: "weekly", Weekday: time.Sunday, Hour: 23, Minute: 59}

	t.Run("midweek targets the coming Sunday", func(t *testing.T) {
		// Wednesday.
		after := time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2025, 6, 15, 23, 59, 0, 0, time.UTC), job.Next(after))
	})

	t.Run("Sunday before the wall time stays on Sunday", func(t *testing.T) {
		after := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2025, 6, 15, 23, 59, 0, 0, time.UTC), job.Next(after))
	})

	t.Run("Sunday after the wall time rolls a week", func(t *testing.T) {
		after := time.Date(2025, 6, 15, 23, 59, 30, 0, time.UTC)
		assert.Equal(t, time.Date(2025, 6, 22, 23, 59, 0, 0, time.UTC), job.Next(after))
	})

	t.Run("Monday reset job", func(t *testing.T) {
		monday := &WeeklyJob{JobName: "reset", Weekday: time.Monday, Hour: 0, Minute: 0}
		after := time.Date(2025, 6, 13, 8, 0, 0, 0, time.UTC) // Friday
		assert.Equal(t, time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC), monday.Next(after))
	})
}

func TestMonthEndJobNext(t *testing.T) {
	job := &MonthEndJob{JobName: "monthly", Hour: 23, Minute: 59}

	t.Run("midmonth targets the last day", func(t *testing.T) {
		after := time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2025, 6, 30, 23, 59, 0, 0, time.UTC), job.Next(after))
	})

	t.Run("past the last slot rolls to next month", func(t *testing.T) {
		after := time.Date(2025, 6, 30, 23, 59, 30, 0, time.UTC)
		assert.Equal(t, time.Date(2025, 7, 31, 23, 59, 0, 0, time.UTC), job.Next(after))
	})

	t.Run("February", func(t *testing.T) {
		after := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2025, 2, 28, 23, 59, 0, 0, time.UTC), job.Next(after))
	})

	t.Run("leap February", func(t *testing.T) {
		after := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, time.Date(2024, 2, 29, 23, 59, 0, 0, time.UTC), job.Next(after))
	})
}

func TestIntervalJobNext(t *testing.T) {
	job := &IntervalJob{JobName: "sweep", Interval: time.Hour}
	after := time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, after.Add(time.Hour), job.Next(after))
}

func TestSchedulerRunsJobsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	ran := make(chan struct{}, 10)
	s := NewScheduler()
	s.Register(&IntervalJob{
		JobName:  "tick",
		Interval: 10 * time.Millisecond,
		Fn: func(ctx context.Context) error {
			ran <- struct{}{}
			return nil
		},
	})

	wait := s.Start(ctx)

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("job never ran")
	}

	cancel()
	wait()
}
