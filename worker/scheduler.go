package worker

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Job is a unit of scheduled work. Next computes the first run strictly
// after the given time, so jobs are testable without timers.
type Job interface {
	Name() string
	Next(after time.Time) time.Time
	Run(ctx context.Context) error
}

// Scheduler runs each registered job in its own timer loop.
type Scheduler struct {
	jobs []Job
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Register adds a job. Must be called before Start.
func (s *Scheduler) Register(job Job) {
	s.jobs = append(s.jobs, job)
}

// Start launches all job loops and returns a cleanup func that blocks
// until they exit.
func (s *Scheduler) Start(ctx context.Context) func() {
	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.runLoop(ctx, job)
		}(job)
	}
	return wg.Wait
}

func (s *Scheduler) runLoop(ctx context.Context, job Job) {
	log.WithField("job", job.Name()).Info("Scheduler job registered")

	for {
		next := job.Next(time.Now().UTC())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			log.WithField("job", job.Name()).Info("Scheduler job stopped")
			return
		case <-timer.C:
		}

		started := time.Now()
		if err := job.Run(ctx); err != nil {
			log.WithError(err).WithField("job", job.Name()).Error("Scheduled job failed")
		} else {
			log.WithFields(log.Fields{
				"job":      job.Name(),
				"duration": time.Since(started),
			}).Info("Scheduled job finished")
		}
	}
}

// IntervalJob runs fn on a fixed interval.
type IntervalJob struct {
	JobName  string
	Interval time.Duration
	Fn       func(ctx context.Context) error
}

func (j *IntervalJob) Name() string { return j.JobName }

func (j *IntervalJob) Next(after time.Time) time.Time {
	return after.Add(j.Interval)
}

func (j *IntervalJob) Run(ctx context.Context) error { return j.Fn(ctx) }

// DailyJob runs fn every day at a fixed UTC wall time.
type DailyJob struct {
	JobName string
	Hour    int
	Minute  int
	Fn      func(ctx context.Context) error
}

func (j *DailyJob) Name() string { return j.JobName }

func (j *DailyJob) Next(after time.Time) time.Time {
	after = after.UTC()
	next := time.Date(after.Year(), after.Month(), after.Day(), j.Hour, j.Minute, 0, 0, time.UTC)
	if !next.After(after) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (j *DailyJob) Run(ctx context.Context) error { return j.Fn(ctx) }

// WeeklyJob runs fn every week on a fixed weekday at a fixed UTC wall time.
type WeeklyJob struct {
	JobName string
	Weekday time.Weekday
	Hour    int
	Minute  int
	Fn      func(ctx context.Context) error
}

func (j *WeeklyJob) Name() string { return j.JobName }

func (j *WeeklyJob) Next(after time.Time) time.Time {
	after = after.UTC()
	next := time.Date(after.Year(), after.Month(), after.Day(), j.Hour, j.Minute, 0, 0, time.UTC)
	daysAhead := (int(j.Weekday) - int(after.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, daysAhead)
	if !next.After(after) {
		next = next.AddDate(0, 0, 7)
	}
	return next
}

func (j *WeeklyJob) Run(ctx context.Context) error { return j.Fn(ctx) }

// MonthEndJob runs fn on the last day of every month at a fixed UTC wall time.
type MonthEndJob struct {
	JobName string
	Hour    int
	Minute  int
	Fn      func(ctx context.Context) error
}

func (j *MonthEndJob) Name() string { return j.JobName }

func (j *MonthEndJob) Next(after time.Time) time.Time {
	after = after.UTC()
	// Last day of the current month: first of next month minus one day.
	firstOfNext := time.Date(after.Year(), after.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	lastDay := firstOfNext.AddDate(0, 0, -1)
	next := time.Date(lastDay.Year(), lastDay.Month(), lastDay.Day(), j.Hour, j.Minute, 0, 0, time.UTC)
	if !next.After(after) {
		firstOfNext = firstOfNext.AddDate(0, 1, 0)
		lastDay = firstOfNext.AddDate(0, 0, -1)
		next = time.Date(lastDay.Year(), lastDay.Month(), lastDay.Day(), j.Hour, j.Minute, 0, 0, time.UTC)
	}
	return next
}

func (j *MonthEndJob) Run(ctx context.Context) error { return j.Fn(ctx) }
