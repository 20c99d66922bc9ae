package worker

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"predmarket/config"
	"predmarket/metrics"
	"predmarket/models"
	"predmarket/service"
)

// RegisterJobs attaches all standing jobs to the scheduler: mission resets,
// leaderboard period closes, queue retention, crash reclaim and queue depth
// gauges.
func RegisterJobs(s *Scheduler, cfg *config.Config,
	missions *service.MissionService,
	leaderboard *service.LeaderboardService,
	notifications *service.NotificationService,
	m *metrics.Metrics) {

	s.Register(&DailyJob{
		JobName: "daily-mission-reset",
		Hour:    0, Minute: 0,
		Fn: func(ctx context.Context) error {
			_, err := missions.ResetMissions(ctx, models.MissionDaily)
			return err
		},
	})

	s.Register(&WeeklyJob{
		JobName: "weekly-mission-reset",
		Weekday: time.Monday,
		Hour:    0, Minute: 0,
		Fn: func(ctx context.Context) error {
			_, err := missions.ResetMissions(ctx, models.MissionWeekly)
			return err
		},
	})

	s.Register(&WeeklyJob{
		JobName: "weekly-period-close",
		Weekday: time.Sunday,
		Hour:    23, Minute: 59,
		Fn: func(ctx context.Context) error {
			return closePeriod(ctx, leaderboard, models.PeriodWeekly)
		},
	})

	s.Register(&MonthEndJob{
		JobName: "monthly-period-close",
		Hour:    23, Minute: 59,
		Fn: func(ctx context.Context) error {
			return closePeriod(ctx, leaderboard, models.PeriodMonthly)
		},
	})

	s.Register(&IntervalJob{
		JobName:  "notification-retention-sweep",
		Interval: time.Hour,
		Fn: func(ctx context.Context) error {
			retention := time.Duration(cfg.QueueRetentionDays) * 24 * time.Hour
			_, err := notifications.CleanupOld(ctx, retention)
			return err
		},
	})

	s.Register(&IntervalJob{
		JobName:  "notification-reclaim-sweep",
		Interval: 5 * time.Minute,
		Fn: func(ctx context.Context) error {
			_, err := notifications.ReclaimStale(ctx, cfg.QueueReclaimAfter)
			return err
		},
	})

	if m != nil {
		s.Register(&IntervalJob{
			JobName:  "queue-depth-gauge",
			Interval: 30 * time.Second,
			Fn: func(ctx context.Context) error {
				counts, err := notifications.Stats(ctx)
				if err != nil {
					return err
				}
				for _, status := range []models.NotificationStatus{
					models.NotificationStatusPending,
					models.NotificationStatusProcessing,
					models.NotificationStatusSent,
					models.NotificationStatusFailed,
					models.NotificationStatusPermanentFailure,
				} {
					m.QueueDepth.WithLabelValues(string(status)).Set(float64(counts[status]))
				}
				return nil
			},
		})
	}
}

// closePeriod treats the expected no-op outcomes as success so the
// scheduler does not log them as failures.
func closePeriod(ctx context.Context, leaderboard *service.LeaderboardService, periodType models.PeriodType) error {
	_, err := leaderboard.ClosePeriod(ctx, periodType, nil)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrAlreadyClosed),
		errors.Is(err, service.ErrNoParticipants),
		errors.Is(err, service.ErrNoRewardsConfigured):
		log.WithFields(log.Fields{
			"periodType": periodType,
			"reason":     err.Error(),
		}).Info("Period close skipped")
		return nil
	default:
		return err
	}
}
