package service

import (
	"time"

	"predmarket/models"
)

// weekStart returns Monday 00:00 UTC of the week containing t.
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	weekday := int(t.Weekday())
	// time.Weekday puts Sunday at 0; shift so Monday is day 0.
	daysFromMonday := (weekday + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -daysFromMonday)
}

// monthStart returns the first of the month containing t, 00:00 UTC.
func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// nextWindowStart returns where the window after a closed period begins:
// the next Monday 00:00 for weeks, the first of the next month for months.
func nextWindowStart(periodType models.PeriodType, previousEnd time.Time) time.Time {
	previousEnd = previousEnd.UTC()
	if periodType == models.PeriodMonthly {
		start := monthStart(previousEnd)
		return start.AddDate(0, 1, 0)
	}
	start := weekStart(previousEnd)
	return start.AddDate(0, 0, 7)
}

// windowStart computes where the current window of a period type begins.
// With no prior closed period the window is anchored to the calendar
// boundary containing now; otherwise it starts where the last one ended.
func windowStart(periodType models.PeriodType, lastClosed *models.LeaderboardPeriod, now time.Time) time.Time {
	if lastClosed == nil {
		if periodType == models.PeriodMonthly {
			return monthStart(now)
		}
		return weekStart(now)
	}
	return nextWindowStart(periodType, lastClosed.EndsAt)
}

// startOfDayUTC returns midnight UTC of the day containing t.
func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
