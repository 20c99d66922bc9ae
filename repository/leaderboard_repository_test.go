package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"predmarket/models"
	"predmarket/repository/testutil"
	"predmarket/service"
)

func TestLeaderboardRepository_Periods(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewLeaderboardRepository(testDB.DB)
	ctx := context.Background()

	weekStart := time.Date(2025, 6, 9, 0, 0, 0, 0, time.UTC)
	weekEnd := weekStart.AddDate(0, 0, 7)

	t.Run("empty history", func(t *testing.T) {
		last, err := repo.GetLastClosedPeriod(ctx, models.PeriodWeekly)
		require.NoError(t, err)
		assert.Nil(t, last)

		covered, err := repo.ExistsCoveringWindow(ctx, models.PeriodWeekly, weekStart)
		require.NoError(t, err)
		assert.False(t, covered)
	})

	t.Run("closed period covers its window", func(t *testing.T) {
		p := &models.LeaderboardPeriod{
			PeriodType:        models.PeriodWeekly,
			StartsAt:          weekStart,
			EndsAt:            weekEnd,
			ParticipantsCount: 12,
			WinnersCount:      3,
			TotalRewardsPred:  decimal.NewFromInt(700),
		}
		require.NoError(t, repo.CreatePeriod(ctx, p))
		assert.NotZero(t, p.ID)
		assert.Equal(t, "closed", p.Status)

		covered, err := repo.ExistsCoveringWindow(ctx, models.PeriodWeekly, weekStart)
		require.NoError(t, err)
		assert.True(t, covered)

		// Window boundaries are half open: ends_at belongs to the next window.
		covered, err = repo.ExistsCoveringWindow(ctx, models.PeriodWeekly, weekEnd)
		require.NoError(t, err)
		assert.False(t, covered)

		// Monthly windows are tracked independently.
		covered, err = repo.ExistsCoveringWindow(ctx, models.PeriodMonthly, weekStart)
		require.NoError(t, err)
		assert.False(t, covered)
	})

	t.Run("second insert for the same window loses", func(t *testing.T) {
		// Two closers racing past the coverage check both reach the
		// insert; the unique constraint on (period_type, starts_at)
		// rejects the slower one.
		dup := &models.LeaderboardPeriod{
			PeriodType:        models.PeriodWeekly,
			StartsAt:          weekStart,
			EndsAt:            weekEnd.Add(time.Minute),
			ParticipantsCount: 12,
			WinnersCount:      3,
			TotalRewardsPred:  decimal.NewFromInt(700),
		}
		err := repo.CreatePeriod(ctx, dup)
		assert.ErrorIs(t, err, service.ErrAlreadyClosed)

		// The same start under the other period type is unaffected.
		monthly := &models.LeaderboardPeriod{
			PeriodType: models.PeriodMonthly,
			StartsAt:   weekStart,
			EndsAt:     weekStart.AddDate(0, 1, 0),
		}
		require.NoError(t, repo.CreatePeriod(ctx, monthly))
	})

	t.Run("last closed period is the most recent", func(t *testing.T) {
		later := &models.LeaderboardPeriod{
			PeriodType: models.PeriodWeekly,
			StartsAt:   weekEnd,
			EndsAt:     weekEnd.AddDate(0, 0, 7),
		}
		require.NoError(t, repo.CreatePeriod(ctx, later))

		last, err := repo.GetLastClosedPeriod(ctx, models.PeriodWeekly)
		require.NoError(t, err)
		require.NotNil(t, last)
		assert.Equal(t, later.ID, last.ID)
	})
}

func TestLeaderboardRepository_GetActiveRewards(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewLeaderboardRepository(testDB.DB)
	ctx := context.Background()

	insertTier := func(periodType models.PeriodType, from, to int, amount string, active bool) {
		_, err := testDB.DB.Pool.Exec(ctx, `
			INSERT INTO leaderboard_rewards (period_type, rank_from, rank_to, amount, currency, is_active)
			VALUES ($1, $2, $3, $4, 'PRED', $5)`,
			periodType, from, to, amount, active)
		require.NoError(t, err)
	}

	insertTier(models.PeriodWeekly, 2, 3, "100", true)
	insertTier(models.PeriodWeekly, 1, 1, "500", true)
	insertTier(models.PeriodWeekly, 4, 10, "25", false)
	insertTier(models.PeriodMonthly, 1, 1, "2000", true)

	rewards, err := repo.GetActiveRewards(ctx, models.PeriodWeekly)
	require.NoError(t, err)
	require.Len(t, rewards, 2)

	assert.Equal(t, 1, rewards[0].RankFrom)
	assert.Equal(t, "500", rewards[0].Amount.String())
	assert.Equal(t, 2, rewards[1].RankFrom)
	assert.Equal(t, 3, rewards[1].RankTo)
}
