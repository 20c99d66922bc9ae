package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"predmarket/models"
	"predmarket/repository/testutil"
)

func createMission(t *testing.T, repo *MissionRepository, missionType models.MissionType, count int64) *models.Mission {
	t.Helper()
	req, err := json.Marshal(models.MissionRequirement{Kind: models.RequirementBetsCount, Count: count})
	require.NoError(t, err)

	m := &models.Mission{
		Title:          "Place some bets",
		MissionType:    missionType,
		Requirement:    req,
		RewardAmount:   decimal.NewFromInt(50),
		RewardCurrency: models.CurrencyPRED,
		IsActive:       true,
	}
	require.NoError(t, repo.Create(context.Background(), m))
	return m
}

func TestMissionRepository_StickyCompletion(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	users := NewUserRepository(testDB.DB)
	repo := NewMissionRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.CreateTestUser(111, "grinder")
	require.NoError(t, users.Create(ctx, user))
	mission := createMission(t, repo, models.MissionAchievement, 5)

	require.NoError(t, repo.UpsertProgress(ctx, user.ID, mission.ID, 5, true))

	got, err := repo.GetProgress(ctx, user.ID, mission.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Completed)
	assert.NotNil(t, got.CompletedAt)
	firstCompletedAt := *got.CompletedAt

	// A later recompute below the threshold must not revert completion.
	require.NoError(t, repo.UpsertProgress(ctx, user.ID, mission.ID, 2, false))

	got, err = repo.GetProgress(ctx, user.ID, mission.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Progress)
	assert.True(t, got.Completed)
	assert.Equal(t, firstCompletedAt, *got.CompletedAt)
}

func TestMissionRepository_MarkClaimedOnce(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	users := NewUserRepository(testDB.DB)
	repo := NewMissionRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.CreateTestUser(111, "claimer")
	require.NoError(t, users.Create(ctx, user))
	mission := createMission(t, repo, models.MissionAchievement, 5)

	t.Run("incomplete progress cannot be claimed", func(t *testing.T) {
		require.NoError(t, repo.UpsertProgress(ctx, user.ID, mission.ID, 3, false))
		claimed, err := repo.MarkClaimed(ctx, user.ID, mission.ID, time.Now())
		require.NoError(t, err)
		assert.False(t, claimed)
	})

	t.Run("completed progress is claimed exactly once", func(t *testing.T) {
		require.NoError(t, repo.UpsertProgress(ctx, user.ID, mission.ID, 5, true))

		claimed, err := repo.MarkClaimed(ctx, user.ID, mission.ID, time.Now())
		require.NoError(t, err)
		assert.True(t, claimed)

		claimed, err = repo.MarkClaimed(ctx, user.ID, mission.ID, time.Now())
		require.NoError(t, err)
		assert.False(t, claimed)
	})
}

func TestMissionRepository_ResetProgressByType(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	users := NewUserRepository(testDB.DB)
	repo := NewMissionRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.CreateTestUser(111, "daily")
	require.NoError(t, users.Create(ctx, user))

	daily := createMission(t, repo, models.MissionDaily, 3)
	achievement := createMission(t, repo, models.MissionAchievement, 10)

	require.NoError(t, repo.UpsertProgress(ctx, user.ID, daily.ID, 3, true))
	require.NoError(t, repo.UpsertProgress(ctx, user.ID, achievement.ID, 4, false))

	reset, err := repo.ResetProgressByType(ctx, models.MissionDaily)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reset)

	got, err := repo.GetProgress(ctx, user.ID, daily.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.GetProgress(ctx, user.ID, achievement.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(4), got.Progress)
}
