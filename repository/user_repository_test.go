package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"predmarket/models"
	"predmarket/repository/testutil"
	"predmarket/service"
)

func TestUserRepository_Create(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	t.Run("successful creation", func(t *testing.T) {
		user := testutil.CreateTestUser(123456, "alice")
		require.NoError(t, repo.Create(ctx, user))

		assert.NotZero(t, user.ID)
		assert.Equal(t, models.RankBronze, user.Rank)
		assert.True(t, user.TonBalance.IsZero())
		assert.False(t, user.CreatedAt.IsZero())

		got, err := repo.GetByTelegramID(ctx, 123456)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, "1000", got.PredBalance.String())
	})

	t.Run("duplicate telegram id", func(t *testing.T) {
		user := testutil.CreateTestUser(123456, "impostor")
		code := "othercode123"
		user.ReferralCode = &code
		assert.Error(t, repo.Create(ctx, user))
	})

	t.Run("not found is nil, not an error", func(t *testing.T) {
		got, err := repo.GetByTelegramID(ctx, 999999)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestUserRepository_Balances(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.CreateTestUser(111, "bettor")
	require.NoError(t, repo.Create(ctx, user))

	t.Run("add and deduct", func(t *testing.T) {
		after, err := repo.AddBalance(ctx, user.ID, models.CurrencyPRED, decimal.NewFromInt(500))
		require.NoError(t, err)
		assert.Equal(t, "1500", after.String())

		after, err = repo.DeductBalance(ctx, user.ID, models.CurrencyPRED, decimal.NewFromInt(200))
		require.NoError(t, err)
		assert.Equal(t, "1300", after.String())
	})

	t.Run("overdraft is refused", func(t *testing.T) {
		_, err := repo.DeductBalance(ctx, user.ID, models.CurrencyPRED, decimal.NewFromInt(5000))
		assert.ErrorIs(t, err, service.ErrInsufficientBalance)

		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "1300", got.PredBalance.String())
	})

	t.Run("currencies are independent", func(t *testing.T) {
		_, err := repo.DeductBalance(ctx, user.ID, models.CurrencyTON, decimal.NewFromInt(1))
		assert.ErrorIs(t, err, service.ErrInsufficientBalance)

		after, err := repo.AddBalance(ctx, user.ID, models.CurrencyTON, decimal.RequireFromString("2.5"))
		require.NoError(t, err)
		assert.Equal(t, "2.5", after.String())

		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "1300", got.PredBalance.String())
		assert.Equal(t, "2.5", got.TonBalance.String())
	})
}

func TestUserRepository_WinLossRecords(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	user := testutil.CreateTestUser(222, "streaker")
	require.NoError(t, repo.Create(ctx, user))

	t.Run("a streak climbs the rank ladder", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			require.NoError(t, repo.RecordWin(ctx, user.ID))
		}

		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(5), got.TotalWins)
		assert.Equal(t, int64(5), got.WinStreak)
		assert.Equal(t, models.RankGold, got.Rank)
	})

	t.Run("a loss resets the streak", func(t *testing.T) {
		require.NoError(t, repo.RecordLoss(ctx, user.ID))

		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.TotalLosses)
		assert.Zero(t, got.WinStreak)
		// One loss against five wins keeps the earned rank.
		assert.Equal(t, models.RankGold, got.Rank)
	})

	t.Run("sustained losing drops back to Bronze", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			require.NoError(t, repo.RecordLoss(ctx, user.ID))
		}

		got, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RankBronze, got.Rank)
	})
}

func TestUserRepository_Referrals(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)

	repo := NewUserRepository(testDB.DB)
	ctx := context.Background()

	referrer := testutil.CreateTestUser(333, "referrer")
	require.NoError(t, repo.Create(ctx, referrer))
	invited := testutil.CreateTestUser(444, "invited")
	require.NoError(t, repo.Create(ctx, invited))

	t.Run("lookup by code", func(t *testing.T) {
		got, err := repo.GetByReferralCode(ctx, *referrer.ReferralCode)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, referrer.ID, got.ID)

		got, err = repo.GetByReferralCode(ctx, "nosuchcode00")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("referrer is set exactly once", func(t *testing.T) {
		set, err := repo.SetReferrer(ctx, invited.ID, referrer.ID)
		require.NoError(t, err)
		assert.True(t, set)

		set, err = repo.SetReferrer(ctx, invited.ID, referrer.ID)
		require.NoError(t, err)
		assert.False(t, set)

		count, err := repo.CountReferrals(ctx, referrer.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})
}
