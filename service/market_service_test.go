package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"predmarket/config"
	"predmarket/models"
)

func testConfig() *config.Config {
	return &config.Config{
		CommissionPred:      decimal.RequireFromString("0.01"),
		CommissionTon:       decimal.RequireFromString("0.05"),
		StartingPredBalance: decimal.NewFromInt(1000),
		ReferralBonusPred:   decimal.NewFromInt(100),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func openMarket() *models.Market {
	return &models.Market{
		ID:       1,
		Question: "Will it rain tomorrow?",
		Status:   models.MarketStatusOpen,
		YesOdds:  decimal.NewFromInt(50),
		NoOdds:   decimal.NewFromInt(50),
	}
}

func TestLockedOdds(t *testing.T) {
	t.Run("empty pools lock at 100", func(t *testing.T) {
		market := openMarket()
		odds := LockedOdds(market, models.PositionYes, models.CurrencyPRED, dec("100"))
		assert.Equal(t, "100", odds.String())
	})

	t.Run("existing pools", func(t *testing.T) {
		market := openMarket()
		market.YesPoolPred = dec("300")
		market.NoPoolPred = dec("700")

		odds := LockedOdds(market, models.PositionYes, models.CurrencyPRED, dec("100"))
		// 400 / 1100 * 100
		assert.Equal(t, "36.36", odds.String())
	})

	t.Run("per-currency pools are independent", func(t *testing.T) {
		market := openMarket()
		market.YesPoolPred = dec("300")
		market.NoPoolPred = dec("700")

		odds := LockedOdds(market, models.PositionYes, models.CurrencyTON, dec("10"))
		assert.Equal(t, "100", odds.String())
	})
}

func TestPotentialWin(t *testing.T) {
	commission := dec("0.01")

	t.Run("no opposing liquidity doubles the stake", func(t *testing.T) {
		market := openMarket()
		win := PotentialWin(market, models.PositionYes, models.CurrencyPRED, dec("100"), commission)
		assert.Equal(t, "200", win.String())
	})

	t.Run("opposing pool share with commission", func(t *testing.T) {
		market := openMarket()
		market.YesPoolPred = dec("300")
		market.NoPoolPred = dec("700")

		win := PotentialWin(market, models.PositionYes, models.CurrencyPRED, dec("100"), commission)
		// gross = 100 + 100*700/400 = 275, net = 275 * 0.99
		assert.Equal(t, "272.25", win.String())
	})

	t.Run("ton commission is steeper", func(t *testing.T) {
		market := openMarket()
		market.YesPoolTon = dec("30")
		market.NoPoolTon = dec("70")

		win := PotentialWin(market, models.PositionYes, models.CurrencyTON, dec("10"), dec("0.05"))
		// gross = 10 + 10*70/40 = 27.5, net = 27.5 * 0.95
		assert.Equal(t, "26.13", win.String())
	})
}

func TestSettlementPayout(t *testing.T) {
	t.Run("proportional share of the losing pool", func(t *testing.T) {
		market := openMarket()
		market.YesPoolPred = dec("400")
		market.NoPoolPred = dec("700")

		bet := &models.Bet{Position: models.PositionYes, Currency: models.CurrencyPRED, Amount: dec("100")}
		payout := settlementPayout(market, bet, dec("0.01"))
		// gross = 100 + 100/400*700 = 275, net = 272.25
		assert.Equal(t, "272.25", payout.String())
	})

	t.Run("empty losing pool refunds the stake without commission", func(t *testing.T) {
		market := openMarket()
		market.YesPoolPred = dec("400")

		bet := &models.Bet{Position: models.PositionYes, Currency: models.CurrencyPRED, Amount: dec("100")}
		payout := settlementPayout(market, bet, dec("0.01"))
		assert.Equal(t, "100", payout.String())
	})
}

func TestPlaceBet(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects invalid input", func(t *testing.T) {
		svc := NewMarketService(&MockUnitOfWorkFactory{UOW: NewMockUnitOfWork()}, testConfig())

		_, err := svc.PlaceBet(ctx, 1, 1, "maybe", models.CurrencyPRED, dec("100"))
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = svc.PlaceBet(ctx, 1, 1, models.PositionYes, "EUR", dec("100"))
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = svc.PlaceBet(ctx, 1, 1, models.PositionYes, models.CurrencyPRED, dec("-5"))
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("rejects closed market", func(t *testing.T) {
		uow := NewMockUnitOfWork()
		market := openMarket()
		market.Status = models.MarketStatusClosed
		uow.Markets.On("GetForUpdate", ctx, int64(1)).Return(market, nil)

		svc := NewMarketService(&MockUnitOfWorkFactory{UOW: uow}, testConfig())
		_, err := svc.PlaceBet(ctx, 1, 1, models.PositionYes, models.CurrencyPRED, dec("100"))
		assert.ErrorIs(t, err, ErrMarketNotOpen)
		assert.False(t, uow.Committed)
	})

	t.Run("rejects unknown market", func(t *testing.T) {
		uow := NewMockUnitOfWork()
		uow.Markets.On("GetForUpdate", ctx, int64(99)).Return(nil, nil)

		svc := NewMarketService(&MockUnitOfWorkFactory{UOW: uow}, testConfig())
		_, err := svc.PlaceBet(ctx, 1, 99, models.PositionYes, models.CurrencyPRED, dec("100"))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("happy path updates pools and counters atomically", func(t *testing.T) {
		uow := NewMockUnitOfWork()
		market := openMarket()
		market.YesPoolPred = dec("300")
		market.NoPoolPred = dec("700")
		user := &models.User{ID: 7, TelegramID: 777, PredBalance: dec("500")}

		uow.Markets.On("GetForUpdate", ctx, int64(1)).Return(market, nil)
		uow.Users.On("GetForUpdate", ctx, int64(7)).Return(user, nil)
		uow.Bets.On("Create", ctx, mock.AnythingOfType("*models.Bet")).Return(nil)
		uow.Users.On("DeductBalance", ctx, int64(7), models.CurrencyPRED, dec("100")).Return(dec("400"), nil)
		uow.Transactions.On("Record", ctx, mock.AnythingOfType("*models.Transaction")).Return(nil)
		uow.Markets.On("UpdatePools", ctx, market).Return(nil)
		uow.Users.On("IncrementTotalBets", ctx, int64(7)).Return(nil)

		svc := NewMarketService(&MockUnitOfWorkFactory{UOW: uow}, testConfig())
		bet, err := svc.PlaceBet(ctx, 7, 1, models.PositionYes, models.CurrencyPRED, dec("100"))
		require.NoError(t, err)

		assert.Equal(t, "36.36", bet.Odds.String())
		assert.Equal(t, "272.25", bet.PotentialWin.String())
		assert.Equal(t, "400", market.YesPoolPred.String())
		assert.Equal(t, "100", market.TotalVolumePred.String())
		assert.Equal(t, int64(1), market.BetsCount)
		// Headline odds track the PRED pools: 400/1100.
		assert.Equal(t, "36.36", market.YesOdds.String())
		assert.Equal(t, "63.64", market.NoOdds.String())
		assert.True(t, uow.Committed)

		uow.Users.AssertExpectations(t)
		uow.Markets.AssertExpectations(t)
		uow.Bets.AssertExpectations(t)
	})

	t.Run("insufficient balance fails before any write", func(t *testing.T) {
		uow := NewMockUnitOfWork()
		market := openMarket()
		user := &models.User{ID: 7, PredBalance: dec("10")}

		uow.Markets.On("GetForUpdate", ctx, int64(1)).Return(market, nil)
		uow.Users.On("GetForUpdate", ctx, int64(7)).Return(user, nil)

		svc := NewMarketService(&MockUnitOfWorkFactory{UOW: uow}, testConfig())
		_, err := svc.PlaceBet(ctx, 7, 1, models.PositionYes, models.CurrencyPRED, dec("100"))
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.False(t, uow.Committed)
		assert.True(t, uow.RolledBack)

		uow.Bets.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		uow.Users.AssertNotCalled(t, "DeductBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestResolveMarket(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects already resolved market", func(t *testing.T) {
		uow := NewMockUnitOfWork()
		market := openMarket()
		market.Status = models.MarketStatusResolved
		uow.Markets.On("GetForUpdate", ctx, int64(1)).Return(market, nil)

		svc := NewMarketService(&MockUnitOfWorkFactory{UOW: uow}, testConfig())
		_, err := svc.ResolveMarket(ctx, 1, models.OutcomeYes)
		assert.ErrorIs(t, err, ErrAlreadyResolved)
	})

	t.Run("settles winners and losers", func(t *testing.T) {
		uow := NewMockUnitOfWork()
		market := openMarket()
		market.YesPoolPred = dec("400")
		market.NoPoolPred = dec("700")

		winner := &models.Bet{ID: 10, UserID: 1, MarketID: 1, Position: models.PositionYes,
			Currency: models.CurrencyPRED, Amount: dec("100"), Status: models.BetStatusPending}
		loser := &models.Bet{ID: 11, UserID: 2, MarketID: 1, Position: models.PositionNo,
			Currency: models.CurrencyPRED, Amount: dec("700"), Status: models.BetStatusPending}

		uow.Markets.On("GetForUpdate", ctx, int64(1)).Return(market, nil)
		uow.Bets.On("ListPendingByMarket", ctx, int64(1)).Return([]*models.Bet{winner, loser}, nil)

		uow.Bets.On("Settle", ctx, int64(10), models.BetStatusWon, dec("272.25"), mock.Anything).Return(nil)
		uow.Users.On("AddBalance", ctx, int64(1), models.CurrencyPRED, dec("272.25")).Return(dec("372.25"), nil)
		uow.Transactions.On("Record", ctx, mock.AnythingOfType("*models.Transaction")).Return(nil)
		uow.Users.On("RecordWin", ctx, int64(1)).Return(nil)

		uow.Bets.On("Settle", ctx, int64(11), models.BetStatusLost, decimal.Zero, mock.Anything).Return(nil)
		uow.Users.On("RecordLoss", ctx, int64(2)).Return(nil)

		uow.Markets.On("MarkResolved", ctx, int64(1), models.OutcomeYes, mock.Anything).Return(nil)

		svc := NewMarketService(&MockUnitOfWorkFactory{UOW: uow}, testConfig())
		result, err := svc.ResolveMarket(ctx, 1, models.OutcomeYes)
		require.NoError(t, err)

		assert.Equal(t, 1, result.Winners)
		assert.Equal(t, 1, result.Losers)
		assert.Equal(t, "272.25", result.TotalPayout.String())
		assert.True(t, uow.Committed)

		uow.Bets.AssertExpectations(t)
		uow.Users.AssertExpectations(t)
		uow.Markets.AssertExpectations(t)
	})

	t.Run("cancellation refunds every stake in full", func(t *testing.T) {
		uow := NewMockUnitOfWork()
		market := openMarket()
		market.YesPoolPred = dec("100")
		market.NoPoolTon = dec("5")

		betPred := &models.Bet{ID: 20, UserID: 1, MarketID: 1, Position: models.PositionYes,
			Currency: models.CurrencyPRED, Amount: dec("100"), Status: models.BetStatusPending}
		betTon := &models.Bet{ID: 21, UserID: 2, MarketID: 1, Position: models.PositionNo,
			Currency: models.CurrencyTON, Amount: dec("5"), Status: models.BetStatusPending}

		uow.Markets.On("GetForUpdate", ctx, int64(1)).Return(market, nil)
		uow.Bets.On("ListPendingByMarket", ctx, int64(1)).Return([]*models.Bet{betPred, betTon}, nil)

		uow.Bets.On("Settle", ctx, int64(20), models.BetStatusCancelled, dec("100"), mock.Anything).Return(nil)
		uow.Users.On("AddBalance", ctx, int64(1), models.CurrencyPRED, dec("100")).Return(dec("200"), nil)
		uow.Bets.On("Settle", ctx, int64(21), models.BetStatusCancelled, dec("5"), mock.Anything).Return(nil)
		uow.Users.On("AddBalance", ctx, int64(2), models.CurrencyTON, dec("5")).Return(dec("5"), nil)
		uow.Transactions.On("Record", ctx, mock.AnythingOfType("*models.Transaction")).Return(nil)

		uow.Markets.On("MarkResolved", ctx, int64(1), models.OutcomeCancelled, mock.Anything).Return(nil)

		svc := NewMarketService(&MockUnitOfWorkFactory{UOW: uow}, testConfig())
		result, err := svc.ResolveMarket(ctx, 1, models.OutcomeCancelled)
		require.NoError(t, err)

		assert.Equal(t, 2, result.Refunded)
		assert.Zero(t, result.Winners)
		assert.Zero(t, result.Losers)
		// No win or loss counters move on cancellation.
		uow.Users.AssertNotCalled(t, "RecordWin", mock.Anything, mock.Anything)
		uow.Users.AssertNotCalled(t, "RecordLoss", mock.Anything, mock.Anything)
	})
}

func TestCloseMarket(t *testing.T) {
	ctx := context.Background()

	t.Run("open market closes", func(t *testing.T) {
		uow := NewMockUnitOfWork()
		uow.Markets.On("GetForUpdate", ctx, int64(1)).Return(openMarket(), nil)
		uow.Markets.On("UpdateStatus", ctx, int64(1), models.MarketStatusClosed).Return(nil)

		svc := NewMarketService(&MockUnitOfWorkFactory{UOW: uow}, testConfig())
		require.NoError(t, svc.CloseMarket(ctx, 1))
		assert.True(t, uow.Committed)
	})

	t.Run("resolved market stays untouched", func(t *testing.T) {
		uow := NewMockUnitOfWork()
		market := openMarket()
		market.Status = models.MarketStatusResolved
		uow.Markets.On("GetForUpdate", ctx, int64(1)).Return(market, nil)

		svc := NewMarketService(&MockUnitOfWorkFactory{UOW: uow}, testConfig())
		assert.ErrorIs(t, svc.CloseMarket(ctx, 1), ErrAlreadyResolved)
	})
}
