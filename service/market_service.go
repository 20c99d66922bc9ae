package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"predmarket/config"
	"predmarket/events"
	"predmarket/models"
)

// MarketService owns market lifecycle, bet placement and settlement.
type MarketService struct {
	uowFactory UnitOfWorkFactory
	cfg        *config.Config
}

// NewMarketService creates a market service.
func NewMarketService(uowFactory UnitOfWorkFactory, cfg *config.Config) *MarketService {
	return &MarketService{
		uowFactory: uowFactory,
		cfg:        cfg,
	}
}

func (s *MarketService) commission(currency models.Currency) decimal.Decimal {
	if currency == models.CurrencyTON {
		return s.cfg.CommissionTon
	}
	return s.cfg.CommissionPred
}

// LockedOdds computes the odds snapshot for a stake: the chosen side's share
// of the total pool in the bet's currency, including the stake itself, as a
// percentage rounded to two places. An empty market yields 100.00.
func LockedOdds(market *models.Market, position models.Position, currency models.Currency, amount decimal.Decimal) decimal.Decimal {
	own := market.Pool(position, currency).Add(amount)
	total := market.Pool(models.PositionYes, currency).
		Add(market.Pool(models.PositionNo, currency)).
		Add(amount)
	return own.Div(total).Mul(decimal.NewFromInt(100)).Round(2)
}

// PotentialWin computes the payout snapshot for a stake. With no opposing
// liquidity the payout is a flat doubling and commission does not apply;
// otherwise the stake earns a proportional share of the opposing pool and
// the whole payout is reduced by the currency's commission.
func PotentialWin(market *models.Market, position models.Position, currency models.Currency,
	amount, commission decimal.Decimal) decimal.Decimal {

	opposing := market.Pool(position.Opposite(), currency)
	if opposing.IsZero() {
		return amount.Mul(decimal.NewFromInt(2)).Round(2)
	}

	ownIncl := market.Pool(position, currency).Add(amount)
	gross := amount.Add(amount.Mul(opposing).Div(ownIncl))
	return gross.Mul(decimal.NewFromInt(1).Sub(commission)).Round(2)
}

// PlaceBet places a stake on an open market. The market row is locked for
// the duration, serializing concurrent bets; debit, pool update, odds
// refresh, counters and the pending bet row commit atomically.
func (s *MarketService) PlaceBet(ctx context.Context, userID, marketID int64,
	position models.Position, currency models.Currency, amount decimal.Decimal) (*models.Bet, error) {

	if !position.Valid() {
		return nil, fmt.Errorf("%w: unknown position %q", ErrInvalidInput, position)
	}
	if !currency.Valid() {
		return nil, fmt.Errorf("%w: unknown currency %q", ErrInvalidInput, currency)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive, got %s", ErrInvalidInput, amount)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	market, err := uow.MarketRepository().GetForUpdate(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if market == nil {
		return nil, fmt.Errorf("%w: market %d", ErrNotFound, marketID)
	}
	if !market.IsOpen() {
		return nil, ErrMarketNotOpen
	}

	// Lock the user row too, so the balance read below stays valid
	// through the debit.
	user, err := uow.UserRepository().GetForUpdate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if user.IsBanned {
		return nil, ErrUserBanned
	}
	if !user.CanAfford(amount, currency) {
		return nil, ErrInsufficientBalance
	}

	odds := LockedOdds(market, position, currency, amount)
	potentialWin := PotentialWin(market, position, currency, amount, s.commission(currency))

	bet := &models.Bet{
		UserID:       userID,
		MarketID:     marketID,
		Position:     position,
		Amount:       amount,
		Currency:     currency,
		Odds:         odds,
		PotentialWin: potentialWin,
	}
	if err := uow.BetRepository().Create(ctx, bet); err != nil {
		return nil, err
	}

	if err := debitBalance(ctx, uow, userID, currency, amount,
		models.TransactionTypeBet, fmt.Sprintf("Bet on market %d", marketID), &bet.ID); err != nil {
		return nil, err
	}

	market.AddToPool(position, currency, amount)
	market.RecomputeOdds()
	market.BetsCount++
	if err := uow.MarketRepository().UpdatePools(ctx, market); err != nil {
		return nil, err
	}

	if err := uow.UserRepository().IncrementTotalBets(ctx, userID); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.BetPlacedEvent{
		BetID:    bet.ID,
		UserID:   userID,
		MarketID: marketID,
		Position: position,
		Amount:   amount,
		Currency: currency,
		Odds:     odds,
	})

	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"betID":    bet.ID,
		"userID":   userID,
		"marketID": marketID,
		"position": position,
		"amount":   amount.String(),
		"currency": currency,
		"odds":     odds.String(),
	}).Info("Bet placed")

	return bet, nil
}

// SettlementResult summarizes one market resolution.
type SettlementResult struct {
	MarketID    int64
	Outcome     models.MarketOutcome
	Winners     int
	Losers      int
	Refunded    int
	TotalPayout decimal.Decimal
}

// ResolveMarket settles every pending bet on a market under the given
// outcome. Only pending bets are touched, so a retry after a partial
// failure settles exactly the remainder. Winners take a pari-mutuel share
// of the losing pool in their own currency, reduced by commission; a
// resolution with no losing liquidity refunds stakes in full.
func (s *MarketService) ResolveMarket(ctx context.Context, marketID int64, outcome models.MarketOutcome) (*SettlementResult, error) {
	if !outcome.Valid() {
		return nil, fmt.Errorf("%w: unknown outcome %q", ErrInvalidInput, outcome)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	market, err := uow.MarketRepository().GetForUpdate(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if market == nil {
		return nil, fmt.Errorf("%w: market %d", ErrNotFound, marketID)
	}
	if market.IsResolved() {
		return nil, ErrAlreadyResolved
	}

	bets, err := uow.BetRepository().ListPendingByMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result := &SettlementResult{
		MarketID:    marketID,
		Outcome:     outcome,
		TotalPayout: decimal.Zero,
	}

	for _, bet := range bets {
		if outcome == models.OutcomeCancelled {
			if err := s.refundBet(ctx, uow, bet, now); err != nil {
				return nil, err
			}
			result.Refunded++
			continue
		}

		if string(bet.Position) == string(outcome) {
			payout := settlementPayout(market, bet, s.commission(bet.Currency))
			if err := s.creditWin(ctx, uow, bet, payout, now); err != nil {
				return nil, err
			}
			result.Winners++
			result.TotalPayout = result.TotalPayout.Add(payout)
		} else {
			if err := s.settleLoss(ctx, uow, bet, now); err != nil {
				return nil, err
			}
			result.Losers++
		}
	}

	if err := uow.MarketRepository().MarkResolved(ctx, marketID, outcome, now); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.MarketResolvedEvent{
		MarketID:     marketID,
		Outcome:      outcome,
		WinnersCount: result.Winners,
		LosersCount:  result.Losers,
		TotalPayout:  result.TotalPayout,
	})

	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"marketID": marketID,
		"outcome":  outcome,
		"winners":  result.Winners,
		"losers":   result.Losers,
		"refunded": result.Refunded,
		"payout":   result.TotalPayout.String(),
	}).Info("Market resolved")

	return result, nil
}

// settlementPayout computes a winner's payout from the final pools of the
// bet's own currency: the stake plus its proportional share of the losing
// pool, reduced by commission. No losing liquidity means a plain refund
// with no commission taken.
func settlementPayout(market *models.Market, bet *models.Bet, commission decimal.Decimal) decimal.Decimal {
	winningPool := market.Pool(bet.Position, bet.Currency)
	losingPool := market.Pool(bet.Position.Opposite(), bet.Currency)

	if losingPool.IsZero() || winningPool.IsZero() {
		return bet.Amount
	}

	gross := bet.Amount.Add(bet.Amount.Div(winningPool).Mul(losingPool))
	return gross.Mul(decimal.NewFromInt(1).Sub(commission)).Round(2)
}

func (s *MarketService) creditWin(ctx context.Context, uow UnitOfWork, bet *models.Bet, payout decimal.Decimal, now time.Time) error {
	if err := uow.BetRepository().Settle(ctx, bet.ID, models.BetStatusWon, payout, now); err != nil {
		return err
	}
	if err := creditBalance(ctx, uow, bet.UserID, bet.Currency, payout,
		models.TransactionTypeWin, fmt.Sprintf("Won bet %d on market %d", bet.ID, bet.MarketID), &bet.ID); err != nil {
		return err
	}
	return uow.UserRepository().RecordWin(ctx, bet.UserID)
}

func (s *MarketService) settleLoss(ctx context.Context, uow UnitOfWork, bet *models.Bet, now time.Time) error {
	if err := uow.BetRepository().Settle(ctx, bet.ID, models.BetStatusLost, decimal.Zero, now); err != nil {
		return err
	}
	return uow.UserRepository().RecordLoss(ctx, bet.UserID)
}

func (s *MarketService) refundBet(ctx context.Context, uow UnitOfWork, bet *models.Bet, now time.Time) error {
	if err := uow.BetRepository().Settle(ctx, bet.ID, models.BetStatusCancelled, bet.Amount, now); err != nil {
		return err
	}
	return creditBalance(ctx, uow, bet.UserID, bet.Currency, bet.Amount,
		models.TransactionTypeRefund, fmt.Sprintf("Refund for cancelled market %d", bet.MarketID), &bet.ID)
}

// CreateMarket creates a market. Admin-created markets are approved and open
// immediately; user submissions await moderation.
func (s *MarketService) CreateMarket(ctx context.Context, creatorID *int64, question, description, category, imageURL string,
	expiresAt *time.Time, byAdmin bool) (*models.Market, error) {

	if question == "" {
		return nil, fmt.Errorf("%w: question is required", ErrInvalidInput)
	}
	if category == "" {
		category = "general"
	}

	market := &models.Market{
		CreatorID:        creatorID,
		Question:         question,
		Description:      description,
		Category:         category,
		ImageURL:         imageURL,
		Status:           models.MarketStatusOpen,
		ModerationStatus: models.ModerationApproved,
		ExpiresAt:        expiresAt,
	}
	if !byAdmin {
		market.ModerationStatus = models.ModerationPending
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	if err := uow.MarketRepository().Create(ctx, market); err != nil {
		return nil, err
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"marketID": market.ID,
		"category": market.Category,
		"byAdmin":  byAdmin,
	}).Info("Market created")

	return market, nil
}

// CloseMarket stops betting on an open market ahead of resolution.
func (s *MarketService) CloseMarket(ctx context.Context, marketID int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	market, err := uow.MarketRepository().GetForUpdate(ctx, marketID)
	if err != nil {
		return err
	}
	if market == nil {
		return fmt.Errorf("%w: market %d", ErrNotFound, marketID)
	}
	if market.IsResolved() {
		return ErrAlreadyResolved
	}
	if market.Status != models.MarketStatusOpen {
		return ErrMarketNotOpen
	}

	if err := uow.MarketRepository().UpdateStatus(ctx, marketID, models.MarketStatusClosed); err != nil {
		return err
	}
	return uow.Commit(ctx)
}

// PromoteMarket sets a market's paid visibility tier until the given time.
func (s *MarketService) PromoteMarket(ctx context.Context, marketID int64, tier models.PromotionTier, until time.Time) error {
	if tier != models.PromotionBasic && tier != models.PromotionPremium {
		return fmt.Errorf("%w: unknown promotion tier %q", ErrInvalidInput, tier)
	}
	if !until.After(time.Now()) {
		return fmt.Errorf("%w: promotion expiry must be in the future", ErrInvalidInput)
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	market, err := uow.MarketRepository().GetByID(ctx, marketID)
	if err != nil {
		return err
	}
	if market == nil {
		return fmt.Errorf("%w: market %d", ErrNotFound, marketID)
	}

	if err := uow.MarketRepository().SetPromotion(ctx, marketID, tier, &until); err != nil {
		return err
	}
	return uow.Commit(ctx)
}

// GetMarket returns a market by id.
func (s *MarketService) GetMarket(ctx context.Context, marketID int64) (*models.Market, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	market, err := uow.MarketRepository().GetByID(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if market == nil {
		return nil, fmt.Errorf("%w: market %d", ErrNotFound, marketID)
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	return market, nil
}
