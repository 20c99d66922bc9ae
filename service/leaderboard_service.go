package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"predmarket/events"
	"predmarket/models"
)

const standingsLimit = 100

// LeaderboardService owns competition windows: standing computation, period
// close with reward distribution, and the cached current-window preview.
type LeaderboardService struct {
	uowFactory  UnitOfWorkFactory
	cache       StandingsCache
	cacheTTL    time.Duration
	maxAttempts int
}

// NewLeaderboardService creates a leaderboard service. cache may be nil,
// in which case previews always hit the database. maxAttempts is the
// delivery budget stamped on reward notifications.
func NewLeaderboardService(uowFactory UnitOfWorkFactory, cache StandingsCache, maxAttempts int) *LeaderboardService {
	return &LeaderboardService{
		uowFactory:  uowFactory,
		cache:       cache,
		cacheTTL:    time.Minute,
		maxAttempts: maxAttempts,
	}
}

// PeriodCloseResult summarizes one closed period.
type PeriodCloseResult struct {
	Period  *models.LeaderboardPeriod
	Winners []RewardedEntry
}

// RewardedEntry pairs a standing with the reward it earned.
type RewardedEntry struct {
	Entry    *models.LeaderboardEntry
	Rank     int
	Amount   decimal.Decimal
	Currency models.Currency
}

// ClosePeriod closes the current window of a period type: ranks
// participants by in-window profit, credits configured reward tiers,
// enqueues winner notifications and persists one immutable closed period
// row, all in one transaction. Closing an already-covered window is a
// no-op failure; windows with no reward tiers or no participants abort
// with no state change.
func (s *LeaderboardService) ClosePeriod(ctx context.Context, periodType models.PeriodType, closedByAdminID *int64) (*PeriodCloseResult, error) {
	if !periodType.Valid() {
		return nil, fmt.Errorf("%w: unknown period type %q", ErrInvalidInput, periodType)
	}

	now := time.Now().UTC()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	lastClosed, err := uow.LeaderboardRepository().GetLastClosedPeriod(ctx, periodType)
	if err != nil {
		return nil, err
	}
	start := windowStart(periodType, lastClosed, now)
	if !start.Before(now) {
		return nil, ErrAlreadyClosed
	}

	covered, err := uow.LeaderboardRepository().ExistsCoveringWindow(ctx, periodType, start)
	if err != nil {
		return nil, err
	}
	if covered {
		return nil, ErrAlreadyClosed
	}

	rewards, err := uow.LeaderboardRepository().GetActiveRewards(ctx, periodType)
	if err != nil {
		return nil, err
	}
	if len(rewards) == 0 {
		return nil, ErrNoRewardsConfigured
	}

	entries, err := uow.BetRepository().ProfitStandings(ctx, start, now, standingsLimit)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNoParticipants
	}

	period := &models.LeaderboardPeriod{
		PeriodType:        periodType,
		StartsAt:          start,
		EndsAt:            now,
		ParticipantsCount: int64(len(entries)),
		TotalRewardsPred:  decimal.Zero,
		TotalRewardsTon:   decimal.Zero,
		ClosedByAdminID:   closedByAdminID,
	}

	var winners []RewardedEntry
	for i, entry := range entries {
		rank := i + 1
		reward := tierForRank(rewards, rank)
		if reward == nil {
			continue
		}

		if err := creditBalance(ctx, uow, entry.UserID, reward.Currency, reward.Amount,
			models.TransactionTypeLeaderboardReward,
			fmt.Sprintf("%s leaderboard rank %d reward", periodType, rank), nil); err != nil {
			return nil, err
		}

		if err := s.enqueueRewardNotification(ctx, uow, entry.UserID, periodType, rank, reward); err != nil {
			return nil, err
		}

		if reward.Currency == models.CurrencyTON {
			period.TotalRewardsTon = period.TotalRewardsTon.Add(reward.Amount)
		} else {
			period.TotalRewardsPred = period.TotalRewardsPred.Add(reward.Amount)
		}
		period.WinnersCount++
		winners = append(winners, RewardedEntry{
			Entry:    entry,
			Rank:     rank,
			Amount:   reward.Amount,
			Currency: reward.Currency,
		})
	}

	// A concurrent close of the same window surfaces here as
	// ErrAlreadyClosed from the unique window constraint; the rollback
	// then discards every reward credited above.
	if err := uow.LeaderboardRepository().CreatePeriod(ctx, period); err != nil {
		return nil, err
	}

	uow.EventBus().Publish(events.PeriodClosedEvent{
		PeriodID:     period.ID,
		PeriodType:   periodType,
		Participants: period.ParticipantsCount,
		Winners:      period.WinnersCount,
	})

	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"periodType":   periodType,
		"periodID":     period.ID,
		"start":        start,
		"end":          now,
		"participants": period.ParticipantsCount,
		"winners":      period.WinnersCount,
	}).Info("Leaderboard period closed")

	return &PeriodCloseResult{Period: period, Winners: winners}, nil
}

func tierForRank(rewards []*models.LeaderboardReward, rank int) *models.LeaderboardReward {
	for _, r := range rewards {
		if r.Covers(rank) {
			return r
		}
	}
	return nil
}

func (s *LeaderboardService) enqueueRewardNotification(ctx context.Context, uow UnitOfWork,
	userID int64, periodType models.PeriodType, rank int, reward *models.LeaderboardReward) error {

	user, err := uow.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}

	message := fmt.Sprintf(
		"🏆 You finished #%d on the %s leaderboard and won %s %s!",
		rank, periodType, reward.Amount.String(), reward.Currency)

	return uow.NotificationRepository().Enqueue(ctx, &models.Notification{
		TelegramID:  user.TelegramID,
		Message:     message,
		ParseMode:   "HTML",
		MaxAttempts: s.maxAttempts,
	})
}

// CurrentStandings returns the standings preview of the current open
// window, served from cache when fresh.
func (s *LeaderboardService) CurrentStandings(ctx context.Context, periodType models.PeriodType) ([]*models.LeaderboardEntry, error) {
	if !periodType.Valid() {
		return nil, fmt.Errorf("%w: unknown period type %q", ErrInvalidInput, periodType)
	}

	cacheKey := "leaderboard:current:" + string(periodType)
	if s.cache != nil {
		if entries, ok, err := s.cache.Get(ctx, cacheKey); err != nil {
			log.WithError(err).Warn("Standings cache read failed")
		} else if ok {
			return entries, nil
		}
	}

	now := time.Now().UTC()

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	lastClosed, err := uow.LeaderboardRepository().GetLastClosedPeriod(ctx, periodType)
	if err != nil {
		return nil, err
	}
	start := windowStart(periodType, lastClosed, now)

	entries, err := uow.BetRepository().ProfitStandings(ctx, start, now, standingsLimit)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, entries, s.cacheTTL); err != nil {
			log.WithError(err).Warn("Standings cache write failed")
		}
	}
	return entries, nil
}
