package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"predmarket/events"
	"predmarket/models"
)

// UserRepository defines user persistence operations.
type UserRepository interface {
	GetByID(ctx context.Context, userID int64) (*models.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	GetByReferralCode(ctx context.Context, code string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, userID int64, username, firstName, photoURL string) error
	GetForUpdate(ctx context.Context, userID int64) (*models.User, error)
	AddBalance(ctx context.Context, userID int64, currency models.Currency, amount decimal.Decimal) (decimal.Decimal, error)
	DeductBalance(ctx context.Context, userID int64, currency models.Currency, amount decimal.Decimal) (decimal.Decimal, error)
	RecordWin(ctx context.Context, userID int64) error
	RecordLoss(ctx context.Context, userID int64) error
	IncrementTotalBets(ctx context.Context, userID int64) error
	SetReferrer(ctx context.Context, userID, referrerID int64) (bool, error)
	CountReferrals(ctx context.Context, userID int64) (int64, error)
}

// MarketRepository defines market persistence operations.
type MarketRepository interface {
	Create(ctx context.Context, market *models.Market) error
	GetByID(ctx context.Context, marketID int64) (*models.Market, error)
	GetForUpdate(ctx context.Context, marketID int64) (*models.Market, error)
	UpdatePools(ctx context.Context, market *models.Market) error
	UpdateStatus(ctx context.Context, marketID int64, status models.MarketStatus) error
	MarkResolved(ctx context.Context, marketID int64, outcome models.MarketOutcome, resolvedAt time.Time) error
	SetPromotion(ctx context.Context, marketID int64, tier models.PromotionTier, until *time.Time) error
	ListByStatus(ctx context.Context, status models.MarketStatus, limit int) ([]*models.Market, error)
}

// BetRepository defines bet persistence operations.
type BetRepository interface {
	Create(ctx context.Context, bet *models.Bet) error
	ListPendingByMarket(ctx context.Context, marketID int64) ([]*models.Bet, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Bet, error)
	Settle(ctx context.Context, betID int64, status models.BetStatus, payout decimal.Decimal, settledAt time.Time) error
	CountByUser(ctx context.Context, userID int64, category string, since time.Time) (int64, error)
	ProfitStandings(ctx context.Context, from, to time.Time, limit int) ([]*models.LeaderboardEntry, error)
}

// TransactionRepository defines the append-only ledger.
type TransactionRepository interface {
	Record(ctx context.Context, txn *models.Transaction) error
	ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Transaction, error)
}

// NotificationRepository defines the durable notification queue.
type NotificationRepository interface {
	Enqueue(ctx context.Context, n *models.Notification) error
	DequeueBatch(ctx context.Context, limit int) ([]*models.Notification, error)
	MarkSent(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, sendErr string, permanent bool) error
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error)
	DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[models.NotificationStatus]int64, error)
	GetByID(ctx context.Context, id int64) (*models.Notification, error)
}

// LeaderboardRepository defines period and reward-tier persistence.
type LeaderboardRepository interface {
	GetLastClosedPeriod(ctx context.Context, periodType models.PeriodType) (*models.LeaderboardPeriod, error)
	ExistsCoveringWindow(ctx context.Context, periodType models.PeriodType, windowStart time.Time) (bool, error)
	CreatePeriod(ctx context.Context, p *models.LeaderboardPeriod) error
	GetActiveRewards(ctx context.Context, periodType models.PeriodType) ([]*models.LeaderboardReward, error)
}

// MissionRepository defines mission and progress persistence.
type MissionRepository interface {
	GetByID(ctx context.Context, missionID int64) (*models.Mission, error)
	ListActive(ctx context.Context) ([]*models.Mission, error)
	Create(ctx context.Context, m *models.Mission) error
	GetProgress(ctx context.Context, userID, missionID int64) (*models.UserMission, error)
	UpsertProgress(ctx context.Context, userID, missionID, progress int64, completed bool) error
	MarkClaimed(ctx context.Context, userID, missionID int64, claimedAt time.Time) (bool, error)
	ResetProgressByType(ctx context.Context, missionType models.MissionType) (int64, error)
}

// UnitOfWork bundles repositories over one transaction. Events published
// through EventBus are delivered only if the transaction commits.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	UserRepository() UserRepository
	MarketRepository() MarketRepository
	BetRepository() BetRepository
	TransactionRepository() TransactionRepository
	NotificationRepository() NotificationRepository
	LeaderboardRepository() LeaderboardRepository
	MissionRepository() MissionRepository

	EventBus() events.Publisher
}

// UnitOfWorkFactory creates unit-of-work instances.
type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// MessageSender delivers a notification to its recipient. Implementations
// classify failures via SendError.
type MessageSender interface {
	SendMessage(ctx context.Context, telegramID int64, text, parseMode string) error
	SendPhoto(ctx context.Context, telegramID int64, photoURL, caption, parseMode string) error
}

// SubscriptionChecker reports whether a user is subscribed to a channel.
type SubscriptionChecker interface {
	IsSubscribed(ctx context.Context, telegramID, channelID int64, channelUsername string) (bool, error)
}

// StandingsCache caches the current-window leaderboard preview.
type StandingsCache interface {
	Get(ctx context.Context, key string) ([]*models.LeaderboardEntry, bool, error)
	Set(ctx context.Context, key string, entries []*models.LeaderboardEntry, ttl time.Duration) error
}
