package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"predmarket/events"
	"predmarket/models"
)

// Hand-written mocks shared by the service unit tests.

// MockUserRepository mocks UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByID(ctx context.Context, userID int64) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByReferralCode(ctx context.Context, code string) (*models.User, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateProfile(ctx context.Context, userID int64, username, firstName, photoURL string) error {
	args := m.Called(ctx, userID, username, firstName, photoURL)
	return args.Error(0)
}

func (m *MockUserRepository) GetForUpdate(ctx context.Context, userID int64) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) AddBalance(ctx context.Context, userID int64, currency models.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, currency, amount)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockUserRepository) DeductBalance(ctx context.Context, userID int64, currency models.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, userID, currency, amount)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockUserRepository) RecordWin(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockUserRepository) RecordLoss(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockUserRepository) IncrementTotalBets(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *MockUserRepository) SetReferrer(ctx context.Context, userID, referrerID int64) (bool, error) {
	args := m.Called(ctx, userID, referrerID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) CountReferrals(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

// MockMarketRepository mocks MarketRepository.
type MockMarketRepository struct {
	mock.Mock
}

func (m *MockMarketRepository) Create(ctx context.Context, market *models.Market) error {
	args := m.Called(ctx, market)
	return args.Error(0)
}

func (m *MockMarketRepository) GetByID(ctx context.Context, marketID int64) (*models.Market, error) {
	args := m.Called(ctx, marketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Market), args.Error(1)
}

func (m *MockMarketRepository) GetForUpdate(ctx context.Context, marketID int64) (*models.Market, error) {
	args := m.Called(ctx, marketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Market), args.Error(1)
}

func (m *MockMarketRepository) UpdatePools(ctx context.Context, market *models.Market) error {
	args := m.Called(ctx, market)
	return args.Error(0)
}

func (m *MockMarketRepository) UpdateStatus(ctx context.Context, marketID int64, status models.MarketStatus) error {
	args := m.Called(ctx, marketID, status)
	return args.Error(0)
}

func (m *MockMarketRepository) MarkResolved(ctx context.Context, marketID int64, outcome models.MarketOutcome, resolvedAt time.Time) error {
	args := m.Called(ctx, marketID, outcome, resolvedAt)
	return args.Error(0)
}

func (m *MockMarketRepository) SetPromotion(ctx context.Context, marketID int64, tier models.PromotionTier, until *time.Time) error {
	args := m.Called(ctx, marketID, tier, until)
	return args.Error(0)
}

func (m *MockMarketRepository) ListByStatus(ctx context.Context, status models.MarketStatus, limit int) ([]*models.Market, error) {
	args := m.Called(ctx, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Market), args.Error(1)
}

// MockBetRepository mocks BetRepository.
type MockBetRepository struct {
	mock.Mock
}

func (m *MockBetRepository) Create(ctx context.Context, bet *models.Bet) error {
	args := m.Called(ctx, bet)
	return args.Error(0)
}

func (m *MockBetRepository) ListPendingByMarket(ctx context.Context, marketID int64) ([]*models.Bet, error) {
	args := m.Called(ctx, marketID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Bet), args.Error(1)
}

func (m *MockBetRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Bet, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Bet), args.Error(1)
}

func (m *MockBetRepository) Settle(ctx context.Context, betID int64, status models.BetStatus, payout decimal.Decimal, settledAt time.Time) error {
	args := m.Called(ctx, betID, status, payout, settledAt)
	return args.Error(0)
}

func (m *MockBetRepository) CountByUser(ctx context.Context, userID int64, category string, since time.Time) (int64, error) {
	args := m.Called(ctx, userID, category, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockBetRepository) ProfitStandings(ctx context.Context, from, to time.Time, limit int) ([]*models.LeaderboardEntry, error) {
	args := m.Called(ctx, from, to, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LeaderboardEntry), args.Error(1)
}

// MockTransactionRepository mocks TransactionRepository.
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Record(ctx context.Context, txn *models.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Transaction, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

// MockNotificationRepository mocks NotificationRepository.
type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Enqueue(ctx context.Context, n *models.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNotificationRepository) DequeueBatch(ctx context.Context, limit int) ([]*models.Notification, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Notification), args.Error(1)
}

func (m *MockNotificationRepository) MarkSent(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockNotificationRepository) MarkFailed(ctx context.Context, id int64, sendErr string, permanent bool) error {
	args := m.Called(ctx, id, sendErr, permanent)
	return args.Error(0)
}

func (m *MockNotificationRepository) ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationRepository) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockNotificationRepository) CountByStatus(ctx context.Context) (map[models.NotificationStatus]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.NotificationStatus]int64), args.Error(1)
}

func (m *MockNotificationRepository) GetByID(ctx context.Context, id int64) (*models.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}

// MockLeaderboardRepository mocks LeaderboardRepository.
type MockLeaderboardRepository struct {
	mock.Mock
}

func (m *MockLeaderboardRepository) GetLastClosedPeriod(ctx context.Context, periodType models.PeriodType) (*models.LeaderboardPeriod, error) {
	args := m.Called(ctx, periodType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LeaderboardPeriod), args.Error(1)
}

func (m *MockLeaderboardRepository) ExistsCoveringWindow(ctx context.Context, periodType models.PeriodType, windowStart time.Time) (bool, error) {
	args := m.Called(ctx, periodType, windowStart)
	return args.Bool(0), args.Error(1)
}

func (m *MockLeaderboardRepository) CreatePeriod(ctx context.Context, p *models.LeaderboardPeriod) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockLeaderboardRepository) GetActiveRewards(ctx context.Context, periodType models.PeriodType) ([]*models.LeaderboardReward, error) {
	args := m.Called(ctx, periodType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.LeaderboardReward), args.Error(1)
}

// MockMissionRepository mocks MissionRepository.
type MockMissionRepository struct {
	mock.Mock
}

func (m *MockMissionRepository) GetByID(ctx context.Context, missionID int64) (*models.Mission, error) {
	args := m.Called(ctx, missionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Mission), args.Error(1)
}

func (m *MockMissionRepository) ListActive(ctx context.Context) ([]*models.Mission, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Mission), args.Error(1)
}

func (m *MockMissionRepository) Create(ctx context.Context, mission *models.Mission) error {
	args := m.Called(ctx, mission)
	return args.Error(0)
}

func (m *MockMissionRepository) GetProgress(ctx context.Context, userID, missionID int64) (*models.UserMission, error) {
	args := m.Called(ctx, userID, missionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserMission), args.Error(1)
}

func (m *MockMissionRepository) UpsertProgress(ctx context.Context, userID, missionID, progress int64, completed bool) error {
	args := m.Called(ctx, userID, missionID, progress, completed)
	return args.Error(0)
}

func (m *MockMissionRepository) MarkClaimed(ctx context.Context, userID, missionID int64, claimedAt time.Time) (bool, error) {
	args := m.Called(ctx, userID, missionID, claimedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockMissionRepository) ResetProgressByType(ctx context.Context, missionType models.MissionType) (int64, error) {
	args := m.Called(ctx, missionType)
	return args.Get(0).(int64), args.Error(1)
}

// MockUnitOfWork bundles the repository mocks behind the UnitOfWork
// interface. Begin/Commit/Rollback only track whether they ran.
type MockUnitOfWork struct {
	Users         *MockUserRepository
	Markets       *MockMarketRepository
	Bets          *MockBetRepository
	Transactions  *MockTransactionRepository
	Notifications *MockNotificationRepository
	Leaderboard   *MockLeaderboardRepository
	Missions      *MockMissionRepository
	Bus           *events.Bus

	Begun      bool
	Committed  bool
	RolledBack bool
}

// NewMockUnitOfWork creates a unit of work with fresh mocks.
func NewMockUnitOfWork() *MockUnitOfWork {
	return &MockUnitOfWork{
		Users:         &MockUserRepository{},
		Markets:       &MockMarketRepository{},
		Bets:          &MockBetRepository{},
		Transactions:  &MockTransactionRepository{},
		Notifications: &MockNotificationRepository{},
		Leaderboard:   &MockLeaderboardRepository{},
		Missions:      &MockMissionRepository{},
		Bus:           events.NewBus(),
	}
}

func (u *MockUnitOfWork) Begin(ctx context.Context) error {
	u.Begun = true
	return nil
}

func (u *MockUnitOfWork) Commit(ctx context.Context) error {
	u.Committed = true
	return nil
}

func (u *MockUnitOfWork) Rollback(ctx context.Context) error {
	if !u.Committed {
		u.RolledBack = true
	}
	return nil
}

func (u *MockUnitOfWork) UserRepository() UserRepository                 { return u.Users }
func (u *MockUnitOfWork) MarketRepository() MarketRepository             { return u.Markets }
func (u *MockUnitOfWork) BetRepository() BetRepository                   { return u.Bets }
func (u *MockUnitOfWork) TransactionRepository() TransactionRepository   { return u.Transactions }
func (u *MockUnitOfWork) NotificationRepository() NotificationRepository { return u.Notifications }
func (u *MockUnitOfWork) LeaderboardRepository() LeaderboardRepository   { return u.Leaderboard }
func (u *MockUnitOfWork) MissionRepository() MissionRepository           { return u.Missions }
func (u *MockUnitOfWork) EventBus() events.Publisher                     { return u.Bus }

// MockUnitOfWorkFactory hands out the same unit of work every time.
type MockUnitOfWorkFactory struct {
	UOW *MockUnitOfWork
}

func (f *MockUnitOfWorkFactory) Create() UnitOfWork {
	return f.UOW
}
