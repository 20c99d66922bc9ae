package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"predmarket/database"
	"predmarket/events"
	"predmarket/service"
)

// unitOfWork bundles repositories over a single transaction. Events
// published during the transaction are buffered and flushed only on commit.
type unitOfWork struct {
	db  *database.DB
	tx  pgx.Tx
	bus *events.TransactionalBus

	users         *UserRepository
	markets       *MarketRepository
	bets          *BetRepository
	transactions  *TransactionRepository
	notifications *NotificationRepository
	leaderboard   *LeaderboardRepository
	missions      *MissionRepository
}

// unitOfWorkFactory creates units of work against the shared pool.
type unitOfWorkFactory struct {
	db  *database.DB
	bus events.Publisher
}

// NewUnitOfWorkFactory creates a factory producing transaction-scoped
// unit-of-work instances.
func NewUnitOfWorkFactory(db *database.DB, bus events.Publisher) service.UnitOfWorkFactory {
	return &unitOfWorkFactory{db: db, bus: bus}
}

func (f *unitOfWorkFactory) Create() service.UnitOfWork {
	return &unitOfWork{
		db:  f.db,
		bus: events.NewTransactionalBus(f.bus),
	}
}

// Begin starts the underlying transaction and binds all repositories to it.
func (u *unitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return fmt.Errorf("unit of work already begun")
	}
	tx, err := u.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	u.tx = tx
	u.users = newUserRepositoryWithTx(tx)
	u.markets = newMarketRepositoryWithTx(tx)
	u.bets = newBetRepositoryWithTx(tx)
	u.transactions = newTransactionRepositoryWithTx(tx)
	u.notifications = newNotificationRepositoryWithTx(tx)
	u.leaderboard = newLeaderboardRepositoryWithTx(tx)
	u.missions = newMissionRepositoryWithTx(tx)
	return nil
}

// Commit commits the transaction and flushes buffered events.
func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.tx == nil {
		return fmt.Errorf("unit of work not begun")
	}
	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	u.tx = nil
	u.bus.Flush()
	return nil
}

// Rollback aborts the transaction and discards buffered events. Safe to
// defer after a successful commit.
func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.tx == nil {
		return nil
	}
	err := u.tx.Rollback(ctx)
	u.tx = nil
	u.bus.Discard()
	if err != nil && err != pgx.ErrTxClosed {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

func (u *unitOfWork) UserRepository() service.UserRepository {
	return u.users
}

func (u *unitOfWork) MarketRepository() service.MarketRepository {
	return u.markets
}

func (u *unitOfWork) BetRepository() service.BetRepository {
	return u.bets
}

func (u *unitOfWork) TransactionRepository() service.TransactionRepository {
	return u.transactions
}

func (u *unitOfWork) NotificationRepository() service.NotificationRepository {
	return u.notifications
}

func (u *unitOfWork) LeaderboardRepository() service.LeaderboardRepository {
	return u.leaderboard
}

func (u *unitOfWork) MissionRepository() service.MissionRepository {
	return u.missions
}

// EventBus returns the transaction-scoped publisher.
func (u *unitOfWork) EventBus() events.Publisher {
	return u.bus
}
