package repository

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"predmarket/events"
	"predmarket/models"
	"predmarket/repository/testutil"
)

func TestUnitOfWork_CommitFlushesEvents(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	bus := events.NewBus()
	var published []events.Event
	bus.Subscribe(events.EventTypeBalanceChange, func(event events.Event) {
		published = append(published, event)
	})

	factory := NewUnitOfWorkFactory(testDB.DB, bus)

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))

	user := testutil.CreateTestUser(111, "alice")
	require.NoError(t, uow.UserRepository().Create(ctx, user))
	_, err := uow.UserRepository().AddBalance(ctx, user.ID, models.CurrencyPRED, decimal.NewFromInt(50))
	require.NoError(t, err)

	uow.EventBus().Publish(events.BalanceChangeEvent{UserID: user.ID, Amount: decimal.NewFromInt(50)})
	assert.Empty(t, published, "events stay buffered until commit")

	require.NoError(t, uow.Commit(ctx))
	require.Len(t, published, 1)

	// The write is visible outside the transaction.
	got, err := NewUserRepository(testDB.DB).GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "1050", got.PredBalance.String())
}

func TestUnitOfWork_RollbackDiscardsEverything(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	bus := events.NewBus()
	var published []events.Event
	bus.Subscribe(events.EventTypeUserRegistered, func(event events.Event) {
		published = append(published, event)
	})

	factory := NewUnitOfWorkFactory(testDB.DB, bus)

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))

	user := testutil.CreateTestUser(222, "bob")
	require.NoError(t, uow.UserRepository().Create(ctx, user))
	uow.EventBus().Publish(events.UserRegisteredEvent{UserID: user.ID, TelegramID: 222})

	require.NoError(t, uow.Rollback(ctx))
	assert.Empty(t, published)

	got, err := NewUserRepository(testDB.DB).GetByTelegramID(ctx, 222)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestUnitOfWork_RollbackAfterCommitIsSafe(t *testing.T) {
	t.Parallel()
	testDB := testutil.SetupTestDatabase(t)
	ctx := context.Background()

	factory := NewUnitOfWorkFactory(testDB.DB, events.NewBus())

	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))

	user := testutil.CreateTestUser(333, "carol")
	require.NoError(t, uow.UserRepository().Create(ctx, user))
	require.NoError(t, uow.Commit(ctx))

	// The deferred rollback in every service path hits this branch.
	assert.NoError(t, uow.Rollback(ctx))
}
