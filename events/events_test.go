package events

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"predmarket/models"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := NewBus()

	var received []Event
	bus.Subscribe(EventTypeBetPlaced, func(event Event) {
		received = append(received, event)
	})

	placed := BetPlacedEvent{
		BetID:    1,
		UserID:   2,
		MarketID: 3,
		Position: models.PositionYes,
		Amount:   decimal.NewFromInt(100),
		Currency: models.CurrencyPRED,
	}
	bus.Publish(placed)

	require.Len(t, received, 1)
	got, ok := received[0].(BetPlacedEvent)
	require.True(t, ok)
	assert.Equal(t, placed.BetID, got.BetID)
	assert.Equal(t, placed.Position, got.Position)
}

func TestBusUnrelatedTypesAreNotDelivered(t *testing.T) {
	bus := NewBus()

	var calls int
	bus.Subscribe(EventTypeMarketResolved, func(Event) { calls++ })

	bus.Publish(BetPlacedEvent{BetID: 1})
	assert.Zero(t, calls)
}

func TestBusRecoverFromPanickingHandler(t *testing.T) {
	bus := NewBus()

	var reached bool
	bus.Subscribe(EventTypeBetPlaced, func(Event) { panic("bad subscriber") })
	bus.Subscribe(EventTypeBetPlaced, func(Event) { reached = true })

	bus.Publish(BetPlacedEvent{BetID: 1})
	assert.True(t, reached)
}

func TestTransactionalBusFlushOnCommit(t *testing.T) {
	bus := NewBus()
	txBus := NewTransactionalBus(bus)

	var received []Event
	bus.Subscribe(EventTypeBalanceChange, func(event Event) {
		received = append(received, event)
	})

	txBus.Publish(BalanceChangeEvent{UserID: 1, Amount: decimal.NewFromInt(50)})
	txBus.Publish(BalanceChangeEvent{UserID: 2, Amount: decimal.NewFromInt(75)})
	assert.Empty(t, received, "nothing leaves the buffer before flush")

	txBus.Flush()
	require.Len(t, received, 2)
	assert.Equal(t, int64(1), received[0].(BalanceChangeEvent).UserID)
	assert.Equal(t, int64(2), received[1].(BalanceChangeEvent).UserID)

	// Flushing again is a no-op.
	txBus.Flush()
	assert.Len(t, received, 2)
}

func TestTransactionalBusDiscardOnRollback(t *testing.T) {
	bus := NewBus()
	txBus := NewTransactionalBus(bus)

	var received []Event
	bus.Subscribe(EventTypeBalanceChange, func(event Event) {
		received = append(received, event)
	})

	txBus.Publish(BalanceChangeEvent{UserID: 1})
	txBus.Discard()
	txBus.Flush()

	assert.Empty(t, received)
}
