package events

import (
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/shopspring/decimal"

	"predmarket/models"
)

// EventType identifies a category of domain event.
type EventType string

const (
	EventTypeBetPlaced      EventType = "bet_placed"
	EventTypeMarketResolved EventType = "market_resolved"
	EventTypeBalanceChange  EventType = "balance_change"
	EventTypeUserRegistered EventType = "user_registered"
	EventTypePeriodClosed   EventType = "period_closed"
	EventTypeMissionClaimed EventType = "mission_claimed"
)

// Event is implemented by all domain events.
type Event interface {
	Type() EventType
}

// BetPlacedEvent fires after a bet is committed.
type BetPlacedEvent struct {
	BetID    int64           `json:"bet_id"`
	UserID   int64           `json:"user_id"`
	MarketID int64           `json:"market_id"`
	Position models.Position `json:"position"`
	Amount   decimal.Decimal `json:"amount"`
	Currency models.Currency `json:"currency"`
	Odds     decimal.Decimal `json:"odds"`
}

func (e BetPlacedEvent) Type() EventType { return EventTypeBetPlaced }

// MarketResolvedEvent fires after settlement commits.
type MarketResolvedEvent struct {
	MarketID     int64                `json:"market_id"`
	Outcome      models.MarketOutcome `json:"outcome"`
	WinnersCount int                  `json:"winners_count"`
	LosersCount  int                  `json:"losers_count"`
	TotalPayout  decimal.Decimal      `json:"total_payout"`
}

func (e MarketResolvedEvent) Type() EventType { return EventTypeMarketResolved }

// BalanceChangeEvent fires for every ledger entry.
type BalanceChangeEvent struct {
	UserID          int64                  `json:"user_id"`
	TransactionType models.TransactionType `json:"transaction_type"`
	Amount          decimal.Decimal        `json:"amount"`
	Currency        models.Currency        `json:"currency"`
	BalanceAfter    decimal.Decimal        `json:"balance_after"`
}

func (e BalanceChangeEvent) Type() EventType { return EventTypeBalanceChange }

// UserRegisteredEvent fires when a Telegram user is seen for the first time.
type UserRegisteredEvent struct {
	UserID     int64 `json:"user_id"`
	TelegramID int64 `json:"telegram_id"`
	ReferrerID int64 `json:"referrer_id,omitempty"`
}

func (e UserRegisteredEvent) Type() EventType { return EventTypeUserRegistered }

// PeriodClosedEvent fires after a leaderboard period close commits.
type PeriodClosedEvent struct {
	PeriodID     int64             `json:"period_id"`
	PeriodType   models.PeriodType `json:"period_type"`
	Participants int64             `json:"participants"`
	Winners      int64             `json:"winners"`
}

func (e PeriodClosedEvent) Type() EventType { return EventTypePeriodClosed }

// MissionClaimedEvent fires when a mission reward is claimed.
type MissionClaimedEvent struct {
	UserID    int64           `json:"user_id"`
	MissionID int64           `json:"mission_id"`
	Reward    decimal.Decimal `json:"reward"`
	Currency  models.Currency `json:"currency"`
}

func (e MissionClaimedEvent) Type() EventType { return EventTypeMissionClaimed }

// Handler processes a published event.
type Handler func(event Event)

// Publisher is the event-emitting side of the bus.
type Publisher interface {
	Publish(event Event)
}

// Bus is a simple synchronous in-process event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
	}
}

// Subscribe registers a handler for an event type.
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish delivers an event to all subscribed handlers synchronously.
// A panicking handler is recovered and logged so one bad subscriber
// cannot take down the publisher.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.Type()]
	b.mu.RUnlock()

	for _, handler := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.WithFields(log.Fields{
						"event_type": event.Type(),
						"panic":      r,
					}).Error("Event handler panicked")
				}
			}()
			handler(event)
		}()
	}
}

// TransactionalBus buffers events during a transaction and flushes them to
// the underlying bus only after commit. Rolled-back transactions discard
// their events.
type TransactionalBus struct {
	underlying Publisher
	mu         sync.Mutex
	pending    []Event
}

// NewTransactionalBus wraps a bus with transactional buffering.
func NewTransactionalBus(underlying Publisher) *TransactionalBus {
	return &TransactionalBus{underlying: underlying}
}

// Publish buffers an event until Flush.
func (tb *TransactionalBus) Publish(event Event) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.pending = append(tb.pending, event)
}

// Flush delivers all buffered events and clears the buffer. Called after
// the enclosing transaction commits.
func (tb *TransactionalBus) Flush() {
	tb.mu.Lock()
	pending := tb.pending
	tb.pending = nil
	tb.mu.Unlock()

	for _, event := range pending {
		tb.underlying.Publish(event)
	}
}

// Discard drops all buffered events. Called after rollback.
func (tb *TransactionalBus) Discard() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.pending = nil
}
