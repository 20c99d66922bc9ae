package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BetStatus is the settlement state of a bet.
type BetStatus string

const (
	BetStatusPending   BetStatus = "pending"
	BetStatusWon       BetStatus = "won"
	BetStatusLost      BetStatus = "lost"
	BetStatusCancelled BetStatus = "cancelled"
)

// Bet is a single stake on one side of a market. Amount, currency, position
// and the locked odds are immutable after creation; only status, payout and
// settled_at change at settlement.
type Bet struct {
	ID       int64    `db:"id"`
	UserID   int64    `db:"user_id"`
	MarketID int64    `db:"market_id"`
	Position Position `db:"position"`

	Amount   decimal.Decimal `db:"amount"`
	Currency Currency        `db:"currency"`

	Odds         decimal.Decimal `db:"odds"`
	PotentialWin decimal.Decimal `db:"potential_win"`

	Status BetStatus       `db:"status"`
	Payout decimal.Decimal `db:"payout"`

	CreatedAt time.Time  `db:"created_at"`
	SettledAt *time.Time `db:"settled_at"`
}

// IsSettled reports whether the bet reached a terminal status.
func (b *Bet) IsSettled() bool {
	return b.Status != BetStatusPending
}

// Profit returns payout minus stake. Negative for losing bets.
func (b *Bet) Profit() decimal.Decimal {
	return b.Payout.Sub(b.Amount)
}
