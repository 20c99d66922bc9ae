package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketStatus is the lifecycle state of a market.
type MarketStatus string

const (
	MarketStatusOpen      MarketStatus = "open"
	MarketStatusClosed    MarketStatus = "closed"
	MarketStatusResolved  MarketStatus = "resolved"
	MarketStatusCancelled MarketStatus = "cancelled"
)

// ModerationStatus is the review state of a user-created market.
type ModerationStatus string

const (
	ModerationPending  ModerationStatus = "pending"
	ModerationApproved ModerationStatus = "approved"
	ModerationRejected ModerationStatus = "rejected"
)

// MarketOutcome is the resolution verdict of a market.
type MarketOutcome string

const (
	OutcomeYes       MarketOutcome = "yes"
	OutcomeNo        MarketOutcome = "no"
	OutcomeCancelled MarketOutcome = "cancelled"
)

// Valid reports whether the outcome token is one of the known verdicts.
func (o MarketOutcome) Valid() bool {
	return o == OutcomeYes || o == OutcomeNo || o == OutcomeCancelled
}

// Position is the side of a binary market a bet is placed on.
type Position string

const (
	PositionYes Position = "yes"
	PositionNo  Position = "no"
)

// Valid reports whether the position token is yes or no.
func (p Position) Valid() bool {
	return p == PositionYes || p == PositionNo
}

// Opposite returns the other side of the market.
func (p Position) Opposite() Position {
	if p == PositionYes {
		return PositionNo
	}
	return PositionYes
}

// PromotionTier is the paid visibility tier of a market.
type PromotionTier string

const (
	PromotionNone    PromotionTier = "none"
	PromotionBasic   PromotionTier = "basic"
	PromotionPremium PromotionTier = "premium"
)

// Market is a binary prediction market with independent per-currency pools.
type Market struct {
	ID          int64  `db:"id"`
	CreatorID   *int64 `db:"creator_id"`
	Question    string `db:"question"`
	Description string `db:"description"`
	Category    string `db:"category"`
	ImageURL    string `db:"image_url"`

	Status           MarketStatus     `db:"status"`
	ModerationStatus ModerationStatus `db:"moderation_status"`
	Outcome          *MarketOutcome   `db:"outcome"`

	YesPoolPred decimal.Decimal `db:"yes_pool_pred"`
	NoPoolPred  decimal.Decimal `db:"no_pool_pred"`
	YesPoolTon  decimal.Decimal `db:"yes_pool_ton"`
	NoPoolTon   decimal.Decimal `db:"no_pool_ton"`

	TotalVolumePred decimal.Decimal `db:"total_volume_pred"`
	TotalVolumeTon  decimal.Decimal `db:"total_volume_ton"`

	YesOdds   decimal.Decimal `db:"yes_odds"`
	NoOdds    decimal.Decimal `db:"no_odds"`
	BetsCount int64           `db:"bets_count"`

	PromotionTier PromotionTier `db:"promotion_tier"`
	PromotedUntil *time.Time    `db:"promoted_until"`

	ExpiresAt  *time.Time `db:"expires_at"`
	ResolvedAt *time.Time `db:"resolved_at"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

// IsOpen reports whether the market still accepts bets.
func (m *Market) IsOpen() bool {
	return m.Status == MarketStatusOpen
}

// IsResolved reports whether the market has a final outcome.
func (m *Market) IsResolved() bool {
	return m.Status == MarketStatusResolved || m.Status == MarketStatusCancelled
}

// Pool returns the pool total for the given position and currency.
func (m *Market) Pool(position Position, currency Currency) decimal.Decimal {
	if currency == CurrencyTON {
		if position == PositionYes {
			return m.YesPoolTon
		}
		return m.NoPoolTon
	}
	if position == PositionYes {
		return m.YesPoolPred
	}
	return m.NoPoolPred
}

// AddToPool adds a stake to the pool for the given position and currency
// and bumps that currency's cumulative volume.
func (m *Market) AddToPool(position Position, currency Currency, amount decimal.Decimal) {
	if currency == CurrencyTON {
		if position == PositionYes {
			m.YesPoolTon = m.YesPoolTon.Add(amount)
		} else {
			m.NoPoolTon = m.NoPoolTon.Add(amount)
		}
		m.TotalVolumeTon = m.TotalVolumeTon.Add(amount)
		return
	}
	if position == PositionYes {
		m.YesPoolPred = m.YesPoolPred.Add(amount)
	} else {
		m.NoPoolPred = m.NoPoolPred.Add(amount)
	}
	m.TotalVolumePred = m.TotalVolumePred.Add(amount)
}

// RecomputeOdds refreshes the headline odds from the PRED pools. A market
// with no PRED liquidity stays at the 50/50 prior.
func (m *Market) RecomputeOdds() {
	total := m.YesPoolPred.Add(m.NoPoolPred)
	if total.IsZero() {
		m.YesOdds = decimal.NewFromInt(50)
		m.NoOdds = decimal.NewFromInt(50)
		return
	}
	hundred := decimal.NewFromInt(100)
	m.YesOdds = m.YesPoolPred.Div(total).Mul(hundred).Round(2)
	m.NoOdds = hundred.Sub(m.YesOdds)
}
