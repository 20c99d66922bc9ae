package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currency identifies one of the two balances a user holds.
type Currency string

const (
	CurrencyPRED Currency = "PRED"
	CurrencyTON  Currency = "TON"
)

// Valid reports whether the currency is one of the known tokens.
func (c Currency) Valid() bool {
	return c == CurrencyPRED || c == CurrencyTON
}

// Rank tiers derived from win streak. The rank column is denormalized
// convenience for display, recomputed on every settlement.
const (
	RankBronze      = "Bronze"
	RankSilver      = "Silver"
	RankGold        = "Gold"
	RankPlatinum    = "Platinum"
	RankDiamond     = "Diamond"
	RankMaster      = "Master"
	RankGrandmaster = "Grandmaster"
)

// User represents a registered Telegram user with balances and betting stats.
type User struct {
	ID         int64  `db:"id"`
	TelegramID int64  `db:"telegram_id"`
	Username   string `db:"username"`
	FirstName  string `db:"first_name"`
	PhotoURL   string `db:"photo_url"`

	PredBalance decimal.Decimal `db:"pred_balance"`
	TonBalance  decimal.Decimal `db:"ton_balance"`

	Rank        string `db:"rank"`
	TotalBets   int64  `db:"total_bets"`
	TotalWins   int64  `db:"total_wins"`
	TotalLosses int64  `db:"total_losses"`
	WinStreak   int64  `db:"win_streak"`

	ReferrerID   *int64  `db:"referrer_id"`
	ReferralCode *string `db:"referral_code"`

	IsBanned  bool       `db:"is_banned"`
	BanReason *string    `db:"ban_reason"`
	BannedAt  *time.Time `db:"banned_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Balance returns the balance held in the given currency.
func (u *User) Balance(currency Currency) decimal.Decimal {
	if currency == CurrencyTON {
		return u.TonBalance
	}
	return u.PredBalance
}

// CanAfford checks if the user can afford a stake in the given currency.
func (u *User) CanAfford(amount decimal.Decimal, currency Currency) bool {
	return u.Balance(currency).GreaterThanOrEqual(amount)
}

// RankForStreak maps a win streak to a rank tier.
func RankForStreak(streak int64) string {
	switch {
	case streak >= 50:
		return RankGrandmaster
	case streak >= 30:
		return RankMaster
	case streak >= 20:
		return RankDiamond
	case streak >= 10:
		return RankPlatinum
	case streak >= 5:
		return RankGold
	case streak >= 3:
		return RankSilver
	default:
		return RankBronze
	}
}
