package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PeriodType distinguishes weekly and monthly leaderboard windows.
type PeriodType string

const (
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
)

// Valid reports whether the period type is known.
func (p PeriodType) Valid() bool {
	return p == PeriodWeekly || p == PeriodMonthly
}

// LeaderboardPeriod is an immutable record of one closed competition window.
type LeaderboardPeriod struct {
	ID         int64      `db:"id"`
	PeriodType PeriodType `db:"period_type"`
	StartsAt   time.Time  `db:"starts_at"`
	EndsAt     time.Time  `db:"ends_at"`
	Status     string     `db:"status"`

	ParticipantsCount int64           `db:"participants_count"`
	WinnersCount      int64           `db:"winners_count"`
	TotalRewardsPred  decimal.Decimal `db:"total_rewards_pred"`
	TotalRewardsTon   decimal.Decimal `db:"total_rewards_ton"`

	ClosedByAdminID *int64    `db:"closed_by_admin_id"`
	CreatedAt       time.Time `db:"created_at"`
}

// LeaderboardReward is one configured reward tier: everyone ranked within
// [RankFrom, RankTo] receives Amount in Currency when a period closes.
type LeaderboardReward struct {
	ID         int64           `db:"id"`
	PeriodType PeriodType      `db:"period_type"`
	RankFrom   int             `db:"rank_from"`
	RankTo     int             `db:"rank_to"`
	Amount     decimal.Decimal `db:"amount"`
	Currency   Currency        `db:"currency"`
	IsActive   bool            `db:"is_active"`
	CreatedAt  time.Time       `db:"created_at"`
}

// Covers reports whether the tier applies to the given 1-based rank.
func (r *LeaderboardReward) Covers(rank int) bool {
	return rank >= r.RankFrom && rank <= r.RankTo
}

// LeaderboardEntry is one user's standing inside a window, computed from
// settled bets. Not persisted.
type LeaderboardEntry struct {
	UserID    int64           `db:"user_id"`
	Username  string          `db:"username"`
	FirstName string          `db:"first_name"`
	Profit    decimal.Decimal `db:"profit"`
	TotalWins int64           `db:"total_wins"`
	BetsCount int64           `db:"bets_count"`
}
