package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MissionType controls the reset cadence of a mission.
type MissionType string

const (
	MissionDaily       MissionType = "daily"
	MissionWeekly      MissionType = "weekly"
	MissionSpecial     MissionType = "special"
	MissionAchievement MissionType = "achievement"
)

// Requirement predicate kinds understood by the mission tracker.
const (
	RequirementBetsCount      = "bets_count"
	RequirementWinsCount      = "wins_count"
	RequirementWinStreak      = "win_streak"
	RequirementCategoryBets   = "category_bets"
	RequirementReferralsCount = "referrals_count"
	RequirementDailyBets      = "daily_bets"
	RequirementWeeklyBets     = "weekly_bets"
	RequirementSubscription   = "subscription"
)

// MissionRequirement is the decoded requirements payload. Exactly one
// predicate is set per mission.
type MissionRequirement struct {
	Kind            string `json:"kind"`
	Count           int64  `json:"count,omitempty"`
	Category        string `json:"category,omitempty"`
	ChannelID       int64  `json:"channel_id,omitempty"`
	ChannelUsername string `json:"channel_username,omitempty"`
}

// Validate checks the predicate is well formed.
func (r *MissionRequirement) Validate() error {
	switch r.Kind {
	case RequirementBetsCount, RequirementWinsCount, RequirementWinStreak,
		RequirementReferralsCount, RequirementDailyBets, RequirementWeeklyBets:
		if r.Count <= 0 {
			return fmt.Errorf("requirement %q needs a positive count", r.Kind)
		}
	case RequirementCategoryBets:
		if r.Count <= 0 || r.Category == "" {
			return fmt.Errorf("category_bets requirement needs a category and a positive count")
		}
	case RequirementSubscription:
		if r.ChannelID == 0 && r.ChannelUsername == "" {
			return fmt.Errorf("subscription requirement needs a channel id or username")
		}
	default:
		return fmt.Errorf("unknown requirement kind %q", r.Kind)
	}
	return nil
}

// Mission is a configured task users complete for a reward.
type Mission struct {
	ID          int64           `db:"id"`
	Title       string          `db:"title"`
	Description string          `db:"description"`
	MissionType MissionType     `db:"mission_type"`
	Requirement json.RawMessage `db:"requirements"`

	RewardAmount   decimal.Decimal `db:"reward_amount"`
	RewardCurrency Currency        `db:"reward_currency"`

	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
}

// DecodeRequirement parses and validates the requirements payload.
func (m *Mission) DecodeRequirement() (*MissionRequirement, error) {
	var req MissionRequirement
	if err := json.Unmarshal(m.Requirement, &req); err != nil {
		return nil, fmt.Errorf("mission %d has malformed requirements: %w", m.ID, err)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("mission %d: %w", m.ID, err)
	}
	return &req, nil
}

// UserMission tracks one user's progress on one mission. Completed is
// sticky: once set it never reverts even if the underlying stat drops.
type UserMission struct {
	UserID    int64 `db:"user_id"`
	MissionID int64 `db:"mission_id"`

	Progress  int64 `db:"progress"`
	Completed bool  `db:"completed"`
	Claimed   bool  `db:"claimed"`

	CompletedAt *time.Time `db:"completed_at"`
	ClaimedAt   *time.Time `db:"claimed_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}
