package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType categorizes a ledger entry.
type TransactionType string

const (
	TransactionTypeDeposit           TransactionType = "deposit"
	TransactionTypeWithdraw          TransactionType = "withdraw"
	TransactionTypeBet               TransactionType = "bet"
	TransactionTypeWin               TransactionType = "win"
	TransactionTypeRefund            TransactionType = "refund"
	TransactionTypeReferral          TransactionType = "referral"
	TransactionTypeMission           TransactionType = "mission"
	TransactionTypeLeaderboardReward TransactionType = "leaderboard_reward"
	TransactionTypePromotion         TransactionType = "promotion"
)

// Transaction is one append-only ledger entry. Amount is signed: negative
// for debits, positive for credits. BalanceBefore/After snapshot the
// affected balance around the change.
type Transaction struct {
	ID       int64           `db:"id"`
	UserID   int64           `db:"user_id"`
	Type     TransactionType `db:"type"`
	Amount   decimal.Decimal `db:"amount"`
	Currency Currency        `db:"currency"`

	BalanceBefore decimal.Decimal `db:"balance_before"`
	BalanceAfter  decimal.Decimal `db:"balance_after"`

	Description string `db:"description"`
	RelatedID   *int64 `db:"related_id"`

	CreatedAt time.Time `db:"created_at"`
}
