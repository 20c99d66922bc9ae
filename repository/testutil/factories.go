package testutil

import (
	"fmt"

	"github.com/shopspring/decimal"

	"predmarket/models"
)

// CreateTestUser builds an unsaved user with a starting balance and a
// deterministic referral code derived from the Telegram id.
func CreateTestUser(telegramID int64, username string) *models.User {
	code := fmt.Sprintf("code%08d", telegramID%100000000)
	return &models.User{
		TelegramID:   telegramID,
		Username:     username,
		FirstName:    username,
		PredBalance:  decimal.NewFromInt(1000),
		ReferralCode: &code,
	}
}

// CreateTestMarket builds an unsaved open market.
func CreateTestMarket(creatorID int64, question string) *models.Market {
	return &models.Market{
		CreatorID:        &creatorID,
		Question:         question,
		Category:         "sports",
		Status:           models.MarketStatusOpen,
		ModerationStatus: models.ModerationApproved,
	}
}
