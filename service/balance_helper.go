package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"predmarket/events"
	"predmarket/models"
)

// creditBalance is the single entry point for crediting a user inside a
// unit of work: balance update, ledger entry and balance-change event in
// one place.
func creditBalance(ctx context.Context, uow UnitOfWork, userID int64, currency models.Currency,
	amount decimal.Decimal, txType models.TransactionType, description string, relatedID *int64) error {

	if !amount.IsPositive() {
		return fmt.Errorf("%w: credit amount must be positive, got %s", ErrInvalidInput, amount)
	}

	after, err := uow.UserRepository().AddBalance(ctx, userID, currency, amount)
	if err != nil {
		return err
	}

	return recordLedgerEntry(ctx, uow, userID, currency, amount, after, txType, description, relatedID)
}

// debitBalance mirrors creditBalance for debits. The ledger amount is
// recorded negative.
func debitBalance(ctx context.Context, uow UnitOfWork, userID int64, currency models.Currency,
	amount decimal.Decimal, txType models.TransactionType, description string, relatedID *int64) error {

	if !amount.IsPositive() {
		return fmt.Errorf("%w: debit amount must be positive, got %s", ErrInvalidInput, amount)
	}

	after, err := uow.UserRepository().DeductBalance(ctx, userID, currency, amount)
	if err != nil {
		return err
	}

	return recordLedgerEntry(ctx, uow, userID, currency, amount.Neg(), after, txType, description, relatedID)
}

func recordLedgerEntry(ctx context.Context, uow UnitOfWork, userID int64, currency models.Currency,
	amount, after decimal.Decimal, txType models.TransactionType, description string, relatedID *int64) error {

	txn := &models.Transaction{
		UserID:        userID,
		Type:          txType,
		Amount:        amount,
		Currency:      currency,
		BalanceBefore: after.Sub(amount),
		BalanceAfter:  after,
		Description:   description,
		RelatedID:     relatedID,
	}
	if err := uow.TransactionRepository().Record(ctx, txn); err != nil {
		return err
	}

	uow.EventBus().Publish(events.BalanceChangeEvent{
		UserID:          userID,
		TransactionType: txType,
		Amount:          amount,
		Currency:        currency,
		BalanceAfter:    after,
	})
	return nil
}
