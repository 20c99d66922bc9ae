package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"predmarket/database"
	"predmarket/models"
)

// TransactionRepository implements the append-only balance ledger.
type TransactionRepository struct {
	q queryable
}

// NewTransactionRepository creates a repository backed by the shared pool.
func NewTransactionRepository(db *database.DB) *TransactionRepository {
	return &TransactionRepository{q: db.Pool}
}

func newTransactionRepositoryWithTx(tx pgx.Tx) *TransactionRepository {
	return &TransactionRepository{q: tx}
}

// Record appends one ledger entry. Entries are never updated or deleted.
func (r *TransactionRepository) Record(ctx context.Context, txn *models.Transaction) error {
	query := `
		INSERT INTO transactions (user_id, type, amount, currency,
			balance_before, balance_after, description, related_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`

	err := r.q.QueryRow(ctx, query,
		txn.UserID, txn.Type, txn.Amount, txn.Currency,
		txn.BalanceBefore, txn.BalanceAfter, txn.Description, txn.RelatedID,
	).Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record transaction: %w", err)
	}
	return nil
}

// ListByUser returns a user's ledger entries, newest first.
func (r *TransactionRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Transaction, error) {
	query := `
		SELECT id, user_id, type, amount, currency, balance_before, balance_after,
		       description, related_id, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for user %d: %w", userID, err)
	}
	defer rows.Close()

	var txns []*models.Transaction
	for rows.Next() {
		var t models.Transaction
		err := rows.Scan(&t.ID, &t.UserID, &t.Type, &t.Amount, &t.Currency,
			&t.BalanceBefore, &t.BalanceAfter, &t.Description, &t.RelatedID, &t.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, &t)
	}
	return txns, rows.Err()
}
