package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"predmarket/database"
	"predmarket/models"
)

// BetRepository implements bet persistence over PostgreSQL.
type BetRepository struct {
	q queryable
}

// NewBetRepository creates a repository backed by the shared pool.
func NewBetRepository(db *database.DB) *BetRepository {
	return &BetRepository{q: db.Pool}
}

func newBetRepositoryWithTx(tx pgx.Tx) *BetRepository {
	return &BetRepository{q: tx}
}

const betColumns = `id, user_id, market_id, position, amount, currency,
	odds, potential_win, status, payout, created_at, settled_at`

func scanBet(row pgx.Row) (*models.Bet, error) {
	var b models.Bet
	err := row.Scan(
		&b.ID, &b.UserID, &b.MarketID, &b.Position, &b.Amount, &b.Currency,
		&b.Odds, &b.PotentialWin, &b.Status, &b.Payout, &b.CreatedAt, &b.SettledAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Create inserts a new pending bet.
func (r *BetRepository) Create(ctx context.Context, bet *models.Bet) error {
	query := `
		INSERT INTO bets (user_id, market_id, position, amount, currency, odds, potential_win)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, status, payout, created_at`

	err := r.q.QueryRow(ctx, query,
		bet.UserID, bet.MarketID, bet.Position, bet.Amount, bet.Currency,
		bet.Odds, bet.PotentialWin,
	).Scan(&bet.ID, &bet.Status, &bet.Payout, &bet.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bet: %w", err)
	}
	return nil
}

// ListPendingByMarket returns every unsettled bet on a market. Settlement
// reads this inside the market-locked transaction, so a retried settlement
// sees only the bets the first attempt did not finish.
func (r *BetRepository) ListPendingByMarket(ctx context.Context, marketID int64) ([]*models.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE market_id = $1 AND status = 'pending' ORDER BY id`

	rows, err := r.q.Query(ctx, query, marketID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending bets for market %d: %w", marketID, err)
	}
	defer rows.Close()

	var bets []*models.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

// ListByUser returns a user's bets, newest first.
func (r *BetRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Bet, error) {
	query := `SELECT ` + betColumns + ` FROM bets WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.q.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bets for user %d: %w", userID, err)
	}
	defer rows.Close()

	var bets []*models.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

// Settle moves a pending bet to a terminal status with its payout. The
// status guard keeps settlement idempotent across retries.
func (r *BetRepository) Settle(ctx context.Context, betID int64, status models.BetStatus, payout decimal.Decimal, settledAt time.Time) error {
	query := `
		UPDATE bets SET status = $2, payout = $3, settled_at = $4
		WHERE id = $1 AND status = 'pending'`
	tag, err := r.q.Exec(ctx, query, betID, status, payout, settledAt)
	if err != nil {
		return fmt.Errorf("failed to settle bet %d: %w", betID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bet %d is not pending", betID)
	}
	return nil
}

// CountByUser returns a user's total bet count, optionally restricted to a
// category or a created_at window. Zero-value filters are ignored.
func (r *BetRepository) CountByUser(ctx context.Context, userID int64, category string, since time.Time) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM bets b
		JOIN markets m ON m.id = b.market_id
		WHERE b.user_id = $1
		  AND ($2 = '' OR m.category = $2)
		  AND ($3::timestamptz IS NULL OR b.created_at >= $3)`

	var sinceArg interface{}
	if !since.IsZero() {
		sinceArg = since
	}

	var count int64
	if err := r.q.QueryRow(ctx, query, userID, category, sinceArg).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bets for user %d: %w", userID, err)
	}
	return count, nil
}

// ProfitStandings computes per-user profit over settled bets created inside
// the window: won bets contribute payout minus stake, lost bets minus stake.
// Only users with at least one bet in the window appear. Ordered by profit
// descending, lifetime wins as tiebreak.
func (r *BetRepository) ProfitStandings(ctx context.Context, from, to time.Time, limit int) ([]*models.LeaderboardEntry, error) {
	query := `
		SELECT u.id, u.username, u.first_name,
		       COALESCE(SUM(CASE b.status
		           WHEN 'won' THEN b.payout - b.amount
		           WHEN 'lost' THEN -b.amount
		           ELSE 0 END), 0) AS profit,
		       u.total_wins,
		       COUNT(b.id) AS bets_count
		FROM users u
		JOIN bets b ON b.user_id = u.id
		WHERE b.created_at >= $1 AND b.created_at < $2
		GROUP BY u.id, u.username, u.first_name, u.total_wins
		ORDER BY profit DESC, u.total_wins DESC
		LIMIT $3`

	rows, err := r.q.Query(ctx, query, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to compute standings: %w", err)
	}
	defer rows.Close()

	var entries []*models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Username, &e.FirstName, &e.Profit, &e.TotalWins, &e.BetsCount); err != nil {
			return nil, fmt.Errorf("failed to scan standings entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
