package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"predmarket/database"
	"predmarket/models"
	"predmarket/service"
)

// LeaderboardRepository implements period and reward-tier persistence.
type LeaderboardRepository struct {
	q queryable
}

// NewLeaderboardRepository creates a repository backed by the shared pool.
func NewLeaderboardRepository(db *database.DB) *LeaderboardRepository {
	return &LeaderboardRepository{q: db.Pool}
}

func newLeaderboardRepositoryWithTx(tx pgx.Tx) *LeaderboardRepository {
	return &LeaderboardRepository{q: tx}
}

const periodColumns = `id, period_type, starts_at, ends_at, status,
	participants_count, winners_count, total_rewards_pred, total_rewards_ton,
	closed_by_admin_id, created_at`

func scanPeriod(row pgx.Row) (*models.LeaderboardPeriod, error) {
	var p models.LeaderboardPeriod
	err := row.Scan(
		&p.ID, &p.PeriodType, &p.StartsAt, &p.EndsAt, &p.Status,
		&p.ParticipantsCount, &p.WinnersCount, &p.TotalRewardsPred, &p.TotalRewardsTon,
		&p.ClosedByAdminID, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetLastClosedPeriod returns the most recently ended closed period of the
// given type, or nil when none exists yet.
func (r *LeaderboardRepository) GetLastClosedPeriod(ctx context.Context, periodType models.PeriodType) (*models.LeaderboardPeriod, error) {
	query := `
		SELECT ` + periodColumns + `
		FROM leaderboard_periods
		WHERE period_type = $1
		ORDER BY ends_at DESC
		LIMIT 1`

	p, err := scanPeriod(r.q.QueryRow(ctx, query, periodType))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last closed %s period: %w", periodType, err)
	}
	return p, nil
}

// ExistsCoveringWindow reports whether a closed period of this type already
// covers the given window start. The idempotency check for period close.
func (r *LeaderboardRepository) ExistsCoveringWindow(ctx context.Context, periodType models.PeriodType, windowStart time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM leaderboard_periods
			WHERE period_type = $1 AND starts_at <= $2 AND ends_at > $2
		)`
	var exists bool
	if err := r.q.QueryRow(ctx, query, periodType, windowStart).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check period window coverage: %w", err)
	}
	return exists, nil
}

// CreatePeriod persists one immutable closed period record. The unique
// constraint on (period_type, starts_at) is the authoritative idempotency
// guard: when two closers race past ExistsCoveringWindow, the second
// insert fails here and its transaction rolls back the reward credits.
func (r *LeaderboardRepository) CreatePeriod(ctx context.Context, p *models.LeaderboardPeriod) error {
	query := `
		INSERT INTO leaderboard_periods (period_type, starts_at, ends_at, status,
			participants_count, winners_count, total_rewards_pred, total_rewards_ton,
			closed_by_admin_id)
		VALUES ($1, $2, $3, 'closed', $4, $5, $6, $7, $8)
		RETURNING id, status, created_at`

	err := r.q.QueryRow(ctx, query,
		p.PeriodType, p.StartsAt, p.EndsAt,
		p.ParticipantsCount, p.WinnersCount, p.TotalRewardsPred, p.TotalRewardsTon,
		p.ClosedByAdminID,
	).Scan(&p.ID, &p.Status, &p.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
		return service.ErrAlreadyClosed
	}
	if err != nil {
		return fmt.Errorf("failed to create leaderboard period: %w", err)
	}
	return nil
}

// GetActiveRewards returns the active reward tiers for a period type,
// ordered by rank_from.
func (r *LeaderboardRepository) GetActiveRewards(ctx context.Context, periodType models.PeriodType) ([]*models.LeaderboardReward, error) {
	query := `
		SELECT id, period_type, rank_from, rank_to, amount, currency, is_active, created_at
		FROM leaderboard_rewards
		WHERE period_type = $1 AND is_active
		ORDER BY rank_from`

	rows, err := r.q.Query(ctx, query, periodType)
	if err != nil {
		return nil, fmt.Errorf("failed to get reward tiers: %w", err)
	}
	defer rows.Close()

	var rewards []*models.LeaderboardReward
	for rows.Next() {
		var rw models.LeaderboardReward
		err := rows.Scan(&rw.ID, &rw.PeriodType, &rw.RankFrom, &rw.RankTo,
			&rw.Amount, &rw.Currency, &rw.IsActive, &rw.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reward tier: %w", err)
		}
		rewards = append(rewards, &rw)
	}
	return rewards, rows.Err()
}
