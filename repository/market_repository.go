package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"predmarket/database"
	"predmarket/models"
)

// MarketRepository implements market persistence over PostgreSQL.
type MarketRepository struct {
	q queryable
}

// NewMarketRepository creates a repository backed by the shared pool.
func NewMarketRepository(db *database.DB) *MarketRepository {
	return &MarketRepository{q: db.Pool}
}

func newMarketRepositoryWithTx(tx pgx.Tx) *MarketRepository {
	return &MarketRepository{q: tx}
}

const marketColumns = `id, creator_id, question, description, category, image_url,
	status, moderation_status, outcome,
	yes_pool_pred, no_pool_pred, yes_pool_ton, no_pool_ton,
	total_volume_pred, total_volume_ton, yes_odds, no_odds, bets_count,
	promotion_tier, promoted_until, expires_at, resolved_at, created_at, updated_at`

func scanMarket(row pgx.Row) (*models.Market, error) {
	var m models.Market
	err := row.Scan(
		&m.ID, &m.CreatorID, &m.Question, &m.Description, &m.Category, &m.ImageURL,
		&m.Status, &m.ModerationStatus, &m.Outcome,
		&m.YesPoolPred, &m.NoPoolPred, &m.YesPoolTon, &m.NoPoolTon,
		&m.TotalVolumePred, &m.TotalVolumeTon, &m.YesOdds, &m.NoOdds, &m.BetsCount,
		&m.PromotionTier, &m.PromotedUntil, &m.ExpiresAt, &m.ResolvedAt,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create inserts a new market.
func (r *MarketRepository) Create(ctx context.Context, market *models.Market) error {
	query := `
		INSERT INTO markets (creator_id, question, description, category, image_url,
			status, moderation_status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, yes_odds, no_odds, created_at, updated_at`

	err := r.q.QueryRow(ctx, query,
		market.CreatorID, market.Question, market.Description, market.Category,
		market.ImageURL, market.Status, market.ModerationStatus, market.ExpiresAt,
	).Scan(&market.ID, &market.YesOdds, &market.NoOdds, &market.CreatedAt, &market.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create market: %w", err)
	}
	return nil
}

// GetByID retrieves a market. Returns nil when not found.
func (r *MarketRepository) GetByID(ctx context.Context, marketID int64) (*models.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets WHERE id = $1`
	m, err := scanMarket(r.q.QueryRow(ctx, query, marketID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get market %d: %w", marketID, err)
	}
	return m, nil
}

// GetForUpdate retrieves a market with a row lock. Placement and settlement
// both take this lock, serializing all pool mutations per market.
func (r *MarketRepository) GetForUpdate(ctx context.Context, marketID int64) (*models.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets WHERE id = $1 FOR UPDATE`
	m, err := scanMarket(r.q.QueryRow(ctx, query, marketID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock market %d: %w", marketID, err)
	}
	return m, nil
}

// UpdatePools persists the pool totals, volumes, headline odds and bet count.
func (r *MarketRepository) UpdatePools(ctx context.Context, market *models.Market) error {
	query := `
		UPDATE markets
		SET yes_pool_pred = $2, no_pool_pred = $3, yes_pool_ton = $4, no_pool_ton = $5,
		    total_volume_pred = $6, total_volume_ton = $7,
		    yes_odds = $8, no_odds = $9, bets_count = $10, updated_at = NOW()
		WHERE id = $1`

	tag, err := r.q.Exec(ctx, query, market.ID,
		market.YesPoolPred, market.NoPoolPred, market.YesPoolTon, market.NoPoolTon,
		market.TotalVolumePred, market.TotalVolumeTon,
		market.YesOdds, market.NoOdds, market.BetsCount,
	)
	if err != nil {
		return fmt.Errorf("failed to update pools for market %d: %w", market.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("market %d not found", market.ID)
	}
	return nil
}

// UpdateStatus transitions the market lifecycle status.
func (r *MarketRepository) UpdateStatus(ctx context.Context, marketID int64, status models.MarketStatus) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE markets SET status = $2, updated_at = NOW() WHERE id = $1`,
		marketID, status)
	if err != nil {
		return fmt.Errorf("failed to update status for market %d: %w", marketID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("market %d not found", marketID)
	}
	return nil
}

// MarkResolved records the outcome and stamps resolution time.
func (r *MarketRepository) MarkResolved(ctx context.Context, marketID int64, outcome models.MarketOutcome, resolvedAt time.Time) error {
	query := `
		UPDATE markets
		SET status = CASE WHEN $2 = 'cancelled' THEN 'cancelled' ELSE 'resolved' END,
		    outcome = $2, resolved_at = $3, updated_at = NOW()
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query, marketID, outcome, resolvedAt)
	if err != nil {
		return fmt.Errorf("failed to mark market %d resolved: %w", marketID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("market %d not found", marketID)
	}
	return nil
}

// SetPromotion updates the promotion tier and its expiry.
func (r *MarketRepository) SetPromotion(ctx context.Context, marketID int64, tier models.PromotionTier, until *time.Time) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE markets SET promotion_tier = $2, promoted_until = $3, updated_at = NOW() WHERE id = $1`,
		marketID, tier, until)
	if err != nil {
		return fmt.Errorf("failed to promote market %d: %w", marketID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("market %d not found", marketID)
	}
	return nil
}

// ListByStatus returns approved markets in the given lifecycle status,
// promoted markets first, newest first within a tier.
func (r *MarketRepository) ListByStatus(ctx context.Context, status models.MarketStatus, limit int) ([]*models.Market, error) {
	query := `
		SELECT ` + marketColumns + `
		FROM markets
		WHERE status = $1 AND moderation_status = 'approved'
		ORDER BY
			CASE promotion_tier WHEN 'premium' THEN 0 WHEN 'basic' THEN 1 ELSE 2 END,
			created_at DESC
		LIMIT $2`

	rows, err := r.q.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list markets: %w", err)
	}
	defer rows.Close()

	var markets []*models.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan market: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}
