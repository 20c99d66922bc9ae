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

// MissionRepository implements mission and progress persistence.
type MissionRepository struct {
	q queryable
}

// NewMissionRepository creates a repository backed by the shared pool.
func NewMissionRepository(db *database.DB) *MissionRepository {
	return &MissionRepository{q: db.Pool}
}

func newMissionRepositoryWithTx(tx pgx.Tx) *MissionRepository {
	return &MissionRepository{q: tx}
}

const missionColumns = `id, title, description, mission_type, requirements,
	reward_amount, reward_currency, is_active, created_at`

func scanMission(row pgx.Row) (*models.Mission, error) {
	var m models.Mission
	err := row.Scan(
		&m.ID, &m.Title, &m.Description, &m.MissionType, &m.Requirement,
		&m.RewardAmount, &m.RewardCurrency, &m.IsActive, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByID retrieves a mission. Returns nil when not found.
func (r *MissionRepository) GetByID(ctx context.Context, missionID int64) (*models.Mission, error) {
	query := `SELECT ` + missionColumns + ` FROM missions WHERE id = $1`
	m, err := scanMission(r.q.QueryRow(ctx, query, missionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mission %d: %w", missionID, err)
	}
	return m, nil
}

// ListActive returns all active missions.
func (r *MissionRepository) ListActive(ctx context.Context) ([]*models.Mission, error) {
	query := `SELECT ` + missionColumns + ` FROM missions WHERE is_active ORDER BY id`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}
	defer rows.Close()

	var missions []*models.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mission: %w", err)
		}
		missions = append(missions, m)
	}
	return missions, rows.Err()
}

// Create inserts a new mission.
func (r *MissionRepository) Create(ctx context.Context, m *models.Mission) error {
	query := `
		INSERT INTO missions (title, description, mission_type, requirements, reward_amount, reward_currency, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.q.QueryRow(ctx, query,
		m.Title, m.Description, m.MissionType, m.Requirement,
		m.RewardAmount, m.RewardCurrency, m.IsActive,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create mission: %w", err)
	}
	return nil
}

// GetProgress retrieves a user's progress row. Returns nil when the user
// has no progress on the mission yet.
func (r *MissionRepository) GetProgress(ctx context.Context, userID, missionID int64) (*models.UserMission, error) {
	query := `
		SELECT user_id, mission_id, progress, completed, claimed, completed_at, claimed_at, updated_at
		FROM user_missions
		WHERE user_id = $1 AND mission_id = $2`

	var um models.UserMission
	err := r.q.QueryRow(ctx, query, userID, missionID).Scan(
		&um.UserID, &um.MissionID, &um.Progress, &um.Completed, &um.Claimed,
		&um.CompletedAt, &um.ClaimedAt, &um.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get mission progress: %w", err)
	}
	return &um, nil
}

// UpsertProgress writes the recomputed progress. Completion is sticky: an
// already-completed row never reverts, whatever the fresh progress says.
func (r *MissionRepository) UpsertProgress(ctx context.Context, userID, missionID, progress int64, completed bool) error {
	query := `
		INSERT INTO user_missions (user_id, mission_id, progress, completed, completed_at, updated_at)
		VALUES ($1, $2, $3, $4, CASE WHEN $4 THEN NOW() END, NOW())
		ON CONFLICT (user_id, mission_id) DO UPDATE
		SET progress = EXCLUDED.progress,
		    completed = user_missions.completed OR EXCLUDED.completed,
		    completed_at = COALESCE(user_missions.completed_at, EXCLUDED.completed_at),
		    updated_at = NOW()`
	_, err := r.q.Exec(ctx, query, userID, missionID, progress, completed)
	if err != nil {
		return fmt.Errorf("failed to upsert mission progress: %w", err)
	}
	return nil
}

// MarkClaimed flips the claimed flag exactly once. The guard makes
// concurrent claims race safely.
func (r *MissionRepository) MarkClaimed(ctx context.Context, userID, missionID int64, claimedAt time.Time) (bool, error) {
	query := `
		UPDATE user_missions
		SET claimed = TRUE, claimed_at = $3, updated_at = NOW()
		WHERE user_id = $1 AND mission_id = $2 AND completed AND NOT claimed`
	tag, err := r.q.Exec(ctx, query, userID, missionID, claimedAt)
	if err != nil {
		return false, fmt.Errorf("failed to mark mission claimed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ResetProgressByType deletes every progress row attached to missions of
// the given type. Used by the daily and weekly reset jobs.
func (r *MissionRepository) ResetProgressByType(ctx context.Context, missionType models.MissionType) (int64, error) {
	query := `
		DELETE FROM user_missions
		WHERE mission_id IN (SELECT id FROM missions WHERE mission_type = $1)`
	tag, err := r.q.Exec(ctx, query, missionType)
	if err != nil {
		return 0, fmt.Errorf("failed to reset %s missions: %w", missionType, err)
	}
	return tag.RowsAffected(), nil
}
