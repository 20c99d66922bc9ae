package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"predmarket/database"
	"predmarket/models"
)

// NotificationRepository implements the durable notification queue.
type NotificationRepository struct {
	q queryable
}

// NewNotificationRepository creates a repository backed by the shared pool.
func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{q: db.Pool}
}

func newNotificationRepositoryWithTx(tx pgx.Tx) *NotificationRepository {
	return &NotificationRepository{q: tx}
}

const notificationColumns = `id, telegram_id, message, parse_mode, metadata,
	status, attempts, max_attempts, last_error,
	scheduled_at, processing_at, sent_at, created_at, updated_at`

func scanNotification(row pgx.Row) (*models.Notification, error) {
	var n models.Notification
	err := row.Scan(
		&n.ID, &n.TelegramID, &n.Message, &n.ParseMode, &n.Metadata,
		&n.Status, &n.Attempts, &n.MaxAttempts, &n.LastError,
		&n.ScheduledAt, &n.ProcessingAt, &n.SentAt, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// Enqueue inserts a pending notification. This is the only write producers
// perform; it cannot fail for delivery reasons.
func (r *NotificationRepository) Enqueue(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (telegram_id, message, parse_mode, metadata, max_attempts, scheduled_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
		RETURNING id, status, attempts, scheduled_at, created_at, updated_at`

	var scheduledAt interface{}
	if !n.ScheduledAt.IsZero() {
		scheduledAt = n.ScheduledAt
	}

	err := r.q.QueryRow(ctx, query,
		n.TelegramID, n.Message, n.ParseMode, n.Metadata, n.MaxAttempts, scheduledAt,
	).Scan(&n.ID, &n.Status, &n.Attempts, &n.ScheduledAt, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}
	return nil
}

// DequeueBatch claims up to limit due pending notifications, oldest first.
// Claimed rows move to processing with attempts incremented in the same
// statement, so a crash after this point leaves evidence of the attempt.
// SKIP LOCKED lets concurrent workers drain disjoint batches.
func (r *NotificationRepository) DequeueBatch(ctx context.Context, limit int) ([]*models.Notification, error) {
	query := `
		UPDATE notifications
		SET status = 'processing', attempts = attempts + 1,
		    processing_at = NOW(), updated_at = NOW()
		WHERE id IN (
			SELECT id FROM notifications
			WHERE status = 'pending' AND scheduled_at <= NOW()
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + notificationColumns

	rows, err := r.q.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue notifications: %w", err)
	}
	defer rows.Close()

	var batch []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		batch = append(batch, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// The UPDATE does not preserve claim order.
	sortByCreatedAt(batch)
	return batch, nil
}

func sortByCreatedAt(batch []*models.Notification) {
	for i := 1; i < len(batch); i++ {
		for j := i; j > 0 && batch[j].CreatedAt.Before(batch[j-1].CreatedAt); j-- {
			batch[j], batch[j-1] = batch[j-1], batch[j]
		}
	}
}

// MarkSent records a successful delivery.
func (r *NotificationRepository) MarkSent(ctx context.Context, id int64) error {
	query := `
		UPDATE notifications
		SET status = 'sent', sent_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`
	tag, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification %d sent: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification %d is not processing", id)
	}
	return nil
}

// MarkFailed records a failed delivery attempt. Permanent errors and
// exhausted attempts land in permanent_failure; everything else returns to
// pending for a later retry.
func (r *NotificationRepository) MarkFailed(ctx context.Context, id int64, sendErr string, permanent bool) error {
	query := `
		UPDATE notifications
		SET status = CASE
		        WHEN $3 OR attempts >= max_attempts THEN 'permanent_failure'
		        ELSE 'pending'
		    END,
		    last_error = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'`
	tag, err := r.q.Exec(ctx, query, id, sendErr, permanent)
	if err != nil {
		return fmt.Errorf("failed to mark notification %d failed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("notification %d is not processing", id)
	}
	return nil
}

// ReclaimStale returns processing rows older than the threshold to pending.
// Crash recovery: a worker that died mid-batch leaves rows stuck in
// processing, and nothing else will ever touch them.
func (r *NotificationRepository) ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	query := `
		UPDATE notifications
		SET status = 'pending', updated_at = NOW()
		WHERE status = 'processing' AND processing_at < $1`
	tag, err := r.q.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteTerminalOlderThan purges sent and permanently failed rows past the
// retention window. Pending and processing rows are never touched.
func (r *NotificationRepository) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		DELETE FROM notifications
		WHERE status IN ('sent', 'failed', 'permanent_failure') AND updated_at < $1`
	tag, err := r.q.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old notifications: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountByStatus returns queue depth per status.
func (r *NotificationRepository) CountByStatus(ctx context.Context) (map[models.NotificationStatus]int64, error) {
	rows, err := r.q.Query(ctx, `SELECT status, COUNT(*) FROM notifications GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count notifications: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.NotificationStatus]int64)
	for rows.Next() {
		var status models.NotificationStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan notification count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// GetByID retrieves a notification. Returns nil when not found.
func (r *NotificationRepository) GetByID(ctx context.Context, id int64) (*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`
	n, err := scanNotification(r.q.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get notification %d: %w", id, err)
	}
	return n, nil
}
