package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"predmarket/models"
)

// NotificationService is the producer and queue-management side of the
// durable notification queue. Delivery lives in the worker package.
type NotificationService struct {
	uowFactory  UnitOfWorkFactory
	maxAttempts int
}

// NewNotificationService creates a notification service.
func NewNotificationService(uowFactory UnitOfWorkFactory, maxAttempts int) *NotificationService {
	return &NotificationService{
		uowFactory:  uowFactory,
		maxAttempts: maxAttempts,
	}
}

// Enqueue inserts a pending notification. Producers never learn about
// delivery failures; a successful enqueue is the whole contract.
func (s *NotificationService) Enqueue(ctx context.Context, telegramID int64, message, parseMode string,
	metadata *models.NotificationMetadata, scheduledAt time.Time) (*models.Notification, error) {

	if telegramID == 0 {
		return nil, fmt.Errorf("%w: telegram id is required", ErrInvalidInput)
	}
	if message == "" {
		return nil, fmt.Errorf("%w: message is required", ErrInvalidInput)
	}
	if parseMode == "" {
		parseMode = "HTML"
	}

	n := &models.Notification{
		TelegramID:  telegramID,
		Message:     message,
		ParseMode:   parseMode,
		MaxAttempts: s.maxAttempts,
		ScheduledAt: scheduledAt,
	}
	if metadata != nil {
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal notification metadata: %w", err)
		}
		n.Metadata = raw
	}

	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	if err := uow.NotificationRepository().Enqueue(ctx, n); err != nil {
		return nil, err
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	return n, nil
}

// DequeueBatch claims the next batch for delivery. The claim commits before
// any send happens, so every attempt is on record even if the process dies.
func (s *NotificationService) DequeueBatch(ctx context.Context, limit int) ([]*models.Notification, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	batch, err := uow.NotificationRepository().DequeueBatch(ctx, limit)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	return batch, nil
}

// MarkSent records a successful delivery.
func (s *NotificationService) MarkSent(ctx context.Context, id int64) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	if err := uow.NotificationRepository().MarkSent(ctx, id); err != nil {
		return err
	}
	return uow.Commit(ctx)
}

// MarkFailed records a failed attempt. Permanent failures and exhausted
// retries park the row in permanent_failure; the rest return to pending.
func (s *NotificationService) MarkFailed(ctx context.Context, id int64, sendErr string, permanent bool) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	if err := uow.NotificationRepository().MarkFailed(ctx, id, sendErr, permanent); err != nil {
		return err
	}
	return uow.Commit(ctx)
}

// ReclaimStale returns crashed-worker claims to pending.
func (s *NotificationService) ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	reclaimed, err := uow.NotificationRepository().ReclaimStale(ctx, olderThan)
	if err != nil {
		return 0, err
	}
	if err := uow.Commit(ctx); err != nil {
		return 0, err
	}
	if reclaimed > 0 {
		log.WithField("count", reclaimed).Warn("Reclaimed stale processing notifications")
	}
	return reclaimed, nil
}

// CleanupOld purges terminal rows past the retention window.
func (s *NotificationService) CleanupOld(ctx context.Context, retention time.Duration) (int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return 0, err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	deleted, err := uow.NotificationRepository().DeleteTerminalOlderThan(ctx, time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	if err := uow.Commit(ctx); err != nil {
		return 0, err
	}
	if deleted > 0 {
		log.WithField("count", deleted).Info("Purged old notifications")
	}
	return deleted, nil
}

// Stats returns queue depth per status.
func (s *NotificationService) Stats(ctx context.Context) (map[models.NotificationStatus]int64, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() { _ = uow.Rollback(ctx) }()

	counts, err := uow.NotificationRepository().CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	return counts, nil
}
