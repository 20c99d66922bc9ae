package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"predmarket/models"
	"predmarket/service"
	"predmarket/telegram"
)

type stubSender struct {
	messages []int64
	photos   []int64
	err      error
}

func (s *stubSender) SendMessage(ctx context.Context, telegramID int64, text, parseMode string) error {
	s.messages = append(s.messages, telegramID)
	return s.err
}

func (s *stubSender) SendPhoto(ctx context.Context, telegramID int64, photoURL, caption, parseMode string) error {
	s.photos = append(s.photos, telegramID)
	return s.err
}

func deliveryConfig() DeliveryConfig {
	return DeliveryConfig{
		PollInterval:       time.Millisecond,
		BatchSize:          10,
		SendDelay:          0,
		BatchPauseEvery:    0,
		BatchPauseDuration: 0,
	}
}

func notification(id int64, attempts int) *models.Notification {
	return &models.Notification{
		ID:          id,
		TelegramID:  id * 100,
		Message:     "hello",
		ParseMode:   "HTML",
		Status:      models.NotificationStatusProcessing,
		Attempts:    attempts,
		MaxAttempts: 5,
		CreatedAt:   time.Now(),
	}
}

func TestProcessBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("successful sends are marked sent", func(t *testing.T) {
		uow := service.NewMockUnitOfWork()
		uow.Notifications.On("DequeueBatch", ctx, 10).
			Return([]*models.Notification{notification(1, 1), notification(2, 1)}, nil)
		uow.Notifications.On("MarkSent", ctx, int64(1)).Return(nil)
		uow.Notifications.On("MarkSent", ctx, int64(2)).Return(nil)

		sender := &stubSender{}
		svc := service.NewNotificationService(&service.MockUnitOfWorkFactory{UOW: uow}, 5)
		w := NewDeliveryWorker(svc, sender, deliveryConfig(), nil)

		require.NoError(t, w.ProcessBatch(ctx))
		assert.Equal(t, []int64{100, 200}, sender.messages)
		uow.Notifications.AssertExpectations(t)
	})

	t.Run("photo metadata routes through SendPhoto", func(t *testing.T) {
		uow := service.NewMockUnitOfWork()
		n := notification(1, 1)
		n.Metadata = []byte(`{"photo_url":"https://example.com/win.png"}`)
		uow.Notifications.On("DequeueBatch", ctx, 10).Return([]*models.Notification{n}, nil)
		uow.Notifications.On("MarkSent", ctx, int64(1)).Return(nil)

		sender := &stubSender{}
		svc := service.NewNotificationService(&service.MockUnitOfWorkFactory{UOW: uow}, 5)
		w := NewDeliveryWorker(svc, sender, deliveryConfig(), nil)

		require.NoError(t, w.ProcessBatch(ctx))
		assert.Empty(t, sender.messages)
		assert.Equal(t, []int64{100}, sender.photos)
	})

	t.Run("recoverable failure goes back for retry", func(t *testing.T) {
		uow := service.NewMockUnitOfWork()
		uow.Notifications.On("DequeueBatch", ctx, 10).Return([]*models.Notification{notification(1, 1)}, nil)
		uow.Notifications.On("MarkFailed", ctx, int64(1), mock.Anything, false).Return(nil)

		sender := &stubSender{err: &telegram.SendError{Err: errors.New("connection reset"), Permanent: false}}
		svc := service.NewNotificationService(&service.MockUnitOfWorkFactory{UOW: uow}, 5)
		w := NewDeliveryWorker(svc, sender, deliveryConfig(), nil)

		require.NoError(t, w.ProcessBatch(ctx))
		uow.Notifications.AssertCalled(t, "MarkFailed", ctx, int64(1), mock.Anything, false)
		uow.Notifications.AssertNotCalled(t, "MarkSent", mock.Anything, mock.Anything)
	})

	t.Run("permanent failure is parked immediately", func(t *testing.T) {
		uow := service.NewMockUnitOfWork()
		uow.Notifications.On("DequeueBatch", ctx, 10).Return([]*models.Notification{notification(1, 1)}, nil)
		uow.Notifications.On("MarkFailed", ctx, int64(1), mock.Anything, true).Return(nil)

		sender := &stubSender{err: &telegram.SendError{Err: errors.New("bot was blocked by the user"), Permanent: true}}
		svc := service.NewNotificationService(&service.MockUnitOfWorkFactory{UOW: uow}, 5)
		w := NewDeliveryWorker(svc, sender, deliveryConfig(), nil)

		require.NoError(t, w.ProcessBatch(ctx))
		uow.Notifications.AssertCalled(t, "MarkFailed", ctx, int64(1), mock.Anything, true)
	})

	t.Run("empty queue is a quiet no-op", func(t *testing.T) {
		uow := service.NewMockUnitOfWork()
		uow.Notifications.On("DequeueBatch", ctx, 10).Return([]*models.Notification{}, nil)

		sender := &stubSender{}
		svc := service.NewNotificationService(&service.MockUnitOfWorkFactory{UOW: uow}, 5)
		w := NewDeliveryWorker(svc, sender, deliveryConfig(), nil)

		require.NoError(t, w.ProcessBatch(ctx))
		assert.Empty(t, sender.messages)
	})
}
