// Package worker holds the long-running background loops: the notification
// delivery worker and the job scheduler.
package worker

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"predmarket/metrics"
	"predmarket/models"
	"predmarket/service"
	"predmarket/telegram"
)

// DeliveryConfig tunes the delivery loop. All pacing knobs are explicit;
// the defaults match the queue contract.
type DeliveryConfig struct {
	PollInterval       time.Duration
	BatchSize          int
	SendDelay          time.Duration
	BatchPauseEvery    int
	BatchPauseDuration time.Duration
}

// DeliveryWorker drains the notification queue against Telegram. Several
// workers can run concurrently; the dequeue locking keeps their batches
// disjoint.
type DeliveryWorker struct {
	notifications *service.NotificationService
	sender        service.MessageSender
	cfg           DeliveryConfig
	metrics       *metrics.Metrics

	sentSinceLastPause int
}

// NewDeliveryWorker creates a delivery worker. m may be nil.
func NewDeliveryWorker(notifications *service.NotificationService, sender service.MessageSender,
	cfg DeliveryConfig, m *metrics.Metrics) *DeliveryWorker {
	return &DeliveryWorker{
		notifications: notifications,
		sender:        sender,
		cfg:           cfg,
		metrics:       m,
	}
}

// Start runs the polling loop until ctx is cancelled and returns a cleanup
// func that blocks until the loop exits.
func (w *DeliveryWorker) Start(ctx context.Context) func() {
	done := make(chan struct{})

	go func() {
		defer close(done)
		log.WithFields(log.Fields{
			"pollInterval": w.cfg.PollInterval,
			"batchSize":    w.cfg.BatchSize,
		}).Info("Delivery worker started")

		ticker := time.NewTicker(w.cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("Delivery worker stopped")
				return
			case <-ticker.C:
				if err := w.ProcessBatch(ctx); err != nil {
					log.WithError(err).Error("Delivery batch failed")
				}
			}
		}
	}()

	return func() { <-done }
}

// ProcessBatch claims and delivers one batch. Exported so the scheduler-free
// tests can drive the worker directly.
func (w *DeliveryWorker) ProcessBatch(ctx context.Context) error {
	batch, err := w.notifications.DequeueBatch(ctx, w.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}

	log.WithField("count", len(batch)).Debug("Delivering notification batch")

	for i, n := range batch {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		w.deliver(ctx, n)

		// Pacing between sends, plus a longer pause after every burst,
		// keeps us under Telegram's flood limits.
		if i < len(batch)-1 {
			w.sentSinceLastPause++
			if w.cfg.BatchPauseEvery > 0 && w.sentSinceLastPause >= w.cfg.BatchPauseEvery {
				w.sentSinceLastPause = 0
				sleepCtx(ctx, w.cfg.BatchPauseDuration)
			} else {
				sleepCtx(ctx, w.cfg.SendDelay)
			}
		}
	}
	return nil
}

func (w *DeliveryWorker) deliver(ctx context.Context, n *models.Notification) {
	start := time.Now()
	err := w.send(ctx, n)
	if w.metrics != nil {
		w.metrics.DeliveryDuration.Observe(time.Since(start).Seconds())
	}

	if err == nil {
		if markErr := w.notifications.MarkSent(ctx, n.ID); markErr != nil {
			log.WithError(markErr).WithField("notificationID", n.ID).Error("Failed to mark notification sent")
		}
		if w.metrics != nil {
			w.metrics.NotificationsSent.Inc()
		}
		return
	}

	permanent := telegram.IsPermanent(err)
	log.WithError(err).WithFields(log.Fields{
		"notificationID": n.ID,
		"attempt":        n.Attempts,
		"permanent":      permanent,
	}).Warn("Notification delivery failed")

	if markErr := w.notifications.MarkFailed(ctx, n.ID, err.Error(), permanent); markErr != nil {
		log.WithError(markErr).WithField("notificationID", n.ID).Error("Failed to mark notification failed")
	}

	if w.metrics != nil {
		w.metrics.NotificationsFailed.Inc()
		if permanent || n.Attempts >= n.MaxAttempts {
			w.metrics.NotificationsDropped.Inc()
		} else {
			w.metrics.NotificationsRetried.Inc()
		}
	}

	if wait := telegram.RetryAfter(err); wait > 0 {
		log.WithField("wait", wait).Warn("Flood control hit, backing off")
		sleepCtx(ctx, wait)
	}
}

func (w *DeliveryWorker) send(ctx context.Context, n *models.Notification) error {
	if photoURL := n.PhotoURL(); photoURL != "" {
		return w.sender.SendPhoto(ctx, n.TelegramID, photoURL, n.Message, n.ParseMode)
	}
	return w.sender.SendMessage(ctx, n.TelegramID, n.Message, n.ParseMode)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
