// Package worker runs the notification pipeline on both sides of the broker.
package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/car-marketplace/internal/events"
	"github.com/spec-kit/car-marketplace/internal/queue"
	"github.com/spec-kit/car-marketplace/internal/service"
)

// ErrNoBroker is returned by RunNotificationConsumer when no broker URL is set.
var ErrNoBroker = errors.New("worker: notification broker not configured")

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// LogNotification returns a consumer handler that writes one log line per event.
func LogNotification(logger *zap.Logger) queue.Handler {
	return func(_ context.Context, event events.Event) error {
		if event.Type == "" {
			return errors.New("notification without type")
		}
		logger.Info("notification",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Int64("actor_id", event.ActorID),
			zap.Time("emitted_at", event.Timestamp),
			zap.Any("payload", event.Payload))
		return nil
	}
}

// RunNotificationConsumer consumes queueName until ctx is cancelled.
func RunNotificationConsumer(ctx context.Context, url, queueName string, logger *zap.Logger) error {
	if url == "" {
		return ErrNoBroker
	}
	logger.Info("notification consumer starting", zap.String("queue", queueName))
	err := queue.NewConsumer(url, queueName, LogNotification(logger), logger).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
