package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/car-marketplace/internal/config"
	"github.com/spec-kit/car-marketplace/internal/observability"
	"github.com/spec-kit/car-marketplace/internal/worker"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	queueName := pflag.String("queue", "", "queue to consume (defaults to NOTIFY_QUEUE)")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, zap.String("service", "notifier"))
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	name := cfg.Notification.Queue
	if *queueName != "" {
		name = *queueName
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = worker.RunNotificationConsumer(ctx, cfg.Notification.AMQPURL, name, logger)
	if errors.Is(err, worker.ErrNoBroker) {
		logger.Fatal("RABBITMQ_URL must be set for the notifier")
	}
	if err != nil {
		logger.Fatal("notification consumer stopped", zap.Error(err))
	}
	logger.Info("notifier stopped")
}
