package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/car-marketplace/internal/api/http"
	"github.com/spec-kit/car-marketplace/internal/api/http/handlers"
	"github.com/spec-kit/car-marketplace/internal/auth"
	"github.com/spec-kit/car-marketplace/internal/config"
	"github.com/spec-kit/car-marketplace/internal/events"
	"github.com/spec-kit/car-marketplace/internal/observability"
	"github.com/spec-kit/car-marketplace/internal/persistence"
	"github.com/spec-kit/car-marketplace/internal/queue"
	"github.com/spec-kit/car-marketplace/internal/repository"
	"github.com/spec-kit/car-marketplace/internal/service"
	"github.com/spec-kit/car-marketplace/internal/worker"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	migrateOnly := pflag.Bool("migrate-only", false, "apply migrations and exit")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, zap.String("service", cfg.App.Name))
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, cfg.App.Name, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations || *migrateOnly {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}
	if *migrateOnly {
		return
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	media, err := persistence.NewDiskMediaStore(cfg.Media)
	if err != nil {
		logger.Fatal("failed to prepare media store", zap.Error(err))
	}

	pool := pg.PoolHandle()
	txManager := repository.NewTxManager(pool)
	userRepo := repository.NewUserRepository(pool)
	listingRepo := repository.NewListingRepository(pool)
	imageRepo := repository.NewListingImageRepository(pool)
	catalogRepo := repository.NewCatalogRepository(pool)
	favoriteRepo := repository.NewFavoriteRepository(pool)
	reviewRepo := repository.NewReviewRepository(pool)
	statsRepo := repository.NewSellerStatsRepository(pool)
	conversationRepo := repository.NewConversationRepository(pool)
	messageRepo := repository.NewMessageRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	var publisher service.EventPublisher
	if cfg.Notification.AMQPURL != "" {
		amqpPublisher := queue.NewPublisher(cfg.Notification.AMQPURL, cfg.Notification.Queue, logger)
		defer amqpPublisher.Close()
		publisher = amqpPublisher
	} else {
		logger.Info("RABBITMQ_URL not set; notifications are logged only")
	}
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, publisher, logger))

	tokens := auth.NewTokenManager(auth.NewTokenCodec(cfg.Auth.JWTSecret), cfg.Auth.AccessTTL(), cfg.Auth.RefreshTTL())
	gate := auth.NewAuthGate(tokens, userRepo, logger)

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:   userRepo,
		Tokens:     tokens,
		BcryptCost: cfg.Auth.BcryptCost,
		Logger:     logger,
	})
	listingService := service.NewListingService(service.ListingDependencies{
		ListingRepo: listingRepo,
		ImageRepo:   imageRepo,
		CatalogRepo: catalogRepo,
		Media:       media,
		Logger:      logger,
	})
	favoriteService := service.NewFavoriteService(favoriteRepo, listingRepo)
	reviewService := service.NewReviewService(service.ReviewDependencies{
		TxManager:   txManager,
		ReviewRepo:  reviewRepo,
		StatsRepo:   statsRepo,
		UserRepo:    userRepo,
		ListingRepo: listingRepo,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	conversationService := service.NewConversationService(service.ConversationDependencies{
		TxManager:        txManager,
		ConversationRepo: conversationRepo,
		MessageRepo:      messageRepo,
		ListingRepo:      listingRepo,
		Dispatcher:       dispatcher,
		Logger:           logger,
	})
	moderationService := service.NewModerationService(listingRepo, dispatcher, logger)

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: cfg.App.BodyLimitBytes,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	var redisPinger handlers.Pinger
	if redis.Handle() != nil {
		redisPinger = redis
	}

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:       handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redisPinger, metrics),
		Auth:         handlers.NewAuthHandler(authService),
		Listings:     handlers.NewListingsHandler(listingService, favoriteService, cfg.Pagination, media.URL),
		Reviews:      handlers.NewReviewsHandler(reviewService, cfg.Pagination),
		Chat:         handlers.NewChatHandler(conversationService, cfg.Pagination, media.URL),
		Admin:        handlers.NewAdminHandler(moderationService, conversationService),
		Gate:         gate,
		RateLimiter:  httptransport.NewRateLimiter(cfg.RateLimit, redis.Handle(), logger),
		Cache:        httptransport.NewResponseCache(cfg.Cache, redis.Handle(), logger),
		MediaBaseURL: cfg.Media.BaseURL,
		MediaDir:     media.Dir(),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
