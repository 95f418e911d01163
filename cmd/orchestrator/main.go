package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"courseprogress/internal/config"
	"courseprogress/internal/database"
	"courseprogress/internal/logger"
	"courseprogress/internal/notify"
	"courseprogress/internal/orchestrator/notification"
	"courseprogress/internal/orchestrator/reconcile"
	"courseprogress/internal/pgmq"
	"courseprogress/internal/pubsub"
	"courseprogress/internal/repository"
	"courseprogress/internal/service"

	"github.com/joho/godotenv"
)

func main() {
	// Parse mode flag
	mode := flag.String("mode", "", "Orchestrator mode: notification|reconcile|replay")
	flag.Parse()

	logger := logger.New()

	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	// Set up context with graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := database.OpenSQL(ctx, cfg)
	if err != nil {
		logger.Fatal().Msgf("Failed to open DB connection: %v", err)
	}
	defer db.Close()
	logger.Info().Msg("Database connection established")

	pgmqClient := pgmq.New(db)
	logger.Info().Msg("PGMQ client initialized")

	// Dispatch to the selected orchestrator
	var runErr error
	switch *mode {
	case "notification":
		sink := repository.NewNotificationRepo(db)
		if cfg.NotificationTransport != notify.TransportPubSub {
			deadLetters := service.NewDeadLetterService(repository.NewDeadLetterRepo(db), sink, logger)
			runErr = notification.Run(ctx, logger, pgmqClient, sink, deadLetters, cfg)
			break
		}
		client, err := pubsub.NewClient(ctx, cfg)
		if err != nil {
			logger.Fatal().Msgf("Failed to create Pub/Sub client: %v", err)
		}
		defer client.Close()
		sub := client.Subscription(cfg.PubSubCompletionSubscription)
		runErr = notification.RunSubscriber(ctx, logger, sub, sink)
	case "reconcile":
		pool, err := database.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Msgf("Failed to open DB pool: %v", err)
		}
		defer pool.Close()

		enrollmentRepo := repository.NewEnrollmentRepo(pool)
		// Events must go where the notification orchestrator reads them.
		notifier, closeNotifier, err := notify.ForTransport(ctx, cfg, pgmqClient, logger)
		if err != nil {
			logger.Fatal().Msgf("Failed to create completion notifier: %v", err)
		}
		defer closeNotifier()

		progressSvc := service.NewProgressService(
			repository.NewCatalogRepo(pool),
			repository.NewLessonProgressRepo(pool),
			enrollmentRepo,
			service.NewCompletionTrigger(notifier, logger),
			service.NewValidator(),
			cfg.EnrollmentWriteAttempts,
			logger,
		)
		job := reconcile.NewJob(enrollmentRepo, progressSvc, cfg.ReconcileBatchSize,
			time.Duration(cfg.ReconcileTimeoutSec)*time.Second, logger)
		runErr = reconcile.Run(ctx, logger, job, cfg.ReconcileCronSpec)
	case "replay":
		deadLetters := service.NewDeadLetterService(repository.NewDeadLetterRepo(db), repository.NewNotificationRepo(db), logger)
		_, runErr = deadLetters.Replay(ctx, cfg.DeadLetterReplayBatchSize)
	default:
		logger.Fatal().Msgf("Invalid mode: %s", *mode)
	}

	if runErr != nil {
		logger.Fatal().Msgf("%s orchestrator failed: %v", *mode, runErr)
	}

	logger.Info().Msgf("%s orchestrator stopped gracefully", *mode)
}
