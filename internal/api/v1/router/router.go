package router

import (
	"context"
	"net/http"
	"time"

	"courseprogress/internal/api/v1/handler"
	"courseprogress/internal/config"
	"courseprogress/internal/database"
	"courseprogress/internal/middleware"
	"courseprogress/internal/notify"
	"courseprogress/internal/pgmq"
	"courseprogress/internal/repository"
	"courseprogress/internal/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awsmiddleware "github.com/aws/smithy-go/middleware"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New wires the API. The returned func releases the database and Pub/Sub clients.
func New(cfg *config.Config, logger zerolog.Logger) (http.Handler, func(), error) {
	ctx := context.Background()
	logger.Info().Str("environment", cfg.Environment).Msg("App environment loaded")

	// 1. Database
	pool, err := database.NewPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")
	// pgmq runs over database/sql on the same pool.
	sqlDB := stdlib.OpenDBFromPool(pool)

	// 2. Object store for certificates
	s3Config, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.S3AccessKey, cfg.S3SecretKey, "")),
		awsconfig.WithAPIOptions([]func(*awsmiddleware.Stack) error{removeDisableGzip()}),
	)
	if err != nil {
		sqlDB.Close()
		pool.Close()
		return nil, nil, err
	}
	s3Client := s3.NewFromConfig(s3Config, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.S3URL)
		o.UsePathStyle = true
	})
	presigner := s3.NewPresignClient(s3Client)

	// 3. Completion event transport
	cleanup := func() {
		sqlDB.Close()
		pool.Close()
	}
	publisher, closePublisher, err := notify.ForTransport(ctx, cfg, pgmq.New(sqlDB), logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	cleanup = func() {
		closePublisher()
		sqlDB.Close()
		pool.Close()
	}
	logger.Info().Str("transport", cfg.NotificationTransport).Msg("Completion notifier initialized")

	// 4. Repositories & services & handlers
	validate := service.NewValidator()

	catalogRepo := repository.NewCatalogRepo(pool)
	lessonRepo := repository.NewLessonProgressRepo(pool)
	enrollmentRepo := repository.NewEnrollmentRepo(pool)
	// Dead letters share the sink tables with the notification orchestrator.
	deadLetterRepo := repository.NewDeadLetterRepo(sqlDB)
	notificationRepo := repository.NewNotificationRepo(sqlDB)

	trigger := service.NewCompletionTrigger(publisher, logger)
	progressSvc := service.NewProgressService(catalogRepo, lessonRepo, enrollmentRepo, trigger, validate, cfg.EnrollmentWriteAttempts, logger)
	certificateSvc := service.NewCertificateService(enrollmentRepo, presigner, cfg.S3Bucket, cfg.CertificatePrefix,
		time.Duration(cfg.CertificateURLTTLMin)*time.Minute, logger)
	deadLetterSvc := service.NewDeadLetterService(deadLetterRepo, notificationRepo, logger)

	progressHandler := handler.NewProgressHandler(progressSvc, logger)
	certificateHandler := handler.NewCertificateHandler(certificateSvc, logger)
	deadLetterHandler := handler.NewDeadLetterHandler(deadLetterSvc, logger)

	// 5. Middleware & routes
	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecret, logger)
	isLocalDev := cfg.PubSubEmulatorHost != ""
	pushAuth := middleware.NewPubSubPushAuth(cfg.DLQEndpointURL, cfg.PubSubPushServiceAccountEmail, isLocalDev, logger)

	chiRouter, api := SetupHumaAPI(cfg, authMiddleware, pushAuth.Middleware, logger)
	RegisterRoutes(api, progressHandler, certificateHandler, deadLetterHandler, logger)

	mux := http.NewServeMux()
	mux.Handle("/v1/", http.StripPrefix("/v1", chiRouter))

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return middleware.LoggerMiddleware(logger)(c.Handler(mux)), cleanup, nil
}

// removeDisableGzip is a workaround for S3 signature errors with some S3-compatible services.
// See: https://github.com/supabase/storage/issues/577
func removeDisableGzip() func(*awsmiddleware.Stack) error {
	return func(stack *awsmiddleware.Stack) error {
		if _, ok := stack.Finalize.Get("DisableAcceptEncodingGzip"); ok {
			_, err := stack.Finalize.Remove("DisableAcceptEncodingGzip")
			return err
		}
		return nil
	}
}
