package main

import (
	"context"
	"time"

	"courseprogress/internal/config"
	"courseprogress/internal/logger"
	"courseprogress/internal/pubsub"

	ps "cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

// For local development, 'host.docker.internal' lets the emulator reach the API on the host.
const dlqEndpointLocal = "http://host.docker.internal:8080/v1/dlq/record"

// Creates the completion topic, its pull subscription and the dead-letter
// topic pushed to the API. Emulator only: existing resources are deleted first.
func main() {
	logger := logger.New()

	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("No .env file found, relying on system environment variables.")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Failed to load config: %v", err)
	}
	if cfg.PubSubEmulatorHost == "" {
		logger.Fatal().Msg("PUBSUB_EMULATOR_HOST must be set for local environment.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := pubsub.NewClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Msgf("Failed to create Pub/Sub client: %v", err)
	}
	defer client.Close()

	resetLocalEmulator(ctx, client, logger)

	retention := 7 * 24 * time.Hour
	retry := &ps.RetryPolicy{MinimumBackoff: 10 * time.Second, MaximumBackoff: 600 * time.Second}

	dlqTopic := createTopic(ctx, client, logger, cfg.PubSubCompletionTopic+"-dlq", retention)
	mainTopic := createTopic(ctx, client, logger, cfg.PubSubCompletionTopic, retention)

	createSubscription(ctx, client, logger, cfg.PubSubCompletionSubscription, ps.SubscriptionConfig{
		Topic:       mainTopic,
		AckDeadline: 60 * time.Second,
		RetryPolicy: retry,
		DeadLetterPolicy: &ps.DeadLetterPolicy{
			DeadLetterTopic:     dlqTopic.String(),
			MaxDeliveryAttempts: cfg.NotificationMaxRetries,
		},
	})
	createSubscription(ctx, client, logger, cfg.PubSubCompletionTopic+"-dlq-sub", ps.SubscriptionConfig{
		Topic:       dlqTopic,
		PushConfig:  ps.PushConfig{Endpoint: dlqEndpointLocal},
		AckDeadline: 60 * time.Second,
		RetryPolicy: retry,
	})

	logger.Info().Msg("Pub/Sub setup for local environment complete.")
}

// resetLocalEmulator deletes every topic and subscription. This should ONLY be used against the local emulator.
func resetLocalEmulator(ctx context.Context, client *ps.Client, logger zerolog.Logger) {
	subs := client.Subscriptions(ctx)
	for {
		sub, err := subs.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Fatal().Msgf("Failed to list subscriptions: %v", err)
		}
		if err := sub.Delete(ctx); err != nil {
			logger.Warn().Err(err).Str("subscription", sub.ID()).Msg("Failed to delete subscription")
		}
	}

	topics := client.Topics(ctx)
	for {
		topic, err := topics.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			logger.Fatal().Msgf("Failed to list topics: %v", err)
		}
		if err := topic.Delete(ctx); err != nil {
			logger.Warn().Err(err).Str("topic", topic.ID()).Msg("Failed to delete topic")
		}
	}
}

func createTopic(ctx context.Context, client *ps.Client, logger zerolog.Logger, topicID string, retention time.Duration) *ps.Topic {
	topic, err := client.CreateTopicWithConfig(ctx, topicID, &ps.TopicConfig{RetentionDuration: retention})
	if err != nil {
		logger.Fatal().Msgf("Failed to create topic %s: %v", topicID, err)
	}
	logger.Info().Str("topic", topicID).Msg("Created topic")
	return topic
}

func createSubscription(ctx context.Context, client *ps.Client, logger zerolog.Logger, subID string, cfg ps.SubscriptionConfig) {
	if _, err := client.CreateSubscription(ctx, subID, cfg); err != nil {
		logger.Fatal().Msgf("Failed to create subscription '%s': %v", subID, err)
	}
	logger.Info().Str("subscription", subID).Str("endpoint", cfg.PushConfig.Endpoint).Msg("Created subscription")
}
