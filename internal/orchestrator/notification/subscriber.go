package notification

import (
	"context"

	"courseprogress/internal/model"
	"courseprogress/internal/repository"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
)

// Receiver is the subset of *pubsub.Subscription the subscriber uses.
type Receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

// RunSubscriber drains a Pub/Sub pull subscription into the notifications
// table. Nacked messages are retried by the subscription's retry policy and
// dead-lettered by its dead-letter policy.
func RunSubscriber(ctx context.Context, logger zerolog.Logger, sub Receiver, sink repository.NotificationRepository) error {
	logger = logger.With().Str("orchestrator", "notification").Str("transport", "pubsub").Logger()
	logger.Info().Msg("Starting notification subscriber")

	err := sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		if record(ctx, logger, sink, m.ID, m.Data) {
			m.Ack()
			return
		}
		m.Nack()
	})
	if err != nil && ctx.Err() == nil {
		return err
	}

	logger.Info().Msg("Shutting down notification subscriber")
	return nil
}

// record writes one pushed event to the sink and reports whether to ack it.
func record(ctx context.Context, logger zerolog.Logger, sink repository.NotificationRepository, msgID string, data []byte) bool {
	event, err := model.DecodeCompletionEvent(data)
	if err != nil {
		logger.Error().Err(err).Str("message_id", msgID).Msg("Malformed completion event")
		return false
	}
	n := event.Notification(data)
	created, err := sink.Create(ctx, n)
	if err != nil {
		logger.Error().Err(err).Str("event_id", n.EventID).Msg("Failed to record notification")
		return false
	}
	if !created {
		logger.Debug().Str("event_id", n.EventID).Msg("Notification already recorded")
	}
	return true
}
