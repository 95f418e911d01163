package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"courseprogress/internal/model"
	"courseprogress/internal/pgmq"
	"courseprogress/internal/pubsub"

	"github.com/rs/zerolog"
)

// QueueNotifier enqueues completion events on a pgmq queue drained by the
// notification orchestrator.
type QueueNotifier struct {
	queue     pgmq.Queue
	queueName string
	logger    zerolog.Logger
}

func NewQueueNotifier(queue pgmq.Queue, queueName string, logger zerolog.Logger) *QueueNotifier {
	return &QueueNotifier{
		queue:     queue,
		queueName: queueName,
		logger:    logger.With().Str("notifier", "queue").Logger(),
	}
}

func (n *QueueNotifier) PublishCompletion(ctx context.Context, event model.CompletionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling completion event %s: %w", event.EventID, err)
	}
	if err := n.queue.Send(ctx, n.queueName, payload); err != nil {
		return err
	}
	n.logger.Debug().Str("event_id", event.EventID).Str("queue", n.queueName).Msg("Completion event enqueued")
	return nil
}

// PubSubNotifier publishes completion events to a Pub/Sub topic.
type PubSubNotifier struct {
	publisher pubsub.Publisher
	topic     string
	logger    zerolog.Logger
}

func NewPubSubNotifier(publisher pubsub.Publisher, topic string, logger zerolog.Logger) *PubSubNotifier {
	return &PubSubNotifier{
		publisher: publisher,
		topic:     topic,
		logger:    logger.With().Str("notifier", "pubsub").Logger(),
	}
}

func (n *PubSubNotifier) PublishCompletion(ctx context.Context, event model.CompletionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling completion event %s: %w", event.EventID, err)
	}
	// Subscribers filter and dedupe on attributes without decoding the body.
	msgID, err := n.publisher.Publish(ctx, n.topic, payload, map[string]string{
		"event_id": event.EventID,
		"type":     event.Type,
	})
	if err != nil {
		return err
	}
	n.logger.Debug().Str("event_id", event.EventID).Str("message_id", msgID).Msg("Completion event published")
	return nil
}
