package notify

import (
	"context"
	"fmt"

	"courseprogress/internal/config"
	"courseprogress/internal/model"
	"courseprogress/internal/pgmq"
	"courseprogress/internal/pubsub"

	"github.com/rs/zerolog"
)

const (
	TransportQueue  = "queue"
	TransportPubSub = "pubsub"
)

// Notifier hands a completion event to the configured transport.
type Notifier interface {
	PublishCompletion(ctx context.Context, event model.CompletionEvent) error
}

type closablePublisher interface {
	pubsub.Publisher
	Close() error
}

var newPubSubPublisher = func(ctx context.Context, cfg *config.Config) (closablePublisher, error) {
	return pubsub.NewPublisher(ctx, cfg)
}

// ForTransport builds the notifier selected by cfg.NotificationTransport.
// The API and the reconcile job both use it so events land where the
// notification orchestrator reads them. The returned func closes any client
// opened here.
func ForTransport(ctx context.Context, cfg *config.Config, queue pgmq.Queue, logger zerolog.Logger) (Notifier, func(), error) {
	switch cfg.NotificationTransport {
	case TransportPubSub:
		publisher, err := newPubSubPublisher(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("creating completion publisher: %w", err)
		}
		closeFn := func() {
			if err := publisher.Close(); err != nil {
				logger.Warn().Err(err).Msg("Failed to close completion publisher")
			}
		}
		return NewPubSubNotifier(publisher, cfg.PubSubCompletionTopic, logger), closeFn, nil
	case TransportQueue, "":
		return NewQueueNotifier(queue, cfg.NotificationQueueName, logger), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown notification transport %q", cfg.NotificationTransport)
	}
}
