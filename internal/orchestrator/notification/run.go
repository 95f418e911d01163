package notification

import (
	"context"
	"strconv"
	"time"

	"courseprogress/internal/config"
	"courseprogress/internal/model"
	"courseprogress/internal/pgmq"
	"courseprogress/internal/repository"

	"github.com/rs/zerolog"
)

// DeadLetterRecorder keeps completion messages the worker gives up on.
type DeadLetterRecorder interface {
	Record(ctx context.Context, in model.UndeliveredCompletion) error
}

type worker struct {
	queue          pgmq.Queue
	sink           repository.NotificationRepository
	deadLetters    DeadLetterRecorder
	queueName      string
	vtSec          int
	maxMsg         int
	maxRetries     int
	backoffInitial time.Duration
	backoffMax     time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
	logger         zerolog.Logger
}

func newWorker(logger zerolog.Logger, queue pgmq.Queue, sink repository.NotificationRepository, deadLetters DeadLetterRecorder, cfg *config.Config) *worker {
	maxRetries := cfg.NotificationMaxRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &worker{
		queue:          queue,
		sink:           sink,
		deadLetters:    deadLetters,
		queueName:      cfg.NotificationQueueName,
		vtSec:          cfg.NotificationPollTimeoutSec,
		maxMsg:         cfg.NotificationPollMaxMsg,
		maxRetries:     maxRetries,
		backoffInitial: time.Duration(cfg.NotificationBackoffInitialSec) * time.Second,
		backoffMax:     time.Duration(cfg.NotificationBackoffMaxSec) * time.Second,
		sleep:          sleepCtx,
		logger:         logger.With().Str("orchestrator", "notification").Logger(),
	}
}

// Run drains the completion queue into the notifications table until ctx is
// done. Messages that exhaust their retries go to deadLetters.
func Run(ctx context.Context, logger zerolog.Logger, queue pgmq.Queue, sink repository.NotificationRepository, deadLetters DeadLetterRecorder, cfg *config.Config) error {
	w := newWorker(logger, queue, sink, deadLetters, cfg)
	w.logger.Info().Str("queue", w.queueName).Msg("Starting notification orchestrator")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Shutting down notification orchestrator")
			return nil
		default:
		}

		if err := w.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.logger.Error().Err(err).Msg("Error reading completion queue")
			_ = w.sleep(ctx, time.Second)
		}
	}
}

func (w *worker) pollOnce(ctx context.Context) error {
	msgs, err := w.queue.ReadWithPoll(ctx, w.queueName, w.vtSec, w.maxMsg)
	if err != nil {
		return err
	}
	for _, msg := range msgs {
		w.handle(ctx, msg)
	}
	return nil
}

func (w *worker) handle(ctx context.Context, msg *pgmq.Message) {
	event, err := model.DecodeCompletionEvent(msg.Data)
	if err != nil {
		w.logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Malformed completion event; dead-lettering")
		w.deadLetter(ctx, msg)
		return
	}
	n := event.Notification(msg.Data)

	backoff := w.backoffInitial
	for attempt := 1; attempt <= w.maxRetries; attempt++ {
		created, err := w.sink.Create(ctx, n)
		if err == nil {
			if !created {
				w.logger.Debug().Str("event_id", n.EventID).Msg("Notification already recorded")
			}
			w.ack(ctx, msg)
			return
		}
		w.logger.Error().Err(err).Str("event_id", n.EventID).Int("attempt", attempt).Msg("Failed to record notification")
		if attempt == w.maxRetries {
			break
		}
		// On shutdown the message stays in the queue and reappears after its visibility timeout.
		if err := w.sleep(ctx, backoff); err != nil {
			return
		}
		backoff = min(backoff*2, w.backoffMax)
	}

	w.logger.Warn().
		Int("attempts", w.maxRetries).
		Str("event_id", n.EventID).
		Msg("Exhausted all notification retries; dead-lettering")
	w.deadLetter(ctx, msg)
}

// deadLetter acks msg once it is recorded. If recording fails the message
// stays queued and is read again after its visibility timeout.
func (w *worker) deadLetter(ctx context.Context, msg *pgmq.Message) {
	err := w.deadLetters.Record(ctx, model.UndeliveredCompletion{
		Source:           w.queueName,
		MessageID:        strconv.FormatInt(msg.ID, 10),
		DeliveryAttempts: msg.ReadCnt,
		Data:             msg.Data,
	})
	if err != nil {
		w.logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Failed to dead-letter completion message")
		return
	}
	w.ack(ctx, msg)
}

func (w *worker) ack(ctx context.Context, msg *pgmq.Message) {
	if err := w.queue.Delete(ctx, w.queueName, []int64{msg.ID}); err != nil {
		w.logger.Error().Err(err).Int64("msg_id", msg.ID).Msg("Error deleting completion message")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
