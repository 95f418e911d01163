package service

import (
	"context"
	"encoding/json"
	"time"

	"courseprogress/internal/model"
	"courseprogress/internal/repository"

	"github.com/rs/zerolog"
)

// DeadLetterService keeps completion events that no transport could deliver
// and replays them into the notification sink.
type DeadLetterService interface {
	// Record stores an undelivered message once per event ID. Messages that are
	// not completion events are kept as malformed and never replayed.
	Record(ctx context.Context, in model.UndeliveredCompletion) error
	// Replay writes up to limit pending events to the sink and marks them replayed.
	Replay(ctx context.Context, limit int) (ReplayResult, error)
}

// ReplayResult counts the outcome of one replay pass.
type ReplayResult struct {
	Replayed         int
	AlreadyDelivered int
	Failed           int
}

type deadLetterService struct {
	repo   repository.DeadLetterRepository
	sink   repository.NotificationRepository
	now    func() time.Time
	logger zerolog.Logger
}

func NewDeadLetterService(repo repository.DeadLetterRepository, sink repository.NotificationRepository, logger zerolog.Logger) DeadLetterService {
	return &deadLetterService{
		repo:   repo,
		sink:   sink,
		now:    time.Now,
		logger: logger.With().Str("service", "DeadLetterService").Logger(),
	}
}

func (s *deadLetterService) Record(ctx context.Context, in model.UndeliveredCompletion) error {
	row := &model.DeadLetteredCompletion{
		Source:           in.Source,
		MessageID:        in.MessageID,
		DeliveryAttempts: in.DeliveryAttempts,
		Payload:          in.Data,
		Status:           model.DeadLetterPending,
	}

	event, err := model.DecodeCompletionEvent(in.Data)
	if err != nil {
		s.logger.Warn().Err(err).Str("source", in.Source).Str("message_id", in.MessageID).Msg("Dead-lettered message is not a completion event")
		row.Status = model.DeadLetterMalformed
		// The payload column is jsonb.
		if !json.Valid(in.Data) {
			row.Payload, _ = json.Marshal(map[string]string{"raw": string(in.Data)})
		}
	} else {
		row.EventID, row.StudentID, row.CourseID = &event.EventID, &event.StudentID, &event.CourseID
	}

	if len(in.Attributes) > 0 {
		attrs, err := json.Marshal(in.Attributes)
		if err != nil {
			s.logger.Warn().Err(err).Str("message_id", in.MessageID).Msg("Failed to marshal dead letter attributes")
		} else {
			row.Attributes = attrs
		}
	}

	created, err := s.repo.Record(ctx, row)
	if err != nil {
		s.logger.Error().Err(err).Str("source", in.Source).Str("message_id", in.MessageID).Msg("Failed to record dead letter")
		return err
	}
	if !created {
		s.logger.Debug().Str("event_id", event.EventID).Msg("Completion event already dead-lettered")
		return nil
	}
	if row.EventID != nil {
		s.logger.Warn().
			Str("event_id", event.EventID).
			Str("student_id", event.StudentID).
			Str("course_id", event.CourseID).
			Int("delivery_attempts", in.DeliveryAttempts).
			Str("source", in.Source).
			Msg("Completion event dead-lettered")
	}
	return nil
}

func (s *deadLetterService) Replay(ctx context.Context, limit int) (ReplayResult, error) {
	var res ReplayResult
	rows, err := s.repo.ListPending(ctx, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list pending dead letters")
		return res, err
	}

	for _, d := range rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		log := s.logger.With().Str("dead_letter_id", d.ID).Logger()

		event, err := model.DecodeCompletionEvent(d.Payload)
		if err != nil {
			log.Error().Err(err).Msg("Pending dead letter does not decode")
			res.Failed++
			continue
		}
		created, err := s.sink.Create(ctx, event.Notification(d.Payload))
		if err != nil {
			log.Error().Err(err).Str("event_id", event.EventID).Msg("Failed to replay completion event")
			res.Failed++
			continue
		}
		// The sink dedupes on event ID, so a failed mark is retried harmlessly next pass.
		if err := s.repo.MarkReplayed(ctx, d.ID, s.now()); err != nil {
			log.Error().Err(err).Str("event_id", event.EventID).Msg("Failed to mark dead letter replayed")
			res.Failed++
			continue
		}
		if created {
			res.Replayed++
		} else {
			res.AlreadyDelivered++
		}
	}

	s.logger.Info().
		Int("replayed", res.Replayed).
		Int("already_delivered", res.AlreadyDelivered).
		Int("failed", res.Failed).
		Msg("Dead letter replay finished")
	return res, nil
}
