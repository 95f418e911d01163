package service

import (
	"context"
	"time"

	"courseprogress/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CompletionPublisher hands a completion event to the outbound queue.
type CompletionPublisher interface {
	PublishCompletion(ctx context.Context, event model.CompletionEvent) error
}

// CompletionTrigger runs the side effects of a false->true completion
// transition. It never fails the caller.
type CompletionTrigger interface {
	OnCompletionTransition(ctx context.Context, studentID, courseID, courseTitle string, completedAt time.Time)
}

type completionTrigger struct {
	publisher CompletionPublisher
	logger    zerolog.Logger
}

func NewCompletionTrigger(publisher CompletionPublisher, logger zerolog.Logger) CompletionTrigger {
	return &completionTrigger{
		publisher: publisher,
		logger:    logger.With().Str("service", "CompletionTrigger").Logger(),
	}
}

// CompletionEventID derives a stable ID for one completion so the sink can
// drop redeliveries.
func CompletionEventID(studentID, courseID string, completedAt time.Time) string {
	name := studentID + "/" + courseID + "/" + completedAt.UTC().Format(time.RFC3339Nano)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func (t *completionTrigger) OnCompletionTransition(ctx context.Context, studentID, courseID, courseTitle string, completedAt time.Time) {
	event := model.CompletionEvent{
		EventID:     CompletionEventID(studentID, courseID, completedAt),
		Type:        model.CompletionEventType,
		StudentID:   studentID,
		CourseID:    courseID,
		CourseTitle: courseTitle,
		CompletedAt: completedAt,
	}

	// Eligibility is the durable is_completed flag already written.
	t.logger.Info().
		Str("student_id", studentID).
		Str("course_id", courseID).
		Time("completed_at", completedAt).
		Msg("Course completed, student eligible for certificate")

	if err := t.publisher.PublishCompletion(ctx, event); err != nil {
		derr := &NotificationDeliveryError{EventID: event.EventID, Err: err}
		t.logger.Error().Err(derr).
			Str("student_id", studentID).
			Str("course_id", courseID).
			Msg("Failed to publish completion event")
	}
}
