package model

import "time"

const (
	// DeadLetterPending rows are waiting to be replayed into the notification sink.
	DeadLetterPending = "pending"
	// DeadLetterReplayed rows reached the sink through a replay.
	DeadLetterReplayed = "replayed"
	// DeadLetterMalformed rows do not decode as a completion event and are kept for inspection only.
	DeadLetterMalformed = "malformed"
)

// UndeliveredCompletion is a completion message that a transport gave up on.
type UndeliveredCompletion struct {
	// Source names where it was dead-lettered, e.g. a pgmq queue or Pub/Sub subscription.
	Source           string
	MessageID        string
	DeliveryAttempts int
	Data             []byte
	Attributes       map[string]string
}

// DeadLetteredCompletion is a row in dead_lettered_completions. Rows that
// decode as a CompletionEvent carry its identity and are unique per event.
type DeadLetteredCompletion struct {
	ID               string     `db:"id"`
	EventID          *string    `db:"event_id"`
	StudentID        *string    `db:"student_id"`
	CourseID         *string    `db:"course_id"`
	Source           string     `db:"source"`
	MessageID        string     `db:"message_id"`
	DeliveryAttempts int        `db:"delivery_attempts"`
	Payload          []byte     `db:"payload"`    // JSON
	Attributes       []byte     `db:"attributes"` // JSON, may be empty
	Status           string     `db:"status"`
	CreatedAt        time.Time  `db:"created_at"`
	ReplayedAt       *time.Time `db:"replayed_at"`
}
