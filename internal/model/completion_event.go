package model

import (
	"encoding/json"
	"errors"
	"time"
)

const CompletionEventType = "COURSE_COMPLETION"

// CompletionEvent is published once per false->true completion transition.
type CompletionEvent struct {
	EventID     string    `json:"event_id"`
	Type        string    `json:"type"`
	StudentID   string    `json:"student_id"`
	CourseID    string    `json:"course_id"`
	CourseTitle string    `json:"course_title"`
	CompletedAt time.Time `json:"completed_at"`
}

// DecodeCompletionEvent parses a queued or published event. An event without
// an ID cannot be deduplicated and is rejected.
func DecodeCompletionEvent(data []byte) (CompletionEvent, error) {
	var event CompletionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return CompletionEvent{}, err
	}
	if event.EventID == "" {
		return CompletionEvent{}, errors.New("missing event_id")
	}
	return event, nil
}

// Notification builds the sink row for the event. payload is the raw event
// as it travelled.
func (e CompletionEvent) Notification(payload []byte) *Notification {
	return &Notification{
		EventID: e.EventID,
		UserID:  e.StudentID,
		Type:    e.Type,
		Title:   "Course completed: " + e.CourseTitle,
		Payload: payload,
	}
}

// Notification is a row in the notification sink consumed by the delivery
// collaborator.
type Notification struct {
	ID        string    `db:"id" json:"id"`
	EventID   string    `db:"event_id" json:"event_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Type      string    `db:"type" json:"type"`
	Title     string    `db:"title" json:"title"`
	Payload   []byte    `db:"payload" json:"payload"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
