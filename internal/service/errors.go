package service

import (
	"errors"
	"fmt"
)

var (
	// ErrVersionConflict is returned when the enrollment kept changing under
	// every write attempt.
	ErrVersionConflict = errors.New("enrollment was modified concurrently")
	// ErrNotEligible is returned when a certificate is requested for a course
	// the student has not completed.
	ErrNotEligible = errors.New("course not completed")
)

// NotFoundError reports a missing lesson, course or enrollment.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.Resource == "enrollment" {
		return fmt.Sprintf("not enrolled in course %s", e.ID)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// ValidationError reports malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotificationDeliveryError wraps a failed completion event publish. It is
// logged by the trigger and never returned to callers.
type NotificationDeliveryError struct {
	EventID string
	Err     error
}

func (e *NotificationDeliveryError) Error() string {
	return fmt.Sprintf("delivering completion event %s: %v", e.EventID, e.Err)
}

func (e *NotificationDeliveryError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
