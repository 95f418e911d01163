package handler

import (
	"context"
	"errors"

	"courseprogress/internal/middleware"
	"courseprogress/internal/service"

	"github.com/danielgtaylor/huma/v2"
)

// getStudentIDFromContext returns the student the verified token belongs to.
func getStudentIDFromContext(ctx context.Context) (string, error) {
	studentID, ok := ctx.Value(middleware.StudentContextKey).(string)
	if !ok || studentID == "" {
		return "", huma.Error401Unauthorized("Student ID not found in context")
	}
	return studentID, nil
}

// toHTTPError maps service errors onto API status codes.
func toHTTPError(err error, fallback string) error {
	var nf *service.NotFoundError
	var ve *service.ValidationError
	switch {
	case errors.As(err, &nf):
		return huma.Error404NotFound(nf.Error())
	case errors.As(err, &ve):
		return huma.Error400BadRequest(ve.Error())
	case errors.Is(err, service.ErrVersionConflict):
		return huma.Error409Conflict("Progress changed concurrently, retry the request")
	case errors.Is(err, service.ErrNotEligible):
		return huma.Error403Forbidden("Course not completed")
	default:
		return huma.Error500InternalServerError(fallback, err)
	}
}
