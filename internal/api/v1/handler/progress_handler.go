package handler

import (
	"context"

	"courseprogress/internal/api/v1/dto"
	"courseprogress/internal/api/v1/operation"
	"courseprogress/internal/model"
	"courseprogress/internal/service"

	"github.com/rs/zerolog"
)

// ProgressHandler handles lesson and course progress endpoints
type ProgressHandler struct {
	progressService service.ProgressService
	logger          zerolog.Logger
}

// NewProgressHandler creates a new ProgressHandler
func NewProgressHandler(progressService service.ProgressService, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		progressService: progressService,
		logger:          logger,
	}
}

// UpdateLessonProgress records progress on a lesson and refreshes the course aggregate
func (h *ProgressHandler) UpdateLessonProgress(ctx context.Context, input *operation.UpdateLessonProgressInput) (*operation.UpdateLessonProgressOutput, error) {
	studentID, err := getStudentIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	p, err := h.progressService.MarkLesson(ctx, service.RecordProgressInput{
		StudentID:   studentID,
		LessonID:    input.LessonID,
		IsCompleted: input.Body.IsCompleted,
		TimeSpent:   input.Body.TimeSpent,
	})
	if err != nil {
		return nil, toHTTPError(err, "Failed to update lesson progress")
	}

	return &operation.UpdateLessonProgressOutput{
		Body: dto.LessonProgressResponseDTO{
			LessonID:    p.LessonID,
			IsCompleted: p.IsCompleted,
			CompletedAt: p.CompletedAt,
			TimeSpent:   p.TimeSpent,
			UpdatedAt:   p.UpdatedAt,
		},
	}, nil
}

// RecomputeCourseProgress rederives the enrollment from stored lesson progress
func (h *ProgressHandler) RecomputeCourseProgress(ctx context.Context, input *operation.RecomputeCourseProgressInput) (*operation.RecomputeCourseProgressOutput, error) {
	studentID, err := getStudentIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	e, err := h.progressService.RecomputeCourseProgress(ctx, studentID, input.CourseID)
	if err != nil {
		return nil, toHTTPError(err, "Failed to recompute course progress")
	}

	return &operation.RecomputeCourseProgressOutput{Body: toEnrollmentDTO(e)}, nil
}

// GetCourseProgress returns course, module and lesson progress for the student
func (h *ProgressHandler) GetCourseProgress(ctx context.Context, input *operation.GetCourseProgressInput) (*operation.GetCourseProgressOutput, error) {
	studentID, err := getStudentIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	view, err := h.progressService.GetCourseProgress(ctx, studentID, input.CourseID)
	if err != nil {
		return nil, toHTTPError(err, "Failed to get course progress")
	}

	modules := make([]dto.ModuleProgressDTO, 0, len(view.Modules))
	for _, m := range view.Modules {
		lessons := make([]dto.LessonStateDTO, 0, len(m.Lessons))
		for _, l := range m.Lessons {
			lessons = append(lessons, dto.LessonStateDTO{
				LessonID:    l.Lesson.LessonID,
				Title:       l.Lesson.Title,
				IsRequired:  l.Lesson.IsRequired,
				IsCompleted: l.IsCompleted,
				CompletedAt: l.CompletedAt,
				TimeSpent:   l.TimeSpent,
			})
		}
		modules = append(modules, dto.ModuleProgressDTO{
			ModuleID:         m.Module.ModuleID,
			Title:            m.Module.Title,
			TotalLessons:     m.Summary.TotalLessons,
			CompletedLessons: m.Summary.CompletedLessons,
			Progress:         m.Summary.Progress,
			Lessons:          lessons,
		})
	}

	return &operation.GetCourseProgressOutput{
		Body: dto.CourseProgressResponseDTO{
			CourseID:         view.Course.CourseID,
			Title:            view.Course.Title,
			TotalLessons:     view.Summary.TotalLessons,
			CompletedLessons: view.Summary.CompletedLessons,
			Enrollment:       toEnrollmentDTO(&view.Enrollment),
			Modules:          modules,
		},
	}, nil
}

func toEnrollmentDTO(e *model.CourseEnrollment) dto.EnrollmentResponseDTO {
	return dto.EnrollmentResponseDTO{
		CourseID:       e.CourseID,
		Progress:       e.Progress,
		IsCompleted:    e.IsCompleted,
		CompletedAt:    e.CompletedAt,
		LastAccessedAt: e.LastAccessedAt,
	}
}
