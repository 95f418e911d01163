package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courseprogress/internal/model"
	"courseprogress/internal/repository"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// ProgressService records lesson progress and keeps the enrollment aggregate
// consistent with it. Every operation takes the student explicitly.
type ProgressService interface {
	// RecordProgress upserts one lesson progress row without recomputing the course
	RecordProgress(ctx context.Context, in RecordProgressInput) (*model.LessonProgress, error)
	// RecomputeCourseProgress rederives the enrollment from the student's lesson rows
	RecomputeCourseProgress(ctx context.Context, studentID, courseID string) (*model.CourseEnrollment, error)
	// MarkLesson records progress and then recomputes the lesson's course
	MarkLesson(ctx context.Context, in RecordProgressInput) (*model.LessonProgress, error)
	// GetCourseProgress returns the enrollment with per-module and per-lesson state
	GetCourseProgress(ctx context.Context, studentID, courseID string) (*CourseProgressView, error)
}

// RecordProgressInput is a partial update: nil fields are not touched.
// TimeSpent is the new cumulative total in seconds, not a delta.
type RecordProgressInput struct {
	StudentID   string `json:"student_id" validate:"required"`
	LessonID    string `json:"lesson_id" validate:"required"`
	IsCompleted *bool  `json:"is_completed,omitempty"`
	TimeSpent   *int   `json:"time_spent,omitempty" validate:"omitempty,gte=0"`
}

// CourseProgressView is the read model rendered by progress bars and badges.
type CourseProgressView struct {
	Course     model.Course
	Enrollment model.CourseEnrollment
	Summary    ProgressSummary
	Modules    []ModuleProgressView
}

type ModuleProgressView struct {
	Module  model.Module
	Summary ModuleSummary
	Lessons []LessonProgressView
}

type LessonProgressView struct {
	Lesson      model.Lesson
	IsCompleted bool
	CompletedAt *time.Time
	TimeSpent   int
}

type progressService struct {
	catalog       repository.CatalogRepository
	lessons       repository.LessonProgressRepository
	enrollments   repository.EnrollmentRepository
	trigger       CompletionTrigger
	validate      *validator.Validate
	writeAttempts int
	now           func() time.Time
	logger        zerolog.Logger
}

// NewProgressService creates a new ProgressService. writeAttempts bounds the
// compare-and-set retries on the enrollment row.
func NewProgressService(
	catalog repository.CatalogRepository,
	lessons repository.LessonProgressRepository,
	enrollments repository.EnrollmentRepository,
	trigger CompletionTrigger,
	validate *validator.Validate,
	writeAttempts int,
	logger zerolog.Logger,
) ProgressService {
	if writeAttempts < 1 {
		writeAttempts = 1
	}
	return &progressService{
		catalog:       catalog,
		lessons:       lessons,
		enrollments:   enrollments,
		trigger:       trigger,
		validate:      validate,
		writeAttempts: writeAttempts,
		now:           time.Now,
		logger:        logger.With().Str("service", "ProgressService").Logger(),
	}
}

func (s *progressService) RecordProgress(ctx context.Context, in RecordProgressInput) (*model.LessonProgress, error) {
	p, _, err := s.record(ctx, in)
	return p, err
}

func (s *progressService) record(ctx context.Context, in RecordProgressInput) (*model.LessonProgress, *model.LessonRef, error) {
	if err := s.validateInput(in); err != nil {
		return nil, nil, err
	}

	ref, err := s.catalog.GetLessonRef(ctx, in.LessonID)
	if err != nil {
		s.logger.Error().Err(err).Str("lesson_id", in.LessonID).Msg("Failed to resolve lesson")
		return nil, nil, err
	}
	if ref == nil {
		return nil, nil, &NotFoundError{Resource: "lesson", ID: in.LessonID}
	}

	p, err := s.lessons.Upsert(ctx, model.LessonProgressUpdate{
		StudentID:   in.StudentID,
		LessonID:    in.LessonID,
		IsCompleted: in.IsCompleted,
		TimeSpent:   in.TimeSpent,
	}, s.now())
	if err != nil {
		s.logger.Error().Err(err).Str("student_id", in.StudentID).Str("lesson_id", in.LessonID).Msg("Failed to record lesson progress")
		return nil, nil, err
	}
	return p, ref, nil
}

func (s *progressService) validateInput(in RecordProgressInput) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := fe.Tag()
		switch fe.Tag() {
		case "required":
			reason = "is required"
		case "gte":
			reason = "must be greater than or equal to " + fe.Param()
		}
		return &ValidationError{Field: fe.Field(), Reason: reason}
	}
	return &ValidationError{Field: "input", Reason: err.Error()}
}

func (s *progressService) RecomputeCourseProgress(ctx context.Context, studentID, courseID string) (*model.CourseEnrollment, error) {
	tree, err := s.catalog.GetCourseTree(ctx, courseID)
	if err != nil {
		s.logger.Error().Err(err).Str("course_id", courseID).Msg("Failed to load course tree")
		return nil, err
	}
	if tree == nil {
		return nil, &NotFoundError{Resource: "course", ID: courseID}
	}

	for attempt := 1; attempt <= s.writeAttempts; attempt++ {
		// The previous state must be read before the write to detect the transition.
		prev, err := s.enrollments.GetEnrollment(ctx, studentID, courseID)
		if err != nil {
			s.logger.Error().Err(err).Str("course_id", courseID).Msg("Failed to get enrollment")
			return nil, err
		}
		if prev == nil {
			return nil, &NotFoundError{Resource: "enrollment", ID: courseID}
		}

		rows, err := s.lessons.ListForCourse(ctx, studentID, courseID)
		if err != nil {
			s.logger.Error().Err(err).Str("course_id", courseID).Msg("Failed to list lesson progress")
			return nil, err
		}

		summary, _ := Summarize(tree, rows)
		next, transitioned := applySummary(*prev, summary, s.now())

		written, err := s.enrollments.UpdateProgress(ctx, &next)
		if err != nil {
			s.logger.Error().Err(err).Str("course_id", courseID).Msg("Failed to write enrollment progress")
			return nil, err
		}
		if !written {
			s.logger.Warn().
				Str("student_id", studentID).
				Str("course_id", courseID).
				Int64("version", prev.Version).
				Int("attempt", attempt).
				Msg("Enrollment version conflict, recomputing")
			continue
		}

		if transitioned {
			s.trigger.OnCompletionTransition(ctx, studentID, courseID, tree.Course.Title, *next.CompletedAt)
		}
		return &next, nil
	}

	return nil, fmt.Errorf("recomputing course %s after %d attempts: %w", courseID, s.writeAttempts, ErrVersionConflict)
}

func (s *progressService) MarkLesson(ctx context.Context, in RecordProgressInput) (*model.LessonProgress, error) {
	p, ref, err := s.record(ctx, in)
	if err != nil {
		return nil, err
	}
	// A failure here leaves the lesson row ahead of the enrollment until the
	// next recompute.
	if _, err := s.RecomputeCourseProgress(ctx, in.StudentID, ref.CourseID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *progressService) GetCourseProgress(ctx context.Context, studentID, courseID string) (*CourseProgressView, error) {
	tree, err := s.catalog.GetCourseTree(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, &NotFoundError{Resource: "course", ID: courseID}
	}
	enrollment, err := s.enrollments.GetEnrollment(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}
	if enrollment == nil {
		return nil, &NotFoundError{Resource: "enrollment", ID: courseID}
	}
	rows, err := s.lessons.ListForCourse(ctx, studentID, courseID)
	if err != nil {
		return nil, err
	}

	byLesson := make(map[string]model.LessonProgress, len(rows))
	for _, p := range rows {
		byLesson[p.LessonID] = p
	}

	summary, moduleSummaries := Summarize(tree, rows)
	view := &CourseProgressView{
		Course:     tree.Course,
		Enrollment: *enrollment,
		Summary:    summary,
		Modules:    make([]ModuleProgressView, 0, len(tree.Modules)),
	}
	for i, m := range tree.Modules {
		mv := ModuleProgressView{Module: m, Summary: moduleSummaries[i]}
		for _, l := range m.Lessons {
			lv := LessonProgressView{Lesson: l}
			if p, ok := byLesson[l.LessonID]; ok {
				lv.IsCompleted = p.IsCompleted
				lv.CompletedAt = p.CompletedAt
				lv.TimeSpent = p.TimeSpent
			}
			mv.Lessons = append(mv.Lessons, lv)
		}
		view.Modules = append(view.Modules, mv)
	}
	return view, nil
}
