package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courseprogress/internal/model"
	"courseprogress/internal/service"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// StaleLister finds enrollments whose lesson progress moved after their last write.
type StaleLister interface {
	ListStale(ctx context.Context, limit int) ([]model.StaleEnrollment, error)
}

// Recomputer rederives one enrollment.
type Recomputer interface {
	RecomputeCourseProgress(ctx context.Context, studentID, courseID string) (*model.CourseEnrollment, error)
}

// Job catches up enrollments left behind when a lesson write succeeded but the
// recompute after it did not.
type Job struct {
	lister     StaleLister
	recomputer Recomputer
	batchSize  int
	timeout    time.Duration
	logger     zerolog.Logger
}

func NewJob(lister StaleLister, recomputer Recomputer, batchSize int, timeout time.Duration, logger zerolog.Logger) *Job {
	return &Job{
		lister:     lister,
		recomputer: recomputer,
		batchSize:  batchSize,
		timeout:    timeout,
		logger:     logger.With().Str("orchestrator", "reconcile").Logger(),
	}
}

// RunOnce recomputes one batch of stale enrollments and returns how many were written.
func (j *Job) RunOnce(ctx context.Context) (int, error) {
	stale, err := j.lister.ListStale(ctx, j.batchSize)
	if err != nil {
		return 0, fmt.Errorf("listing stale enrollments: %w", err)
	}

	done := 0
	for _, s := range stale {
		if ctx.Err() != nil {
			break
		}
		_, err := j.recomputer.RecomputeCourseProgress(ctx, s.StudentID, s.CourseID)
		switch {
		case err == nil:
			done++
		case errors.Is(err, service.ErrVersionConflict):
			// Someone else is writing this enrollment right now.
			j.logger.Debug().Str("student_id", s.StudentID).Str("course_id", s.CourseID).Msg("Skipping contended enrollment")
		default:
			j.logger.Error().Err(err).Str("student_id", s.StudentID).Str("course_id", s.CourseID).Msg("Failed to reconcile enrollment")
		}
	}

	j.logger.Info().Int("stale", len(stale)).Int("recomputed", done).Msg("Reconcile pass finished")
	return done, nil
}

// Run schedules the job on the cron schedule until ctx is done. Overlapping runs are skipped.
func Run(ctx context.Context, logger zerolog.Logger, job *Job, spec string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(&logger))))
	_, err := c.AddFunc(spec, func() {
		jobCtx, cancel := context.WithTimeout(ctx, job.timeout)
		defer cancel()
		if _, err := job.RunOnce(jobCtx); err != nil {
			logger.Error().Err(err).Msg("Reconcile pass failed")
		}
	})
	if err != nil {
		return fmt.Errorf("scheduling reconcile job %q: %w", spec, err)
	}

	logger.Info().Str("spec", spec).Msg("Starting reconcile orchestrator")
	c.Start()
	<-ctx.Done()

	logger.Info().Msg("Shutting down reconcile orchestrator")
	<-c.Stop().Done()
	return nil
}
