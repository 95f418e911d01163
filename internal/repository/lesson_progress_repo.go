package repository

import (
	"context"
	"fmt"
	"time"

	"courseprogress/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LessonProgressRepository stores per-student, per-lesson progress
type LessonProgressRepository interface {
	// Upsert creates the row on first interaction and otherwise applies only
	// the non-nil fields of u. completed_at follows is_completed transitions.
	Upsert(ctx context.Context, u model.LessonProgressUpdate, now time.Time) (*model.LessonProgress, error)
	// ListForCourse returns the student's rows for lessons of the given course
	ListForCourse(ctx context.Context, studentID, courseID string) ([]model.LessonProgress, error)
}

type lessonProgressRepo struct {
	pool *pgxpool.Pool
}

// NewLessonProgressRepo creates a new LessonProgressRepository
func NewLessonProgressRepo(pool *pgxpool.Pool) LessonProgressRepository {
	return &lessonProgressRepo{pool: pool}
}

func (r *lessonProgressRepo) Upsert(ctx context.Context, u model.LessonProgressUpdate, now time.Time) (*model.LessonProgress, error) {
	query := `
		INSERT INTO lesson_progress (student_id, lesson_id, is_completed, completed_at, time_spent, created_at, updated_at)
		VALUES (
			$1, $2,
			COALESCE($3::boolean, FALSE),
			CASE WHEN COALESCE($3::boolean, FALSE) THEN $5::timestamptz END,
			COALESCE($4::integer, 0),
			$5, $5
		)
		ON CONFLICT (student_id, lesson_id) DO UPDATE SET
			is_completed = COALESCE($3::boolean, lesson_progress.is_completed),
			completed_at = CASE
				WHEN $3::boolean IS NULL THEN lesson_progress.completed_at
				WHEN $3::boolean AND lesson_progress.is_completed THEN lesson_progress.completed_at
				WHEN $3::boolean THEN $5::timestamptz
				ELSE NULL
			END,
			time_spent = COALESCE($4::integer, lesson_progress.time_spent),
			updated_at = $5
		RETURNING student_id, lesson_id, is_completed, completed_at, time_spent, created_at, updated_at
	`
	var p model.LessonProgress
	err := r.pool.QueryRow(ctx, query, u.StudentID, u.LessonID, u.IsCompleted, u.TimeSpent, now).Scan(
		&p.StudentID,
		&p.LessonID,
		&p.IsCompleted,
		&p.CompletedAt,
		&p.TimeSpent,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upserting progress for lesson %s: %w", u.LessonID, err)
	}
	return &p, nil
}

func (r *lessonProgressRepo) ListForCourse(ctx context.Context, studentID, courseID string) ([]model.LessonProgress, error) {
	query := `
		SELECT lp.student_id, lp.lesson_id, lp.is_completed, lp.completed_at, lp.time_spent, lp.created_at, lp.updated_at
		FROM lesson_progress lp
		JOIN lessons l ON l.id = lp.lesson_id
		JOIN modules m ON m.id = l.module_id
		WHERE lp.student_id = $1 AND m.course_id = $2
	`
	rows, err := r.pool.Query(ctx, query, studentID, courseID)
	if err != nil {
		return nil, fmt.Errorf("querying progress for course %s: %w", courseID, err)
	}
	defer rows.Close()

	progress := []model.LessonProgress{}
	for rows.Next() {
		var p model.LessonProgress
		if err := rows.Scan(
			&p.StudentID,
			&p.LessonID,
			&p.IsCompleted,
			&p.CompletedAt,
			&p.TimeSpent,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning lesson progress row: %w", err)
		}
		progress = append(progress, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating lesson progress rows: %w", err)
	}
	return progress, nil
}
