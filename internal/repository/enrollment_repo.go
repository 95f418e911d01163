package repository

import (
	"context"
	"errors"
	"fmt"

	"courseprogress/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EnrollmentRepository reads and writes the enrollment aggregate
type EnrollmentRepository interface {
	GetEnrollment(ctx context.Context, studentID, courseID string) (*model.CourseEnrollment, error)
	// UpdateProgress writes the derived fields only if the stored version still
	// equals e.Version. It reports false when another writer got there first.
	// On success e.Version and e.UpdatedAt hold the new values.
	UpdateProgress(ctx context.Context, e *model.CourseEnrollment) (bool, error)
	// ListStale returns enrollments with lesson progress newer than their last write
	ListStale(ctx context.Context, limit int) ([]model.StaleEnrollment, error)
}

type enrollmentRepo struct {
	pool *pgxpool.Pool
}

// NewEnrollmentRepo creates a new EnrollmentRepository
func NewEnrollmentRepo(pool *pgxpool.Pool) EnrollmentRepository {
	return &enrollmentRepo{pool: pool}
}

func (r *enrollmentRepo) GetEnrollment(ctx context.Context, studentID, courseID string) (*model.CourseEnrollment, error) {
	query := `
		SELECT id, student_id, course_id, progress, is_completed, completed_at, last_accessed_at, version, created_at, updated_at
		FROM course_enrollments
		WHERE student_id = $1 AND course_id = $2
	`
	var e model.CourseEnrollment
	err := r.pool.QueryRow(ctx, query, studentID, courseID).Scan(
		&e.EnrollmentID,
		&e.StudentID,
		&e.CourseID,
		&e.Progress,
		&e.IsCompleted,
		&e.CompletedAt,
		&e.LastAccessedAt,
		&e.Version,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting enrollment for course %s: %w", courseID, err)
	}
	return &e, nil
}

func (r *enrollmentRepo) UpdateProgress(ctx context.Context, e *model.CourseEnrollment) (bool, error) {
	query := `
		UPDATE course_enrollments
		SET progress = $1, is_completed = $2, completed_at = $3, last_accessed_at = $4,
		    version = version + 1, updated_at = NOW()
		WHERE student_id = $5 AND course_id = $6 AND version = $7
		RETURNING version, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		e.Progress, e.IsCompleted, e.CompletedAt, e.LastAccessedAt,
		e.StudentID, e.CourseID, e.Version,
	).Scan(&e.Version, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("updating enrollment progress for course %s: %w", e.CourseID, err)
	}
	return true, nil
}

func (r *enrollmentRepo) ListStale(ctx context.Context, limit int) ([]model.StaleEnrollment, error) {
	query := `
		SELECT e.student_id, e.course_id
		FROM course_enrollments e
		WHERE EXISTS (
			SELECT 1
			FROM lesson_progress lp
			JOIN lessons l ON l.id = lp.lesson_id
			JOIN modules m ON m.id = l.module_id
			WHERE lp.student_id = e.student_id
			  AND m.course_id = e.course_id
			  AND lp.updated_at > e.updated_at
		)
		ORDER BY e.updated_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("querying stale enrollments: %w", err)
	}
	defer rows.Close()

	var stale []model.StaleEnrollment
	for rows.Next() {
		var s model.StaleEnrollment
		if err := rows.Scan(&s.StudentID, &s.CourseID); err != nil {
			return nil, fmt.Errorf("scanning stale enrollment row: %w", err)
		}
		stale = append(stale, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stale enrollment rows: %w", err)
	}
	return stale, nil
}
