package repository

import (
	"context"
	"errors"
	"fmt"

	"courseprogress/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CatalogRepository reads the course/module/lesson tree. It never writes.
type CatalogRepository interface {
	// GetCourseTree returns the course with its modules and lessons ordered by order_index
	GetCourseTree(ctx context.Context, courseID string) (*model.CourseTree, error)
	// GetLessonRef resolves the module and course a lesson belongs to
	GetLessonRef(ctx context.Context, lessonID string) (*model.LessonRef, error)
}

type catalogRepo struct {
	pool *pgxpool.Pool
}

// NewCatalogRepo creates a new CatalogRepository
func NewCatalogRepo(pool *pgxpool.Pool) CatalogRepository {
	return &catalogRepo{pool: pool}
}

func (r *catalogRepo) GetCourseTree(ctx context.Context, courseID string) (*model.CourseTree, error) {
	var tree model.CourseTree
	err := r.pool.QueryRow(ctx, `
		SELECT id, title, created_at, updated_at
		FROM courses
		WHERE id = $1
	`, courseID).Scan(
		&tree.Course.CourseID,
		&tree.Course.Title,
		&tree.Course.CreatedAt,
		&tree.Course.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting course %s: %w", courseID, err)
	}

	// Modules without lessons still appear, with NULL lesson columns.
	rows, err := r.pool.Query(ctx, `
		SELECT m.id, m.title, m.order_index,
		       l.id, l.title, l.order_index, l.is_required, l.duration
		FROM modules m
		LEFT JOIN lessons l ON l.module_id = m.id
		WHERE m.course_id = $1
		ORDER BY m.order_index ASC, l.order_index ASC
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("querying lesson tree for course %s: %w", courseID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			moduleID, moduleTitle string
			moduleOrder           int
			lessonID, lessonTitle *string
			lessonOrder           *int
			isRequired            *bool
			duration              *int
		)
		if err := rows.Scan(&moduleID, &moduleTitle, &moduleOrder,
			&lessonID, &lessonTitle, &lessonOrder, &isRequired, &duration); err != nil {
			return nil, fmt.Errorf("scanning lesson tree row: %w", err)
		}
		n := len(tree.Modules)
		if n == 0 || tree.Modules[n-1].ModuleID != moduleID {
			tree.Modules = append(tree.Modules, model.Module{
				ModuleID:   moduleID,
				CourseID:   courseID,
				Title:      moduleTitle,
				OrderIndex: moduleOrder,
			})
			n++
		}
		if lessonID == nil {
			continue
		}
		tree.Modules[n-1].Lessons = append(tree.Modules[n-1].Lessons, model.Lesson{
			LessonID:   *lessonID,
			ModuleID:   moduleID,
			Title:      deref(lessonTitle),
			OrderIndex: deref(lessonOrder),
			IsRequired: deref(isRequired),
			Duration:   duration,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating lesson tree rows: %w", err)
	}
	return &tree, nil
}

func (r *catalogRepo) GetLessonRef(ctx context.Context, lessonID string) (*model.LessonRef, error) {
	var ref model.LessonRef
	err := r.pool.QueryRow(ctx, `
		SELECT l.id, l.module_id, m.course_id
		FROM lessons l
		JOIN modules m ON m.id = l.module_id
		WHERE l.id = $1
	`, lessonID).Scan(&ref.LessonID, &ref.ModuleID, &ref.CourseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting lesson %s: %w", lessonID, err)
	}
	return &ref, nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
