package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"courseprogress/internal/model"
)

// DeadLetterRepository stores completion events no transport could deliver.
// It shares the sink's database/sql connection so replays and sink writes
// run on the same handle.
type DeadLetterRepository interface {
	// Record inserts d unless a row for the same event exists. It reports
	// whether a row was written.
	Record(ctx context.Context, d *model.DeadLetteredCompletion) (bool, error)
	// ListPending returns the oldest pending rows first.
	ListPending(ctx context.Context, limit int) ([]model.DeadLetteredCompletion, error)
	MarkReplayed(ctx context.Context, id string, at time.Time) error
}

type deadLetterRepo struct {
	db *sql.DB
}

func NewDeadLetterRepo(db *sql.DB) DeadLetterRepository {
	return &deadLetterRepo{db: db}
}

func (r *deadLetterRepo) Record(ctx context.Context, d *model.DeadLetteredCompletion) (bool, error) {
	query := `
		INSERT INTO dead_lettered_completions
			(event_id, student_id, course_id, source, message_id, delivery_attempts, payload, attributes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, NULLIF($8, '')::jsonb, $9)
		ON CONFLICT (event_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		d.EventID, d.StudentID, d.CourseID, d.Source, d.MessageID, d.DeliveryAttempts,
		string(d.Payload), string(d.Attributes), d.Status,
	)
	if err != nil {
		return false, fmt.Errorf("recording dead letter from %s: %w", d.Source, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading affected rows for dead letter from %s: %w", d.Source, err)
	}
	return affected > 0, nil
}

func (r *deadLetterRepo) ListPending(ctx context.Context, limit int) ([]model.DeadLetteredCompletion, error) {
	query := `
		SELECT id, event_id, student_id, course_id, source, message_id, delivery_attempts,
		       payload, attributes, status, created_at, replayed_at
		FROM dead_lettered_completions
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, model.DeadLetterPending, limit)
	if err != nil {
		return nil, fmt.Errorf("listing pending dead letters: %w", err)
	}
	defer rows.Close()

	var out []model.DeadLetteredCompletion
	for rows.Next() {
		var d model.DeadLetteredCompletion
		if err := rows.Scan(
			&d.ID, &d.EventID, &d.StudentID, &d.CourseID, &d.Source, &d.MessageID, &d.DeliveryAttempts,
			&d.Payload, &d.Attributes, &d.Status, &d.CreatedAt, &d.ReplayedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning dead letter: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dead letters: %w", err)
	}
	return out, nil
}

func (r *deadLetterRepo) MarkReplayed(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE dead_lettered_completions SET status = $1, replayed_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, model.DeadLetterReplayed, at, id); err != nil {
		return fmt.Errorf("marking dead letter %s replayed: %w", id, err)
	}
	return nil
}
