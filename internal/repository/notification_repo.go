package repository

import (
	"context"
	"database/sql"
	"fmt"

	"courseprogress/internal/model"
)

// NotificationRepository writes to the notification sink table. It runs on the
// queue worker's database/sql connection.
type NotificationRepository interface {
	// Create inserts n unless a row with the same event ID exists. It reports
	// whether a row was written.
	Create(ctx context.Context, n *model.Notification) (bool, error)
}

type notificationRepo struct {
	db *sql.DB
}

func NewNotificationRepo(db *sql.DB) NotificationRepository {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) Create(ctx context.Context, n *model.Notification) (bool, error) {
	query := `
		INSERT INTO notifications (event_id, user_id, type, title, payload)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		ON CONFLICT (event_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, n.EventID, n.UserID, n.Type, n.Title, string(n.Payload))
	if err != nil {
		return false, fmt.Errorf("creating notification for event %s: %w", n.EventID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading affected rows for event %s: %w", n.EventID, err)
	}
	return affected > 0, nil
}
