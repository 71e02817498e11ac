package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/database"
	"github.com/ningxiarongchen-lgtm/project-ark-sub004/internal/errors"
)

// NotificationRepository stores per-recipient notification records. The
// dispatcher is the only component that writes here.
type NotificationRepository struct {
	db *database.DB
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts one notification record.
func (r *NotificationRepository) Create(ctx context.Context, n *Notification) error {
	query := `
		INSERT INTO notifications (recipient_id, title, message, link, priority, type)
		VALUES ($1, $2, $3, $4, $5::notification_priority, $6)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		n.RecipientID,
		n.Title,
		n.Message,
		n.Link,
		n.Priority,
		n.Type,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create notification")
	}
	return nil
}

// ListByRecipient returns a user's notifications, newest first.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]*Notification, error) {
	query := `
		SELECT id, recipient_id, title, message, link, priority, type, read, created_at
		FROM notifications
		WHERE recipient_id = $1
	`
	if unreadOnly {
		query += " AND read = FALSE"
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.Query(ctx, query, recipientID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list notifications")
	}
	defer rows.Close()

	var notifications []*Notification
	for rows.Next() {
		n := &Notification{}
		err := rows.Scan(
			&n.ID,
			&n.RecipientID,
			&n.Title,
			&n.Message,
			&n.Link,
			&n.Priority,
			&n.Type,
			&n.Read,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan notification")
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkRead flags one notification as read for its recipient.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID string) error {
	query := `
		UPDATE notifications
		SET read = TRUE
		WHERE id = $1 AND recipient_id = $2
		RETURNING id
	`

	var returnedID string
	err := r.db.QueryRow(ctx, query, id, recipientID).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.NotFound("notification", id)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to mark notification read")
	}
	return nil
}
