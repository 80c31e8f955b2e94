package repository

import (
	"context"

	"github.com/roastery/cafemart/internal/models"
	"github.com/roastery/cafemart/internal/repository/postgres"
)

const (
	insertNotificationQuery = `
						INSERT INTO notifications (id, user_id, type, title, message, read, link, created_at)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
	selectNotificationsByUserIDQuery = `
						SELECT id, user_id, type, title, message, read, link, created_at
						FROM notifications
						WHERE user_id = $1
						ORDER BY created_at DESC
`
	markNotificationReadQuery = `
						UPDATE notifications
						SET read = true
						WHERE id = $1 AND user_id = $2
`
	markAllNotificationsReadQuery = `
						UPDATE notifications
						SET read = true
						WHERE user_id = $1 AND read = false
`
	deleteNotificationsByUserIDQuery = `
						DELETE FROM notifications
						WHERE user_id = $1
`
	existsNotificationByLinkQuery = `
						SELECT EXISTS (
							SELECT 1 FROM notifications
							WHERE user_id = $1 AND link = $2
						)
`
)

// NotificationRepository implements NotificationRepository interface
type NotificationRepository struct {
	db *postgres.DB
}

// NewNotificationRepository creates new NotificationRepository instance
func NewNotificationRepository(db *postgres.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create persists notification, joining the atomic unit bound to ctx
func (nr *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	_, err := nr.db.Exec(ctx, insertNotificationQuery,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.Read, n.Link, n.CreatedAt)
	return err
}

// GetByUserID returns user notifications, newest first
func (nr *NotificationRepository) GetByUserID(ctx context.Context, userID string) ([]models.Notification, error) {
	rows, err := nr.db.Query(ctx, selectNotificationsByUserIDQuery, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification

	for rows.Next() {
		n := models.Notification{}
		err = rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Read, &n.Link, &n.CreatedAt)
		if err != nil {
			continue
		}
		notifications = append(notifications, n)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return notifications, nil
}

// MarkRead sets read flag of one notification owned by user
func (nr *NotificationRepository) MarkRead(ctx context.Context, id, userID string) error {
	cmd, err := nr.db.Exec(ctx, markNotificationReadQuery, id, userID)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrDataNotFound
	}

	return nil
}

// MarkAllRead sets read flag of all unread user notifications
func (nr *NotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	_, err := nr.db.Exec(ctx, markAllNotificationsReadQuery, userID)
	return err
}

// DeleteByUserID removes all user notifications
func (nr *NotificationRepository) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := nr.db.Exec(ctx, deleteNotificationsByUserIDQuery, userID)
	return err
}

// ExistsByLink reports whether user already has a notification
// with the given stable link key
func (nr *NotificationRepository) ExistsByLink(ctx context.Context, userID, link string) (bool, error) {
	var exists bool
	err := nr.db.QueryRow(ctx, existsNotificationByLinkQuery, userID, link).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}
