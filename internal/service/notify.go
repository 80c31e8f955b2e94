package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/roastery/cafemart/internal/logger"
	"github.com/roastery/cafemart/internal/metrics"
	"github.com/roastery/cafemart/internal/models"
	"go.uber.org/zap"
)

// NotificationRepository is interface for interacting with notification data
type NotificationRepository interface {
	// Create persists notification
	Create(ctx context.Context, n *models.Notification) error
	// GetByUserID returns user notifications
	GetByUserID(ctx context.Context, userID string) ([]models.Notification, error)
	// MarkRead sets read flag of one user notification
	MarkRead(ctx context.Context, id, userID string) error
	// MarkAllRead sets read flag of all unread user notifications
	MarkAllRead(ctx context.Context, userID string) error
	// DeleteByUserID removes all user notifications
	DeleteByUserID(ctx context.Context, userID string) error
	// ExistsByLink reports whether a notification with the link key exists
	ExistsByLink(ctx context.Context, userID, link string) (bool, error)
}

// Pusher is real-time push primitive. It is fire-and-forget and may
// silently no-op when the user has no live connection.
type Pusher interface {
	PushToUser(userID string, payload any) bool
}

// NotificationService persists notifications and mirrors them to
// live client sessions
type NotificationService struct {
	repo NotificationRepository
	hub  Pusher
	now  func() time.Time
}

// NewNotificationService creates new NotificationService instance
func NewNotificationService(repo NotificationRepository, hub Pusher) *NotificationService {
	return &NotificationService{
		repo: repo,
		hub:  hub,
		now:  time.Now,
	}
}

// pushEvent is real-time payload mirroring a persisted notification
type pushEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Link      string `json:"link,omitempty"`
	CreatedAt string `json:"created_at"`
}

// Notify persists a notification and attempts best-effort real-time
// delivery. Persistence joins the atomic unit bound to ctx, so a failed
// write aborts the enclosing transition. Push failure or absence of a
// live session is logged and never surfaced to the caller.
func (ns *NotificationService) Notify(ctx context.Context, userID, ntype, title, message, link string) error {
	n := models.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      ntype,
		Title:     title,
		Message:   message,
		Link:      link,
		CreatedAt: ns.now(),
	}

	if err := ns.repo.Create(ctx, &n); err != nil {
		return err
	}
	metrics.NotificationsPersistedTotal.Inc()

	if ns.hub.PushToUser(userID, pushEvent{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		CreatedAt: n.CreatedAt.Format(time.RFC3339),
	}) {
		metrics.NotificationsPushedTotal.Inc()
	} else {
		metrics.NotificationsMissedTotal.Inc()
		logger.Log.Debug("no live session for push",
			zap.String("user_id", userID),
			zap.String("type", ntype))
	}

	return nil
}

// ListUserNotifications returns user notifications, newest first
func (ns *NotificationService) ListUserNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	return ns.repo.GetByUserID(ctx, userID)
}

// MarkRead sets read flag of one user notification
func (ns *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	return ns.repo.MarkRead(ctx, id, userID)
}

// MarkAllRead sets read flag of all unread user notifications
func (ns *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	return ns.repo.MarkAllRead(ctx, userID)
}

// DeleteAll removes all user notifications
func (ns *NotificationService) DeleteAll(ctx context.Context, userID string) error {
	return ns.repo.DeleteByUserID(ctx, userID)
}
