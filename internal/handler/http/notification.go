package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/roastery/cafemart/internal/models"
)

type NotificationService interface {
	// ListUserNotifications returns notifications of the user, newest first
	ListUserNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	// MarkRead marks one user notification as read
	MarkRead(ctx context.Context, id, userID string) error
	// MarkAllRead marks all user notifications as read
	MarkAllRead(ctx context.Context, userID string) error
	// DeleteAll removes all user notifications
	DeleteAll(ctx context.Context, userID string) error
}

// NotificationHandler represents HTTP handler for notification requests
type NotificationHandler struct {
	svc NotificationService
}

// NewNotificationHandler creates new NotificationHandler instance
func NewNotificationHandler(svc NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

type notificationResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Read      bool   `json:"read"`
	Link      string `json:"link,omitempty"`
	CreatedAt string `json:"created_at"`
}

// List returns notifications of the current user
// 200 — успешная обработка запроса;
// 204 — нет данных для ответа;
// 401 — пользователь не авторизован;
// 500 — внутренняя ошибка сервера.
func (nh *NotificationHandler) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		notifications, err := nh.svc.ListUserNotifications(r.Context(), payload.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		if len(notifications) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		resp := make([]notificationResponse, 0, len(notifications))
		for _, n := range notifications {
			resp = append(resp, notificationResponse{
				ID:        n.ID,
				Type:      n.Type,
				Title:     n.Title,
				Message:   n.Message,
				Read:      n.Read,
				Link:      n.Link,
				CreatedAt: n.CreatedAt.Format(time.RFC3339),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if err := json.NewEncoder(w).Encode(resp); err != nil {
			return
		}
	}
}

// MarkRead marks one notification as read
// 200 — успешная обработка запроса;
// 401 — пользователь не авторизован;
// 404 — уведомление не найдено;
// 500 — внутренняя ошибка сервера.
func (nh *NotificationHandler) MarkRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		err := nh.svc.MarkRead(r.Context(), chi.URLParam(r, "id"), payload.UserID)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrDataNotFound):
				http.Error(w, "notification not found", http.StatusNotFound)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

// MarkAllRead marks all notifications of the current user as read
// 200 — успешная обработка запроса;
// 401 — пользователь не авторизован;
// 500 — внутренняя ошибка сервера.
func (nh *NotificationHandler) MarkAllRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := nh.svc.MarkAllRead(r.Context(), payload.UserID); err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

// DeleteAll removes all notifications of the current user
// 204 — уведомления удалены;
// 401 — пользователь не авторизован;
// 500 — внутренняя ошибка сервера.
func (nh *NotificationHandler) DeleteAll() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := nh.svc.DeleteAll(r.Context(), payload.UserID); err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
