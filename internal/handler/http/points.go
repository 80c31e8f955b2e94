package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/roastery/cafemart/internal/models"
)

type PointsService interface {
	// GetBalance returns current user points balance
	GetBalance(ctx context.Context, userID string) (int, error)
	// GetHistory returns user points ledger entries
	GetHistory(ctx context.Context, userID string) ([]models.PointsEntry, error)
	// Redeem spends points off the balance and records a ledger entry
	Redeem(ctx context.Context, userID string, amount int) (int, error)
}

// PointsHandler represents HTTP handler for loyalty points requests
type PointsHandler struct {
	svc PointsService
}

// NewPointsHandler creates new PointsHandler instance
func NewPointsHandler(svc PointsService) *PointsHandler {
	return &PointsHandler{svc: svc}
}

type balanceResponse struct {
	Balance int `json:"balance"`
}

// GetBalance returns current points balance
// 200 — успешная обработка запроса;
// 401 — пользователь не авторизован;
// 500 — внутренняя ошибка сервера.
func (ph *PointsHandler) GetBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		balance, err := ph.svc.GetBalance(r.Context(), payload.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if err := json.NewEncoder(w).Encode(balanceResponse{Balance: balance}); err != nil {
			return
		}
	}
}

type pointsEntryResponse struct {
	ID        string `json:"id"`
	Action    string `json:"action"`
	Points    int    `json:"points"`
	OrderID   string `json:"order_id,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
	CreatedAt string `json:"created_at"`
}

// GetHistory returns points ledger of the current user
// 200 — успешная обработка запроса;
// 204 — нет данных для ответа;
// 401 — пользователь не авторизован;
// 500 — внутренняя ошибка сервера.
func (ph *PointsHandler) GetHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		entries, err := ph.svc.GetHistory(r.Context(), payload.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		if len(entries) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		resp := make([]pointsEntryResponse, 0, len(entries))
		for _, e := range entries {
			er := pointsEntryResponse{
				ID:        e.ID,
				Action:    e.Action,
				Points:    e.Points,
				CreatedAt: e.CreatedAt.Format(time.RFC3339),
			}
			if e.OrderID != nil {
				er.OrderID = *e.OrderID
			}
			if e.ExpiresAt != nil {
				er.ExpiresAt = e.ExpiresAt.Format(time.RFC3339)
			}
			resp = append(resp, er)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if err := json.NewEncoder(w).Encode(resp); err != nil {
			return
		}
	}
}

type redeemRequest struct {
	Points int `json:"points"`
}

// Redeem spends points off the current user balance
// 200 — баллы списаны;
// 400 — неверный формат запроса;
// 401 — пользователь не авторизован;
// 402 — недостаточно баллов на счёте;
// 500 — внутренняя ошибка сервера.
func (ph *PointsHandler) Redeem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req redeemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Points <= 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		balance, err := ph.svc.Redeem(r.Context(), payload.UserID, req.Points)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrInsufficientBalance):
				http.Error(w, "insufficient points balance", http.StatusPaymentRequired)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if err := json.NewEncoder(w).Encode(balanceResponse{Balance: balance}); err != nil {
			return
		}
	}
}
