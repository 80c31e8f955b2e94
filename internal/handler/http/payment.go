package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/roastery/cafemart/internal/models"
)

type PaymentService interface {
	// Verify confirms pending e-wallet payment and advances the order
	Verify(ctx context.Context, orderID string, actor *models.TokenPayload) (*models.Order, error)
	// Reject declines pending e-wallet payment and cancels the order
	Reject(ctx context.Context, orderID string, actor *models.TokenPayload) (*models.Order, error)
}

// PaymentHandler represents HTTP handler for payment verification requests
type PaymentHandler struct {
	svc PaymentService
}

// NewPaymentHandler creates new PaymentHandler instance
func NewPaymentHandler(svc PaymentService) *PaymentHandler {
	return &PaymentHandler{svc: svc}
}

// Verify confirms e-wallet payment
// 200 — платёж подтверждён либо уже был обработан ранее;
// 401 — пользователь не авторизован;
// 404 — заказ не найден;
// 422 — заказ оплачен не через e-wallet;
// 500 — внутренняя ошибка сервера.
func (ph *PaymentHandler) Verify() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		order, err := ph.svc.Verify(r.Context(), chi.URLParam(r, "id"), payload)
		if err != nil && !errors.Is(err, models.ErrAlreadyProcessed) {
			switch {
			case errors.Is(err, models.ErrOrderNotFound):
				http.Error(w, "order not found", http.StatusNotFound)
			case errors.Is(err, models.ErrNotEWalletOrder):
				http.Error(w, "order is not paid with e-wallet", http.StatusUnprocessableEntity)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if err := json.NewEncoder(w).Encode(newOrderResponse(order)); err != nil {
			return
		}
	}
}

// Reject declines e-wallet payment
// 200 — платёж отклонён либо уже был обработан ранее;
// 401 — пользователь не авторизован;
// 404 — заказ не найден;
// 422 — заказ оплачен не через e-wallet;
// 500 — внутренняя ошибка сервера.
func (ph *PaymentHandler) Reject() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		order, err := ph.svc.Reject(r.Context(), chi.URLParam(r, "id"), payload)
		if err != nil && !errors.Is(err, models.ErrAlreadyProcessed) {
			switch {
			case errors.Is(err, models.ErrOrderNotFound):
				http.Error(w, "order not found", http.StatusNotFound)
			case errors.Is(err, models.ErrNotEWalletOrder):
				http.Error(w, "order is not paid with e-wallet", http.StatusUnprocessableEntity)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if err := json.NewEncoder(w).Encode(newOrderResponse(order)); err != nil {
			return
		}
	}
}
