package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/roastery/cafemart/internal/models"
	"github.com/shopspring/decimal"
)

type OrderService interface {
	// Create places a new order with checkout side effects
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	// GetOrder returns order with items by id
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	// ListUserOrders returns list of user orders
	ListUserOrders(ctx context.Context, userID string) ([]models.Order, error)
	// GetStatusHistory returns append-only status log of the order
	GetStatusHistory(ctx context.Context, orderID string) ([]models.StatusHistory, error)
	// Transition applies order status transition with side effects
	Transition(ctx context.Context, orderID, target string, actor *models.TokenPayload) (*models.Order, error)
}

// OrderHandler represents HTTP handler for order-related requests
type OrderHandler struct {
	svc OrderService
}

// NewOrderHandler creates new OrderHandler instance
func NewOrderHandler(svc OrderService) *OrderHandler {
	return &OrderHandler{svc: svc}
}

type orderAddOnRequest struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

type orderItemRequest struct {
	ProductID string              `json:"product_id"`
	Name      string              `json:"name"`
	Quantity  int                 `json:"quantity"`
	UnitPrice string              `json:"unit_price"`
	Variant   string              `json:"variant"`
	AddOns    []orderAddOnRequest `json:"addons"`
}

type createOrderRequest struct {
	Items          []orderItemRequest `json:"items"`
	DeliveryMethod string             `json:"delivery_method"`
	PaymentMethod  string             `json:"payment_method"`
	PointsUsed     int                `json:"points_used"`
}

type orderItemResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Variant   string `json:"variant,omitempty"`
}

type orderResponse struct {
	ID             string              `json:"id"`
	Status         string              `json:"status"`
	DeliveryMethod string              `json:"delivery_method"`
	PaymentMethod  string              `json:"payment_method"`
	PaymentStatus  string              `json:"payment_status"`
	Total          string              `json:"total"`
	PointsUsed     int                 `json:"points_used"`
	PointsEarned   int                 `json:"points_earned"`
	Items          []orderItemResponse `json:"items,omitempty"`
	CreatedAt      string              `json:"created_at"`
	CompletedAt    string              `json:"completed_at,omitempty"`
	CancelledAt    string              `json:"cancelled_at,omitempty"`
}

func newOrderResponse(order *models.Order) orderResponse {
	resp := orderResponse{
		ID:             order.ID,
		Status:         order.Status,
		DeliveryMethod: order.DeliveryMethod,
		PaymentMethod:  order.PaymentMethod,
		PaymentStatus:  order.PaymentStatus,
		Total:          order.Total.StringFixed(2),
		PointsUsed:     order.PointsUsed,
		PointsEarned:   order.PointsEarned,
		CreatedAt:      order.CreatedAt.Format(time.RFC3339),
	}
	if order.CompletedAt != nil {
		resp.CompletedAt = order.CompletedAt.Format(time.RFC3339)
	}
	if order.CancelledAt != nil {
		resp.CancelledAt = order.CancelledAt.Format(time.RFC3339)
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			Variant:   item.Variant,
		})
	}
	return resp
}

func validDeliveryMethod(m string) bool {
	return m == models.DeliveryMethodDelivery || m == models.DeliveryMethodPickup
}

func validPaymentMethod(m string) bool {
	return m == models.PaymentMethodCOD || m == models.PaymentMethodInStore || m == models.PaymentMethodEWallet
}

// CreateOrder places new user order
// 201 — заказ создан;
// 400 — неверный формат запроса;
// 401 — пользователь не авторизован;
// 402 — недостаточно баллов для списания;
// 500 — внутренняя ошибка сервера.
func (oh *OrderHandler) CreateOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		if len(req.Items) == 0 || req.PointsUsed < 0 ||
			!validDeliveryMethod(req.DeliveryMethod) || !validPaymentMethod(req.PaymentMethod) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		order := models.Order{
			UserID:         payload.UserID,
			DeliveryMethod: req.DeliveryMethod,
			PaymentMethod:  req.PaymentMethod,
			PointsUsed:     req.PointsUsed,
		}

		for _, item := range req.Items {
			if item.Quantity <= 0 {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			price, err := decimal.NewFromString(item.UnitPrice)
			if err != nil || price.IsNegative() {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}

			mi := models.OrderItem{
				ProductID: item.ProductID,
				Name:      item.Name,
				Quantity:  item.Quantity,
				UnitPrice: price,
				Variant:   item.Variant,
			}
			for _, addon := range item.AddOns {
				ap, err := decimal.NewFromString(addon.Price)
				if err != nil || ap.IsNegative() {
					http.Error(w, "bad request", http.StatusBadRequest)
					return
				}
				mi.AddOns = append(mi.AddOns, models.OrderAddOn{Name: addon.Name, Price: ap})
			}
			order.Items = append(order.Items, mi)
		}

		created, err := oh.svc.Create(r.Context(), &order)
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
		w.WriteHeader(http.StatusCreated)

		if err := json.NewEncoder(w).Encode(newOrderResponse(created)); err != nil {
			return
		}
	}
}

// GetOrder returns one order
// 200 — успешная обработка запроса;
// 401 — пользователь не авторизован;
// 403 — заказ принадлежит другому пользователю;
// 404 — заказ не найден;
// 500 — внутренняя ошибка сервера.
func (oh *OrderHandler) GetOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		order, err := oh.svc.GetOrder(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			switch {
			case errors.Is(err, models.ErrOrderNotFound):
				http.Error(w, "order not found", http.StatusNotFound)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		if order.UserID != payload.UserID && !payload.IsAdmin() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if err := json.NewEncoder(w).Encode(newOrderResponse(order)); err != nil {
			return
		}
	}
}

// ListUserOrders returns orders of the current user
// 200 — успешная обработка запроса;
// 204 — нет данных для ответа;
// 401 — пользователь не авторизован;
// 500 — внутренняя ошибка сервера.
func (oh *OrderHandler) ListUserOrders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		orders, err := oh.svc.ListUserOrders(r.Context(), payload.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		if len(orders) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		resp := make([]orderResponse, 0, len(orders))
		for i := range orders {
			resp = append(resp, newOrderResponse(&orders[i]))
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if err := json.NewEncoder(w).Encode(resp); err != nil {
			return
		}
	}
}

type statusHistoryResponse struct {
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// GetStatusHistory returns status log of one order
// 200 — успешная обработка запроса;
// 401 — пользователь не авторизован;
// 403 — заказ принадлежит другому пользователю;
// 404 — заказ не найден;
// 500 — внутренняя ошибка сервера.
func (oh *OrderHandler) GetStatusHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		orderID := chi.URLParam(r, "id")

		order, err := oh.svc.GetOrder(r.Context(), orderID)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrOrderNotFound):
				http.Error(w, "order not found", http.StatusNotFound)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		if order.UserID != payload.UserID && !payload.IsAdmin() {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		history, err := oh.svc.GetStatusHistory(r.Context(), orderID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		resp := make([]statusHistoryResponse, 0, len(history))
		for _, h := range history {
			resp = append(resp, statusHistoryResponse{
				Status:    h.Status,
				CreatedAt: h.CreatedAt.Format(time.RFC3339),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if err := json.NewEncoder(w).Encode(resp); err != nil {
			return
		}
	}
}

type transitionRequest struct {
	Status string `json:"status"`
}

// RequestTransition applies order status transition
// 200 — успешная обработка запроса;
// 400 — неверный формат запроса;
// 401 — пользователь не авторизован;
// 403 — переход запрещён для данного пользователя;
// 404 — заказ не найден;
// 409 — переход невозможен из текущего статуса;
// 500 — внутренняя ошибка сервера.
func (oh *OrderHandler) RequestTransition() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload, ok := getAuthPayload(r.Context(), authPayloadKey)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req transitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		orderID := chi.URLParam(r, "id")

		// only the owner may complete or cancel their own order,
		// administrators may act on any order
		if !payload.IsAdmin() {
			order, err := oh.svc.GetOrder(r.Context(), orderID)
			if err != nil {
				switch {
				case errors.Is(err, models.ErrOrderNotFound):
					http.Error(w, "order not found", http.StatusNotFound)
				default:
					http.Error(w, "internal error", http.StatusInternalServerError)
				}
				return
			}
			if order.UserID != payload.UserID {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			if req.Status != models.OrderStatusCancelled && req.Status != models.OrderStatusCompleted {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		order, err := oh.svc.Transition(r.Context(), orderID, req.Status, payload)
		if err != nil {
			switch {
			case errors.Is(err, models.ErrOrderNotFound):
				http.Error(w, "order not found", http.StatusNotFound)
			case errors.Is(err, models.ErrInvalidTransition):
				http.Error(w, "invalid transition", http.StatusConflict)
			case errors.Is(err, models.ErrTransitionFailed):
				http.Error(w, "transition failed", http.StatusConflict)
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
