package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/roastery/cafemart/internal/logger"
	"github.com/roastery/cafemart/internal/metrics"
	"github.com/roastery/cafemart/internal/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// one point is earned per 10 currency units of the payable total,
// one point is worth one currency unit at checkout
var pointsEarnDivisor = decimal.NewFromInt(10)

// OrderRepository is interface for interacting with order-related data
type OrderRepository interface {
	// CreateOrder inserts order with its items and add-ons
	CreateOrder(ctx context.Context, order *models.Order) error
	// GetOrderByID returns order with items by id
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	// GetOrdersByUserID gets user orders
	GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error)
	// UpdateOrderStatus moves order between statuses as compare-and-swap,
	// ErrConflictData when the order left the expected status
	UpdateOrderStatus(ctx context.Context, orderID, from, to string, completedAt, cancelledAt *time.Time) error
	// UpdatePaymentStatus moves payment status as compare-and-swap
	UpdatePaymentStatus(ctx context.Context, orderID, from, to string) error
	// AppendStatusHistory appends status history entry for order
	AppendStatusHistory(ctx context.Context, orderID, status string, at time.Time) error
	// GetStatusHistory returns status history of order
	GetStatusHistory(ctx context.Context, orderID string) ([]models.StatusHistory, error)
}

// UserRepository is interface for interacting with user data
type UserRepository interface {
	// GetAdminIDs returns ids of all administrators
	GetAdminIDs(ctx context.Context) ([]string, error)
}

// TxRunner runs fn as one atomic unit. Nested calls join the outer unit.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier persists a notification and mirrors it to live sessions
type Notifier interface {
	Notify(ctx context.Context, userID, ntype, title, message, link string) error
}

// OrderService implements OrderService interface
type OrderService struct {
	repo     OrderRepository
	points   PointsRepository
	users    UserRepository
	notifier Notifier
	tx       TxRunner
	now      func() time.Time
}

// NewOrderService creates new OrderService instance
func NewOrderService(repo OrderRepository, points PointsRepository, users UserRepository, notifier Notifier, tx TxRunner) *OrderService {
	return &OrderService{
		repo:     repo,
		points:   points,
		users:    users,
		notifier: notifier,
		tx:       tx,
		now:      time.Now,
	}
}

// Create places a new order: computes the total from the item price
// snapshots, redeems the requested points against the order, fixes the
// points to be earned on completion, and writes the order with its
// initial RECEIVED history entry. One atomic unit.
func (os *OrderService) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	subtotal := decimal.Zero
	for _, item := range order.Items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		line := item.UnitPrice
		for _, addon := range item.AddOns {
			line = line.Add(addon.Price)
		}
		subtotal = subtotal.Add(line.Mul(qty))
	}

	total := subtotal.Sub(decimal.NewFromInt(int64(order.PointsUsed)))
	if total.IsNegative() {
		// points cannot buy more than the order is worth
		total = decimal.Zero
	}

	now := os.now()
	order.ID = uuid.New().String()
	order.Total = total
	order.Status = models.OrderStatusReceived
	order.PaymentStatus = models.PaymentStatusPending
	order.PointsEarned = int(total.Div(pointsEarnDivisor).IntPart())
	order.CreatedAt = now

	for i := range order.Items {
		order.Items[i].ID = uuid.New().String()
		for j := range order.Items[i].AddOns {
			order.Items[i].AddOns[j].ID = uuid.New().String()
		}
	}

	err := os.tx.WithinTx(ctx, func(ctx context.Context) error {
		if order.PointsUsed > 0 {
			if err := os.points.SpendPoints(ctx, order.UserID, order.PointsUsed); err != nil {
				return err
			}
			entry := models.PointsEntry{
				ID:        uuid.New().String(),
				UserID:    order.UserID,
				Action:    models.PointsActionRedeemed,
				Points:    order.PointsUsed,
				OrderID:   &order.ID,
				CreatedAt: now,
			}
			if err := os.points.AppendEntry(ctx, &entry); err != nil {
				return err
			}
		}

		if err := os.repo.CreateOrder(ctx, order); err != nil {
			return err
		}

		if err := os.repo.AppendStatusHistory(ctx, order.ID, order.Status, now); err != nil {
			return err
		}

		return os.notifier.Notify(ctx, order.UserID, models.NotificationTypeOrder,
			"Order received", "Your order has been received and is waiting to be prepared.",
			"/orders/"+order.ID)
	})
	if err != nil {
		return nil, err
	}

	metrics.OrderTransitionsTotal.WithLabelValues(order.Status).Inc()
	if order.PointsUsed > 0 {
		metrics.PointsEntriesTotal.WithLabelValues(models.PointsActionRedeemed).Inc()
	}

	return order, nil
}

// GetOrder returns order with items by id
func (os *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := os.repo.GetOrderByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrDataNotFound) {
			return nil, models.ErrOrderNotFound
		}
		return nil, err
	}

	return order, nil
}

// ListUserOrders returns list of user orders
func (os *OrderService) ListUserOrders(ctx context.Context, userID string) ([]models.Order, error) {
	return os.repo.GetOrdersByUserID(ctx, userID)
}

// GetStatusHistory returns status history of order
func (os *OrderService) GetStatusHistory(ctx context.Context, orderID string) ([]models.StatusHistory, error) {
	return os.repo.GetStatusHistory(ctx, orderID)
}

// Transition validates target against the legal status graph and applies
// it with all side effects in one atomic unit: the status swap, the
// history entry, the terminal points effects and the notifications.
// A concurrent losing transition reports ErrTransitionFailed, never a
// silent overwrite.
func (os *OrderService) Transition(ctx context.Context, orderID, target string, actor *models.TokenPayload) (*models.Order, error) {
	order, err := os.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !models.CanTransition(order.Status, target, order.DeliveryMethod) {
		return nil, models.ErrInvalidTransition
	}

	err = os.tx.WithinTx(ctx, func(ctx context.Context) error {
		return os.applyTransition(ctx, order, target, actor)
	})
	if err != nil {
		if errors.Is(err, models.ErrConflictData) {
			// lost the race against a concurrent transition
			return nil, models.ErrTransitionFailed
		}
		logger.Log.Error("order transition failed",
			zap.String("order_id", orderID),
			zap.String("target", target),
			zap.Error(err))
		return nil, models.ErrTransitionFailed
	}

	metrics.OrderTransitionsTotal.WithLabelValues(target).Inc()

	return os.GetOrder(ctx, orderID)
}

// ForceCancel drives order to CANCELLED from any non-terminal status with
// full cancellation side effects. Used by the payment-rejection cascade,
// which cancels unconditionally instead of the RECEIVED-only rule.
func (os *OrderService) ForceCancel(ctx context.Context, orderID string, actor *models.TokenPayload) error {
	order, err := os.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	if order.Status == models.OrderStatusCancelled {
		return models.ErrAlreadyProcessed
	}
	if order.Status == models.OrderStatusCompleted {
		return models.ErrInvalidTransition
	}

	return os.tx.WithinTx(ctx, func(ctx context.Context) error {
		return os.applyTransition(ctx, order, models.OrderStatusCancelled, actor)
	})
}

// applyTransition performs the status swap and its side effects.
// Must run inside an atomic unit.
func (os *OrderService) applyTransition(ctx context.Context, order *models.Order, target string, actor *models.TokenPayload) error {
	now := os.now()

	var completedAt, cancelledAt *time.Time
	switch target {
	case models.OrderStatusCompleted:
		completedAt = &now
	case models.OrderStatusCancelled:
		cancelledAt = &now
	}

	if err := os.repo.UpdateOrderStatus(ctx, order.ID, order.Status, target, completedAt, cancelledAt); err != nil {
		return err
	}

	if err := os.repo.AppendStatusHistory(ctx, order.ID, target, now); err != nil {
		return err
	}

	switch target {
	case models.OrderStatusCompleted:
		if err := os.creditEarned(ctx, order, now); err != nil {
			return err
		}
	case models.OrderStatusCancelled:
		if err := os.refundOnCancel(ctx, order, actor, now); err != nil {
			return err
		}
	}

	title, message := statusNotification(target)
	return os.notifier.Notify(ctx, order.UserID, models.NotificationTypeOrder, title, message, "/orders/"+order.ID)
}

// creditEarned realizes the points fixed at checkout. The earned ledger
// entry is written first: its per-order uniqueness in the store is the
// idempotency guard, so a retried completion skips crediting silently.
func (os *OrderService) creditEarned(ctx context.Context, order *models.Order, now time.Time) error {
	if order.PointsEarned <= 0 {
		return nil
	}

	expiresAt := now.AddDate(0, models.PointsLifetimeMonths, 0)
	entry := models.PointsEntry{
		ID:        uuid.New().String(),
		UserID:    order.UserID,
		Action:    models.PointsActionEarned,
		Points:    order.PointsEarned,
		OrderID:   &order.ID,
		ExpiresAt: &expiresAt,
		CreatedAt: now,
	}

	if err := os.points.AppendEntry(ctx, &entry); err != nil {
		if errors.Is(err, models.ErrAlreadyProcessed) {
			// points were already credited for this order
			return nil
		}
		return err
	}

	if err := os.points.AddPoints(ctx, order.UserID, order.PointsEarned); err != nil {
		return err
	}
	metrics.PointsEntriesTotal.WithLabelValues(models.PointsActionEarned).Inc()

	return os.notifier.Notify(ctx, order.UserID, models.NotificationTypePoints,
		"Points earned",
		fmt.Sprintf("You earned %d loyalty points for your order.", order.PointsEarned),
		"/points")
}

// refundOnCancel credits used points back and defensively reverses an
// already-earned credit, clamped at the available balance
func (os *OrderService) refundOnCancel(ctx context.Context, order *models.Order, actor *models.TokenPayload, now time.Time) error {
	if order.PointsUsed > 0 {
		if err := os.points.AddPoints(ctx, order.UserID, order.PointsUsed); err != nil {
			return err
		}
		entry := models.PointsEntry{
			ID:        uuid.New().String(),
			UserID:    order.UserID,
			Action:    models.PointsActionRefunded,
			Points:    order.PointsUsed,
			OrderID:   &order.ID,
			CreatedAt: now,
		}
		if err := os.points.AppendEntry(ctx, &entry); err != nil {
			return err
		}
		metrics.PointsEntriesTotal.WithLabelValues(models.PointsActionRefunded).Inc()
	}

	// should not exist before completion, checked defensively
	earned, err := os.points.GetEarnedEntryByOrder(ctx, order.ID)
	if err != nil && !errors.Is(err, models.ErrDataNotFound) {
		return err
	}
	if earned != nil {
		if _, err := os.points.DeductUpTo(ctx, order.UserID, earned.Points); err != nil {
			return err
		}
		entry := models.PointsEntry{
			ID:        uuid.New().String(),
			UserID:    order.UserID,
			Action:    models.PointsActionRefunded,
			Points:    earned.Points,
			OrderID:   &order.ID,
			EntryRef:  &earned.ID,
			CreatedAt: now,
		}
		if err := os.points.AppendEntry(ctx, &entry); err != nil {
			return err
		}
		metrics.PointsEntriesTotal.WithLabelValues(models.PointsActionRefunded).Inc()
	}

	if actor.IsAdmin() && actor.UserID != order.UserID {
		if err := os.notifyAdmins(ctx, order, actor); err != nil {
			return err
		}
	}

	return nil
}

// notifyAdmins tells the other administrators about a cancellation
// performed on behalf of a customer
func (os *OrderService) notifyAdmins(ctx context.Context, order *models.Order, actor *models.TokenPayload) error {
	adminIDs, err := os.users.GetAdminIDs(ctx)
	if err != nil {
		return err
	}

	for _, id := range adminIDs {
		if id == actor.UserID {
			continue
		}
		err := os.notifier.Notify(ctx, id, models.NotificationTypeOrder,
			"Order cancelled",
			fmt.Sprintf("Order %s was cancelled by an administrator.", order.ID),
			"/admin/orders/"+order.ID)
		if err != nil {
			return err
		}
	}

	return nil
}

// statusNotification returns user-facing title and message of a status change
func statusNotification(status string) (string, string) {
	switch status {
	case models.OrderStatusPreparing:
		return "Order update", "Your order is being prepared."
	case models.OrderStatusOutForDelivery:
		return "Order update", "Your order is out for delivery."
	case models.OrderStatusReadyForPickup:
		return "Order update", "Your order is ready for pickup."
	case models.OrderStatusCompleted:
		return "Order completed", "Your order has been completed. Thank you!"
	case models.OrderStatusCancelled:
		return "Order cancelled", "Your order has been cancelled."
	}
	return "Order update", "Your order status has changed."
}
