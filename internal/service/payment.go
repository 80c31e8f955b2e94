package service

import (
	"context"
	"errors"

	"github.com/roastery/cafemart/internal/models"
)

// PaymentService implements the e-wallet payment verification sub-flow.
// It drives fulfillment through the order state machine: verification
// auto-advances a RECEIVED order, rejection cascades into cancellation.
type PaymentService struct {
	repo     OrderRepository
	orders   *OrderService
	notifier Notifier
	tx       TxRunner
}

// NewPaymentService creates new PaymentService instance
func NewPaymentService(repo OrderRepository, orders *OrderService, notifier Notifier, tx TxRunner) *PaymentService {
	return &PaymentService{
		repo:     repo,
		orders:   orders,
		notifier: notifier,
		tx:       tx,
	}
}

// checkPending validates the e-wallet pending-payment precondition
func (ps *PaymentService) checkPending(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := ps.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.PaymentMethod != models.PaymentMethodEWallet {
		return nil, models.ErrNotEWalletOrder
	}
	if order.PaymentStatus != models.PaymentStatusPending {
		// the decision has been applied before, benign no-op:
		// the order is returned so the caller can answer as on success
		return order, models.ErrAlreadyProcessed
	}

	return order, nil
}

// Verify marks a pending e-wallet payment verified and, when the order is
// still RECEIVED, auto-advances it to PREPARING through the state machine
// so verification also progresses fulfillment. One atomic unit.
func (ps *PaymentService) Verify(ctx context.Context, orderID string, actor *models.TokenPayload) (*models.Order, error) {
	order, err := ps.checkPending(ctx, orderID)
	if err != nil {
		return order, err
	}

	err = ps.tx.WithinTx(ctx, func(ctx context.Context) error {
		err := ps.repo.UpdatePaymentStatus(ctx, order.ID, models.PaymentStatusPending, models.PaymentStatusVerified)
		if err != nil {
			if errors.Is(err, models.ErrConflictData) {
				return models.ErrAlreadyProcessed
			}
			return err
		}

		if order.Status == models.OrderStatusReceived {
			if _, err := ps.orders.Transition(ctx, order.ID, models.OrderStatusPreparing, actor); err != nil {
				return err
			}
		}

		return ps.notifier.Notify(ctx, order.UserID, models.NotificationTypePayment,
			"Payment verified", "Your e-wallet payment has been verified.",
			"/orders/"+order.ID)
	})
	if err != nil {
		if errors.Is(err, models.ErrAlreadyProcessed) {
			// a concurrent decision won, answer with the current order
			o, getErr := ps.orders.GetOrder(ctx, orderID)
			if getErr != nil {
				return nil, getErr
			}
			return o, models.ErrAlreadyProcessed
		}
		return nil, err
	}

	return ps.orders.GetOrder(ctx, orderID)
}

// Reject marks a pending e-wallet payment rejected and unconditionally
// drives the order to CANCELLED with the full cancellation side effects,
// including the points refund. One atomic unit.
func (ps *PaymentService) Reject(ctx context.Context, orderID string, actor *models.TokenPayload) (*models.Order, error) {
	order, err := ps.checkPending(ctx, orderID)
	if err != nil {
		return order, err
	}

	err = ps.tx.WithinTx(ctx, func(ctx context.Context) error {
		err := ps.repo.UpdatePaymentStatus(ctx, order.ID, models.PaymentStatusPending, models.PaymentStatusRejected)
		if err != nil {
			if errors.Is(err, models.ErrConflictData) {
				return models.ErrAlreadyProcessed
			}
			return err
		}

		if err := ps.orders.ForceCancel(ctx, order.ID, actor); err != nil && !errors.Is(err, models.ErrAlreadyProcessed) {
			return err
		}

		return ps.notifier.Notify(ctx, order.UserID, models.NotificationTypePayment,
			"Payment rejected", "Your e-wallet payment was rejected and the order has been cancelled.",
			"/orders/"+order.ID)
	})
	if err != nil {
		if errors.Is(err, models.ErrAlreadyProcessed) {
			o, getErr := ps.orders.GetOrder(ctx, orderID)
			if getErr != nil {
				return nil, getErr
			}
			return o, models.ErrAlreadyProcessed
		}
		return nil, err
	}

	return ps.orders.GetOrder(ctx, orderID)
}
