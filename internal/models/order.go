package models

import (
	"time"

	"github.com/shopspring/decimal"
)

//RECEIVED — заказ принят и ожидает приготовления;
//PREPARING — заказ готовится;
//OUT_FOR_DELIVERY — заказ передан курьеру (только доставка);
//READY_FOR_PICKUP — заказ готов к выдаче (только самовывоз);
//COMPLETED — заказ завершён, баллы начислены;
//CANCELLED — заказ отменён, использованные баллы возвращены.

// order status
const (
	OrderStatusReceived       = "RECEIVED"
	OrderStatusPreparing      = "PREPARING"
	OrderStatusOutForDelivery = "OUT_FOR_DELIVERY"
	OrderStatusReadyForPickup = "READY_FOR_PICKUP"
	OrderStatusCompleted      = "COMPLETED"
	OrderStatusCancelled      = "CANCELLED"
)

// delivery method
const (
	DeliveryMethodDelivery = "delivery"
	DeliveryMethodPickup   = "pickup"
)

// payment method
const (
	PaymentMethodCOD     = "cash-on-delivery"
	PaymentMethodInStore = "in-store"
	PaymentMethodEWallet = "e-wallet"
)

// payment status, meaningful only for e-wallet orders
const (
	PaymentStatusPending  = "pending"
	PaymentStatusVerified = "verified"
	PaymentStatusRejected = "rejected"
)

// Order is order entity
type Order struct {
	ID             string
	UserID         string
	Items          []OrderItem
	Total          decimal.Decimal
	DeliveryMethod string
	PaymentMethod  string
	PaymentStatus  string
	Status         string
	PointsUsed     int
	PointsEarned   int
	CreatedAt      time.Time
	CompletedAt    *time.Time
	CancelledAt    *time.Time
}

// OrderItem is one ordered line item with price snapshot taken at checkout
type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Variant   string
	AddOns    []OrderAddOn
}

// OrderAddOn is selected add-on with its price snapshot
type OrderAddOn struct {
	ID     string
	ItemID string
	Name   string
	Price  decimal.Decimal
}

// StatusHistory is append-only log entry of order status
type StatusHistory struct {
	ID        string
	OrderID   string
	Status    string
	CreatedAt time.Time
}

// IsTerminalStatus reports whether status permits no further transitions
func IsTerminalStatus(status string) bool {
	return status == OrderStatusCompleted || status == OrderStatusCancelled
}

// NextStatuses returns legal successor statuses of current status
// given the order delivery method
func NextStatuses(current, deliveryMethod string) []string {
	switch current {
	case OrderStatusReceived:
		return []string{OrderStatusPreparing, OrderStatusCancelled}
	case OrderStatusPreparing:
		if deliveryMethod == DeliveryMethodPickup {
			return []string{OrderStatusReadyForPickup}
		}
		return []string{OrderStatusOutForDelivery}
	case OrderStatusOutForDelivery, OrderStatusReadyForPickup:
		return []string{OrderStatusCompleted}
	}
	return nil
}

// CanTransition reports whether target is a legal successor of current status
func CanTransition(current, target, deliveryMethod string) bool {
	for _, s := range NextStatuses(current, deliveryMethod) {
		if s == target {
			return true
		}
	}
	return false
}
