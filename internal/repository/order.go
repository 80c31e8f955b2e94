package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/roastery/cafemart/internal/models"
	"github.com/roastery/cafemart/internal/repository/postgres"
)

const (
	insertOrderQuery = `
						INSERT INTO orders (id, user_id, total, delivery_method, payment_method, payment_status, status, points_used, points_earned, created_at)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`
	insertOrderItemQuery = `
						INSERT INTO order_items (id, order_id, product_id, name, quantity, unit_price, variant)
						VALUES ($1, $2, $3, $4, $5, $6, $7)
`
	insertOrderAddOnQuery = `
						INSERT INTO order_item_addons (id, item_id, name, price)
						VALUES ($1, $2, $3, $4)
`
	selectOrderByIDQuery = `
						SELECT id, user_id, total, delivery_method, payment_method, payment_status, status, points_used, points_earned, created_at, completed_at, cancelled_at
						FROM orders
						WHERE id = $1
`
	selectOrdersByUserIDQuery = `
						SELECT id, user_id, total, delivery_method, payment_method, payment_status, status, points_used, points_earned, created_at, completed_at, cancelled_at
						FROM orders
						WHERE user_id = $1
						ORDER BY created_at DESC
`
	selectOrderItemsQuery = `
						SELECT id, order_id, product_id, name, quantity, unit_price, variant
						FROM order_items
						WHERE order_id = $1
`
	selectOrderAddOnsQuery = `
						SELECT id, item_id, name, price
						FROM order_item_addons
						WHERE item_id = ANY($1)
`
	updateOrderStatusQuery = `
						UPDATE orders
						SET status = $1, completed_at = COALESCE($2, completed_at), cancelled_at = COALESCE($3, cancelled_at)
						WHERE id = $4 AND status = $5
`
	updatePaymentStatusQuery = `
						UPDATE orders
						SET payment_status = $1
						WHERE id = $2 AND payment_status = $3
`
	insertStatusHistoryQuery = `
						INSERT INTO order_status_history (id, order_id, status, created_at)
						VALUES ($1, $2, $3, $4)
`
	selectStatusHistoryQuery = `
						SELECT id, order_id, status, created_at
						FROM order_status_history
						WHERE order_id = $1
						ORDER BY created_at
`
)

// OrderRepository implements OrderRepository interface
type OrderRepository struct {
	db *postgres.DB
}

// NewOrderRepository creates new OrderRepository instance
func NewOrderRepository(db *postgres.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// CreateOrder inserts order with its items and add-ons.
// It joins the atomic unit bound to ctx.
func (or *OrderRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	_, err := or.db.Exec(ctx, insertOrderQuery,
		order.ID, order.UserID, order.Total, order.DeliveryMethod, order.PaymentMethod,
		order.PaymentStatus, order.Status, order.PointsUsed, order.PointsEarned, order.CreatedAt)
	if err != nil {
		if or.db.IsUniqueViolation(err) {
			return models.ErrConflictData
		}
		return err
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		_, err := or.db.Exec(ctx, insertOrderItemQuery,
			item.ID, item.OrderID, item.ProductID, item.Name, item.Quantity, item.UnitPrice, item.Variant)
		if err != nil {
			return err
		}

		for j := range item.AddOns {
			addon := &item.AddOns[j]
			addon.ItemID = item.ID
			_, err := or.db.Exec(ctx, insertOrderAddOnQuery, addon.ID, addon.ItemID, addon.Name, addon.Price)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// GetOrderByID returns order with items by id
func (or *OrderRepository) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	order := models.Order{}
	err := or.db.QueryRow(ctx, selectOrderByIDQuery, id).Scan(
		&order.ID, &order.UserID, &order.Total, &order.DeliveryMethod, &order.PaymentMethod,
		&order.PaymentStatus, &order.Status, &order.PointsUsed, &order.PointsEarned,
		&order.CreatedAt, &order.CompletedAt, &order.CancelledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	items, err := or.getOrderItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return &order, nil
}

// GetOrdersByUserID gets user orders, newest first
func (or *OrderRepository) GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	rows, err := or.db.Query(ctx, selectOrdersByUserIDQuery, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []models.Order{}

	for rows.Next() {
		order := models.Order{}
		err = rows.Scan(
			&order.ID, &order.UserID, &order.Total, &order.DeliveryMethod, &order.PaymentMethod,
			&order.PaymentStatus, &order.Status, &order.PointsUsed, &order.PointsEarned,
			&order.CreatedAt, &order.CompletedAt, &order.CancelledAt)
		if err != nil {
			continue
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// getOrderItems loads order items together with their add-ons
func (or *OrderRepository) getOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	rows, err := or.db.Query(ctx, selectOrderItemsQuery, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.OrderItem
	var itemIDs []string

	for rows.Next() {
		item := models.OrderItem{}
		err = rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Name, &item.Quantity, &item.UnitPrice, &item.Variant)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		itemIDs = append(itemIDs, item.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(itemIDs) == 0 {
		return items, nil
	}

	addonRows, err := or.db.Query(ctx, selectOrderAddOnsQuery, itemIDs)
	if err != nil {
		return nil, err
	}
	defer addonRows.Close()

	byItem := make(map[string]int, len(items))
	for i, item := range items {
		byItem[item.ID] = i
	}

	for addonRows.Next() {
		addon := models.OrderAddOn{}
		err = addonRows.Scan(&addon.ID, &addon.ItemID, &addon.Name, &addon.Price)
		if err != nil {
			return nil, err
		}
		if i, ok := byItem[addon.ItemID]; ok {
			items[i].AddOns = append(items[i].AddOns, addon)
		}
	}

	if err := addonRows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

// UpdateOrderStatus moves order from status to status as compare-and-swap.
// Returns ErrConflictData when the order is no longer in the expected
// status, so a concurrent losing transition never overwrites silently.
func (or *OrderRepository) UpdateOrderStatus(ctx context.Context, orderID, from, to string, completedAt, cancelledAt *time.Time) error {
	cmd, err := or.db.Exec(ctx, updateOrderStatusQuery, to, completedAt, cancelledAt, orderID, from)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrConflictData
	}

	return nil
}

// UpdatePaymentStatus moves order payment status as compare-and-swap
func (or *OrderRepository) UpdatePaymentStatus(ctx context.Context, orderID, from, to string) error {
	cmd, err := or.db.Exec(ctx, updatePaymentStatusQuery, to, orderID, from)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrConflictData
	}

	return nil
}

// AppendStatusHistory appends status history entry for order
func (or *OrderRepository) AppendStatusHistory(ctx context.Context, orderID, status string, at time.Time) error {
	_, err := or.db.Exec(ctx, insertStatusHistoryQuery, uuid.New().String(), orderID, status, at)
	return err
}

// GetStatusHistory returns status history of order, oldest first
func (or *OrderRepository) GetStatusHistory(ctx context.Context, orderID string) ([]models.StatusHistory, error) {
	rows, err := or.db.Query(ctx, selectStatusHistoryQuery, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []models.StatusHistory

	for rows.Next() {
		h := models.StatusHistory{}
		err = rows.Scan(&h.ID, &h.OrderID, &h.Status, &h.CreatedAt)
		if err != nil {
			continue
		}
		history = append(history, h)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return history, nil
}
