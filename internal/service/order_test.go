package service

import (
	"context"
	"testing"
	"time"

	"github.com/roastery/cafemart/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestOrderService(repo *fakeOrderRepo, points *fakePointsRepo, users *fakeUserRepo, notifier *fakeNotifier) *OrderService {
	svc := NewOrderService(repo, points, users, notifier, fakeTx{})
	svc.now = func() time.Time { return testTime }
	return svc
}

func seedOrder(repo *fakeOrderRepo, o models.Order) {
	cp := o
	repo.orders[o.ID] = &cp
}

func TestOrderService_Create(t *testing.T) {
	repo := newFakeOrderRepo()
	points := newFakePointsRepo()
	notifier := &fakeNotifier{}
	svc := newTestOrderService(repo, points, &fakeUserRepo{}, notifier)

	points.balances["user1"] = 50

	order := models.Order{
		UserID:         "user1",
		DeliveryMethod: models.DeliveryMethodDelivery,
		PaymentMethod:  models.PaymentMethodCOD,
		PointsUsed:     20,
		Items: []models.OrderItem{
			{
				ProductID: "latte",
				Name:      "Latte",
				Quantity:  2,
				UnitPrice: decimal.RequireFromString("4.50"),
				AddOns: []models.OrderAddOn{
					{Name: "Oat milk", Price: decimal.RequireFromString("0.50")},
				},
			},
			{
				ProductID: "croissant",
				Name:      "Croissant",
				Quantity:  3,
				UnitPrice: decimal.RequireFromString("3.00"),
			},
		},
	}

	created, err := svc.Create(context.Background(), &order)
	require.NoError(t, err)

	// 2*(4.50+0.50) + 3*3.00 = 19.00, minus 20 points
	assert.True(t, created.Total.Equal(decimal.Zero), "total %s", created.Total)
	assert.Equal(t, models.OrderStatusReceived, created.Status)
	assert.Equal(t, models.PaymentStatusPending, created.PaymentStatus)
	assert.Equal(t, 0, created.PointsEarned)
	assert.NotEmpty(t, created.ID)

	assert.Equal(t, 30, points.balances["user1"])
	redeemed := points.entriesByAction(models.PointsActionRedeemed)
	require.Len(t, redeemed, 1)
	assert.Equal(t, 20, redeemed[0].Points)
	require.NotNil(t, redeemed[0].OrderID)
	assert.Equal(t, created.ID, *redeemed[0].OrderID)

	history, err := repo.GetStatusHistory(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.OrderStatusReceived, history[0].Status)

	notes := notifier.forUser("user1")
	require.Len(t, notes, 1)
	assert.Equal(t, "Order received", notes[0].Title)
}

func TestOrderService_Create_EarnsOnPayableTotal(t *testing.T) {
	repo := newFakeOrderRepo()
	points := newFakePointsRepo()
	svc := newTestOrderService(repo, points, &fakeUserRepo{}, &fakeNotifier{})

	order := models.Order{
		UserID:         "user1",
		DeliveryMethod: models.DeliveryMethodPickup,
		PaymentMethod:  models.PaymentMethodInStore,
		Items: []models.OrderItem{
			{ProductID: "beans", Name: "House blend 1kg", Quantity: 1, UnitPrice: decimal.RequireFromString("35.90")},
		},
	}

	created, err := svc.Create(context.Background(), &order)
	require.NoError(t, err)

	assert.True(t, created.Total.Equal(decimal.RequireFromString("35.90")))
	assert.Equal(t, 3, created.PointsEarned)
	// earning is deferred until completion
	assert.Equal(t, 0, points.balances["user1"])
	assert.Empty(t, points.entriesByAction(models.PointsActionEarned))
}

func TestOrderService_Create_InsufficientBalance(t *testing.T) {
	repo := newFakeOrderRepo()
	points := newFakePointsRepo()
	svc := newTestOrderService(repo, points, &fakeUserRepo{}, &fakeNotifier{})

	points.balances["user1"] = 5

	order := models.Order{
		UserID:         "user1",
		DeliveryMethod: models.DeliveryMethodDelivery,
		PaymentMethod:  models.PaymentMethodCOD,
		PointsUsed:     10,
		Items: []models.OrderItem{
			{ProductID: "latte", Name: "Latte", Quantity: 1, UnitPrice: decimal.RequireFromString("4.50")},
		},
	}

	_, err := svc.Create(context.Background(), &order)
	assert.ErrorIs(t, err, models.ErrInsufficientBalance)
	assert.Equal(t, 5, points.balances["user1"])
	assert.Empty(t, repo.orders)
}

func TestOrderService_Transition_Graph(t *testing.T) {
	tests := []struct {
		name           string
		deliveryMethod string
		status         string
		target         string
		wantErr        error
	}{
		{
			name:           "received_to_preparing",
			deliveryMethod: models.DeliveryMethodDelivery,
			status:         models.OrderStatusReceived,
			target:         models.OrderStatusPreparing,
		},
		{
			name:           "received_to_cancelled",
			deliveryMethod: models.DeliveryMethodDelivery,
			status:         models.OrderStatusReceived,
			target:         models.OrderStatusCancelled,
		},
		{
			name:           "preparing_to_out_for_delivery",
			deliveryMethod: models.DeliveryMethodDelivery,
			status:         models.OrderStatusPreparing,
			target:         models.OrderStatusOutForDelivery,
		},
		{
			name:           "preparing_to_ready_for_pickup",
			deliveryMethod: models.DeliveryMethodPickup,
			status:         models.OrderStatusPreparing,
			target:         models.OrderStatusReadyForPickup,
		},
		{
			name:           "out_for_delivery_to_completed",
			deliveryMethod: models.DeliveryMethodDelivery,
			status:         models.OrderStatusOutForDelivery,
			target:         models.OrderStatusCompleted,
		},
		{
			name:           "ready_for_pickup_to_completed",
			deliveryMethod: models.DeliveryMethodPickup,
			status:         models.OrderStatusReadyForPickup,
			target:         models.OrderStatusCompleted,
		},
		{
			name:           "pickup_order_cannot_go_out_for_delivery",
			deliveryMethod: models.DeliveryMethodPickup,
			status:         models.OrderStatusPreparing,
			target:         models.OrderStatusOutForDelivery,
			wantErr:        models.ErrInvalidTransition,
		},
		{
			name:           "delivery_order_cannot_be_ready_for_pickup",
			deliveryMethod: models.DeliveryMethodDelivery,
			status:         models.OrderStatusPreparing,
			target:         models.OrderStatusReadyForPickup,
			wantErr:        models.ErrInvalidTransition,
		},
		{
			name:           "cannot_skip_preparing",
			deliveryMethod: models.DeliveryMethodDelivery,
			status:         models.OrderStatusReceived,
			target:         models.OrderStatusCompleted,
			wantErr:        models.ErrInvalidTransition,
		},
		{
			name:           "cannot_cancel_preparing",
			deliveryMethod: models.DeliveryMethodDelivery,
			status:         models.OrderStatusPreparing,
			target:         models.OrderStatusCancelled,
			wantErr:        models.ErrInvalidTransition,
		},
		{
			name:           "completed_is_terminal",
			deliveryMethod: models.DeliveryMethodDelivery,
			status:         models.OrderStatusCompleted,
			target:         models.OrderStatusCancelled,
			wantErr:        models.ErrInvalidTransition,
		},
		{
			name:           "cancelled_is_terminal",
			deliveryMethod: models.DeliveryMethodDelivery,
			status:         models.OrderStatusCancelled,
			target:         models.OrderStatusPreparing,
			wantErr:        models.ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeOrderRepo()
			points := newFakePointsRepo()
			svc := newTestOrderService(repo, points, &fakeUserRepo{}, &fakeNotifier{})

			seedOrder(repo, models.Order{
				ID:             "order1",
				UserID:         "user1",
				Status:         tt.status,
				DeliveryMethod: tt.deliveryMethod,
				PaymentMethod:  models.PaymentMethodCOD,
			})

			actor := &models.TokenPayload{UserID: "user1", Role: models.RoleCustomer}
			got, err := svc.Transition(context.Background(), "order1", tt.target, actor)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.target, got.Status)
		})
	}
}

func TestOrderService_Transition_CompletionCreditsPoints(t *testing.T) {
	repo := newFakeOrderRepo()
	points := newFakePointsRepo()
	notifier := &fakeNotifier{}
	svc := newTestOrderService(repo, points, &fakeUserRepo{}, notifier)

	seedOrder(repo, models.Order{
		ID:             "order1",
		UserID:         "user1",
		Status:         models.OrderStatusReadyForPickup,
		DeliveryMethod: models.DeliveryMethodPickup,
		PaymentMethod:  models.PaymentMethodInStore,
		PointsEarned:   4,
	})

	actor := &models.TokenPayload{UserID: "user1", Role: models.RoleCustomer}
	got, err := svc.Transition(context.Background(), "order1", models.OrderStatusCompleted, actor)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, 4, points.balances["user1"])

	earned := points.entriesByAction(models.PointsActionEarned)
	require.Len(t, earned, 1)
	assert.Equal(t, 4, earned[0].Points)
	require.NotNil(t, earned[0].ExpiresAt)
	assert.Equal(t, testTime.AddDate(0, models.PointsLifetimeMonths, 0), *earned[0].ExpiresAt)

	// completion and points notifications
	notes := notifier.forUser("user1")
	require.Len(t, notes, 2)
	assert.Equal(t, "Points earned", notes[0].Title)
	assert.Equal(t, "Order completed", notes[1].Title)
}

func TestOrderService_Transition_CompletionAlreadyCredited(t *testing.T) {
	repo := newFakeOrderRepo()
	points := newFakePointsRepo()
	svc := newTestOrderService(repo, points, &fakeUserRepo{}, &fakeNotifier{})

	orderID := "order1"
	seedOrder(repo, models.Order{
		ID:             orderID,
		UserID:         "user1",
		Status:         models.OrderStatusOutForDelivery,
		DeliveryMethod: models.DeliveryMethodDelivery,
		PaymentMethod:  models.PaymentMethodCOD,
		PointsEarned:   4,
	})

	// credit already recorded by an earlier attempt
	points.entries = append(points.entries, models.PointsEntry{
		ID:      "entry1",
		UserID:  "user1",
		Action:  models.PointsActionEarned,
		Points:  4,
		OrderID: &orderID,
	})
	points.balances["user1"] = 4

	actor := &models.TokenPayload{UserID: "user1", Role: models.RoleCustomer}
	_, err := svc.Transition(context.Background(), orderID, models.OrderStatusCompleted, actor)
	require.NoError(t, err)

	// no double credit
	assert.Equal(t, 4, points.balances["user1"])
	assert.Len(t, points.entriesByAction(models.PointsActionEarned), 1)
}

func TestOrderService_Transition_CancelRefundsUsedPoints(t *testing.T) {
	repo := newFakeOrderRepo()
	points := newFakePointsRepo()
	notifier := &fakeNotifier{}
	svc := newTestOrderService(repo, points, &fakeUserRepo{}, notifier)

	seedOrder(repo, models.Order{
		ID:             "order1",
		UserID:         "user1",
		Status:         models.OrderStatusReceived,
		DeliveryMethod: models.DeliveryMethodDelivery,
		PaymentMethod:  models.PaymentMethodCOD,
		PointsUsed:     30,
	})

	actor := &models.TokenPayload{UserID: "user1", Role: models.RoleCustomer}
	got, err := svc.Transition(context.Background(), "order1", models.OrderStatusCancelled, actor)
	require.NoError(t, err)

	assert.Equal(t, models.OrderStatusCancelled, got.Status)
	require.NotNil(t, got.CancelledAt)
	assert.Equal(t, 30, points.balances["user1"])

	refunded := points.entriesByAction(models.PointsActionRefunded)
	require.Len(t, refunded, 1)
	assert.Equal(t, 30, refunded[0].Points)
}

func TestOrderService_Transition_ConcurrentLoss(t *testing.T) {
	repo := newFakeOrderRepo()
	points := newFakePointsRepo()
	svc := newTestOrderService(repo, points, &fakeUserRepo{}, &fakeNotifier{})

	seedOrder(repo, models.Order{
		ID:             "order1",
		UserID:         "user1",
		Status:         models.OrderStatusReceived,
		DeliveryMethod: models.DeliveryMethodDelivery,
		PaymentMethod:  models.PaymentMethodCOD,
	})

	// another transition wins between the load and the swap
	repo.updateStatusErr = models.ErrConflictData

	actor := &models.TokenPayload{UserID: "user1", Role: models.RoleCustomer}
	_, err := svc.Transition(context.Background(), "order1", models.OrderStatusPreparing, actor)
	assert.ErrorIs(t, err, models.ErrTransitionFailed)
}

func TestOrderService_Transition_OrderNotFound(t *testing.T) {
	svc := newTestOrderService(newFakeOrderRepo(), newFakePointsRepo(), &fakeUserRepo{}, &fakeNotifier{})

	actor := &models.TokenPayload{UserID: "user1", Role: models.RoleCustomer}
	_, err := svc.Transition(context.Background(), "missing", models.OrderStatusPreparing, actor)
	assert.ErrorIs(t, err, models.ErrOrderNotFound)
}

func TestOrderService_ForceCancel(t *testing.T) {
	tests := []struct {
		name    string
		status  string
		wantErr error
	}{
		{name: "from_received", status: models.OrderStatusReceived},
		{name: "from_preparing", status: models.OrderStatusPreparing},
		{name: "from_out_for_delivery", status: models.OrderStatusOutForDelivery},
		{name: "already_cancelled", status: models.OrderStatusCancelled, wantErr: models.ErrAlreadyProcessed},
		{name: "completed_stays", status: models.OrderStatusCompleted, wantErr: models.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeOrderRepo()
			points := newFakePointsRepo()
			svc := newTestOrderService(repo, points, &fakeUserRepo{}, &fakeNotifier{})

			seedOrder(repo, models.Order{
				ID:             "order1",
				UserID:         "user1",
				Status:         tt.status,
				DeliveryMethod: models.DeliveryMethodDelivery,
				PaymentMethod:  models.PaymentMethodEWallet,
				PaymentStatus:  models.PaymentStatusPending,
			})

			actor := &models.TokenPayload{UserID: "admin1", Role: models.RoleAdmin}
			err := svc.ForceCancel(context.Background(), "order1", actor)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.status, repo.orders["order1"].Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, models.OrderStatusCancelled, repo.orders["order1"].Status)
		})
	}
}

func TestOrderService_ForceCancel_ReversesEarnedCredit(t *testing.T) {
	repo := newFakeOrderRepo()
	points := newFakePointsRepo()
	svc := newTestOrderService(repo, points, &fakeUserRepo{}, &fakeNotifier{})

	orderID := "order1"
	seedOrder(repo, models.Order{
		ID:             orderID,
		UserID:         "user1",
		Status:         models.OrderStatusPreparing,
		DeliveryMethod: models.DeliveryMethodDelivery,
		PaymentMethod:  models.PaymentMethodEWallet,
		PaymentStatus:  models.PaymentStatusPending,
	})

	// credit slipped in before the cancellation, user already spent part of it
	points.entries = append(points.entries, models.PointsEntry{
		ID:      "entry1",
		UserID:  "user1",
		Action:  models.PointsActionEarned,
		Points:  10,
		OrderID: &orderID,
	})
	points.balances["user1"] = 6

	actor := &models.TokenPayload{UserID: "admin1", Role: models.RoleAdmin}
	err := svc.ForceCancel(context.Background(), orderID, actor)
	require.NoError(t, err)

	// the reversal is clamped at the available balance
	assert.Equal(t, 0, points.balances["user1"])

	refunded := points.entriesByAction(models.PointsActionRefunded)
	require.Len(t, refunded, 1)
	assert.Equal(t, 10, refunded[0].Points)
	require.NotNil(t, refunded[0].EntryRef)
	assert.Equal(t, "entry1", *refunded[0].EntryRef)
}

func TestOrderService_AdminCancelNotifiesOtherAdmins(t *testing.T) {
	repo := newFakeOrderRepo()
	points := newFakePointsRepo()
	notifier := &fakeNotifier{}
	users := &fakeUserRepo{admins: []string{"admin1", "admin2", "admin3"}}
	svc := newTestOrderService(repo, points, users, notifier)

	seedOrder(repo, models.Order{
		ID:             "order1",
		UserID:         "user1",
		Status:         models.OrderStatusReceived,
		DeliveryMethod: models.DeliveryMethodDelivery,
		PaymentMethod:  models.PaymentMethodCOD,
	})

	actor := &models.TokenPayload{UserID: "admin1", Role: models.RoleAdmin}
	_, err := svc.Transition(context.Background(), "order1", models.OrderStatusCancelled, actor)
	require.NoError(t, err)

	// the acting admin is skipped
	assert.Empty(t, notifier.forUser("admin1"))
	assert.Len(t, notifier.forUser("admin2"), 1)
	assert.Len(t, notifier.forUser("admin3"), 1)

	notes := notifier.forUser("user1")
	require.Len(t, notes, 1)
	assert.Equal(t, "Order cancelled", notes[0].Title)
}
