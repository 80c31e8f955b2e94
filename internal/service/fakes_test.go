package service

import (
	"context"
	"time"

	"github.com/roastery/cafemart/internal/models"
)

// fakeTx runs the unit in place. Nesting is a no-op, like the real
// runner joining an already-open unit.
type fakeTx struct{}

func (fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type sentNote struct {
	UserID  string
	Type    string
	Title   string
	Message string
	Link    string
}

// fakeNotifier records notifications and doubles as the link-dedup checker
type fakeNotifier struct {
	sent []sentNote
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, userID, ntype, title, message, link string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentNote{UserID: userID, Type: ntype, Title: title, Message: message, Link: link})
	return nil
}

func (f *fakeNotifier) ExistsByLink(_ context.Context, userID, link string) (bool, error) {
	for _, n := range f.sent {
		if n.UserID == userID && n.Link == link {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeNotifier) forUser(userID string) []sentNote {
	var out []sentNote
	for _, n := range f.sent {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

type fakeOrderRepo struct {
	orders  map[string]*models.Order
	history map[string][]models.StatusHistory

	updateStatusErr error
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders:  make(map[string]*models.Order),
		history: make(map[string][]models.StatusHistory),
	}
}

func (f *fakeOrderRepo) CreateOrder(_ context.Context, order *models.Order) error {
	if _, ok := f.orders[order.ID]; ok {
		return models.ErrConflictData
	}
	cp := *order
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeOrderRepo) GetOrderByID(_ context.Context, id string) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, models.ErrDataNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderRepo) GetOrdersByUserID(_ context.Context, userID string) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) UpdateOrderStatus(_ context.Context, orderID, from, to string, completedAt, cancelledAt *time.Time) error {
	if f.updateStatusErr != nil {
		return f.updateStatusErr
	}
	o, ok := f.orders[orderID]
	if !ok || o.Status != from {
		return models.ErrConflictData
	}
	o.Status = to
	o.CompletedAt = completedAt
	o.CancelledAt = cancelledAt
	return nil
}

func (f *fakeOrderRepo) UpdatePaymentStatus(_ context.Context, orderID, from, to string) error {
	o, ok := f.orders[orderID]
	if !ok || o.PaymentStatus != from {
		return models.ErrConflictData
	}
	o.PaymentStatus = to
	return nil
}

func (f *fakeOrderRepo) AppendStatusHistory(_ context.Context, orderID, status string, at time.Time) error {
	f.history[orderID] = append(f.history[orderID], models.StatusHistory{
		OrderID:   orderID,
		Status:    status,
		CreatedAt: at,
	})
	return nil
}

func (f *fakeOrderRepo) GetStatusHistory(_ context.Context, orderID string) ([]models.StatusHistory, error) {
	return f.history[orderID], nil
}

type fakePointsRepo struct {
	balances map[string]int
	entries  []models.PointsEntry
}

func newFakePointsRepo() *fakePointsRepo {
	return &fakePointsRepo{balances: make(map[string]int)}
}

func (f *fakePointsRepo) GetBalance(_ context.Context, userID string) (int, error) {
	return f.balances[userID], nil
}

func (f *fakePointsRepo) AddPoints(_ context.Context, userID string, amount int) error {
	f.balances[userID] += amount
	return nil
}

func (f *fakePointsRepo) SpendPoints(_ context.Context, userID string, amount int) error {
	if f.balances[userID] < amount {
		return models.ErrInsufficientBalance
	}
	f.balances[userID] -= amount
	return nil
}

func (f *fakePointsRepo) DeductUpTo(_ context.Context, userID string, amount int) (int, error) {
	d := amount
	if b := f.balances[userID]; b < d {
		d = b
	}
	f.balances[userID] -= d
	return d, nil
}

func (f *fakePointsRepo) AppendEntry(_ context.Context, entry *models.PointsEntry) error {
	for _, e := range f.entries {
		if entry.Action == models.PointsActionEarned && e.Action == models.PointsActionEarned &&
			entry.OrderID != nil && e.OrderID != nil && *entry.OrderID == *e.OrderID {
			return models.ErrAlreadyProcessed
		}
		if entry.Action == models.PointsActionExpired && e.Action == models.PointsActionExpired &&
			entry.EntryRef != nil && e.EntryRef != nil && *entry.EntryRef == *e.EntryRef {
			return models.ErrAlreadyProcessed
		}
	}
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakePointsRepo) GetEarnedEntryByOrder(_ context.Context, orderID string) (*models.PointsEntry, error) {
	for _, e := range f.entries {
		if e.Action == models.PointsActionEarned && e.OrderID != nil && *e.OrderID == orderID {
			cp := e
			return &cp, nil
		}
	}
	return nil, models.ErrDataNotFound
}

func (f *fakePointsRepo) GetEntriesByUserID(_ context.Context, userID string) ([]models.PointsEntry, error) {
	var out []models.PointsEntry
	for _, e := range f.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakePointsRepo) GetExpiredEarnedEntries(_ context.Context, now time.Time) ([]models.PointsEntry, error) {
	var out []models.PointsEntry
	for _, e := range f.entries {
		if e.Action != models.PointsActionEarned || e.ExpiresAt == nil || e.ExpiresAt.After(now) {
			continue
		}
		if f.hasExpiredRef(e.ID) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakePointsRepo) hasExpiredRef(entryID string) bool {
	for _, e := range f.entries {
		if e.Action == models.PointsActionExpired && e.EntryRef != nil && *e.EntryRef == entryID {
			return true
		}
	}
	return false
}

func (f *fakePointsRepo) GetEarnedEntriesExpiringBetween(_ context.Context, from, until time.Time) ([]models.PointsEntry, error) {
	var out []models.PointsEntry
	for _, e := range f.entries {
		if e.Action != models.PointsActionEarned || e.ExpiresAt == nil {
			continue
		}
		if e.ExpiresAt.After(from) && !e.ExpiresAt.After(until) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakePointsRepo) BackfillExpiry(_ context.Context, months int) (int64, error) {
	var n int64
	for i, e := range f.entries {
		if e.Action == models.PointsActionEarned && e.ExpiresAt == nil {
			exp := e.CreatedAt.AddDate(0, months, 0)
			f.entries[i].ExpiresAt = &exp
			n++
		}
	}
	return n, nil
}

func (f *fakePointsRepo) entriesByAction(action string) []models.PointsEntry {
	var out []models.PointsEntry
	for _, e := range f.entries {
		if e.Action == action {
			out = append(out, e)
		}
	}
	return out
}

type fakeUserRepo struct {
	admins []string
}

func (f *fakeUserRepo) GetAdminIDs(_ context.Context) ([]string, error) {
	return f.admins, nil
}
