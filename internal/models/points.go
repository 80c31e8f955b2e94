package models

import "time"

//earned — баллы начислены за завершённый заказ;
//redeemed — баллы списаны при оформлении заказа;
//refunded — баллы возвращены при отмене заказа;
//expired — баллы сгорели по истечении срока.

// points ledger action
const (
	PointsActionEarned   = "earned"
	PointsActionRedeemed = "redeemed"
	PointsActionRefunded = "refunded"
	PointsActionExpired  = "expired"
)

// expiry windows
const (
	PointsLifetimeMonths = 12
	PointsWarnBeforeDays = 30
)

// Balance is per-user loyalty points balance, created lazily with zero
type Balance struct {
	UserID  string
	Balance int
}

// PointsEntry is one immutable ledger entry of points history
type PointsEntry struct {
	ID        string
	UserID    string
	Action    string
	Points    int
	OrderID   *string
	// EntryRef links a derived entry (expired, earned reversal) to the
	// earned entry it was produced from
	EntryRef  *string
	ExpiresAt *time.Time
	CreatedAt time.Time
}
