package models

import "time"

// notification type
const (
	NotificationTypeOrder   = "order"
	NotificationTypePayment = "payment"
	NotificationTypePoints  = "points"
)

// Notification is persisted user notification,
// mutated only by read-flag update or bulk delete
type Notification struct {
	ID        string
	UserID    string
	Type      string
	Title     string
	Message   string
	Read      bool
	Link      string
	CreatedAt time.Time
}
