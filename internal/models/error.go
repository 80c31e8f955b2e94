package models

import "errors"

var (
	ErrConflictData        = errors.New("data conflicts with existing data")
	ErrDataNotFound        = errors.New("data not found")
	ErrOrderNotFound       = errors.New("order not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidTransition   = errors.New("status is not reachable from current state")
	ErrTransitionFailed    = errors.New("transition could not be committed")
	ErrInsufficientBalance = errors.New("insufficient points balance")
	ErrNotEWalletOrder     = errors.New("order is not paid by e-wallet")
	ErrAlreadyProcessed    = errors.New("operation has already been processed")
	ErrInternalError       = errors.New("internal error")
)
