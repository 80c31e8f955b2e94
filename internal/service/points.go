package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/roastery/cafemart/internal/metrics"
	"github.com/roastery/cafemart/internal/models"
)

// PointsRepository is interface for interacting with loyalty-points data.
// Balance mutations are relative increments and decrements against the
// stored value, never absolute overwrites.
type PointsRepository interface {
	// GetBalance returns current points balance, zero when absent
	GetBalance(ctx context.Context, userID string) (int, error)
	// AddPoints credits amount to user balance, creating the row lazily
	AddPoints(ctx context.Context, userID string, amount int) error
	// SpendPoints debits exactly amount, ErrInsufficientBalance otherwise
	SpendPoints(ctx context.Context, userID string, amount int) error
	// DeductUpTo debits min(balance, amount), returns debited amount
	DeductUpTo(ctx context.Context, userID string, amount int) (int, error)
	// AppendEntry appends ledger entry, ErrAlreadyProcessed on duplicate guard
	AppendEntry(ctx context.Context, entry *models.PointsEntry) error
	// GetEarnedEntryByOrder returns the earned entry of order if any
	GetEarnedEntryByOrder(ctx context.Context, orderID string) (*models.PointsEntry, error)
	// GetEntriesByUserID returns points history of user
	GetEntriesByUserID(ctx context.Context, userID string) ([]models.PointsEntry, error)
	// GetExpiredEarnedEntries returns aged-out earned entries without expired entry
	GetExpiredEarnedEntries(ctx context.Context, now time.Time) ([]models.PointsEntry, error)
	// GetEarnedEntriesExpiringBetween returns earned entries expiring in (from, until]
	GetEarnedEntriesExpiringBetween(ctx context.Context, from, until time.Time) ([]models.PointsEntry, error)
	// BackfillExpiry sets missing expiry to months after creation
	BackfillExpiry(ctx context.Context, months int) (int64, error)
}

// PointsService implements PointsService interface
type PointsService struct {
	repo PointsRepository
	tx   TxRunner
	now  func() time.Time
}

// NewPointsService creates new PointsService instance
func NewPointsService(repo PointsRepository, tx TxRunner) *PointsService {
	return &PointsService{
		repo: repo,
		tx:   tx,
		now:  time.Now,
	}
}

// GetBalance returns current user points balance
func (ps *PointsService) GetBalance(ctx context.Context, userID string) (int, error) {
	return ps.repo.GetBalance(ctx, userID)
}

// GetHistory returns points ledger history of user
func (ps *PointsService) GetHistory(ctx context.Context, userID string) ([]models.PointsEntry, error) {
	return ps.repo.GetEntriesByUserID(ctx, userID)
}

// Redeem debits amount from user balance and appends a redeemed entry
// in one atomic unit. Returns the updated balance.
func (ps *PointsService) Redeem(ctx context.Context, userID string, amount int) (int, error) {
	err := ps.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := ps.repo.SpendPoints(ctx, userID, amount); err != nil {
			return err
		}

		entry := models.PointsEntry{
			ID:        uuid.New().String(),
			UserID:    userID,
			Action:    models.PointsActionRedeemed,
			Points:    amount,
			CreatedAt: ps.now(),
		}
		return ps.repo.AppendEntry(ctx, &entry)
	})
	if err != nil {
		return 0, err
	}

	metrics.PointsEntriesTotal.WithLabelValues(models.PointsActionRedeemed).Inc()

	return ps.repo.GetBalance(ctx, userID)
}
