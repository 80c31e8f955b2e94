package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/roastery/cafemart/internal/models"
	"github.com/roastery/cafemart/internal/repository/postgres"
)

const (
	selectBalanceQuery = `
						SELECT balance FROM loyalty_points
						WHERE user_id = $1
`
	upsertAddPointsQuery = `
						INSERT INTO loyalty_points (user_id, balance)
						VALUES ($1, $2)
						ON CONFLICT (user_id) DO UPDATE SET balance = loyalty_points.balance + EXCLUDED.balance
`
	spendPointsQuery = `
						UPDATE loyalty_points
						SET balance = balance - $2
						WHERE user_id = $1 AND balance >= $2
`
	deductUpToQuery = `
						WITH cur AS (
							SELECT balance FROM loyalty_points
							WHERE user_id = $1
							FOR UPDATE
						)
						UPDATE loyalty_points lp
						SET balance = lp.balance - LEAST(cur.balance, $2)
						FROM cur
						WHERE lp.user_id = $1
						RETURNING LEAST(cur.balance, $2)
`
	insertEntryQuery = `
						INSERT INTO points_history (id, user_id, action, points, order_id, entry_ref, expires_at, created_at)
						VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
	selectEarnedByOrderQuery = `
						SELECT id, user_id, action, points, order_id, entry_ref, expires_at, created_at
						FROM points_history
						WHERE order_id = $1 AND action = 'earned'
`
	selectEntriesByUserIDQuery = `
						SELECT id, user_id, action, points, order_id, entry_ref, expires_at, created_at
						FROM points_history
						WHERE user_id = $1
						ORDER BY created_at DESC
`
	selectExpiredEarnedQuery = `
						SELECT e.id, e.user_id, e.action, e.points, e.order_id, e.entry_ref, e.expires_at, e.created_at
						FROM points_history e
						WHERE e.action = 'earned'
						  AND e.expires_at IS NOT NULL
						  AND e.expires_at <= $1
						  AND NOT EXISTS (
							SELECT 1 FROM points_history x
							WHERE x.action = 'expired' AND x.entry_ref = e.id
						  )
						ORDER BY e.expires_at
`
	selectExpiringEarnedQuery = `
						SELECT e.id, e.user_id, e.action, e.points, e.order_id, e.entry_ref, e.expires_at, e.created_at
						FROM points_history e
						WHERE e.action = 'earned'
						  AND e.expires_at > $1
						  AND e.expires_at <= $2
						ORDER BY e.expires_at
`
	backfillExpiryQuery = `
						UPDATE points_history
						SET expires_at = created_at + make_interval(months => $1)
						WHERE action = 'earned' AND expires_at IS NULL
`
)

// PointsRepository implements PointsRepository interface
type PointsRepository struct {
	db *postgres.DB
}

// NewPointsRepository creates new PointsRepository instance
func NewPointsRepository(db *postgres.DB) *PointsRepository {
	return &PointsRepository{db: db}
}

// GetBalance returns current points balance, zero when the
// balance row has not been created yet
func (pr *PointsRepository) GetBalance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := pr.db.QueryRow(ctx, selectBalanceQuery, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}

	return balance, nil
}

// AddPoints credits amount to user balance, creating the balance row lazily
func (pr *PointsRepository) AddPoints(ctx context.Context, userID string, amount int) error {
	_, err := pr.db.Exec(ctx, upsertAddPointsQuery, userID, amount)
	return err
}

// SpendPoints debits exactly amount from user balance.
// Returns ErrInsufficientBalance when balance is smaller than amount.
func (pr *PointsRepository) SpendPoints(ctx context.Context, userID string, amount int) error {
	cmd, err := pr.db.Exec(ctx, spendPointsQuery, userID, amount)
	if err != nil {
		return err
	}

	if cmd.RowsAffected() == 0 {
		return models.ErrInsufficientBalance
	}

	return nil
}

// DeductUpTo debits min(balance, amount) from user balance and
// returns the amount actually debited
func (pr *PointsRepository) DeductUpTo(ctx context.Context, userID string, amount int) (int, error) {
	var deducted int
	err := pr.db.QueryRow(ctx, deductUpToQuery, userID, amount).Scan(&deducted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// no balance row, nothing to deduct
			return 0, nil
		}
		return 0, err
	}

	return deducted, nil
}

// AppendEntry appends immutable ledger entry. The partial unique indexes
// on earned/expired entries make the write itself the idempotency guard:
// a duplicate reports ErrAlreadyProcessed.
func (pr *PointsRepository) AppendEntry(ctx context.Context, entry *models.PointsEntry) error {
	_, err := pr.db.Exec(ctx, insertEntryQuery,
		entry.ID, entry.UserID, entry.Action, entry.Points, entry.OrderID, entry.EntryRef, entry.ExpiresAt, entry.CreatedAt)
	if err != nil {
		if pr.db.IsUniqueViolation(err) {
			return models.ErrAlreadyProcessed
		}
		return err
	}

	return nil
}

// GetEarnedEntryByOrder returns the earned entry of order if any
func (pr *PointsRepository) GetEarnedEntryByOrder(ctx context.Context, orderID string) (*models.PointsEntry, error) {
	entry := models.PointsEntry{}
	err := pr.db.QueryRow(ctx, selectEarnedByOrderQuery, orderID).Scan(
		&entry.ID, &entry.UserID, &entry.Action, &entry.Points, &entry.OrderID, &entry.EntryRef, &entry.ExpiresAt, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrDataNotFound
		}
		return nil, err
	}

	return &entry, nil
}

// GetEntriesByUserID returns points history of user, newest first
func (pr *PointsRepository) GetEntriesByUserID(ctx context.Context, userID string) ([]models.PointsEntry, error) {
	return pr.queryEntries(ctx, selectEntriesByUserIDQuery, userID)
}

// GetExpiredEarnedEntries returns earned entries whose expiry has passed
// and which have not produced an expired entry yet
func (pr *PointsRepository) GetExpiredEarnedEntries(ctx context.Context, now time.Time) ([]models.PointsEntry, error) {
	return pr.queryEntries(ctx, selectExpiredEarnedQuery, now)
}

// GetEarnedEntriesExpiringBetween returns earned entries expiring in (from, until]
func (pr *PointsRepository) GetEarnedEntriesExpiringBetween(ctx context.Context, from, until time.Time) ([]models.PointsEntry, error) {
	return pr.queryEntries(ctx, selectExpiringEarnedQuery, from, until)
}

// BackfillExpiry sets missing expiry of earned entries to
// months after their creation time, returns number of touched rows
func (pr *PointsRepository) BackfillExpiry(ctx context.Context, months int) (int64, error) {
	cmd, err := pr.db.Exec(ctx, backfillExpiryQuery, months)
	if err != nil {
		return 0, err
	}

	return cmd.RowsAffected(), nil
}

func (pr *PointsRepository) queryEntries(ctx context.Context, query string, args ...any) ([]models.PointsEntry, error) {
	rows, err := pr.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.PointsEntry

	for rows.Next() {
		entry := models.PointsEntry{}
		err = rows.Scan(&entry.ID, &entry.UserID, &entry.Action, &entry.Points, &entry.OrderID, &entry.EntryRef, &entry.ExpiresAt, &entry.CreatedAt)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
