package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/roastery/cafemart/internal/logger"
	"github.com/roastery/cafemart/internal/metrics"
	"github.com/roastery/cafemart/internal/models"
	"go.uber.org/zap"
)

// NotificationChecker checks for an already-raised notification by its
// stable link key
type NotificationChecker interface {
	ExistsByLink(ctx context.Context, userID, link string) (bool, error)
}

// SweepResult summarizes one expiry sweep run
type SweepResult struct {
	Expired    int
	Backfilled int64
	Warned     int
}

// SweepService ages out unclaimed points and raises advance warnings.
// The three steps are independent: a failure in one is logged and does
// not abort the others.
type SweepService struct {
	points        PointsRepository
	notifications NotificationChecker
	notifier      Notifier
	tx            TxRunner
	now           func() time.Time
}

// NewSweepService creates new SweepService instance
func NewSweepService(points PointsRepository, notifications NotificationChecker, notifier Notifier, tx TxRunner) *SweepService {
	return &SweepService{
		points:        points,
		notifications: notifications,
		notifier:      notifier,
		tx:            tx,
		now:           time.Now,
	}
}

// Run performs one expiry sweep
func (ss *SweepService) Run(ctx context.Context) SweepResult {
	metrics.ExpirySweepRunsTotal.Inc()

	res := SweepResult{
		Expired:    ss.expireAgedOut(ctx),
		Backfilled: ss.backfillExpiry(ctx),
		Warned:     ss.warnExpiringSoon(ctx),
	}

	logger.Log.Info("expiry sweep finished",
		zap.Int("expired", res.Expired),
		zap.Int64("backfilled", res.Backfilled),
		zap.Int("warned", res.Warned))

	return res
}

// expireAgedOut expires every earned entry past its expiry that has not
// been expired yet. Each entry is its own atomic unit: the expired ledger
// entry is written first so its per-entry uniqueness guard makes a rerun
// of the sweep a no-op, then the balance is debited clamped at zero.
func (ss *SweepService) expireAgedOut(ctx context.Context) int {
	entries, err := ss.points.GetExpiredEarnedEntries(ctx, ss.now())
	if err != nil {
		logger.Log.Error("sweep: list expired entries", zap.Error(err))
		return 0
	}

	expired := 0
	for _, e := range entries {
		e := e
		err := ss.tx.WithinTx(ctx, func(ctx context.Context) error {
			entry := models.PointsEntry{
				ID:        uuid.New().String(),
				UserID:    e.UserID,
				Action:    models.PointsActionExpired,
				Points:    e.Points,
				OrderID:   e.OrderID,
				EntryRef:  &e.ID,
				CreatedAt: ss.now(),
			}
			if err := ss.points.AppendEntry(ctx, &entry); err != nil {
				return err
			}

			if _, err := ss.points.DeductUpTo(ctx, e.UserID, e.Points); err != nil {
				return err
			}

			return ss.notifier.Notify(ctx, e.UserID, models.NotificationTypePoints,
				"Points expired",
				fmt.Sprintf("%d loyalty points have expired.", e.Points),
				"/points")
		})
		if err != nil {
			if errors.Is(err, models.ErrAlreadyProcessed) {
				continue
			}
			logger.Log.Error("sweep: expire entry",
				zap.String("entry_id", e.ID),
				zap.Error(err))
			continue
		}

		expired++
		metrics.PointsEntriesTotal.WithLabelValues(models.PointsActionExpired).Inc()
		metrics.PointsExpiredTotal.Add(float64(e.Points))
	}

	return expired
}

// backfillExpiry stamps legacy earned entries that miss an expiry
func (ss *SweepService) backfillExpiry(ctx context.Context) int64 {
	n, err := ss.points.BackfillExpiry(ctx, models.PointsLifetimeMonths)
	if err != nil {
		logger.Log.Error("sweep: backfill expiry", zap.Error(err))
		return 0
	}

	return n
}

// warnExpiringSoon raises one advance warning per earned entry expiring
// within the warning window, deduplicated by the stable link key
func (ss *SweepService) warnExpiringSoon(ctx context.Context) int {
	now := ss.now()
	until := now.AddDate(0, 0, models.PointsWarnBeforeDays)

	entries, err := ss.points.GetEarnedEntriesExpiringBetween(ctx, now, until)
	if err != nil {
		logger.Log.Error("sweep: list expiring entries", zap.Error(err))
		return 0
	}

	warned := 0
	for _, e := range entries {
		link := "/points#expiring-" + e.ID

		exists, err := ss.notifications.ExistsByLink(ctx, e.UserID, link)
		if err != nil {
			logger.Log.Error("sweep: check warning", zap.String("entry_id", e.ID), zap.Error(err))
			continue
		}
		if exists {
			continue
		}

		err = ss.notifier.Notify(ctx, e.UserID, models.NotificationTypePoints,
			"Points expiring soon",
			fmt.Sprintf("%d loyalty points will expire on %s.", e.Points, e.ExpiresAt.Format("2006-01-02")),
			link)
		if err != nil {
			logger.Log.Error("sweep: warn user", zap.String("entry_id", e.ID), zap.Error(err))
			continue
		}

		warned++
	}

	return warned
}
