package worker

import (
	"context"
	"time"

	"github.com/roastery/cafemart/internal/logger"
	"github.com/roastery/cafemart/internal/service"
)

type SweepService interface {
	Run(ctx context.Context) service.SweepResult
}

// ExpirySweeper is worker performs periodic points expiry sweeps
type ExpirySweeper struct {
	svc      SweepService
	interval time.Duration
}

// NewExpirySweeper creates new expiry sweeper
func NewExpirySweeper(svc SweepService, interval time.Duration) *ExpirySweeper {
	return &ExpirySweeper{svc: svc, interval: interval}
}

// Sweep runs one sweep on start and then one per interval until ctx is done
func (es *ExpirySweeper) Sweep(ctx context.Context) {
	es.svc.Run(ctx)

	ticker := time.NewTicker(es.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Debug("expiry sweeper is done")
			return
		case <-ticker.C:
			es.svc.Run(ctx)
		}
	}
}
