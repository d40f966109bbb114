package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/whtouche/gather-sub002/internal/waitlist"
)

// Reaper periodically expires lapsed waitlist seat offers and hands the seat
// to the next entrant.
type Reaper struct {
	waitlist *waitlist.Service
	interval time.Duration
	batch    int
	logger   *zap.Logger
}

// NewReaper creates a waitlist offer reaper.
func NewReaper(svc *waitlist.Service, interval time.Duration, batch int, logger *zap.Logger) *Reaper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reaper{waitlist: svc, interval: interval, batch: batch, logger: logger}
}

// Run ticks until ctx is done.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper stopping")
			return
		case <-ticker.C:
			n, err := r.waitlist.ReapExpired(ctx, r.batch)
			if err != nil {
				r.logger.Error("reap expired offers", zap.Error(err))
				continue
			}
			if n > 0 {
				r.logger.Info("expired offers reaped", zap.Int("count", n))
			}
		}
	}
}
