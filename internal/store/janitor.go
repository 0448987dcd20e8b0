package store

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Janitor periodically removes terminal jobs older than the retention window,
// which is also what makes stale job IDs report not-found again.
type Janitor struct {
	store     JobStore
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
}

// NewJanitor creates a retention janitor. interval controls how often the
// sweep runs; retention is how long terminal jobs stay visible.
func NewJanitor(s JobStore, retention, interval time.Duration, logger *zap.Logger) *Janitor {
	return &Janitor{
		store:     s,
		retention: retention,
		interval:  interval,
		logger:    logger,
	}
}

// Run sweeps until the context is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-j.retention)
	purged, err := j.store.PurgeExpired(ctx, cutoff)
	if err != nil {
		j.logger.Error("Retention sweep failed", zap.Error(err))
		return
	}
	if purged > 0 {
		j.logger.Info("Purged expired jobs",
			zap.Int("purged", purged),
			zap.Time("cutoff", cutoff),
		)
	}
}
