package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/quickcart/order-service/internal/application"
)

// Reaper periodically deletes terminal idempotency records older than the
// retention window. Terminal records only exist to serve replays; once the
// retention window passes, a retry with the same key is treated as new.
type Reaper struct {
	repo      application.IdempotencyRepository
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger
}

func NewReaper(
	repo application.IdempotencyRepository,
	interval time.Duration,
	retention time.Duration,
	logger *slog.Logger,
) *Reaper {
	return &Reaper{
		repo:      repo,
		interval:  interval,
		retention: retention,
		logger:    logger,
	}
}

func (r *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("starting idempotency reaper", "interval", r.interval, "retention", r.retention)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("stopping idempotency reaper")
			return
		case <-ticker.C:
			r.run(ctx)
		}
	}
}

// RunOnce executes a single reap cycle.
func (r *Reaper) RunOnce(ctx context.Context) {
	r.run(ctx)
}

func (r *Reaper) run(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-r.retention)

	deleted, err := r.repo.DeleteTerminalOlderThan(ctx, cutoff)
	if err != nil {
		r.logger.Error("failed to reap idempotency records", "error", err)
		return
	}

	if deleted > 0 {
		r.logger.Info("reaped idempotency records", "deleted", deleted, "cutoff", cutoff)
	}
}
