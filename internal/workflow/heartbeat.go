package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"framepipe/internal/logging"
	"framepipe/internal/queue"
)

// LeaseKeeper refreshes job leases and reclaims stale ones.
type LeaseKeeper struct {
	store    *queue.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewLeaseKeeper creates a keeper that heartbeats every interval and treats
// leases older than timeout as stale.
func NewLeaseKeeper(store *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *LeaseKeeper {
	return &LeaseKeeper{
		store:    store,
		logger:   logging.NewComponentLogger(logger, "workflow-heartbeat"),
		interval: interval,
		timeout:  timeout,
	}
}

// ReclaimStale clears leases whose heartbeat is older than the timeout.
func (k *LeaseKeeper) ReclaimStale(ctx context.Context) (int64, error) {
	if k.timeout <= 0 {
		return 0, nil
	}
	reclaimed, err := k.store.ReclaimStaleLeases(ctx, time.Now().Add(-k.timeout))
	if err != nil {
		return 0, err
	}
	if reclaimed > 0 {
		k.logger.Info("reclaimed stale leases",
			logging.Int64("count", reclaimed),
			logging.String(logging.FieldEventType, "lease_reclaimed"),
		)
	}
	return reclaimed, nil
}

// Keep refreshes owner's lease on jobID until ctx is cancelled. When another
// worker took the lease, onLost is called once and the loop exits.
func (k *LeaseKeeper) Keep(ctx context.Context, wg *sync.WaitGroup, jobID, owner string, onLost func(error)) {
	defer wg.Done()
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, k.logger)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := k.store.UpdateHeartbeat(ctx, jobID, owner)
			switch {
			case err == nil:
			case errors.Is(err, queue.ErrLeaseLost):
				logger.Warn("job lease lost; abandoning job",
					logging.String(logging.FieldWorker, owner),
					logging.String(logging.FieldEventType, "lease_lost"),
					logging.String(logging.FieldErrorHint, "lease_timeout may be shorter than a stalled store write"),
				)
				if onLost != nil {
					onLost(err)
				}
				return
			case errors.Is(err, context.Canceled):
				return
			default:
				logger.Warn("lease heartbeat failed", logging.Error(err))
			}
		}
	}
}
