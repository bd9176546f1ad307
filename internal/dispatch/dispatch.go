// Package dispatch hands pending jobs to workers.
//
// The job store is always the source of truth: a worker only runs a job after
// it leased the row. The store source polls for unowned jobs directly. The
// valkey source waits on a list of job ids pushed at submit time and falls
// back to polling the store, so reclaimed leases and jobs submitted while
// valkey was unreachable still run.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"framepipe/internal/config"
	"framepipe/internal/queue"
	"framepipe/internal/services"
)

// Source yields leased jobs.
type Source interface {
	// Next leases the next runnable job to owner, or returns (nil, nil) when
	// nothing is available right now.
	Next(ctx context.Context, owner string) (*queue.Job, error)
	// Publish announces a submitted job.
	Publish(ctx context.Context, jobID string) error
	Close() error
}

// New builds the source selected in cfg.
func New(ctx context.Context, cfg *config.Config, store *queue.Store, logger *slog.Logger) (Source, error) {
	if store == nil {
		return nil, errors.New("queue store is required")
	}
	switch cfg.Dispatch.Backend {
	case config.DispatchStore, "":
		return NewStoreSource(store), nil
	case config.DispatchValkey:
		return DialValkey(ctx, cfg.Dispatch, store, time.Duration(cfg.Workflow.QueuePollInterval)*time.Second, logger)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "dispatch", "select backend",
			fmt.Sprintf("unsupported backend %q", cfg.Dispatch.Backend), nil)
	}
}

// StoreSource leases jobs straight from the job store.
type StoreSource struct {
	store *queue.Store
}

// NewStoreSource returns a polling source.
func NewStoreSource(store *queue.Store) *StoreSource {
	return &StoreSource{store: store}
}

// Next implements Source.
func (s *StoreSource) Next(ctx context.Context, owner string) (*queue.Job, error) {
	return s.store.ClaimNext(ctx, owner)
}

// Publish implements Source. Workers find the row on their next poll.
func (s *StoreSource) Publish(context.Context, string) error { return nil }

// Close implements Source.
func (s *StoreSource) Close() error { return nil }
