package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/gofrs/flock"

	"framepipe/internal/config"
	"framepipe/internal/dispatch"
	"framepipe/internal/logging"
	"framepipe/internal/queue"
	"framepipe/internal/workflow"
)

// Daemon coordinates the worker pool and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	source   dispatch.Source
	workflow *workflow.Manager

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Workflow     workflow.StatusSummary
	JobDBPath    string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, source dispatch.Source, wf *workflow.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || source == nil || wf == nil {
		return nil, errors.New("daemon requires config, store, dispatch source, and workflow manager")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		source:   source,
		workflow: wf,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the worker lock and launches the workflow manager.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another framepipe worker is already running (lock %s)", d.lockPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.workflow.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		return fmt.Errorf("start workflow: %w", err)
	}
	d.cancel = cancel

	d.running.Store(true)
	d.logger.Info("framepipe worker started",
		logging.String("lock", d.lockPath),
		logging.String("instance", d.workflow.Instance()),
		logging.String(logging.FieldEventType, "daemon_start"),
	)
	return nil
}

// Stop stops background processing and releases the worker lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release worker lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("framepipe worker stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close stops the daemon and closes the dispatch source. The job store is
// owned by the caller.
func (d *Daemon) Close() error {
	d.Stop()
	return d.source.Close()
}

// Submit registers inputRef and announces the job to the dispatch source.
// A publish failure is logged; polling still finds the job.
func (d *Daemon) Submit(ctx context.Context, inputRef string) (*queue.Job, bool, error) {
	job, created, err := d.store.Submit(ctx, inputRef)
	if err != nil {
		return nil, false, fmt.Errorf("submit job: %w", err)
	}
	if created {
		if err := d.source.Publish(ctx, job.ID); err != nil {
			d.logger.Warn("failed to publish job; workers will find it by polling",
				logging.String(logging.FieldJobID, job.ID),
				logging.Error(err),
				logging.String(logging.FieldEventType, "job_publish_failed"),
				logging.String(logging.FieldErrorHint, "check valkey connectivity"),
			)
		}
		d.logger.Info("job queued",
			logging.String(logging.FieldJobID, job.ID),
			logging.String("input_ref", job.InputRef),
			logging.Int("run", job.Run),
			logging.String(logging.FieldEventType, "job_queued"),
		)
	}
	return job, created, nil
}

// RetryFailed starts a new run for the failed jobs in ids (every failed job
// when ids is empty) and publishes them to the dispatch source.
func (d *Daemon) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	if len(ids) == 0 {
		failed, err := d.store.List(ctx, queue.StatusFailed)
		if err != nil {
			return 0, err
		}
		for _, job := range failed {
			ids = append(ids, job.ID)
		}
		if len(ids) == 0 {
			return 0, nil
		}
	}
	count, err := d.store.RetryFailed(ctx, ids...)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		job, err := d.store.GetByID(ctx, id)
		if err != nil || job == nil || job.Status != queue.StatusPending {
			continue
		}
		if err := d.source.Publish(ctx, id); err != nil {
			d.logger.Warn("failed to publish retried job",
				logging.String(logging.FieldJobID, id),
				logging.Error(err),
				logging.String(logging.FieldEventType, "job_publish_failed"),
			)
		}
	}
	if count > 0 {
		d.logger.Info("failed jobs requeued",
			logging.Int64("count", count),
			logging.String(logging.FieldEventType, "jobs_retried"),
		)
	}
	return count, nil
}

// RunJob drives one job to a terminal status in the caller's goroutine.
func (d *Daemon) RunJob(ctx context.Context, jobID string) (*queue.Job, error) {
	return d.workflow.RunJob(ctx, jobID)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	return Status{
		Running:      d.running.Load(),
		Workflow:     d.workflow.Status(ctx),
		JobDBPath:    d.cfg.JobDBPath(),
		LockFilePath: d.lockPath,
	}
}
