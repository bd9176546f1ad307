package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"framepipe/internal/logging"
	"framepipe/internal/queue"
)

// Start begins background processing with worker_count workers.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.orchestrator == nil {
		m.mu.Unlock()
		return errors.New("workflow orchestrator not configured")
	}
	workers := m.cfg.Workflow.WorkerCount
	if workers < 1 {
		workers = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(workers + 1)
	m.mu.Unlock()

	m.runPreflightChecks(runCtx)

	go m.runReclaimer(runCtx)
	for n := 1; n <= workers; n++ {
		go m.runWorker(runCtx, m.workerOwner(n))
	}
	m.logger.Info("workflow started",
		logging.Int("workers", workers),
		logging.String("instance", m.instance),
		logging.String(logging.FieldEventType, "workflow_start"),
	)
	return nil
}

// Stop terminates background processing and waits for workers to release
// their jobs.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stop"))
}

func (m *Manager) runWorker(ctx context.Context, owner string) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String(logging.FieldWorker, owner))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := m.source.Next(ctx, owner)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.handleNextJobError(ctx, logger, err)
			continue
		}
		if job == nil {
			m.waitForJobOrShutdown(ctx, m.pollInterval)
			continue
		}

		if err := m.processJob(ctx, logger, owner, job); err != nil {
			if ctx.Err() != nil {
				return
			}
			m.waitForJobOrShutdown(ctx, m.errorInterval)
		}
	}
}

func (m *Manager) runReclaimer(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.lease.interval)
	defer ticker.Stop()

	for {
		if _, err := m.lease.ReclaimStale(ctx); err != nil && ctx.Err() == nil {
			m.logger.Warn("reclaim stale leases failed; stuck jobs may remain",
				logging.Error(err),
				logging.String(logging.FieldEventType, "lease_reclaim_failed"),
				logging.String(logging.FieldErrorHint, "check job database access"),
			)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (m *Manager) handleNextJobError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logger.Error("failed to lease next job",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_fetch_failed"),
		logging.String(logging.FieldErrorHint, "check job database and dispatch access"),
	)
	m.waitForJobOrShutdown(ctx, m.errorInterval)
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context, wait time.Duration) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// RunJob leases jobID and drives it to a terminal status in the calling
// goroutine. It returns the job as stored afterwards.
func (m *Manager) RunJob(ctx context.Context, jobID string) (*queue.Job, error) {
	if m.orchestrator == nil {
		return nil, errors.New("workflow orchestrator not configured")
	}
	owner := m.instance + "/inline"
	job, err := m.store.Claim(ctx, jobID, owner)
	if err != nil {
		return nil, err
	}
	if job == nil {
		current, err := m.store.GetByID(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, errors.New("job not found")
		}
		if current.Status.IsTerminal() {
			return current, nil
		}
		return nil, errors.New("job is leased by another worker")
	}
	if err := m.processJob(ctx, m.logger, owner, job); err != nil {
		return nil, err
	}
	return m.store.GetByID(context.WithoutCancel(ctx), jobID)
}
