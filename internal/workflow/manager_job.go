package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"framepipe/internal/logging"
	"framepipe/internal/queue"
	"framepipe/internal/services"
)

func (m *Manager) processJob(ctx context.Context, logger *slog.Logger, owner string, job *queue.Job) error {
	jobCtx, cancel := context.WithCancelCause(withJobContext(ctx, job, uuid.NewString()))
	defer cancel(nil)
	logger = logging.WithContext(jobCtx, logger)

	started := time.Now()
	logger.Info("job leased",
		logging.String("status", string(job.Status)),
		logging.String("input_ref", job.InputRef),
		logging.Int("run", job.Run),
		logging.String(logging.FieldEventType, "job_leased"),
	)
	m.setLastJob(job)

	hbCtx, hbCancel := context.WithCancel(jobCtx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.lease.Keep(hbCtx, &hbWG, job.ID, owner, func(err error) { cancel(err) })

	runErr := m.orchestrator.Run(jobCtx, job)
	hbCancel()
	hbWG.Wait()

	if cause := context.Cause(jobCtx); errors.Is(cause, queue.ErrLeaseLost) {
		m.setLastError(cause)
		m.setLastJob(job)
		return cause
	}
	m.releaseLease(ctx, logger, job, owner)
	m.setLastJob(job)

	switch {
	case runErr == nil:
		logger.Info("job finished",
			logging.String("status", string(job.Status)),
			logging.Duration("duration", time.Since(started)),
			logging.String(logging.FieldEventType, "job_finished"),
		)
		return nil
	case ctx.Err() != nil:
		logger.Info("job interrupted by shutdown",
			logging.String("status", string(job.Status)),
			logging.String(logging.FieldEventType, "job_interrupted"),
		)
		return runErr
	default:
		m.setLastError(runErr)
		logger.Error("job run failed; lease released for retry",
			logging.String("status", string(job.Status)),
			logging.Error(runErr),
			logging.String(logging.FieldEventType, "job_run_error"),
			logging.String(logging.FieldErrorHint, "check job database access"),
		)
		return runErr
	}
}

// releaseLease drops the lease even when ctx is already cancelled. On
// shutdown the progress message records that the worker stopped.
func (m *Manager) releaseLease(ctx context.Context, logger *slog.Logger, job *queue.Job, owner string) {
	releaseCtx := context.WithoutCancel(ctx)
	var err error
	if ctx.Err() != nil {
		_, err = m.store.ReleaseOwner(releaseCtx, owner)
	} else {
		err = m.store.Release(releaseCtx, job.ID, owner)
	}
	if err != nil {
		logger.Warn("failed to release job lease; it will be reclaimed when stale",
			logging.Error(err),
			logging.String(logging.FieldEventType, "lease_release_failed"),
		)
	}
}

func withJobContext(ctx context.Context, job *queue.Job, requestID string) context.Context {
	if job != nil {
		ctx = services.WithJobID(ctx, job.ID)
	}
	if requestID != "" {
		ctx = services.WithRequestID(ctx, requestID)
	}
	return ctx
}
