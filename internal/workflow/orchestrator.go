package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"framepipe/internal/activity"
	"framepipe/internal/config"
	"framepipe/internal/logging"
	"framepipe/internal/queue"
	"framepipe/internal/services"
	"framepipe/internal/stage"
)

// Orchestrator sequences the activities of one job.
type Orchestrator struct {
	cfg      *config.Config
	store    *queue.Store
	executor *activity.Executor
	stages   StageSet
	logger   *slog.Logger
}

// NewOrchestrator validates stages and returns an orchestrator.
func NewOrchestrator(cfg *config.Config, store *queue.Store, executor *activity.Executor, stages StageSet, logger *slog.Logger) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if store == nil {
		return nil, errors.New("queue store is required")
	}
	if err := stages.Validate(); err != nil {
		return nil, err
	}
	if executor == nil {
		executor = activity.NewExecutor(nil, logger)
	}
	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		executor: executor,
		stages:   stages,
		logger:   logging.NewComponentLogger(logger, "orchestrator"),
	}, nil
}

// Stages exposes the configured handlers.
func (o *Orchestrator) Stages() StageSet {
	return o.stages
}

// Run advances job until it is completed or failed. A terminal activity
// failure marks the job failed and returns nil; later stages do not run and
// earlier outputs are kept. Cancellation and job store errors are returned
// with the job left at its current status for a later resume.
func (o *Orchestrator) Run(ctx context.Context, job *queue.Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	ctx = services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(ctx, o.logger)
	started := time.Now()

	for !job.Status.IsTerminal() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var err error
		switch job.Status {
		case queue.StatusPending:
			err = o.store.Transition(ctx, job, queue.StatusExtracting)
		case queue.StatusExtracting:
			err = o.extract(ctx, job)
		case queue.StatusProcessing:
			err = o.process(ctx, job)
		case queue.StatusStoring:
			err = o.storeRows(ctx, job)
		default:
			err = fmt.Errorf("job %s has unknown status %q", job.ID, job.Status)
		}
		if err != nil {
			return o.handleError(ctx, job, err)
		}
	}

	if job.Status == queue.StatusCompleted {
		logger.Info("job completed",
			logging.Int("units", len(job.Units)),
			logging.Int("stored_rows", job.StoredRows),
			logging.Duration("duration", time.Since(started)),
			logging.String(logging.FieldEventType, "job_complete"),
		)
	}
	return nil
}

func (o *Orchestrator) extract(ctx context.Context, job *queue.Job) error {
	units, err := runStage(ctx, o, job, o.stages.Extract)
	if err != nil {
		return err
	}
	job.Units = units
	return o.store.Transition(ctx, job, queue.StatusProcessing)
}

func (o *Orchestrator) process(ctx context.Context, job *queue.Job) error {
	ids, err := runStage(ctx, o, job, o.stages.Process)
	if err != nil {
		return err
	}
	job.CompletedUnits = ids
	return o.store.Transition(ctx, job, queue.StatusStoring)
}

func (o *Orchestrator) storeRows(ctx context.Context, job *queue.Job) error {
	rows, err := runStage(ctx, o, job, o.stages.Store)
	if err != nil {
		return err
	}
	job.StoredRows = rows
	return o.store.Transition(ctx, job, queue.StatusCompleted)
}

// runStage executes handler as an activity against a snapshot of job. The
// snapshot keeps abandoned attempts from observing later changes to job.
func runStage[T any](ctx context.Context, o *Orchestrator, job *queue.Job, handler stage.Handler[T]) (T, error) {
	name := handler.Name()
	ctx = services.WithStage(ctx, name)
	logger := logging.WithContext(ctx, o.logger)
	snapshot := *job

	observer := newProgressObserver(ctx, o.store, job.ID, logger)
	opts := ActivityOptions(o.cfg, name, observer)

	started := time.Now()
	logger.Info("stage started",
		logging.String("status", string(job.Status)),
		logging.String(logging.FieldEventType, "stage_start"),
	)
	value, err := activity.Run(ctx, o.executor, opts, func(ctx context.Context, attempt *activity.Attempt) (T, error) {
		return handler.Execute(ctx, attempt, &snapshot)
	})
	if err != nil {
		return value, err
	}
	logger.Info("stage completed",
		logging.Int("attempts", observer.Attempts()),
		logging.Duration("stage_duration", time.Since(started)),
		logging.String(logging.FieldEventType, "stage_complete"),
	)
	return value, nil
}

func (o *Orchestrator) handleError(ctx context.Context, job *queue.Job, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return err
	}
	var terminal *activity.TerminalError
	if !errors.As(err, &terminal) {
		return err
	}

	logger := logging.WithContext(services.WithStage(ctx, terminal.Activity), o.logger)
	if failErr := o.store.Fail(ctx, job, terminal.Error(), string(terminal.Kind), terminal.Attempts); failErr != nil {
		logger.Error("failed to persist job failure",
			logging.Error(failErr),
			logging.String(logging.FieldEventType, "job_fail_persist_failed"),
			logging.String(logging.FieldErrorHint, "check job database access"),
		)
		return fmt.Errorf("record failure: %w", failErr)
	}
	logger.Error("job failed",
		logging.Int("attempts", terminal.Attempts),
		logging.String("kind", string(terminal.Kind)),
		logging.Bool("exhausted", terminal.Exhausted),
		logging.Error(terminal.Err),
		logging.Alert("job_failed"),
		logging.String(logging.FieldEventType, "job_failed"),
		logging.String(logging.FieldErrorHint, "fix the cause and run framepipe jobs retry"),
	)
	return nil
}
