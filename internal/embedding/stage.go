package embedding

import (
	"context"
	"log/slog"

	"framepipe/internal/activity"
	"framepipe/internal/config"
	"framepipe/internal/logging"
	"framepipe/internal/queue"
	"framepipe/internal/services"
	"framepipe/internal/stage"
)

// Stage is the process stage.
type Stage struct {
	processor *BatchProcessor
	logger    *slog.Logger
}

// NewStage wraps processor as a pipeline stage.
func NewStage(processor *BatchProcessor, logger *slog.Logger) *Stage {
	return &Stage{processor: processor, logger: logging.NewComponentLogger(logger, "embedding")}
}

// Name implements stage.Handler.
func (s *Stage) Name() string { return config.ActivityProcess }

// Execute implements stage.Handler.
func (s *Stage) Execute(ctx context.Context, attempt *activity.Attempt, job *queue.Job) ([]string, error) {
	units, err := stage.RequireUnits(s.Name(), job)
	if err != nil {
		return nil, err
	}
	ctx = services.WithAttempt(ctx, attempt.Number)
	ids, err := s.processor.Process(ctx, attempt, job.ID, units)
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, s.logger).Info("frames embedded",
		logging.Int("units", len(ids)),
		logging.String("model", s.processor.embedder.Name()),
		logging.String(logging.FieldEventType, "process_complete"),
	)
	return ids, nil
}

// HealthCheck implements stage.Handler.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	switch {
	case s.processor == nil:
		return stage.Unhealthy(s.Name(), "batch processor not configured")
	case s.processor.embedder == nil:
		return stage.Unhealthy(s.Name(), "embedder not configured")
	case s.processor.store == nil:
		return stage.Unhealthy(s.Name(), "embedding store not configured")
	case s.processor.reader == nil:
		return stage.Unhealthy(s.Name(), "artifact reader not configured")
	}
	return stage.Healthy(s.Name())
}
