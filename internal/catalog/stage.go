// Package catalog implements the store stage: one metadata row is recorded
// for every embedded frame, numbered from 1 in unit order.
//
// The metadata table accepts duplicates, so the stage reads the sequence
// numbers already present for the job and only inserts the missing ones. A
// retried attempt therefore never doubles rows written by an earlier one.
// Only units of the job's current run are numbered; embeddings left by an
// earlier run that extracted more frames are skipped.
package catalog

import (
	"context"
	"log/slog"

	"framepipe/internal/activity"
	"framepipe/internal/config"
	"framepipe/internal/embedstore"
	"framepipe/internal/faults"
	"framepipe/internal/frames"
	"framepipe/internal/logging"
	"framepipe/internal/metastore"
	"framepipe/internal/queue"
	"framepipe/internal/stage"
)

// Stage records metadata rows for a job.
type Stage struct {
	embeddings embedstore.Store
	metadata   metastore.Store
	faults     *faults.Injector
	logger     *slog.Logger
}

// NewStage constructs the store stage.
func NewStage(embeddings embedstore.Store, metadata metastore.Store, injector *faults.Injector, logger *slog.Logger) *Stage {
	return &Stage{
		embeddings: embeddings,
		metadata:   metadata,
		faults:     injector,
		logger:     logging.NewComponentLogger(logger, "catalog"),
	}
}

// Name implements stage.Handler.
func (s *Stage) Name() string { return config.ActivityStore }

// Execute implements stage.Handler. It returns the number of metadata rows
// the job has once the attempt finishes.
func (s *Stage) Execute(ctx context.Context, attempt *activity.Attempt, job *queue.Job) (int, error) {
	units, err := stage.RequireUnits(s.Name(), job)
	if err != nil {
		return 0, err
	}
	stored, err := s.embeddings.ListUnits(ctx, job.ID)
	if err != nil {
		return 0, err
	}
	current := currentUnits(units, stored)
	if orphaned := len(stored) - len(current); orphaned > 0 {
		logging.WithContext(ctx, s.logger).Warn("skipping embeddings from an earlier run",
			logging.Int("orphaned", orphaned),
			logging.Int("units", len(units)),
			logging.String(logging.FieldEventType, "orphaned_embeddings"),
		)
	}
	present, err := s.metadata.Sequences(ctx, job.ID)
	if err != nil {
		return 0, err
	}
	have := make(map[int]struct{}, len(present))
	for _, seq := range present {
		have[seq] = struct{}{}
	}

	inserted := 0
	for i, unit := range current {
		sequence := i + 1
		attempt.Heartbeat(stage.ProgressMessage("recording", sequence, len(current)))
		if _, ok := have[sequence]; ok {
			continue
		}
		if err := s.faults.Check(s.Name(), attempt.Number, faults.PointBeforeWrite); err != nil {
			return 0, err
		}
		record, err := metastore.NewRecord(job.ID, unit.ArtifactRef, sequence)
		if err != nil {
			return 0, err
		}
		if err := s.metadata.InsertRow(ctx, record); err != nil {
			return 0, err
		}
		inserted++
	}

	rows := len(current)
	logging.WithContext(ctx, s.logger).Info("metadata recorded",
		logging.Int("rows", rows),
		logging.Int("inserted", inserted),
		logging.Int("already_present", rows-inserted),
		logging.String(logging.FieldEventType, "store_complete"),
	)
	return rows, nil
}

// currentUnits returns the units that have a stored embedding, in unit order.
func currentUnits(units []frames.Unit, stored []string) []frames.Unit {
	embedded := make(map[string]struct{}, len(stored))
	for _, id := range stored {
		embedded[id] = struct{}{}
	}
	current := make([]frames.Unit, 0, len(units))
	for _, unit := range units {
		if _, ok := embedded[unit.ID]; ok {
			current = append(current, unit)
		}
	}
	return current
}

// HealthCheck implements stage.Handler.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s.embeddings == nil || s.metadata == nil {
		return stage.Unhealthy(s.Name(), "stores not configured")
	}
	return stage.Healthy(s.Name())
}
