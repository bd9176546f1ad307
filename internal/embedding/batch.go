package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"framepipe/internal/activity"
	"framepipe/internal/artifacts"
	"framepipe/internal/config"
	"framepipe/internal/embedder"
	"framepipe/internal/embedstore"
	"framepipe/internal/faults"
	"framepipe/internal/frames"
	"framepipe/internal/logging"
	"framepipe/internal/services"
	"framepipe/internal/stage"
)

const progressBucket = 10.0

// BatchProcessor embeds units in order, batch by batch.
type BatchProcessor struct {
	guard     *Guard
	store     embedstore.Store
	embedder  embedder.Embedder
	reader    artifacts.Reader
	faults    *faults.Injector
	batchSize int
	logger    *slog.Logger
}

// NewBatchProcessor wires a processor. batchSize below 1 processes one unit
// per batch.
func NewBatchProcessor(store embedstore.Store, model embedder.Embedder, reader artifacts.Reader, injector *faults.Injector, batchSize int, logger *slog.Logger) *BatchProcessor {
	if batchSize < 1 {
		batchSize = 1
	}
	return &BatchProcessor{
		guard:     NewGuard(store),
		store:     store,
		embedder:  model,
		reader:    reader,
		faults:    injector,
		batchSize: batchSize,
		logger:    logging.NewComponentLogger(logger, "batch-processor"),
	}
}

// Batches splits units into consecutive slices of at most size units.
func Batches(units []frames.Unit, size int) [][]frames.Unit {
	if size < 1 {
		size = 1
	}
	batches := make([][]frames.Unit, 0, (len(units)+size-1)/size)
	for start := 0; start < len(units); start += size {
		end := min(start+size, len(units))
		batches = append(batches, units[start:end])
	}
	return batches
}

// Process embeds every unit of jobID and returns the completed unit ids in
// input order. Units that already have an embedding are skipped. The attempt
// number for fault injection is read from ctx.
func (p *BatchProcessor) Process(ctx context.Context, hb activity.Heartbeater, jobID string, units []frames.Unit) ([]string, error) {
	if hb == nil {
		hb = nopHeartbeater{}
	}
	attempt, _ := services.AttemptFromContext(ctx)
	logger := logging.WithContext(ctx, p.logger)
	sampler := logging.NewProgressSampler(progressBucket)

	total := len(units)
	completed := make([]string, 0, total)
	skipped := 0
	batches := Batches(units, p.batchSize)
	for b, batch := range batches {
		logger.Debug("batch started",
			logging.Int("batch", b+1),
			logging.Int("batches", len(batches)),
			logging.Int("size", len(batch)),
		)
		for _, unit := range batch {
			position := len(completed) + 1
			hb.Heartbeat(stage.ProgressMessage("starting", position, total))

			done, err := p.guard.Exists(ctx, jobID, unit.ID)
			if err != nil {
				return nil, err
			}
			if done {
				skipped++
			} else if err := p.embedUnit(ctx, hb, attempt, jobID, unit); err != nil {
				logger.Warn("unit embedding failed",
					logging.String(logging.FieldUnitID, unit.ID),
					logging.Int("position", position),
					logging.Error(err),
					logging.String(logging.FieldEventType, "unit_embed_failed"),
				)
				return nil, err
			}

			completed = append(completed, unit.ID)
			hb.Heartbeat(stage.ProgressMessage("completed", position, total))
			if sampler.ShouldLog(position, total) {
				logger.Info("embedding progress",
					logging.Int("completed", position),
					logging.Int("total", total),
					logging.Float64("percent", stage.Percent(position, total)),
				)
			}
		}
		logger.Info("batch completed",
			logging.Int("batch", b+1),
			logging.Int("batches", len(batches)),
			logging.Int("size", len(batch)),
			logging.String(logging.FieldEventType, "batch_complete"),
		)
	}
	if skipped > 0 {
		logger.Info("skipped units with stored embeddings",
			logging.Int("skipped", skipped),
			logging.Int("total", total),
		)
	}
	return completed, nil
}

func (p *BatchProcessor) embedUnit(ctx context.Context, hb activity.Heartbeater, attempt int, jobID string, unit frames.Unit) error {
	if err := p.faults.Check(config.ActivityProcess, attempt, faults.PointBeforeCompute); err != nil {
		return err
	}
	frame, err := p.reader.Read(ctx, unit.ArtifactRef)
	if err != nil {
		return err
	}
	vector, err := p.embedder.Embed(ctx, hb, frame)
	if err != nil {
		return err
	}
	// The attempt may have been abandoned while the model was running.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.faults.Check(config.ActivityProcess, attempt, faults.PointBeforeWrite); err != nil {
		return err
	}
	_, err = p.store.Upsert(ctx, embedstore.Embedding{
		JobID:       jobID,
		UnitID:      unit.ID,
		UnitIndex:   unit.Index,
		ArtifactRef: unit.ArtifactRef,
		Model:       p.embedder.Name(),
		Vector:      vector,
	})
	if err != nil {
		return fmt.Errorf("store embedding for %s: %w", unit.ID, err)
	}
	return nil
}

type nopHeartbeater struct{}

func (nopHeartbeater) Heartbeat(string) {}
