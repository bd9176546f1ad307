// Package embedstore persists frame embeddings keyed by (job_id, unit_id).
//
// Writes are idempotent upserts: the first vector written for a key wins and
// later writes for the same key are no-ops. Exists is the read side the
// embedding stage uses to skip units that were already processed.
package embedstore

import (
	"context"
	"strings"
	"time"

	"framepipe/internal/embedder"
	"framepipe/internal/services"
)

// Embedding is one stored vector.
type Embedding struct {
	JobID       string
	UnitID      string
	UnitIndex   int
	ArtifactRef string
	Model       string
	Vector      []float32
	CreatedAt   time.Time
}

// Store is the embedding persistence contract.
type Store interface {
	// Exists reports whether an embedding is stored for the key.
	Exists(ctx context.Context, jobID, unitID string) (bool, error)
	// Upsert stores e unless the key already exists. inserted is false for
	// the no-op case.
	Upsert(ctx context.Context, e Embedding) (inserted bool, err error)
	// Get returns the stored embedding or an ErrNotFound error.
	Get(ctx context.Context, jobID, unitID string) (Embedding, error)
	// ListUnits returns the stored unit ids of a job ordered by unit index.
	ListUnits(ctx context.Context, jobID string) ([]string, error)
	Count(ctx context.Context, jobID string) (int, error)
	Close() error
}

// Validate checks the key fields and vector width of e.
func Validate(e Embedding) error {
	if strings.TrimSpace(e.JobID) == "" || strings.TrimSpace(e.UnitID) == "" {
		return services.Wrap(services.ErrInvalidInput, "embedstore", "validate", "job id and unit id are required", nil)
	}
	if e.UnitIndex < 0 {
		return services.Wrap(services.ErrInvalidInput, "embedstore", "validate", "unit index must not be negative", nil)
	}
	return embedder.Validate(e.Vector, embedder.Dimensions)
}
