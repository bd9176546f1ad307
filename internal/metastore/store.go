// Package metastore records one append-only metadata row per stored frame.
//
// The table carries no uniqueness constraint. Callers that need
// exactly-once rows read Sequences first and skip numbers already present.
package metastore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"framepipe/internal/services"
)

// Record is one metadata row. Sequence is 1-based within a job.
type Record struct {
	JobID       string
	ArtifactRef string
	Sequence    int
	RecordedAt  time.Time
}

// NewRecord validates and builds a Record.
func NewRecord(jobID, artifactRef string, sequence int) (Record, error) {
	jobID = strings.TrimSpace(jobID)
	artifactRef = strings.TrimSpace(artifactRef)
	switch {
	case jobID == "":
		return Record{}, services.Wrap(services.ErrInvalidInput, "metastore", "new record", "job id is required", nil)
	case artifactRef == "":
		return Record{}, services.Wrap(services.ErrInvalidInput, "metastore", "new record", "artifact ref is required", nil)
	case sequence < 1:
		return Record{}, services.Wrap(services.ErrInvalidInput, "metastore", "new record",
			fmt.Sprintf("sequence must be at least 1, got %d", sequence), nil)
	}
	return Record{JobID: jobID, ArtifactRef: artifactRef, Sequence: sequence}, nil
}

// Store is the metadata persistence contract.
type Store interface {
	InsertRow(ctx context.Context, r Record) error
	// Sequences returns the sequence numbers stored for jobID, ascending and
	// without duplicates.
	Sequences(ctx context.Context, jobID string) ([]int, error)
	// Rows returns the stored rows of jobID ordered by sequence.
	Rows(ctx context.Context, jobID string) ([]Record, error)
	Count(ctx context.Context, jobID string) (int, error)
	Close() error
}

func validate(r Record) error {
	_, err := NewRecord(r.JobID, r.ArtifactRef, r.Sequence)
	return err
}
