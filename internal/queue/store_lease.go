package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"framepipe/internal/sqlitedb"
)

// ErrLeaseLost reports that the caller no longer owns the job lease.
var ErrLeaseLost = errors.New("job lease lost")

var terminalArgs = []any{StatusCompleted, StatusFailed}

// ClaimNext leases the oldest unowned, non-terminal job to owner. It returns
// (nil, nil) when nothing is available.
func (s *Store) ClaimNext(ctx context.Context, owner string) (*Job, error) {
	if owner == "" {
		return nil, errors.New("lease owner is required")
	}
	ctx = ensureContext(ctx)
	timestamp := s.timestamp()
	query := `UPDATE jobs
        SET owner = ?, last_heartbeat = ?, updated_at = ?
        WHERE id = (
            SELECT id FROM jobs
            WHERE owner IS NULL AND status NOT IN (?, ?)
            ORDER BY created_at, id
            LIMIT 1
        ) AND owner IS NULL
        RETURNING ` + jobColumns

	var job *Job
	err := sqlitedb.RetryOnBusy(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, owner, timestamp, timestamp, terminalArgs[0], terminalArgs[1])
		if err != nil {
			return err
		}
		defer rows.Close()
		job = nil
		if rows.Next() {
			scanned, err := scanJob(rows)
			if err != nil {
				return err
			}
			job = scanned
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("claim next job: %w", err)
	}
	return job, nil
}

// Claim leases a specific job to owner. It returns (nil, nil) when the job is
// missing, terminal, or already leased.
func (s *Store) Claim(ctx context.Context, id, owner string) (*Job, error) {
	if owner == "" {
		return nil, errors.New("lease owner is required")
	}
	timestamp := s.timestamp()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET owner = ?, last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND owner IS NULL AND status NOT IN (?, ?)`,
		owner,
		timestamp,
		timestamp,
		id,
		terminalArgs[0],
		terminalArgs[1],
	)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}
	return s.GetByID(ctx, id)
}

// Release drops owner's lease on a job.
func (s *Store) Release(ctx context.Context, id, owner string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET owner = NULL, last_heartbeat = NULL, updated_at = ? WHERE id = ? AND owner = ?`,
		s.timestamp(),
		id,
		owner,
	); err != nil {
		return fmt.Errorf("release job: %w", err)
	}
	return nil
}

// UpdateHeartbeat refreshes owner's lease on a job. ErrLeaseLost is returned
// when another worker reclaimed it.
func (s *Store) UpdateHeartbeat(ctx context.Context, id, owner string) error {
	timestamp := s.timestamp()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND owner = ?`,
		timestamp,
		timestamp,
		id,
		owner,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrLeaseLost, id)
	}
	return nil
}

// ReclaimStaleLeases clears leases whose heartbeat is older than cutoff so
// another worker can resume the job. The job status and stage outputs are
// kept; the next owner continues from the recorded stage.
func (s *Store) ReclaimStaleLeases(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET owner = NULL, last_heartbeat = NULL,
             progress_message = 'Reclaimed from stale lease', updated_at = ?
         WHERE owner IS NOT NULL AND status NOT IN (?, ?)
           AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		s.timestamp(),
		terminalArgs[0],
		terminalArgs[1],
		formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale leases: %w", err)
	}
	return res.RowsAffected()
}

// ReleaseOwner drops every lease held by owner, used when a worker shuts down.
func (s *Store) ReleaseOwner(ctx context.Context, owner string) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs SET owner = NULL, last_heartbeat = NULL, progress_message = ?, updated_at = ?
         WHERE owner = ? AND status NOT IN (?, ?)`,
		WorkerStopReason,
		s.timestamp(),
		owner,
		terminalArgs[0],
		terminalArgs[1],
	)
	if err != nil {
		return 0, fmt.Errorf("release owner leases: %w", err)
	}
	return res.RowsAffected()
}
