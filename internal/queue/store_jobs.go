package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrConflict reports that a job changed underneath a compare-and-swap update.
var ErrConflict = errors.New("job state conflict")

// Submit registers inputRef as a job. Submitting an input that already has a
// job returns that job; a failed job is reset to pending under a new run.
// created reports whether a new row (or a new run) was started.
func (s *Store) Submit(ctx context.Context, inputRef string) (*Job, bool, error) {
	ref := NormalizeInputRef(inputRef)
	if ref == "" {
		return nil, false, errors.New("input reference is required")
	}
	id := JobIDFor(ref)
	timestamp := s.timestamp()

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (id, input_ref, status, run, attempt, progress_stage, progress_message, stored_rows, created_at, updated_at)
         VALUES (?, ?, ?, 1, 0, ?, ?, 0, ?, ?)
         ON CONFLICT(id) DO NOTHING`,
		id,
		ref,
		StatusPending,
		"Queued",
		"Waiting for a worker",
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		job, err := s.GetByID(ctx, id)
		return job, true, err
	}

	restarted, err := s.RetryFailed(ctx, id)
	if err != nil {
		return nil, false, err
	}
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if job == nil {
		return nil, false, fmt.Errorf("job %s disappeared during submit", id)
	}
	return job, restarted > 0, nil
}

// GetByID fetches a job by identifier. A missing job yields (nil, nil).
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// FindByPrefix resolves a job from a full id or a unique id prefix.
func (s *Store) FindByPrefix(ctx context.Context, prefix string) (*Job, error) {
	if job, err := s.GetByID(ctx, prefix); err != nil || job != nil {
		return job, err
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id LIKE ? || '%' ORDER BY created_at LIMIT 2`, prefix)
	if err != nil {
		return nil, fmt.Errorf("find job by prefix: %w", err)
	}
	defer rows.Close()

	var matches []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("job id prefix %q is ambiguous", prefix)
	}
}

// List returns jobs filtered by status set (or all jobs when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)
	ctx = ensureContext(ctx)

	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		query := baseQuery + ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, statusArgs(statuses)...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Remove deletes a job by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed jobs.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed jobs.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes every job that is not currently leased by a worker.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE owner IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return res.RowsAffected()
}
