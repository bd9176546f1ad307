package queue

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Transition moves job to status to, persisting the stage outputs carried on
// job (units, completed unit ids, stored row count). The update only applies
// when the row still has the status and run job was read with; otherwise
// ErrConflict is returned and job is left untouched.
func (s *Store) Transition(ctx context.Context, job *Job, to Status) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if !job.Status.CanAdvanceTo(to) {
		return fmt.Errorf("%w: %s cannot move from %s to %s", ErrConflict, job.ID, job.Status, to)
	}
	units, err := encodeUnits(job.Units)
	if err != nil {
		return err
	}
	completed, err := encodeIDs(job.CompletedUnits)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	var completedAt *time.Time
	if to == StatusCompleted {
		completedAt = &now
	}
	stage := to.Label()
	message := ""
	if to == StatusCompleted {
		message = fmt.Sprintf("Stored %d rows", job.StoredRows)
	}

	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, attempt = 0, progress_stage = ?, progress_message = ?,
             error_message = NULL, error_kind = NULL,
             units_json = ?, completed_json = ?, stored_rows = ?,
             updated_at = ?, completed_at = ?
         WHERE id = ? AND status = ? AND run = ?`,
		to,
		stage,
		nullableString(message),
		units,
		completed,
		job.StoredRows,
		formatTime(now),
		nullableTime(completedAt),
		job.ID,
		job.Status,
		job.Run,
	)
	if err != nil {
		return fmt.Errorf("transition job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s is no longer %s in run %d", ErrConflict, job.ID, job.Status, job.Run)
	}

	job.Status = to
	job.Attempt = 0
	job.ProgressStage = stage
	job.ProgressMessage = message
	job.ErrorMessage = ""
	job.ErrorKind = ""
	job.UpdatedAt = now
	job.CompletedAt = completedAt
	return nil
}

// Fail marks job failed with the terminal error message, its classification,
// and the number of attempts the failing activity consumed. Outputs of earlier
// stages stay on the row.
func (s *Store) Fail(ctx context.Context, job *Job, message, kind string, attempts int) error {
	if job == nil {
		return errors.New("job is nil")
	}
	if !job.Status.CanAdvanceTo(StatusFailed) {
		return fmt.Errorf("%w: %s is already %s", ErrConflict, job.ID, job.Status)
	}
	now := s.now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, attempt = ?, error_message = ?, error_kind = ?,
             progress_message = ?, updated_at = ?
         WHERE id = ? AND status = ? AND run = ?`,
		StatusFailed,
		attempts,
		nullableString(message),
		nullableString(kind),
		"Failed",
		formatTime(now),
		job.ID,
		job.Status,
		job.Run,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s is no longer %s in run %d", ErrConflict, job.ID, job.Status, job.Run)
	}

	job.Status = StatusFailed
	job.Attempt = attempts
	job.ErrorMessage = message
	job.ErrorKind = kind
	job.ProgressMessage = "Failed"
	job.UpdatedAt = now
	return nil
}

// UpdateProgress records attempt and heartbeat progress for a job without
// changing its status.
func (s *Store) UpdateProgress(ctx context.Context, id, stage string, attempt int, message string) error {
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET progress_stage = ?, attempt = ?, progress_message = ?, updated_at = ? WHERE id = ?`,
		nullableString(stage),
		attempt,
		nullableString(message),
		s.timestamp(),
		id,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}
