package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"framepipe/internal/frames"
)

const jobColumns = "id, input_ref, status, run, attempt, progress_stage, progress_message, error_message, error_kind, units_json, completed_json, stored_rows, owner, last_heartbeat, created_at, updated_at, completed_at"

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id               string
		inputRef         string
		statusStr        string
		run              int
		attempt          int
		progressStage    sql.NullString
		progressMessage  sql.NullString
		errorMessage     sql.NullString
		errorKind        sql.NullString
		unitsRaw         sql.NullString
		completedRaw     sql.NullString
		storedRows       int
		owner            sql.NullString
		lastHeartbeatRaw sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		completedAtRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&inputRef,
		&statusStr,
		&run,
		&attempt,
		&progressStage,
		&progressMessage,
		&errorMessage,
		&errorKind,
		&unitsRaw,
		&completedRaw,
		&storedRows,
		&owner,
		&lastHeartbeatRaw,
		&createdRaw,
		&updatedRaw,
		&completedAtRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		InputRef:        inputRef,
		Status:          Status(statusStr),
		Run:             run,
		Attempt:         attempt,
		ProgressStage:   progressStage.String,
		ProgressMessage: progressMessage.String,
		ErrorMessage:    errorMessage.String,
		ErrorKind:       errorKind.String,
		StoredRows:      storedRows,
		Owner:           owner.String,
	}
	if unitsRaw.Valid && unitsRaw.String != "" {
		if err := json.Unmarshal([]byte(unitsRaw.String), &job.Units); err != nil {
			return nil, fmt.Errorf("decode units for job %s: %w", id, err)
		}
	}
	if completedRaw.Valid && completedRaw.String != "" {
		if err := json.Unmarshal([]byte(completedRaw.String), &job.CompletedUnits); err != nil {
			return nil, fmt.Errorf("decode completed units for job %s: %w", id, err)
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	if completedAtRaw.Valid {
		if completed, err := parseTimeString(completedAtRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	return job, nil
}

func encodeUnits(units []frames.Unit) (any, error) {
	if len(units) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(units)
	if err != nil {
		return nil, fmt.Errorf("encode units: %w", err)
	}
	return string(data), nil
}

func encodeIDs(ids []string) (any, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("encode unit ids: %w", err)
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return formatTime(*value)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func statusArgs(statuses []Status) []any {
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = status
	}
	return args
}
