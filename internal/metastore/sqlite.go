package metastore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"time"

	"framepipe/internal/services"
	"framepipe/internal/sqlitedb"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

const sqliteSchemaVersion = 1

// SQLite is the default metadata backend.
type SQLite struct {
	db    *sql.DB
	owned bool
	now   func() time.Time
}

// OpenSQLite opens (and owns) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sqlitedb.Open(path)
	if err != nil {
		return nil, err
	}
	store, err := NewSQLite(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	store.owned = true
	return store, nil
}

// NewSQLite uses an existing handle. Close leaves db open.
func NewSQLite(ctx context.Context, db *sql.DB) (*SQLite, error) {
	if err := sqlitedb.EnsureSchema(ctx, db, "metadata", sqliteSchemaVersion, sqliteSchema); err != nil {
		return nil, err
	}
	return &SQLite{db: db, now: time.Now}, nil
}

// InsertRow implements Store.
func (s *SQLite) InsertRow(ctx context.Context, r Record) error {
	if err := validate(r); err != nil {
		return err
	}
	recordedAt := r.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = s.now()
	}
	if _, err := sqlitedb.Exec(ctx, s.db,
		`INSERT INTO metadata (job_id, artifact_ref, sequence_number, recorded_at) VALUES (?, ?, ?, ?)`,
		r.JobID, r.ArtifactRef, r.Sequence, recordedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return wrapSQLite("insert row", err)
	}
	return nil
}

// Sequences implements Store.
func (s *SQLite) Sequences(ctx context.Context, jobID string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT sequence_number FROM metadata WHERE job_id = ? ORDER BY sequence_number`, jobID)
	if err != nil {
		return nil, wrapSQLite("sequences", err)
	}
	defer rows.Close()

	var seqs []int
	for rows.Next() {
		var seq int
		if err := rows.Scan(&seq); err != nil {
			return nil, wrapSQLite("sequences", err)
		}
		seqs = append(seqs, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapSQLite("sequences", err)
	}
	return seqs, nil
}

// Rows implements Store.
func (s *SQLite) Rows(ctx context.Context, jobID string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, artifact_ref, sequence_number, recorded_at FROM metadata
         WHERE job_id = ? ORDER BY sequence_number, id`, jobID)
	if err != nil {
		return nil, wrapSQLite("rows", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r   Record
			raw string
		)
		if err := rows.Scan(&r.JobID, &r.ArtifactRef, &r.Sequence, &raw); err != nil {
			return nil, wrapSQLite("rows", err)
		}
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			r.RecordedAt = ts
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapSQLite("rows", err)
	}
	return records, nil
}

// Count implements Store.
func (s *SQLite) Count(ctx context.Context, jobID string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM metadata WHERE job_id = ?`, jobID).Scan(&count); err != nil {
		return 0, wrapSQLite("count", err)
	}
	return count, nil
}

// Close implements Store.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil || !s.owned {
		return nil
	}
	return s.db.Close()
}

func wrapSQLite(operation string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return services.Wrap(services.ErrTransient, "metastore", operation, "", err)
}
