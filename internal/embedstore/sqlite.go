package embedstore

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

// SQLite stores embeddings as little-endian float32 blobs.
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

// NewSQLite uses an existing database handle. Close leaves db open.
func NewSQLite(ctx context.Context, db *sql.DB) (*SQLite, error) {
	if err := sqlitedb.EnsureSchema(ctx, db, "embeddings", sqliteSchemaVersion, sqliteSchema); err != nil {
		return nil, err
	}
	return &SQLite{db: db, now: time.Now}, nil
}

// Exists implements Store.
func (s *SQLite) Exists(ctx context.Context, jobID, unitID string) (bool, error) {
	var found int
	err := sqlitedb.RetryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM embeddings WHERE job_id = ? AND unit_id = ?`, jobID, unitID,
		).Scan(&found)
	})
	if err != nil {
		return false, wrapSQLite("exists", err)
	}
	return found > 0, nil
}

// Upsert implements Store.
func (s *SQLite) Upsert(ctx context.Context, e Embedding) (bool, error) {
	if err := Validate(e); err != nil {
		return false, err
	}
	res, err := sqlitedb.Exec(ctx, s.db,
		`INSERT INTO embeddings (job_id, unit_id, unit_index, artifact_ref, model, dims, vector, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(job_id, unit_id) DO NOTHING`,
		e.JobID,
		e.UnitID,
		e.UnitIndex,
		e.ArtifactRef,
		e.Model,
		len(e.Vector),
		encodeVector(e.Vector),
		s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, wrapSQLite("upsert", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, wrapSQLite("upsert", err)
	}
	return affected > 0, nil
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, jobID, unitID string) (Embedding, error) {
	var (
		e          Embedding
		model      sql.NullString
		blob       []byte
		createdRaw string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT job_id, unit_id, unit_index, artifact_ref, model, vector, created_at
         FROM embeddings WHERE job_id = ? AND unit_id = ?`, jobID, unitID,
	).Scan(&e.JobID, &e.UnitID, &e.UnitIndex, &e.ArtifactRef, &model, &blob, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return Embedding{}, services.Wrap(services.ErrNotFound, "embedstore", "get", jobID+"/"+unitID, nil)
	}
	if err != nil {
		return Embedding{}, wrapSQLite("get", err)
	}
	e.Model = model.String
	if e.Vector, err = decodeVector(blob); err != nil {
		return Embedding{}, services.Wrap(services.ErrInvalidInput, "embedstore", "decode vector", unitID, err)
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		e.CreatedAt = created
	}
	return e, nil
}

// ListUnits implements Store.
func (s *SQLite) ListUnits(ctx context.Context, jobID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT unit_id FROM embeddings WHERE job_id = ? ORDER BY unit_index`, jobID)
	if err != nil {
		return nil, wrapSQLite("list units", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, wrapSQLite("list units", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapSQLite("list units", err)
	}
	return ids, nil
}

// Count implements Store.
func (s *SQLite) Count(ctx context.Context, jobID string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM embeddings WHERE job_id = ?`, jobID).Scan(&count); err != nil {
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
	return services.Wrap(services.ErrTransient, "embedstore", operation, "", err)
}
