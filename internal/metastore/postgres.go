package metastore

import (
	"context"
	_ "embed"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"framepipe/internal/pgdb"
)

//go:embed schema_postgres.sql
var postgresSchema string

// Postgres stores metadata rows in PostgreSQL.
type Postgres struct {
	pool  *pgxpool.Pool
	owned bool
}

// OpenPostgres connects to connString and owns the pool.
func OpenPostgres(ctx context.Context, connString string) (*Postgres, error) {
	pool, err := pgdb.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}
	store, err := NewPostgres(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	store.owned = true
	return store, nil
}

// NewPostgres uses an existing pool. Close leaves the pool open.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, pgdb.Wrap("metastore", "create schema", err)
	}
	return &Postgres{pool: pool}, nil
}

// InsertRow implements Store.
func (p *Postgres) InsertRow(ctx context.Context, r Record) error {
	if err := validate(r); err != nil {
		return err
	}
	var err error
	if r.RecordedAt.IsZero() {
		_, err = p.pool.Exec(ctx,
			`INSERT INTO metadata (job_id, artifact_ref, sequence_number) VALUES ($1, $2, $3)`,
			r.JobID, r.ArtifactRef, r.Sequence)
	} else {
		_, err = p.pool.Exec(ctx,
			`INSERT INTO metadata (job_id, artifact_ref, sequence_number, recorded_at) VALUES ($1, $2, $3, $4)`,
			r.JobID, r.ArtifactRef, r.Sequence, r.RecordedAt)
	}
	if err != nil {
		return pgdb.Wrap("metastore", "insert row", err)
	}
	return nil
}

// Sequences implements Store.
func (p *Postgres) Sequences(ctx context.Context, jobID string) ([]int, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT DISTINCT sequence_number FROM metadata WHERE job_id = $1 ORDER BY sequence_number`, jobID)
	if err != nil {
		return nil, pgdb.Wrap("metastore", "sequences", err)
	}
	seqs, err := pgx.CollectRows(rows, pgx.RowTo[int])
	if err != nil {
		return nil, pgdb.Wrap("metastore", "sequences", err)
	}
	return seqs, nil
}

// Rows implements Store.
func (p *Postgres) Rows(ctx context.Context, jobID string) ([]Record, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT job_id, artifact_ref, sequence_number, recorded_at FROM metadata
         WHERE job_id = $1 ORDER BY sequence_number, id`, jobID)
	if err != nil {
		return nil, pgdb.Wrap("metastore", "rows", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var r Record
		err := row.Scan(&r.JobID, &r.ArtifactRef, &r.Sequence, &r.RecordedAt)
		return r, err
	})
	if err != nil {
		return nil, pgdb.Wrap("metastore", "rows", err)
	}
	return records, nil
}

// Count implements Store.
func (p *Postgres) Count(ctx context.Context, jobID string) (int, error) {
	var count int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(1) FROM metadata WHERE job_id = $1`, jobID).Scan(&count); err != nil {
		return 0, pgdb.Wrap("metastore", "count", err)
	}
	return count, nil
}

// Close implements Store.
func (p *Postgres) Close() error {
	if p != nil && p.pool != nil && p.owned {
		p.pool.Close()
	}
	return nil
}
