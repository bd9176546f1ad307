package embedstore

import (
	"context"
	_ "embed"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"framepipe/internal/pgdb"
	"framepipe/internal/services"
)

//go:embed schema_postgres.sql
var postgresSchema string

// Postgres stores embeddings in a pgvector column.
type Postgres struct {
	pool  *pgxpool.Pool
	owned bool
}

// OpenPostgres connects to connString and owns the resulting pool.
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
		return nil, pgdb.Wrap("embedstore", "create schema", err)
	}
	return &Postgres{pool: pool}, nil
}

// Exists implements Store.
func (p *Postgres) Exists(ctx context.Context, jobID, unitID string) (bool, error) {
	var found bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM embeddings WHERE job_id = $1 AND unit_id = $2)`, jobID, unitID,
	).Scan(&found)
	if err != nil {
		return false, pgdb.Wrap("embedstore", "exists", err)
	}
	return found, nil
}

// Upsert implements Store.
func (p *Postgres) Upsert(ctx context.Context, e Embedding) (bool, error) {
	if err := Validate(e); err != nil {
		return false, err
	}
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO embeddings (job_id, unit_id, unit_index, artifact_ref, model, embedding)
         VALUES ($1, $2, $3, $4, $5, $6)
         ON CONFLICT (job_id, unit_id) DO NOTHING`,
		e.JobID,
		e.UnitID,
		e.UnitIndex,
		e.ArtifactRef,
		e.Model,
		pgvector.NewVector(e.Vector),
	)
	if err != nil {
		return false, pgdb.Wrap("embedstore", "upsert", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Get implements Store.
func (p *Postgres) Get(ctx context.Context, jobID, unitID string) (Embedding, error) {
	var (
		e      Embedding
		model  *string
		vector pgvector.Vector
	)
	err := p.pool.QueryRow(ctx,
		`SELECT job_id, unit_id, unit_index, artifact_ref, model, embedding, created_at
         FROM embeddings WHERE job_id = $1 AND unit_id = $2`, jobID, unitID,
	).Scan(&e.JobID, &e.UnitID, &e.UnitIndex, &e.ArtifactRef, &model, &vector, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Embedding{}, services.Wrap(services.ErrNotFound, "embedstore", "get", jobID+"/"+unitID, nil)
	}
	if err != nil {
		return Embedding{}, pgdb.Wrap("embedstore", "get", err)
	}
	if model != nil {
		e.Model = *model
	}
	e.Vector = vector.Slice()
	return e, nil
}

// ListUnits implements Store.
func (p *Postgres) ListUnits(ctx context.Context, jobID string) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT unit_id FROM embeddings WHERE job_id = $1 ORDER BY unit_index`, jobID)
	if err != nil {
		return nil, pgdb.Wrap("embedstore", "list units", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, pgdb.Wrap("embedstore", "list units", err)
	}
	return ids, nil
}

// Count implements Store.
func (p *Postgres) Count(ctx context.Context, jobID string) (int, error) {
	var count int
	if err := p.pool.QueryRow(ctx, `SELECT COUNT(1) FROM embeddings WHERE job_id = $1`, jobID).Scan(&count); err != nil {
		return 0, pgdb.Wrap("embedstore", "count", err)
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
