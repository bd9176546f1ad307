// Package stores opens the embedding and metadata stores on the backend
// selected in configuration. Both stores share one connection: catalog.db
// for sqlite, one pgx pool for postgres.
package stores

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"framepipe/internal/config"
	"framepipe/internal/embedstore"
	"framepipe/internal/metastore"
	"framepipe/internal/pgdb"
	"framepipe/internal/services"
	"framepipe/internal/sqlitedb"
)

// Set holds the opened stores and the shared connection behind them.
type Set struct {
	Backend    string
	Embeddings embedstore.Store
	Metadata   metastore.Store

	db   *sql.DB
	pool *pgxpool.Pool
}

// Open opens both stores for cfg.
func Open(ctx context.Context, cfg *config.Config) (*Set, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	switch cfg.Stores.Backend {
	case config.BackendSQLite, "":
		return OpenSQLite(ctx, cfg.CatalogDBPath())
	case config.BackendPostgres:
		return OpenPostgres(ctx, cfg.Stores.PostgresURL)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "stores", "open",
			fmt.Sprintf("unsupported backend %q", cfg.Stores.Backend), nil)
	}
}

// OpenSQLite opens both stores in the database at path.
func OpenSQLite(ctx context.Context, path string) (*Set, error) {
	db, err := sqlitedb.Open(path)
	if err != nil {
		return nil, err
	}
	embeddings, err := embedstore.NewSQLite(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	metadata, err := metastore.NewSQLite(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Set{Backend: config.BackendSQLite, Embeddings: embeddings, Metadata: metadata, db: db}, nil
}

// OpenPostgres opens both stores on one pool.
func OpenPostgres(ctx context.Context, connString string) (*Set, error) {
	pool, err := pgdb.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}
	embeddings, err := embedstore.NewPostgres(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	metadata, err := metastore.NewPostgres(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &Set{Backend: config.BackendPostgres, Embeddings: embeddings, Metadata: metadata, pool: pool}, nil
}

// Ping checks the shared connection.
func (s *Set) Ping(ctx context.Context) error {
	switch {
	case s.db != nil:
		return s.db.PingContext(ctx)
	case s.pool != nil:
		return s.pool.Ping(ctx)
	default:
		return errors.New("stores not open")
	}
}

// Close releases the shared connection.
func (s *Set) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.db != nil {
		err = s.db.Close()
		s.db = nil
	}
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	return err
}
