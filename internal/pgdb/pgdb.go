// Package pgdb opens the PostgreSQL pool shared by the embedding and
// metadata stores and classifies driver errors.
package pgdb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"framepipe/internal/services"
)

// Connect creates a connection pool and verifies it with a ping.
func Connect(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	if strings.TrimSpace(connString) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "postgres", "connect", "connection string is required", nil)
	}

	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "postgres", "parse connection string", "", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "postgres", "create pool", "", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, services.Wrap(services.ErrTransient, "postgres", "ping", "", err)
	}

	return pool, nil
}

// Wrap classifies a driver error for the retry taxonomy. Data exceptions
// (SQLSTATE class 22) and integrity violations other than unique conflicts
// (class 23) are terminal; everything else, including connection failures,
// is transient.
func Wrap(stage, operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return services.Wrap(services.ErrNotFound, stage, operation, "", err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "22"), strings.HasPrefix(pgErr.Code, "23"):
			return services.Wrap(services.ErrInvalidInput, stage, operation, fmt.Sprintf("sqlstate %s", pgErr.Code), err)
		case strings.HasPrefix(pgErr.Code, "42"):
			return services.Wrap(services.ErrConfiguration, stage, operation, fmt.Sprintf("sqlstate %s", pgErr.Code), err)
		}
	}
	return services.Wrap(services.ErrTransient, stage, operation, "", err)
}
