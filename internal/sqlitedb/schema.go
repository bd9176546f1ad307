package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrSchemaMismatch reports a database created by a different schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const versionsDDL = `CREATE TABLE IF NOT EXISTS schema_versions (
    component TEXT PRIMARY KEY,
    version INTEGER NOT NULL
)`

// EnsureSchema applies ddl for component the first time it sees the database
// and records version. Later opens only compare versions; a different stored
// version returns ErrSchemaMismatch. Several components can share one file.
func EnsureSchema(ctx context.Context, db *sql.DB, component string, version int, ddl string) error {
	return RetryOnBusy(ctx, func() error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin %s schema: %w", component, err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, versionsDDL); err != nil {
			return fmt.Errorf("create schema_versions: %w", err)
		}
		var stored int
		err = tx.QueryRowContext(ctx, `SELECT version FROM schema_versions WHERE component = ?`, component).Scan(&stored)
		switch {
		case err == nil:
			if stored != version {
				return fmt.Errorf("%w: %s has version %d, expected %d", ErrSchemaMismatch, component, stored, version)
			}
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("read %s schema version: %w", component, err)
		}

		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create %s schema: %w", component, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_versions (component, version) VALUES (?, ?)`, component, version); err != nil {
			return fmt.Errorf("record %s schema version: %w", component, err)
		}
		return tx.Commit()
	})
}
