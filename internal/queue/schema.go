package queue

import (
	"context"
	_ "embed"
	"fmt"

	"framepipe/internal/sqlitedb"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion changes whenever schema.sql does. Older job databases must be
// deleted; jobs are cheap to resubmit.
const schemaVersion = 1

// ErrSchemaMismatch indicates the job database was created by another schema version.
var ErrSchemaMismatch = sqlitedb.ErrSchemaMismatch

func (s *Store) initSchema(ctx context.Context) error {
	if err := sqlitedb.EnsureSchema(ctx, s.db, "jobs", schemaVersion, schemaSQL); err != nil {
		return fmt.Errorf("%w (delete %s to start over)", err, s.path)
	}
	return nil
}
