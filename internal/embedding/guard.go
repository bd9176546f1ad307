package embedding

import (
	"context"
	"errors"

	"framepipe/internal/embedstore"
	"framepipe/internal/services"
)

// Guard reports whether a unit already has a stored embedding.
type Guard struct {
	store embedstore.Store
}

// NewGuard returns a guard reading from store.
func NewGuard(store embedstore.Store) *Guard {
	return &Guard{store: store}
}

// Exists queries the store. A failed query is returned wrapped as transient
// and never treated as "not processed". Markers already on err still apply,
// so a misconfigured store stays terminal.
func (g *Guard) Exists(ctx context.Context, jobID, unitID string) (bool, error) {
	exists, err := g.store.Exists(ctx, jobID, unitID)
	if err == nil {
		return exists, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false, err
	}
	return false, services.Wrap(services.ErrTransient, "process", "idempotency check", unitID, err)
}
