package workflow

import (
	"context"
	"errors"

	"framepipe/internal/frames"
	"framepipe/internal/stage"
)

// StageSet bundles the handlers for the three activities.
type StageSet struct {
	Extract stage.Handler[[]frames.Unit]
	Process stage.Handler[[]string]
	Store   stage.Handler[int]
}

// Validate reports a missing handler.
func (s StageSet) Validate() error {
	switch {
	case s.Extract == nil:
		return errors.New("extract stage not configured")
	case s.Process == nil:
		return errors.New("process stage not configured")
	case s.Store == nil:
		return errors.New("store stage not configured")
	}
	return nil
}

// Health calls every stage health check.
func (s StageSet) Health(ctx context.Context) map[string]stage.Health {
	health := make(map[string]stage.Health, 3)
	if s.Extract != nil {
		health[s.Extract.Name()] = s.Extract.HealthCheck(ctx)
	}
	if s.Process != nil {
		health[s.Process.Name()] = s.Process.HealthCheck(ctx)
	}
	if s.Store != nil {
		health[s.Store.Name()] = s.Store.HealthCheck(ctx)
	}
	return health
}
