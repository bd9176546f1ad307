// Package faults injects transient failures into activity attempts so the
// retry path can be exercised end to end.
package faults

import (
	"fmt"
	"log/slog"
	"slices"

	"framepipe/internal/config"
	"framepipe/internal/logging"
	"framepipe/internal/services"
)

// Injection points inside an activity.
const (
	PointBeforeCompute = "before_compute"
	PointBeforeWrite   = "before_write"
	PointBeforeExtract = "before_extract"
)

// Injector raises a transient error while the attempt number is at or below
// FailAttempts. A nil or disabled injector never fails.
type Injector struct {
	enabled      bool
	failAttempts int
	activities   []string
	logger       *slog.Logger
}

// New builds an injector from the faults section.
func New(cfg config.Faults, logger *slog.Logger) *Injector {
	return &Injector{
		enabled:      cfg.Enabled,
		failAttempts: cfg.FailAttempts,
		activities:   slices.Clone(cfg.Activities),
		logger:       logging.NewComponentLogger(logger, "faults"),
	}
}

// Disabled returns an injector that never fails.
func Disabled() *Injector {
	return &Injector{}
}

// Enabled reports whether the injector can fail anything.
func (i *Injector) Enabled() bool {
	return i != nil && i.enabled && i.failAttempts > 0
}

// Check returns an injected transient error for activity when attempt is at
// or below the configured threshold.
func (i *Injector) Check(activity string, attempt int, point string) error {
	if !i.Enabled() || attempt > i.failAttempts {
		return nil
	}
	if len(i.activities) > 0 && !slices.Contains(i.activities, activity) {
		return nil
	}
	if i.logger != nil {
		i.logger.Debug("injecting failure",
			logging.String("activity", activity),
			logging.Int(logging.FieldAttempt, attempt),
			logging.String("point", point),
		)
	}
	return services.Wrap(services.ErrTransient, activity, point,
		fmt.Sprintf("injected failure on attempt %d", attempt), nil)
}
