package workflow

import (
	"context"

	"framepipe/internal/logging"
	"framepipe/internal/preflight"
)

// runPreflightChecks logs the readiness of directories, binaries, and
// configured backends. Failures do not stop the workers; the affected
// activities fail with their own classified errors.
func (m *Manager) runPreflightChecks(ctx context.Context) int {
	results := preflight.RunAll(ctx, m.cfg)
	failed := 0
	for _, r := range results {
		if r.Passed {
			m.logger.Debug("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
			continue
		}
		failed++
		m.logger.Warn("preflight check failed",
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
			logging.String(logging.FieldEventType, "preflight_failed"),
			logging.String(logging.FieldErrorHint, "fix the reported issue and restart the worker"),
		)
	}
	return failed
}
