package stage

import (
	"context"

	"framepipe/internal/activity"
	"framepipe/internal/queue"
)

// Handler describes the contract the orchestrator needs from each stage.
// Execute runs inside one activity attempt and returns the stage output. It
// must tolerate being called again for the same job after a failed attempt.
type Handler[T any] interface {
	Name() string
	Execute(ctx context.Context, attempt *activity.Attempt, job *queue.Job) (T, error)
	HealthCheck(ctx context.Context) Health
}
