package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"framepipe/internal/activity"
	"framepipe/internal/logging"
	"framepipe/internal/queue"
)

// heartbeatWriteInterval throttles heartbeat writes to the job row.
const heartbeatWriteInterval = time.Second

// progressObserver mirrors attempt events into the job's progress columns.
type progressObserver struct {
	ctx    context.Context
	store  *queue.Store
	jobID  string
	logger *slog.Logger

	mu        sync.Mutex
	attempts  int
	lastWrite time.Time
}

func newProgressObserver(ctx context.Context, store *queue.Store, jobID string, logger *slog.Logger) *progressObserver {
	return &progressObserver{ctx: ctx, store: store, jobID: jobID, logger: logger}
}

// Attempts returns the number of attempts started so far.
func (p *progressObserver) Attempts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

func (p *progressObserver) AttemptStarted(inv activity.Invocation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if inv.Attempt > p.attempts {
		p.attempts = inv.Attempt
	}
	p.write(inv, fmt.Sprintf("Attempt %d started", inv.Attempt))
}

func (p *progressObserver) AttemptHeartbeat(inv activity.Invocation, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if time.Since(p.lastWrite) < heartbeatWriteInterval {
		return
	}
	p.write(inv, message)
}

func (p *progressObserver) AttemptFinished(inv activity.Invocation, retryIn time.Duration) {
	var message string
	switch inv.Outcome {
	case activity.OutcomeSucceeded:
		message = fmt.Sprintf("Attempt %d succeeded", inv.Attempt)
	case activity.OutcomeFailedRetryable:
		message = fmt.Sprintf("Attempt %d failed, retrying in %s: %v", inv.Attempt, retryIn.Round(time.Millisecond), inv.Err)
	default:
		message = fmt.Sprintf("Attempt %d failed: %v", inv.Attempt, inv.Err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.write(inv, message)
}

// write must be called with mu held.
func (p *progressObserver) write(inv activity.Invocation, message string) {
	if p.store == nil || p.ctx.Err() != nil {
		return
	}
	p.lastWrite = time.Now()
	if err := p.store.UpdateProgress(p.ctx, p.jobID, inv.Activity, inv.Attempt, message); err != nil {
		p.logger.Warn("progress update failed",
			logging.Int(logging.FieldAttempt, inv.Attempt),
			logging.Error(err),
			logging.String(logging.FieldEventType, "progress_update_failed"),
		)
	}
}
