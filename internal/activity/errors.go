package activity

import (
	"fmt"

	"framepipe/internal/services"
)

var (
	// ErrHeartbeatTimeout cancels an attempt that stopped heartbeating.
	ErrHeartbeatTimeout = fmt.Errorf("%w: heartbeat timeout", services.ErrAbandoned)
	// ErrStartToCloseTimeout cancels an attempt that ran too long.
	ErrStartToCloseTimeout = fmt.Errorf("%w: start-to-close timeout", services.ErrTransient)
	// ErrScheduleToCloseTimeout ends the activity once its overall budget is spent.
	ErrScheduleToCloseTimeout = fmt.Errorf("%w: schedule-to-close timeout", services.ErrBudgetExceeded)
)

// TerminalError is the single failure outcome of Run.
type TerminalError struct {
	Activity string
	Attempts int
	Kind     services.Kind
	// Exhausted is set when the last error was retryable but the attempt
	// budget ran out.
	Exhausted bool
	Err       error
}

func (e *TerminalError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("activity %s failed after %d attempts: %v", e.Activity, e.Attempts, e.Err)
	}
	return fmt.Sprintf("activity %s failed on attempt %d (%s): %v", e.Activity, e.Attempts, e.Kind, e.Err)
}

func (e *TerminalError) Unwrap() error { return e.Err }
