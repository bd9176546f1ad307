package activity

import (
	"sync"
	"time"
)

// Outcome is the lifecycle state of one activity invocation.
type Outcome string

const (
	OutcomeInProgress      Outcome = "in_progress"
	OutcomeSucceeded       Outcome = "succeeded"
	OutcomeFailedRetryable Outcome = "failed_retryable"
	OutcomeFailedTerminal  Outcome = "failed_terminal"
)

// Invocation describes one attempt of an activity.
type Invocation struct {
	ID            string
	Activity      string
	Attempt       int
	StartedAt     time.Time
	LastHeartbeat time.Time
	Outcome       Outcome
	Err           error
}

// Heartbeater is the emitting side of the heartbeat protocol.
type Heartbeater interface {
	Heartbeat(message string)
}

// Attempt is handed to the activity function. It carries the explicit
// attempt number and emits heartbeats for this invocation only.
type Attempt struct {
	InvocationID string
	Activity     string
	Number       int
	StartedAt    time.Time

	monitor  *HeartbeatMonitor
	observer Observer

	// mu orders Record against the Forget in close so a late heartbeat
	// cannot leave an entry behind.
	mu     sync.Mutex
	closed bool
}

// Heartbeat records liveness. Calls after the attempt has finished (for
// example from an abandoned goroutine) are ignored.
func (a *Attempt) Heartbeat(message string) {
	if a == nil {
		return
	}
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	if a.monitor != nil {
		a.monitor.Record(a.InvocationID, message)
	}
	a.mu.Unlock()
	if a.observer != nil {
		a.observer.AttemptHeartbeat(a.invocation(), message)
	}
}

func (a *Attempt) close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	if a.monitor != nil {
		a.monitor.Forget(a.InvocationID)
	}
}

func (a *Attempt) invocation() Invocation {
	inv := Invocation{
		ID:        a.InvocationID,
		Activity:  a.Activity,
		Attempt:   a.Number,
		StartedAt: a.StartedAt,
		Outcome:   OutcomeInProgress,
	}
	if a.monitor == nil {
		return inv
	}
	if beat, ok := a.monitor.Last(a.InvocationID); ok {
		inv.LastHeartbeat = beat.At
	}
	return inv
}

// Detached returns an attempt that no executor tracks. Heartbeats only reach
// observer, which may be nil. Stage tests use it to call Execute directly.
func Detached(name string, number int, observer Observer) *Attempt {
	return &Attempt{
		InvocationID: name + "-detached",
		Activity:     name,
		Number:       number,
		StartedAt:    time.Now(),
		observer:     observer,
	}
}

// Observer receives attempt lifecycle events. Implementations must be safe
// for concurrent use: AttemptHeartbeat runs on the activity goroutine.
type Observer interface {
	AttemptStarted(inv Invocation)
	AttemptHeartbeat(inv Invocation, message string)
	// AttemptFinished reports the final outcome of an attempt. retryIn is the
	// backoff before the next attempt when the outcome is failed_retryable.
	AttemptFinished(inv Invocation, retryIn time.Duration)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) AttemptStarted(Invocation)                 {}
func (NopObserver) AttemptHeartbeat(Invocation, string)       {}
func (NopObserver) AttemptFinished(Invocation, time.Duration) {}
