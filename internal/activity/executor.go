package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"framepipe/internal/logging"
	"framepipe/internal/retry"
	"framepipe/internal/services"
)

const (
	minWatchdogPoll = 5 * time.Millisecond
	maxWatchdogPoll = 5 * time.Second
)

// Options configures one activity.
type Options struct {
	Name string
	// StartToClose bounds a single attempt. Zero disables the limit.
	StartToClose time.Duration
	// ScheduleToClose bounds all attempts including backoff. Zero disables the limit.
	ScheduleToClose time.Duration
	// HeartbeatTimeout is the staleness threshold. Zero disables the watchdog.
	HeartbeatTimeout time.Duration
	// CancelGrace is how long a cancelled attempt may take to return before
	// the executor moves on without it.
	CancelGrace time.Duration
	Policy      retry.Policy
	Observer    Observer
}

// Func is the body of an activity.
type Func[T any] func(ctx context.Context, attempt *Attempt) (T, error)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Executor runs activities against a shared heartbeat monitor.
type Executor struct {
	monitor *HeartbeatMonitor
	logger  *slog.Logger
	sleep   Sleeper
	now     func() time.Time
}

// ExecutorOption customises an Executor.
type ExecutorOption func(*Executor)

// WithSleeper replaces the backoff sleeper.
func WithSleeper(sleep Sleeper) ExecutorOption {
	return func(e *Executor) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// WithClock replaces the clock used for deadline accounting.
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExecutor constructs an executor. A nil monitor gets a fresh one.
func NewExecutor(monitor *HeartbeatMonitor, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	if monitor == nil {
		monitor = NewHeartbeatMonitor()
	}
	e := &Executor{
		monitor: monitor,
		logger:  logging.NewComponentLogger(logger, "activity-executor"),
		sleep:   sleepContext,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Monitor exposes the heartbeat monitor shared by all attempts.
func (e *Executor) Monitor() *HeartbeatMonitor {
	return e.monitor
}

// Run executes fn until it succeeds, fails terminally, exhausts the retry
// policy, or runs out of schedule-to-close budget. Cancellation of ctx is
// returned as ctx.Err() and is not a terminal activity failure.
func Run[T any](ctx context.Context, e *Executor, opts Options, fn Func[T]) (T, error) {
	var zero T
	if err := opts.Policy.Validate(); err != nil {
		return zero, services.Wrap(services.ErrConfiguration, opts.Name, "validate retry policy", "", err)
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}

	var deadline time.Time
	if opts.ScheduleToClose > 0 {
		deadline = e.now().Add(opts.ScheduleToClose)
	}
	logger := logging.WithContext(ctx, e.logger).With(logging.String("activity", opts.Name))

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		value, inv, err := runAttempt(ctx, e, opts, deadline, attempt, fn)
		if err == nil {
			inv.Outcome = OutcomeSucceeded
			opts.Observer.AttemptFinished(inv, 0)
			if attempt > 1 {
				logger.Info("activity succeeded after retry", logging.Int(logging.FieldAttempt, attempt))
			}
			return value, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			inv.Outcome = OutcomeFailedTerminal
			inv.Err = ctxErr
			opts.Observer.AttemptFinished(inv, 0)
			return zero, ctxErr
		}

		kind := services.Classify(err)
		delay, decision := opts.Policy.Next(attempt, err)
		if decision == retry.Retry && !deadline.IsZero() && !e.now().Add(delay).Before(deadline) {
			err = fmt.Errorf("%w: next attempt would start after the deadline: %w", ErrScheduleToCloseTimeout, err)
			kind = services.KindTerminalBudget
			decision = retry.Terminal
		}

		inv.Err = err
		if decision != retry.Retry {
			inv.Outcome = OutcomeFailedTerminal
			opts.Observer.AttemptFinished(inv, 0)
			terminal := &TerminalError{
				Activity:  opts.Name,
				Attempts:  attempt,
				Kind:      kind,
				Exhausted: decision == retry.Exhausted,
				Err:       err,
			}
			logger.Error("activity failed",
				logging.Int(logging.FieldAttempt, attempt),
				logging.String("kind", string(kind)),
				logging.String("decision", decision.String()),
				logging.Error(err),
				logging.String(logging.FieldEventType, "activity_failed"),
				logging.String(logging.FieldErrorHint, "inspect the job error and resubmit once the cause is fixed"),
			)
			return zero, terminal
		}

		inv.Outcome = OutcomeFailedRetryable
		opts.Observer.AttemptFinished(inv, delay)
		logger.Warn("activity attempt failed; retrying",
			logging.Int(logging.FieldAttempt, attempt),
			logging.String(logging.FieldInvocationID, inv.ID),
			logging.String("kind", string(kind)),
			logging.Duration("retry_in", delay),
			logging.Error(err),
			logging.String(logging.FieldEventType, "activity_retry"),
		)
		if err := e.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
}

type attemptResult[T any] struct {
	value T
	err   error
}

func runAttempt[T any](ctx context.Context, e *Executor, opts Options, deadline time.Time, number int, fn Func[T]) (T, Invocation, error) {
	var zero T
	logger := logging.WithContext(ctx, e.logger).With(logging.String("activity", opts.Name))

	attemptCtx, cancel := context.WithCancelCause(services.WithAttempt(ctx, number))
	defer cancel(nil)
	if opts.StartToClose > 0 {
		var stop context.CancelFunc
		attemptCtx, stop = context.WithTimeoutCause(attemptCtx, opts.StartToClose, ErrStartToCloseTimeout)
		defer stop()
	}
	if !deadline.IsZero() {
		var stop context.CancelFunc
		attemptCtx, stop = context.WithDeadlineCause(attemptCtx, deadline, ErrScheduleToCloseTimeout)
		defer stop()
	}

	attempt := &Attempt{
		InvocationID: uuid.NewString(),
		Activity:     opts.Name,
		Number:       number,
		StartedAt:    e.now(),
		monitor:      e.monitor,
		observer:     opts.Observer,
	}
	// The start counts as the first heartbeat so the watchdog has a baseline.
	e.monitor.Record(attempt.InvocationID, "started")
	inv := attempt.invocation()
	defer attempt.close()
	opts.Observer.AttemptStarted(inv)

	done := make(chan attemptResult[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- attemptResult[T]{err: fmt.Errorf("%w: activity %s panicked: %v", services.ErrTransient, opts.Name, r)}
			}
		}()
		value, err := fn(attemptCtx, attempt)
		done <- attemptResult[T]{value: value, err: err}
	}()

	var watchdog <-chan time.Time
	if opts.HeartbeatTimeout > 0 {
		ticker := time.NewTicker(watchdogPoll(opts.HeartbeatTimeout))
		defer ticker.Stop()
		watchdog = ticker.C
	}

	for {
		select {
		case res := <-done:
			inv = attempt.invocation()
			if res.err == nil {
				return res.value, inv, nil
			}
			return zero, inv, attemptError(attemptCtx, ctx, res.err)
		case <-watchdog:
			if e.monitor.IsAlive(attempt.InvocationID, opts.HeartbeatTimeout) {
				continue
			}
			inv = attempt.invocation()
			cancel(ErrHeartbeatTimeout)
			awaitCancelled(logger, opts, attempt, done)
			return zero, inv, fmt.Errorf("%s attempt %d: %w", opts.Name, number, ErrHeartbeatTimeout)
		case <-attemptCtx.Done():
			inv = attempt.invocation()
			cause := context.Cause(attemptCtx)
			awaitCancelled(logger, opts, attempt, done)
			if ctx.Err() != nil {
				return zero, inv, ctx.Err()
			}
			return zero, inv, fmt.Errorf("%s attempt %d: %w", opts.Name, number, cause)
		}
	}
}

// attemptError attributes context errors returned by the activity to the
// cause that cancelled the attempt.
func attemptError(attemptCtx, parent context.Context, err error) error {
	if parent.Err() != nil || attemptCtx.Err() == nil {
		return err
	}
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	cause := context.Cause(attemptCtx)
	if cause == nil || errors.Is(err, cause) {
		return err
	}
	return fmt.Errorf("%w: %w", cause, err)
}

// awaitCancelled waits up to CancelGrace for a cancelled attempt to return.
// Its late result is discarded either way.
func awaitCancelled[T any](logger *slog.Logger, opts Options, attempt *Attempt, done <-chan attemptResult[T]) {
	if opts.CancelGrace <= 0 {
		return
	}
	timer := time.NewTimer(opts.CancelGrace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		logger.Warn("cancelled attempt did not return within grace period",
			logging.String(logging.FieldInvocationID, attempt.InvocationID),
			logging.Int(logging.FieldAttempt, attempt.Number),
			logging.Duration("cancel_grace", opts.CancelGrace),
			logging.String(logging.FieldEventType, "attempt_cancel_overrun"),
			logging.String(logging.FieldErrorHint, "activity ignores context cancellation"),
		)
	}
}

func watchdogPoll(timeout time.Duration) time.Duration {
	poll := timeout / 4
	if poll < minWatchdogPoll {
		poll = minWatchdogPoll
	}
	if poll > maxWatchdogPoll {
		poll = maxWatchdogPoll
	}
	return poll
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
