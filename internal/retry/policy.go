// Package retry computes activity retry delays and decides when a failing
// activity has used up its attempts.
package retry

import (
	"errors"
	"fmt"
	"math"
	"time"

	"framepipe/internal/services"
)

// Decision is the outcome of consulting the policy after a failed attempt.
type Decision int

const (
	// Retry means another attempt should run after the returned delay.
	Retry Decision = iota
	// Exhausted means the attempt budget is spent.
	Exhausted
	// Terminal means the error must not be retried.
	Terminal
)

func (d Decision) String() string {
	switch d {
	case Retry:
		return "retry"
	case Exhausted:
		return "exhausted"
	case Terminal:
		return "terminal"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Policy is an exponential backoff schedule capped at MaximumInterval.
type Policy struct {
	InitialInterval    time.Duration
	BackoffCoefficient float64
	MaximumInterval    time.Duration
	MaximumAttempts    int
}

// Default returns 2s initial, coefficient 2, 20s cap, 5 attempts.
func Default() Policy {
	return Policy{
		InitialInterval:    2 * time.Second,
		BackoffCoefficient: 2.0,
		MaximumInterval:    20 * time.Second,
		MaximumAttempts:    5,
	}
}

// Validate rejects policies that could never schedule a sane retry.
func (p Policy) Validate() error {
	switch {
	case p.InitialInterval <= 0:
		return errors.New("retry policy: initial interval must be positive")
	case p.BackoffCoefficient < 1:
		return errors.New("retry policy: backoff coefficient must be at least 1")
	case p.MaximumInterval < p.InitialInterval:
		return errors.New("retry policy: maximum interval must not be smaller than initial interval")
	case p.MaximumAttempts < 1:
		return errors.New("retry policy: maximum attempts must be at least 1")
	}
	return nil
}

// Delay returns min(initial * coefficient^(attempt-1), maximum) for the wait
// that follows a failed attempt. Attempts below 1 are treated as 1.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	raw := float64(p.InitialInterval) * math.Pow(p.BackoffCoefficient, float64(attempt-1))
	if math.IsInf(raw, 0) || math.IsNaN(raw) || raw >= float64(p.MaximumInterval) {
		return p.MaximumInterval
	}
	return time.Duration(raw)
}

// Exhausted reports whether attempt was the last one the policy allows.
func (p Policy) Exhausted(attempt int) bool {
	return attempt >= p.MaximumAttempts
}

// Next decides what happens after attempt failed with err.
func (p Policy) Next(attempt int, err error) (time.Duration, Decision) {
	if !services.IsRetryable(err) {
		return 0, Terminal
	}
	if p.Exhausted(attempt) {
		return 0, Exhausted
	}
	return p.Delay(attempt), Retry
}

// Schedule lists the delays after each retryable failure, in order.
func (p Policy) Schedule() []time.Duration {
	if p.MaximumAttempts <= 1 {
		return nil
	}
	delays := make([]time.Duration, 0, p.MaximumAttempts-1)
	for attempt := 1; attempt < p.MaximumAttempts; attempt++ {
		delays = append(delays, p.Delay(attempt))
	}
	return delays
}
