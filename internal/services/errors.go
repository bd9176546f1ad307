package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks failures expected to clear on retry (I/O hiccups,
	// store timeouts, injected faults).
	ErrTransient = errors.New("transient failure")
	// ErrAbandoned marks an attempt that stopped heartbeating and was cancelled.
	ErrAbandoned = errors.New("attempt abandoned")
	// ErrInvalidInput marks input that will never succeed (unreadable video,
	// malformed embedding).
	ErrInvalidInput = errors.New("invalid input")
	// ErrBudgetExceeded marks an operation that ran out of overall time.
	ErrBudgetExceeded = errors.New("time budget exceeded")
	ErrConfiguration  = errors.New("configuration error")
	ErrNotFound       = errors.New("not found")
)

// Kind is the retry classification of an error.
type Kind string

const (
	KindRetryable      Kind = "retryable_transient"
	KindAbandoned      Kind = "abandoned"
	KindTerminalInput  Kind = "terminal_input"
	KindTerminalBudget Kind = "terminal_budget"
)

// Terminal reports whether errors of this kind must not be retried.
func (k Kind) Terminal() bool {
	return k == KindTerminalInput || k == KindTerminalBudget
}

// Classifier lets adapter errors declare their own kind.
type Classifier interface {
	ErrorKind() Kind
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps err onto the retry taxonomy. Unknown errors are retryable.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	var c Classifier
	if errors.As(err, &c) {
		if kind := c.ErrorKind(); kind != "" {
			return kind
		}
	}
	switch {
	case errors.Is(err, ErrBudgetExceeded):
		return KindTerminalBudget
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrConfiguration), errors.Is(err, ErrNotFound):
		return KindTerminalInput
	case errors.Is(err, ErrAbandoned):
		return KindAbandoned
	default:
		return KindRetryable
	}
}

// IsRetryable reports whether the executor may schedule another attempt for err.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !Classify(err).Terminal()
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
