package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"framepipe/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrTransient, "extract", "decode", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"extract", "decode", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

type selfClassified struct{ kind services.Kind }

func (e selfClassified) Error() string            { return "self classified" }
func (e selfClassified) ErrorKind() services.Kind { return e.kind }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want services.Kind
	}{
		{"nil", nil, ""},
		{"plain error", errors.New("io"), services.KindRetryable},
		{"transient", services.Wrap(services.ErrTransient, "process", "embed", "", nil), services.KindRetryable},
		{"deadline", context.DeadlineExceeded, services.KindRetryable},
		{"abandoned", fmt.Errorf("attempt 2: %w", services.ErrAbandoned), services.KindAbandoned},
		{"invalid input", services.Wrap(services.ErrInvalidInput, "extract", "open", "unreadable", nil), services.KindTerminalInput},
		{"configuration", services.ErrConfiguration, services.KindTerminalInput},
		{"budget", fmt.Errorf("wrapped: %w", services.ErrBudgetExceeded), services.KindTerminalBudget},
		{"self classified", fmt.Errorf("outer: %w", selfClassified{kind: services.KindTerminalInput}), services.KindTerminalInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.Classify(tt.err); got != tt.want {
				t.Fatalf("Classify = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if services.IsRetryable(nil) {
		t.Fatal("nil error must not be retryable")
	}
	if !services.IsRetryable(services.ErrAbandoned) {
		t.Fatal("abandoned attempts are retryable")
	}
	if services.IsRetryable(services.ErrInvalidInput) {
		t.Fatal("invalid input must not be retryable")
	}
	if services.IsRetryable(services.ErrBudgetExceeded) {
		t.Fatal("budget exhaustion must not be retryable")
	}
}
