package retry_test

import (
	"errors"
	"testing"
	"time"

	"framepipe/internal/retry"
	"framepipe/internal/services"
)

func TestDelaySequence(t *testing.T) {
	policy := retry.Default()
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 20 * time.Second, 20 * time.Second}
	for i, expected := range want {
		attempt := i + 1
		if got := policy.Delay(attempt); got != expected {
			t.Fatalf("Delay(%d) = %s, want %s", attempt, got, expected)
		}
	}
}

func TestDelayClampsLowAttempts(t *testing.T) {
	policy := retry.Default()
	if got := policy.Delay(0); got != 2*time.Second {
		t.Fatalf("Delay(0) = %s, want 2s", got)
	}
}

func TestDelayHugeAttemptStaysCapped(t *testing.T) {
	policy := retry.Default()
	if got := policy.Delay(10_000); got != policy.MaximumInterval {
		t.Fatalf("Delay(10000) = %s, want %s", got, policy.MaximumInterval)
	}
}

func TestScheduleForDefaultPolicy(t *testing.T) {
	got := retry.Default().Schedule()
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	if len(got) != len(want) {
		t.Fatalf("Schedule() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Schedule()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestNextDecisions(t *testing.T) {
	policy := retry.Default()
	transient := services.Wrap(services.ErrTransient, "process", "embed", "", nil)

	delay, decision := policy.Next(1, transient)
	if decision != retry.Retry || delay != 2*time.Second {
		t.Fatalf("Next(1) = %s %s, want retry 2s", delay, decision)
	}
	if _, decision := policy.Next(5, transient); decision != retry.Exhausted {
		t.Fatalf("Next(5) = %s, want exhausted", decision)
	}
	if _, decision := policy.Next(1, services.ErrInvalidInput); decision != retry.Terminal {
		t.Fatalf("invalid input should be terminal, got %s", decision)
	}
	if _, decision := policy.Next(1, errors.New("unclassified")); decision != retry.Retry {
		t.Fatalf("unclassified errors should be retried, got %s", decision)
	}
}

func TestValidate(t *testing.T) {
	if err := retry.Default().Validate(); err != nil {
		t.Fatalf("default policy should validate: %v", err)
	}
	bad := []retry.Policy{
		{InitialInterval: 0, BackoffCoefficient: 2, MaximumInterval: time.Second, MaximumAttempts: 1},
		{InitialInterval: time.Second, BackoffCoefficient: 0.5, MaximumInterval: time.Second, MaximumAttempts: 1},
		{InitialInterval: time.Second, BackoffCoefficient: 2, MaximumInterval: time.Millisecond, MaximumAttempts: 1},
		{InitialInterval: time.Second, BackoffCoefficient: 2, MaximumInterval: time.Second, MaximumAttempts: 0},
	}
	for i, policy := range bad {
		if err := policy.Validate(); err == nil {
			t.Fatalf("policy %d should be rejected: %+v", i, policy)
		}
	}
}
