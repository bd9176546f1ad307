package workflow_test

import (
	"testing"
	"time"

	"framepipe/internal/activity"
	"framepipe/internal/config"
	"framepipe/internal/workflow"
)

func TestActivityOptionsFromDefaults(t *testing.T) {
	cfg := config.Default()
	opts := workflow.ActivityOptions(&cfg, config.ActivityProcess, activity.NopObserver{})

	if opts.Name != config.ActivityProcess {
		t.Fatalf("unexpected name %q", opts.Name)
	}
	if opts.StartToClose != 10*time.Minute || opts.ScheduleToClose != 50*time.Minute {
		t.Fatalf("unexpected timeouts: %s / %s", opts.StartToClose, opts.ScheduleToClose)
	}
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	got := opts.Policy.Schedule()
	if len(got) != len(want) {
		t.Fatalf("unexpected schedule %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected schedule %v", got)
		}
	}
	if err := opts.Policy.Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
}

func TestActivityOptionsUnknownActivity(t *testing.T) {
	cfg := config.Default()
	opts := workflow.ActivityOptions(&cfg, "unknown", nil)
	if opts.StartToClose != 0 || opts.HeartbeatTimeout != 0 {
		t.Fatalf("expected no limits for unknown activity, got %+v", opts)
	}
}
