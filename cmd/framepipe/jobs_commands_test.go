package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"framepipe/internal/queue"
	"framepipe/internal/testsupport"
)

func TestSubmitListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"submit", "/videos/alpha.mp4", "/videos/beta.mp4"}, env.configPath)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	requireContains(t, out, "Queued /videos/alpha.mp4")
	requireContains(t, out, "Queued /videos/beta.mp4")

	out, _, err = runCLI(t, []string{"submit", "/videos/alpha.mp4"}, env.configPath)
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	requireContains(t, out, "Already queued /videos/alpha.mp4")

	out, _, err = runCLI(t, []string{"jobs", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, "alpha.mp4")
	requireContains(t, out, "Pending")

	out, _, err = runCLI(t, []string{"jobs", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs list --json: %v", err)
	}
	var views []jobView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode list json: %v\n%s", err, out)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(views))
	}

	out, _, err = runCLI(t, []string{"jobs", "show", views[0].ID[:8]}, env.configPath)
	if err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	requireContains(t, out, views[0].ID)
	requireContains(t, out, views[0].InputRef)

	if _, _, err := runCLI(t, []string{"jobs", "show", "ffffffffffff"}, env.configPath); err == nil {
		t.Fatal("expected show of unknown id to fail")
	}
}

func TestJobsListStatusFilter(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	testsupport.MustSubmit(t, env.store, "/videos/alpha.mp4")
	beta := testsupport.MustSubmit(t, env.store, "/videos/beta.mp4")
	if err := env.store.Fail(ctx, beta, "decode error", "terminal_input", 1); err != nil {
		t.Fatalf("fail beta: %v", err)
	}

	out, _, err := runCLI(t, []string{"jobs", "list", "--status", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, "beta.mp4")
	if strings.Contains(out, "alpha.mp4") {
		t.Fatalf("pending job should be filtered out:\n%s", out)
	}

	if _, _, err := runCLI(t, []string{"jobs", "list", "--status", "bogus"}, env.configPath); err == nil {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestJobsRetryAndClear(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	alpha := testsupport.MustSubmit(t, env.store, "/videos/alpha.mp4")
	if err := env.store.Fail(ctx, alpha, "boom", "retryable_transient", 5); err != nil {
		t.Fatalf("fail alpha: %v", err)
	}

	out, _, err := runCLI(t, []string{"jobs", "retry"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs retry: %v", err)
	}
	requireContains(t, out, "Retried 1 failed jobs")

	updated, err := env.store.GetByID(ctx, alpha.ID)
	if err != nil {
		t.Fatalf("lookup alpha: %v", err)
	}
	if updated.Status != queue.StatusPending || updated.Run != 2 {
		t.Fatalf("expected pending run 2, got %s run %d", updated.Status, updated.Run)
	}

	if err := env.store.Fail(ctx, updated, "boom again", "terminal_input", 1); err != nil {
		t.Fatalf("fail alpha again: %v", err)
	}
	out, _, err = runCLI(t, []string{"jobs", "clear", "--failed"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs clear --failed: %v", err)
	}
	requireContains(t, out, "Cleared 1 failed jobs")

	out, _, err = runCLI(t, []string{"jobs", "retry"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs retry with nothing failed: %v", err)
	}
	requireContains(t, out, "No failed jobs to retry")

	if _, _, err := runCLI(t, []string{"jobs", "clear", "--failed", "--all"}, env.configPath); err == nil {
		t.Fatal("expected conflicting clear flags to fail")
	}
}

func TestParseStatuses(t *testing.T) {
	statuses, err := parseStatuses([]string{"pending,failed", " completed "})
	if err != nil {
		t.Fatalf("parseStatuses: %v", err)
	}
	want := []queue.Status{queue.StatusPending, queue.StatusFailed, queue.StatusCompleted}
	if len(statuses) != len(want) {
		t.Fatalf("got %v, want %v", statuses, want)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Fatalf("got %v, want %v", statuses, want)
		}
	}
}

func TestJobsClearPrunesFrames(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	done := testsupport.MustSubmit(t, env.store, "/videos/done.mp4")
	kept := testsupport.MustSubmit(t, env.store, "/videos/kept.mp4")
	if err := env.store.Fail(ctx, done, "boom", "terminal_input", 1); err != nil {
		t.Fatalf("fail: %v", err)
	}
	old := time.Now().Add(-time.Hour)
	for _, id := range []string{done.ID, kept.ID} {
		dir := filepath.Join(env.cfg.Paths.FramesDir, id)
		testsupport.WriteFile(t, filepath.Join(dir, "frame_000001.jpg"), 64)
		if err := os.Chtimes(dir, old, old); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}

	out, _, err := runCLI(t, []string{"jobs", "clear", "--failed"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs clear: %v", err)
	}
	requireContains(t, out, "Removed 1 frame directories")
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.FramesDir, done.ID)); !os.IsNotExist(err) {
		t.Fatal("frames of the cleared job should be removed")
	}
	if _, err := os.Stat(filepath.Join(env.cfg.Paths.FramesDir, kept.ID)); err != nil {
		t.Fatalf("frames of the remaining job should be kept: %v", err)
	}
}
