package queue_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"framepipe/internal/frames"
	"framepipe/internal/queue"
	"framepipe/internal/sqlitedb"
	"framepipe/internal/testsupport"
)

func TestSubmitIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first, created, err := store.Submit(ctx, "/videos/clip.mp4")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !created {
		t.Fatal("expected first submit to create a job")
	}
	if first.Status != queue.StatusPending || first.Run != 1 {
		t.Fatalf("unexpected new job: %+v", first)
	}

	second, created, err := store.Submit(ctx, " /videos/clip.mp4 ")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if created {
		t.Fatal("expected resubmit to reuse the job")
	}
	if second.ID != first.ID {
		t.Fatalf("expected same id, got %s and %s", first.ID, second.ID)
	}

	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected one job, got %d", len(jobs))
	}
}

func TestSubmitRejectsEmptyInput(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if _, _, err := store.Submit(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty input")
	}
}

func TestJobIDForNormalizesInput(t *testing.T) {
	t.Chdir(t.TempDir())
	if queue.JobIDFor("clip.mp4") != queue.JobIDFor("./clip.mp4") {
		t.Fatal("expected relative spellings of the same path to share an id")
	}
	if queue.JobIDFor("clip.mp4") == queue.JobIDFor("other.mp4") {
		t.Fatal("expected different inputs to have different ids")
	}
	if got := queue.NormalizeInputRef(" s3://bucket/clip.mp4 "); got != "s3://bucket/clip.mp4" {
		t.Fatalf("unexpected normalized uri %q", got)
	}
}

func TestTransitionPersistsStageOutputs(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.MustSubmit(t, store, "/videos/a.mp4")

	if err := store.Transition(ctx, job, queue.StatusExtracting); err != nil {
		t.Fatalf("Transition to extracting failed: %v", err)
	}
	job.Units = frames.BuildUnits(job.ID, []string{"/f/1.jpg", "/f/2.jpg"})
	if err := store.Transition(ctx, job, queue.StatusProcessing); err != nil {
		t.Fatalf("Transition to processing failed: %v", err)
	}
	job.CompletedUnits = frames.IDs(job.Units)
	if err := store.Transition(ctx, job, queue.StatusStoring); err != nil {
		t.Fatalf("Transition to storing failed: %v", err)
	}
	job.StoredRows = 2
	if err := store.Transition(ctx, job, queue.StatusCompleted); err != nil {
		t.Fatalf("Transition to completed failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s", fetched.Status)
	}
	if len(fetched.Units) != 2 || fetched.Units[1].ID != frames.UnitID(job.ID, 1) {
		t.Fatalf("unexpected persisted units: %+v", fetched.Units)
	}
	if len(fetched.CompletedUnits) != 2 || fetched.StoredRows != 2 {
		t.Fatalf("unexpected persisted outputs: %+v", fetched)
	}
	if fetched.CompletedAt == nil {
		t.Fatal("expected completed_at to be recorded")
	}
}

func TestTransitionRejectsSkippedStages(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.MustSubmit(t, store, "/videos/b.mp4")

	if err := store.Transition(ctx, job, queue.StatusProcessing); !errors.Is(err, queue.ErrConflict) {
		t.Fatalf("expected conflict when skipping extraction, got %v", err)
	}
	if job.Status != queue.StatusPending {
		t.Fatalf("expected job untouched, got %s", job.Status)
	}
}

func TestTransitionDetectsStaleCopy(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.MustSubmit(t, store, "/videos/c.mp4")
	stale := *job

	if err := store.Transition(ctx, job, queue.StatusExtracting); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if err := store.Transition(ctx, &stale, queue.StatusExtracting); !errors.Is(err, queue.ErrConflict) {
		t.Fatalf("expected conflict for stale copy, got %v", err)
	}
}

func TestFailIsTerminalAndResubmitStartsNewRun(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.MustSubmit(t, store, "/videos/d.mp4")
	if err := store.Transition(ctx, job, queue.StatusExtracting); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	job.Units = frames.BuildUnits(job.ID, []string{"/f/1.jpg"})
	if err := store.Transition(ctx, job, queue.StatusProcessing); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if err := store.Fail(ctx, job, "process: exhausted", "retryable_transient", 5); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	failed, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if failed.Status != queue.StatusFailed || failed.Attempt != 5 || failed.ErrorMessage != "process: exhausted" {
		t.Fatalf("unexpected failed job: %+v", failed)
	}
	if len(failed.Units) != 1 {
		t.Fatal("expected earlier stage outputs to be kept")
	}
	if err := store.Transition(ctx, job, queue.StatusStoring); !errors.Is(err, queue.ErrConflict) {
		t.Fatalf("expected failed job to reject transitions, got %v", err)
	}

	resubmitted, created, err := store.Submit(ctx, "/videos/d.mp4")
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !created {
		t.Fatal("expected resubmitting a failed job to start a new run")
	}
	if resubmitted.Status != queue.StatusPending || resubmitted.Run != 2 {
		t.Fatalf("unexpected resubmitted job: %+v", resubmitted)
	}
	if len(resubmitted.Units) != 0 || resubmitted.ErrorMessage != "" {
		t.Fatalf("expected outputs and error cleared: %+v", resubmitted)
	}
}

func TestClaimNextLeasesOldestJob(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	first := testsupport.MustSubmit(t, store, "/videos/first.mp4")
	time.Sleep(2 * time.Millisecond)
	second := testsupport.MustSubmit(t, store, "/videos/second.mp4")

	claimed, err := store.ClaimNext(ctx, "worker-1")
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed == nil || claimed.ID != first.ID || claimed.Owner != "worker-1" {
		t.Fatalf("expected first job leased to worker-1, got %+v", claimed)
	}

	claimed, err = store.ClaimNext(ctx, "worker-2")
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed == nil || claimed.ID != second.ID {
		t.Fatalf("expected second job, got %+v", claimed)
	}

	claimed, err = store.ClaimNext(ctx, "worker-3")
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed != nil {
		t.Fatalf("expected no job available, got %+v", claimed)
	}

	if again, err := store.Claim(ctx, first.ID, "worker-3"); err != nil || again != nil {
		t.Fatalf("expected leased job to be unclaimable, got %+v err=%v", again, err)
	}
	if err := store.Release(ctx, first.ID, "worker-1"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if again, err := store.Claim(ctx, first.ID, "worker-3"); err != nil || again == nil {
		t.Fatalf("expected released job to be claimable, got %+v err=%v", again, err)
	}
}

func TestReclaimStaleLeasesKeepsStatus(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.MustSubmit(t, store, "/videos/stale.mp4")

	claimed, err := store.ClaimNext(ctx, "worker-1")
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if err := store.Transition(ctx, claimed, queue.StatusExtracting); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if err := store.UpdateHeartbeat(ctx, job.ID, "worker-1"); err != nil {
		t.Fatalf("UpdateHeartbeat failed: %v", err)
	}

	count, err := store.ReclaimStaleLeases(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleLeases failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one reclaimed lease, got %d", count)
	}

	reclaimed, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reclaimed.Owner != "" || reclaimed.LastHeartbeat != nil {
		t.Fatalf("expected lease cleared: %+v", reclaimed)
	}
	if reclaimed.Status != queue.StatusExtracting {
		t.Fatalf("expected status kept, got %s", reclaimed.Status)
	}
	if err := store.UpdateHeartbeat(ctx, job.ID, "worker-1"); !errors.Is(err, queue.ErrLeaseLost) {
		t.Fatalf("expected lease lost, got %v", err)
	}
}

func TestReclaimIgnoresFreshLeases(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	testsupport.MustSubmit(t, store, "/videos/fresh.mp4")
	if _, err := store.ClaimNext(ctx, "worker-1"); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	count, err := store.ReclaimStaleLeases(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleLeases failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected fresh lease kept, reclaimed %d", count)
	}
}

func TestUpdateProgressLeavesStatus(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.MustSubmit(t, store, "/videos/progress.mp4")
	if err := store.UpdateProgress(ctx, job.ID, "Extract", 2, "retrying in 4s"); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusPending || fetched.Attempt != 2 || fetched.ProgressMessage != "retrying in 4s" {
		t.Fatalf("unexpected progress: %+v", fetched)
	}
}

func TestHealthAndMaintenance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	done := testsupport.MustSubmit(t, store, "/videos/done.mp4")
	for _, status := range []queue.Status{queue.StatusExtracting, queue.StatusProcessing, queue.StatusStoring, queue.StatusCompleted} {
		if err := store.Transition(ctx, done, status); err != nil {
			t.Fatalf("Transition to %s failed: %v", status, err)
		}
	}
	failed := testsupport.MustSubmit(t, store, "/videos/failed.mp4")
	if err := store.Fail(ctx, failed, "boom", "terminal_input", 1); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	testsupport.MustSubmit(t, store, "/videos/pending.mp4")

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 3 || health.Completed != 1 || health.Failed != 1 || health.Pending != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}

	dbHealth, err := store.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !dbHealth.DatabaseExists || !dbHealth.TableExists || !dbHealth.IntegrityCheck {
		t.Fatalf("unexpected db health: %+v", dbHealth)
	}
	if len(dbHealth.MissingColumns) != 0 || dbHealth.TotalJobs != 3 {
		t.Fatalf("unexpected db health: %+v", dbHealth)
	}

	retried, err := store.RetryFailed(ctx)
	if err != nil || retried != 1 {
		t.Fatalf("RetryFailed returned %d, %v", retried, err)
	}
	cleared, err := store.ClearCompleted(ctx)
	if err != nil || cleared != 1 {
		t.Fatalf("ClearCompleted returned %d, %v", cleared, err)
	}
	pending, err := store.List(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected two pending jobs, got %d", len(pending))
	}
}

func TestFindByPrefix(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	job := testsupport.MustSubmit(t, store, "/videos/prefix.mp4")

	found, err := store.FindByPrefix(ctx, job.ID[:8])
	if err != nil {
		t.Fatalf("FindByPrefix failed: %v", err)
	}
	if found == nil || found.ID != job.ID {
		t.Fatalf("expected %s, got %+v", job.ID, found)
	}
	missing, err := store.FindByPrefix(ctx, "zzzz")
	if err != nil || missing != nil {
		t.Fatalf("expected no match, got %+v err=%v", missing, err)
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	db, err := sqlitedb.Open(cfg.JobDBPath())
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_versions SET version = 999 WHERE component = 'jobs'"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()
	store.Close()

	if _, err := queue.OpenPath(cfg.JobDBPath()); !errors.Is(err, queue.ErrSchemaMismatch) {
		t.Fatalf("expected schema mismatch, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.DataDir, "jobs.db")); err != nil {
		t.Fatalf("expected database file to remain: %v", err)
	}
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to queue.Status
		want     bool
	}{
		{queue.StatusPending, queue.StatusExtracting, true},
		{queue.StatusExtracting, queue.StatusProcessing, true},
		{queue.StatusProcessing, queue.StatusStoring, true},
		{queue.StatusStoring, queue.StatusCompleted, true},
		{queue.StatusPending, queue.StatusFailed, true},
		{queue.StatusStoring, queue.StatusFailed, true},
		{queue.StatusPending, queue.StatusProcessing, false},
		{queue.StatusProcessing, queue.StatusExtracting, false},
		{queue.StatusCompleted, queue.StatusFailed, false},
		{queue.StatusFailed, queue.StatusPending, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanAdvanceTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v want %v", tt.from, tt.to, got, tt.want)
		}
	}
	if queue.StatusProcessing.Label() != "Processing" {
		t.Fatalf("unexpected label %q", queue.StatusProcessing.Label())
	}
	if status, ok := queue.ParseStatus(" FAILED "); !ok || status != queue.StatusFailed {
		t.Fatalf("ParseStatus returned %q, %v", status, ok)
	}
}
