package workflow_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"framepipe/internal/activity"
	"framepipe/internal/artifacts"
	"framepipe/internal/catalog"
	"framepipe/internal/config"
	"framepipe/internal/embedder"
	"framepipe/internal/embedding"
	"framepipe/internal/embedstore"
	"framepipe/internal/extraction"
	"framepipe/internal/faults"
	"framepipe/internal/frames"
	"framepipe/internal/logging"
	"framepipe/internal/metastore"
	"framepipe/internal/queue"
	"framepipe/internal/stage"
	"framepipe/internal/testsupport"
	"framepipe/internal/workflow"
)

// fakeSource writes count distinct frame files instead of running ffmpeg.
type fakeSource struct {
	t     testing.TB
	count int
	calls atomic.Int32
}

func (f *fakeSource) Extract(_ context.Context, _ activity.Heartbeater, _ string, opts frames.Options) ([]string, error) {
	f.calls.Add(1)
	return testsupport.WriteFrames(f.t, opts.OutputDir, f.count), nil
}

// fakeStage is a scripted stage handler.
type fakeStage[T any] struct {
	name  string
	run   func(ctx context.Context, attempt *activity.Attempt, job *queue.Job) (T, error)
	calls atomic.Int32
}

func (s *fakeStage[T]) Name() string { return s.name }

func (s *fakeStage[T]) Execute(ctx context.Context, attempt *activity.Attempt, job *queue.Job) (T, error) {
	s.calls.Add(1)
	return s.run(ctx, attempt, job)
}

func (s *fakeStage[T]) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(s.name)
}

func unitsFor(jobID string, n int) []frames.Unit {
	paths := make([]string, n)
	for i := range paths {
		paths[i] = fmt.Sprintf("/frames/%s/frame_%06d.jpg", jobID, i+1)
	}
	return frames.BuildUnits(jobID, paths)
}

func fakeStages() (*fakeStage[[]frames.Unit], *fakeStage[[]string], *fakeStage[int]) {
	extract := &fakeStage[[]frames.Unit]{
		name: config.ActivityExtract,
		run: func(_ context.Context, _ *activity.Attempt, job *queue.Job) ([]frames.Unit, error) {
			return unitsFor(job.ID, 3), nil
		},
	}
	process := &fakeStage[[]string]{
		name: config.ActivityProcess,
		run: func(_ context.Context, _ *activity.Attempt, job *queue.Job) ([]string, error) {
			return frames.IDs(job.Units), nil
		},
	}
	store := &fakeStage[int]{
		name: config.ActivityStore,
		run: func(_ context.Context, _ *activity.Attempt, job *queue.Job) (int, error) {
			return len(job.CompletedUnits), nil
		},
	}
	return extract, process, store
}

func newOrchestrator(t *testing.T, cfg *config.Config, store *queue.Store, stages workflow.StageSet) *workflow.Orchestrator {
	t.Helper()
	orch, err := workflow.NewOrchestrator(cfg, store, activity.NewExecutor(nil, logging.NewNop()), stages, logging.NewNop())
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return orch
}

type pipeline struct {
	cfg          *config.Config
	store        *queue.Store
	embeddings   embedstore.Store
	metadata     metastore.Store
	source       *fakeSource
	orchestrator *workflow.Orchestrator
}

// newPipeline wires the real stages against SQLite stores, local artifacts,
// and the hash embedder.
func newPipeline(t *testing.T, cfg *config.Config, frameCount int) *pipeline {
	t.Helper()
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	logger := logging.NewNop()
	store := testsupport.MustOpenStore(t, cfg)
	embeddings := testsupport.MustOpenEmbeddings(t, cfg)
	metadata := testsupport.MustOpenMetadata(t, cfg)
	injector := faults.New(cfg.Faults, logger)
	source := &fakeSource{t: t, count: frameCount}
	local := artifacts.NewLocal()

	processor := embedding.NewBatchProcessor(embeddings, embedder.NewHash(embedder.Dimensions), local, injector, cfg.Process.BatchSize, logger)
	stages := workflow.StageSet{
		Extract: extraction.NewStage(cfg, source, local, injector, logger),
		Process: embedding.NewStage(processor, logger),
		Store:   catalog.NewStage(embeddings, metadata, injector, logger),
	}
	return &pipeline{
		cfg:          cfg,
		store:        store,
		embeddings:   embeddings,
		metadata:     metadata,
		source:       source,
		orchestrator: newOrchestrator(t, cfg, store, stages),
	}
}

func (p *pipeline) submit(t *testing.T, name string) *queue.Job {
	t.Helper()
	return testsupport.MustSubmit(t, p.store, filepath.Join(testsupport.BaseDir(p.cfg), name))
}

func mustGet(t *testing.T, store *queue.Store, id string) *queue.Job {
	t.Helper()
	job, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job == nil {
		t.Fatalf("job %s not found", id)
	}
	return job
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
