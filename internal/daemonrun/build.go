package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"framepipe/internal/activity"
	"framepipe/internal/artifacts"
	"framepipe/internal/catalog"
	"framepipe/internal/config"
	"framepipe/internal/daemon"
	"framepipe/internal/dispatch"
	"framepipe/internal/embedder"
	"framepipe/internal/embedding"
	"framepipe/internal/extraction"
	"framepipe/internal/faults"
	"framepipe/internal/frames"
	"framepipe/internal/queue"
	"framepipe/internal/stores"
	"framepipe/internal/workflow"
)

// Runtime is a fully wired pipeline: job store, domain stores, stages, and
// the daemon that hosts the worker pool.
type Runtime struct {
	Config *config.Config
	Store  *queue.Store
	Stores *stores.Set
	Daemon *daemon.Daemon

	closers []func() error
}

// Build opens every dependency named by cfg and wires the pipeline. On error
// anything already opened is closed.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (rt *Runtime, err error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	rt = &Runtime{Config: cfg}
	defer func() {
		if err != nil {
			_ = rt.Close()
			rt = nil
		}
	}()

	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	rt.Store = store
	rt.closers = append(rt.closers, store.Close)

	set, err := stores.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open stores: %w", err)
	}
	rt.Stores = set
	rt.closers = append(rt.closers, set.Close)

	artifactStore, err := artifacts.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open artifact store: %w", err)
	}
	model, err := embedder.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("build embedder: %w", err)
	}

	stages := NewStages(cfg, frames.NewFFmpeg(cfg.Extract.FFmpegBinary, cfg.Extract.FFprobeBinary, logger),
		artifactStore, model, set, logger)

	orchestrator, err := workflow.NewOrchestrator(cfg, store, activity.NewExecutor(nil, logger), stages, logger)
	if err != nil {
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}

	source, err := dispatch.New(ctx, cfg, store, logger)
	if err != nil {
		return nil, fmt.Errorf("open dispatch: %w", err)
	}

	manager := workflow.NewManager(cfg, store, source, orchestrator, logger)
	d, err := daemon.New(cfg, store, source, manager, logger)
	if err != nil {
		_ = source.Close()
		return nil, fmt.Errorf("create daemon: %w", err)
	}
	rt.Daemon = d
	// Closers run in reverse, so the daemon stops before the stores close.
	rt.closers = append(rt.closers, d.Close)
	return rt, nil
}

// NewStages builds the three pipeline stages over shared dependencies. The
// fault injector is shared so every stage observes the same configuration.
func NewStages(cfg *config.Config, source frames.Source, artifactStore artifacts.Store, model embedder.Embedder, set *stores.Set, logger *slog.Logger) workflow.StageSet {
	injector := faults.New(cfg.Faults, logger)
	processor := embedding.NewBatchProcessor(set.Embeddings, model, artifactStore, injector, cfg.Process.BatchSize, logger)
	return workflow.StageSet{
		Extract: extraction.NewStage(cfg, source, artifactStore, injector, logger),
		Process: embedding.NewStage(processor, logger),
		Store:   catalog.NewStage(set.Embeddings, set.Metadata, injector, logger),
	}
}

// Close releases everything Build opened, newest first.
func (rt *Runtime) Close() error {
	if rt == nil {
		return nil
	}
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
