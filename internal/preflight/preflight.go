package preflight

import (
	"context"

	"framepipe/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Artifacts.Backend == config.ArtifactsLocal {
		results = append(results, CheckDirectoryAccess("Frames directory", cfg.Paths.FramesDir))
	}

	for _, status := range CheckSystemDeps(cfg) {
		results = append(results, status.Result())
	}

	if cfg.Stores.Backend == config.BackendPostgres {
		results = append(results, CheckPostgres(ctx, cfg.Stores.PostgresURL))
	}
	if cfg.Dispatch.Backend == config.DispatchValkey {
		results = append(results, CheckValkey(ctx, cfg.Dispatch))
	}
	if cfg.Embedding.Provider == config.ProviderGemini {
		results = append(results, CheckGeminiKey(cfg.Embedding.GeminiAPIKey))
	}
	if cfg.Artifacts.Backend == config.ArtifactsS3 {
		results = append(results, CheckS3Settings(cfg.Artifacts))
	}
	return results
}
