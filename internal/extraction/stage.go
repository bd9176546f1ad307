// Package extraction implements the first pipeline stage: decode the input
// video into frame images, persist them as artifacts and return the ordered
// unit list for the job.
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"

	"framepipe/internal/activity"
	"framepipe/internal/artifacts"
	"framepipe/internal/config"
	"framepipe/internal/faults"
	"framepipe/internal/frames"
	"framepipe/internal/logging"
	"framepipe/internal/queue"
	"framepipe/internal/services"
	"framepipe/internal/stage"
)

// Stage extracts frames for a job.
type Stage struct {
	source    frames.Source
	artifacts artifacts.Store
	faults    *faults.Injector
	step      int
	maxUnits  int
	framesDir string
	binaries  []string
	logger    *slog.Logger
}

// NewStage constructs the extraction stage.
func NewStage(cfg *config.Config, source frames.Source, store artifacts.Store, injector *faults.Injector, logger *slog.Logger) *Stage {
	return &Stage{
		source:    source,
		artifacts: store,
		faults:    injector,
		step:      cfg.Extract.FrameStep,
		maxUnits:  cfg.Extract.MaxFrames,
		framesDir: cfg.Paths.FramesDir,
		binaries:  []string{cfg.Extract.FFmpegBinary, cfg.Extract.FFprobeBinary},
		logger:    logging.NewComponentLogger(logger, "extraction"),
	}
}

// Name implements stage.Handler.
func (s *Stage) Name() string { return config.ActivityExtract }

// Execute implements stage.Handler. Re-running it for the same job replaces
// the frame files and yields the same unit ids.
func (s *Stage) Execute(ctx context.Context, attempt *activity.Attempt, job *queue.Job) ([]frames.Unit, error) {
	if job == nil {
		return nil, services.Wrap(services.ErrInvalidInput, s.Name(), "execute", "job is nil", nil)
	}
	if err := s.faults.Check(s.Name(), attempt.Number, faults.PointBeforeExtract); err != nil {
		return nil, err
	}
	attempt.Heartbeat("extracting frames")

	outputDir := filepath.Join(s.framesDir, job.ID)
	paths, err := s.source.Extract(ctx, attempt, job.InputRef, frames.Options{
		Step:      s.step,
		MaxUnits:  s.maxUnits,
		OutputDir: outputDir,
	})
	if err != nil {
		return nil, err
	}
	attempt.Heartbeat(fmt.Sprintf("extracted %d frames", len(paths)))

	refs := make([]string, 0, len(paths))
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ref, err := s.artifacts.Put(ctx, job.ID, path)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
		attempt.Heartbeat(stage.ProgressMessage("stored frame", i+1, len(paths)))
	}

	units := frames.BuildUnits(job.ID, refs)
	logging.WithContext(ctx, s.logger).Info("frames extracted",
		logging.Int("frames", len(units)),
		logging.String("output_dir", outputDir),
		logging.String(logging.FieldEventType, "extract_complete"),
	)
	return units, nil
}

// HealthCheck implements stage.Handler.
func (s *Stage) HealthCheck(context.Context) stage.Health {
	if s.source == nil || s.artifacts == nil {
		return stage.Unhealthy(s.Name(), "extractor not configured")
	}
	for _, binary := range s.binaries {
		if binary == "" {
			continue
		}
		if _, err := exec.LookPath(binary); err != nil {
			return stage.Unhealthy(s.Name(), fmt.Sprintf("%s not found on PATH", binary))
		}
	}
	return stage.Healthy(s.Name())
}
