package frames

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"framepipe/internal/activity"
	"framepipe/internal/logging"
	"framepipe/internal/services"
)

var commandContext = exec.CommandContext

const framePattern = "frame_%06d.jpg"

// FFmpeg extracts frames with the ffmpeg CLI after validating the input with ffprobe.
type FFmpeg struct {
	binary      string
	probeBinary string
	logger      *slog.Logger
}

// NewFFmpeg constructs an extractor. Empty binaries fall back to "ffmpeg"
// and "ffprobe" on PATH.
func NewFFmpeg(binary, probeBinary string, logger *slog.Logger) *FFmpeg {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	if strings.TrimSpace(probeBinary) == "" {
		probeBinary = "ffprobe"
	}
	return &FFmpeg{
		binary:      binary,
		probeBinary: probeBinary,
		logger:      logging.NewComponentLogger(logger, "ffmpeg"),
	}
}

// Extract implements Source. ffmpeg reports progress on stdout and every
// progress block becomes a heartbeat on hb, so long decodes stay alive while
// a stalled one goes silent.
func (f *FFmpeg) Extract(ctx context.Context, hb activity.Heartbeater, inputRef string, opts Options) ([]string, error) {
	inputRef = strings.TrimSpace(inputRef)
	if inputRef == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "extract", "validate input", "empty input reference", nil)
	}
	if opts.Step <= 0 || opts.MaxUnits <= 0 {
		return nil, services.Wrap(services.ErrConfiguration, "extract", "validate options",
			fmt.Sprintf("step=%d max=%d must be positive", opts.Step, opts.MaxUnits), nil)
	}
	if strings.TrimSpace(opts.OutputDir) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "extract", "validate options", "output directory is required", nil)
	}
	if err := checkLocalInput(inputRef); err != nil {
		return nil, err
	}

	probe, err := Probe(ctx, f.probeBinary, inputRef)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, classifyExecError("probe input", "unable to open video", err)
	}
	if probe.VideoStreamCount() == 0 {
		return nil, services.Wrap(services.ErrInvalidInput, "extract", "probe input", "no video stream", nil)
	}

	if err := resetOutputDir(opts.OutputDir); err != nil {
		return nil, services.Wrap(services.ErrTransient, "extract", "prepare output", opts.OutputDir, err)
	}

	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostdin", "-nostats", "-y",
		"-progress", "pipe:1",
		"-i", inputRef,
		"-vf", fmt.Sprintf("select=not(mod(n\\,%d))", opts.Step),
		"-fps_mode", "vfr",
		"-frames:v", fmt.Sprint(opts.MaxUnits),
		"-q:v", "2",
		filepath.Join(opts.OutputDir, framePattern),
	}
	f.logger.Debug("running ffmpeg",
		logging.String("input", inputRef),
		logging.Int("frame_step", opts.Step),
		logging.Int("max_frames", opts.MaxUnits),
		logging.Int("estimated_source_frames", probe.EstimatedFrames()),
	)
	if err := f.decode(ctx, hb, args, opts.MaxUnits); err != nil {
		return nil, err
	}

	paths, err := listFrames(opts.OutputDir)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "extract", "list frames", opts.OutputDir, err)
	}
	if len(paths) == 0 {
		return nil, services.Wrap(services.ErrInvalidInput, "extract", "decode frames", "no frames decoded", nil)
	}
	if len(paths) > opts.MaxUnits {
		paths = paths[:opts.MaxUnits]
	}
	return paths, nil
}

func (f *FFmpeg) decode(ctx context.Context, hb activity.Heartbeater, args []string, maxUnits int) error {
	cmd := commandContext(ctx, f.binary, args...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return services.Wrap(services.ErrTransient, "extract", "decode frames", "stdout pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return classifyExecError("decode frames", "start ffmpeg", err)
	}

	var block progressBlock
	blocks := 0
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if !block.add(scanner.Text()) {
			continue
		}
		blocks++
		if hb != nil {
			hb.Heartbeat(block.message(maxUnits))
		}
	}
	scanErr := scanner.Err()
	if scanErr != nil {
		_ = cmd.Process.Kill()
	}
	waitErr := cmd.Wait()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if scanErr != nil {
		return services.Wrap(services.ErrTransient, "extract", "read progress", "", scanErr)
	}
	if waitErr != nil {
		return services.Wrap(services.ErrTransient, "extract", "decode frames", strings.TrimSpace(stderr.String()), waitErr)
	}
	f.logger.Debug("ffmpeg finished",
		logging.Int("progress_reports", blocks),
		logging.Int("frames_reported", block.frame),
	)
	return nil
}

func checkLocalInput(inputRef string) error {
	if strings.Contains(inputRef, "://") {
		return nil
	}
	info, err := os.Stat(inputRef)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return services.Wrap(services.ErrInvalidInput, "extract", "open video", "file does not exist", err)
	case err != nil:
		return services.Wrap(services.ErrTransient, "extract", "open video", "", err)
	case info.IsDir():
		return services.Wrap(services.ErrInvalidInput, "extract", "open video", "input is a directory", nil)
	}
	return nil
}

func classifyExecError(operation, message string, err error) error {
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		return services.Wrap(services.ErrInvalidInput, "extract", operation, message, err)
	case errors.Is(err, exec.ErrNotFound):
		return services.Wrap(services.ErrConfiguration, "extract", operation, "binary not found", err)
	default:
		return services.Wrap(services.ErrTransient, "extract", operation, message, err)
	}
}

func resetOutputDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	stale, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return err
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

func listFrames(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "frame_*.jpg"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

func stderrTail(err error) string {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return ""
	}
	tail := strings.TrimSpace(string(exitErr.Stderr))
	if tail == "" {
		return ""
	}
	if len(tail) > 512 {
		tail = tail[len(tail)-512:]
	}
	return ": " + tail
}
