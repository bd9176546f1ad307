package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"framepipe/internal/config"
	"framepipe/internal/logging"
)

// Run starts the worker and blocks until ctx is cancelled or the process
// receives SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, logger *slog.Logger) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logDependencySnapshot(logger, cfg)

	rt, err := Build(signalCtx, cfg, logger)
	if err != nil {
		logger.Error("runtime build failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "runtime_build_failed"),
			logging.String(logging.FieldErrorHint, "run framepipe config validate"),
		)
		return err
	}
	defer rt.Close()

	pidPath := filepath.Join(cfg.Paths.DataDir, "framepipe.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	if err := rt.Daemon.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("framepipe worker shutting down", logging.String(logging.FieldEventType, "worker_shutdown"))
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("ffmpeg_available", binaryAvailable(cfg.Extract.FFmpegBinary)),
		logging.String("ffmpeg_binary", cfg.Extract.FFmpegBinary),
		logging.Bool("ffprobe_available", binaryAvailable(cfg.Extract.FFprobeBinary)),
		logging.String("ffprobe_binary", cfg.Extract.FFprobeBinary),
		logging.String("embedding_provider", cfg.Embedding.Provider),
		logging.Bool("gemini_key_present", strings.TrimSpace(cfg.Embedding.GeminiAPIKey) != ""),
		logging.String("stores_backend", cfg.Stores.Backend),
		logging.String("artifacts_backend", cfg.Artifacts.Backend),
		logging.String("dispatch_backend", cfg.Dispatch.Backend),
		logging.Int("workers", cfg.Workflow.WorkerCount),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}
