package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"framepipe/internal/config"
	"framepipe/internal/daemonrun"
	"framepipe/internal/logging"
	"framepipe/internal/queue"
	"framepipe/internal/staging"
)

// frameGrace keeps frame directories created moments ago out of pruning.
const frameGrace = time.Minute

// envFileVar names an alternative dotenv file to load before configuration.
const envFileVar = "FRAMEPIPE_ENV_FILE"

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		if err := loadDotEnv(); err != nil {
			c.configErr = err
			return
		}
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// loadDotEnv populates the environment from .env (or FRAMEPIPE_ENV_FILE)
// without overriding variables that are already set. A missing default file
// is not an error.
func loadDotEnv() error {
	if path := strings.TrimSpace(os.Getenv(envFileVar)); path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

func (c *commandContext) loggerFor() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	var logErr error
	c.loggerOnce.Do(func() {
		c.logger, logErr = logging.NewFromConfig(cfg)
	})
	if logErr != nil {
		return nil, fmt.Errorf("init logger: %w", logErr)
	}
	if c.logger == nil {
		return logging.NewNop(), nil
	}
	return c.logger, nil
}

// withStore opens the job store alone; enough for read-only and maintenance
// commands that do not touch the pipeline stores.
func (c *commandContext) withStore(fn func(*queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open job store: %w", err)
	}
	defer store.Close()
	return fn(store)
}

// withRuntime wires the full pipeline for commands that submit or execute
// jobs.
func (c *commandContext) withRuntime(ctx context.Context, fn func(*daemonrun.Runtime) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.loggerFor()
	if err != nil {
		return err
	}
	rt, err := daemonrun.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()
	return fn(rt)
}

// pruneFrames removes frame directories of jobs no longer in store.
func (c *commandContext) pruneFrames(ctx context.Context, store *queue.Store) (int, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return 0, err
	}
	logger, err := c.loggerFor()
	if err != nil {
		return 0, err
	}
	jobs, err := store.List(ctx)
	if err != nil {
		return 0, err
	}
	active := make(map[string]struct{}, len(jobs))
	for _, job := range jobs {
		active[job.ID] = struct{}{}
	}
	result := staging.CleanOrphaned(ctx, cfg.Paths.FramesDir, active, frameGrace, logger)
	if len(result.Errors) > 0 {
		return len(result.Removed), fmt.Errorf("remove frames %s: %w", result.Errors[0].Path, result.Errors[0].Error)
	}
	return len(result.Removed), nil
}

func resolveJob(ctx context.Context, store *queue.Store, id string) (*queue.Job, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("job id is required")
	}
	job, err := store.FindByPrefix(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job %s not found", id)
	}
	return job, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
