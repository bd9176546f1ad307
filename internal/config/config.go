package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir   string `toml:"data_dir"`
	FramesDir string `toml:"frames_dir"`
	LogDir    string `toml:"log_dir"`
}

// Extract contains frame extraction settings.
type Extract struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	FrameStep     int    `toml:"frame_step"`
	MaxFrames     int    `toml:"max_frames"`
}

// Process contains embedding batch settings.
type Process struct {
	BatchSize int `toml:"batch_size"`
}

// Embedding selects the embedding model.
type Embedding struct {
	Provider     string `toml:"provider"`
	Dimensions   int    `toml:"dimensions"`
	GeminiAPIKey string `toml:"gemini_api_key"`
	GeminiModel  string `toml:"gemini_model"`
}

// Stores selects the embedding and metadata store backend.
type Stores struct {
	Backend     string `toml:"backend"`
	PostgresURL string `toml:"postgres_url"`
}

// Artifacts selects where extracted frames are kept.
type Artifacts struct {
	Backend     string `toml:"backend"`
	S3Bucket    string `toml:"s3_bucket"`
	S3Prefix    string `toml:"s3_prefix"`
	S3Region    string `toml:"s3_region"`
	S3Endpoint  string `toml:"s3_endpoint"`
	S3AccessKey string `toml:"s3_access_key"`
	S3SecretKey string `toml:"s3_secret_key"`
}

// Dispatch selects how workers discover pending jobs.
type Dispatch struct {
	Backend        string `toml:"backend"`
	ValkeyAddr     string `toml:"valkey_addr"`
	ValkeyPassword string `toml:"valkey_password"`
	QueueKey       string `toml:"queue_key"`
}

// Retry mirrors the activity retry policy. Intervals are in seconds.
type Retry struct {
	InitialInterval    float64 `toml:"initial_interval"`
	BackoffCoefficient float64 `toml:"backoff_coefficient"`
	MaximumInterval    float64 `toml:"maximum_interval"`
	MaximumAttempts    int     `toml:"maximum_attempts"`
}

// Activity holds the time limits for one activity, in seconds.
type Activity struct {
	StartToClose     int `toml:"start_to_close"`
	ScheduleToClose  int `toml:"schedule_to_close"`
	HeartbeatTimeout int `toml:"heartbeat_timeout"`
	CancelGrace      int `toml:"cancel_grace"`
}

// Activities groups the per-stage time limits.
type Activities struct {
	Extract Activity `toml:"extract"`
	Process Activity `toml:"process"`
	Store   Activity `toml:"store"`
}

// Workflow contains configuration for worker timing and intervals.
type Workflow struct {
	WorkerCount        int `toml:"worker_count"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	LeaseTimeout       int `toml:"lease_timeout"`
}

// Faults configures the transient failure injector.
type Faults struct {
	Enabled      bool     `toml:"enabled"`
	FailAttempts int      `toml:"fail_attempts"`
	Activities   []string `toml:"activities"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for framepipe.
//
// Configuration sections by subsystem:
//   - Paths: data, frame, and log directories
//   - Extract: ffmpeg binary and sampling parameters
//   - Process: embedding batch size
//   - Embedding: model provider and vector width
//   - Stores: embedding/metadata backend (sqlite or postgres)
//   - Artifacts: frame storage (local or s3)
//   - Dispatch: job discovery (store polling or valkey list)
//   - Retry: activity retry policy
//   - Activities: per-activity timeouts
//   - Workflow: worker pool and polling intervals
//   - Faults: transient failure injection
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	Extract    Extract    `toml:"extract"`
	Process    Process    `toml:"process"`
	Embedding  Embedding  `toml:"embedding"`
	Stores     Stores     `toml:"stores"`
	Artifacts  Artifacts  `toml:"artifacts"`
	Dispatch   Dispatch   `toml:"dispatch"`
	Retry      Retry      `toml:"retry"`
	Activities Activities `toml:"activities"`
	Workflow   Workflow   `toml:"workflow"`
	Faults     Faults     `toml:"faults"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("framepipe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for worker operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	if c.Artifacts.Backend == ArtifactsLocal {
		dirs = append(dirs, c.Paths.FramesDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// JobDBPath returns the SQLite job store location.
func (c *Config) JobDBPath() string {
	return filepath.Join(c.Paths.DataDir, "jobs.db")
}

// CatalogDBPath returns the SQLite location shared by the embedding and
// metadata stores when the sqlite backend is selected.
func (c *Config) CatalogDBPath() string {
	return filepath.Join(c.Paths.DataDir, "catalog.db")
}

// LockPath returns the worker single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "worker.lock")
}

// StartToCloseTimeout bounds a single attempt.
func (a Activity) StartToCloseTimeout() time.Duration {
	return time.Duration(a.StartToClose) * time.Second
}

// ScheduleToCloseTimeout bounds all attempts including backoff.
func (a Activity) ScheduleToCloseTimeout() time.Duration {
	return time.Duration(a.ScheduleToClose) * time.Second
}

// HeartbeatTimeoutDuration is the staleness threshold; zero disables the watchdog.
func (a Activity) HeartbeatTimeoutDuration() time.Duration {
	return time.Duration(a.HeartbeatTimeout) * time.Second
}

// CancelGraceDuration is how long an abandoned attempt may take to return.
func (a Activity) CancelGraceDuration() time.Duration {
	return time.Duration(a.CancelGrace) * time.Second
}

// Seconds converts a fractional seconds setting to a duration.
func Seconds(value float64) time.Duration {
	return time.Duration(value * float64(time.Second))
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	redacted := *c
	redacted.Embedding.GeminiAPIKey = redact(redacted.Embedding.GeminiAPIKey)
	redacted.Stores.PostgresURL = redact(redacted.Stores.PostgresURL)
	redacted.Artifacts.S3AccessKey = redact(redacted.Artifacts.S3AccessKey)
	redacted.Artifacts.S3SecretKey = redact(redacted.Artifacts.S3SecretKey)
	redacted.Dispatch.ValkeyPassword = redact(redacted.Dispatch.ValkeyPassword)
	return toml.Marshal(redacted)
}

func redact(value string) string {
	if value == "" {
		return ""
	}
	return "<redacted>"
}
