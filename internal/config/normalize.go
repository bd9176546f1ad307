package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeExtract()
	c.normalizeEmbedding()
	c.normalizeStores()
	c.normalizeArtifacts()
	c.normalizeDispatch()
	c.normalizeActivities()
	c.normalizeFaults()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if value, ok := lookupEnv("FRAMEPIPE_DATA_DIR"); ok {
		c.Paths.DataDir = value
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.FramesDir) == "" {
		c.Paths.FramesDir = defaultFramesDir
	}
	if c.Paths.FramesDir, err = expandPath(c.Paths.FramesDir); err != nil {
		return fmt.Errorf("paths.frames_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeExtract() {
	c.Extract.FFmpegBinary = strings.TrimSpace(c.Extract.FFmpegBinary)
	if c.Extract.FFmpegBinary == "" {
		c.Extract.FFmpegBinary = defaultFFmpegBinary
	}
	c.Extract.FFprobeBinary = strings.TrimSpace(c.Extract.FFprobeBinary)
	if c.Extract.FFprobeBinary == "" {
		c.Extract.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeEmbedding() {
	c.Embedding.Provider = strings.ToLower(strings.TrimSpace(c.Embedding.Provider))
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderHash
	}
	c.Embedding.GeminiAPIKey = strings.TrimSpace(c.Embedding.GeminiAPIKey)
	if c.Embedding.GeminiAPIKey == "" {
		if value, ok := lookupEnv("GEMINI_API_KEY"); ok {
			c.Embedding.GeminiAPIKey = value
		}
	}
	c.Embedding.GeminiModel = strings.TrimSpace(c.Embedding.GeminiModel)
	if c.Embedding.GeminiModel == "" {
		c.Embedding.GeminiModel = defaultGeminiModel
	}
}

func (c *Config) normalizeStores() {
	c.Stores.Backend = strings.ToLower(strings.TrimSpace(c.Stores.Backend))
	if c.Stores.Backend == "" {
		c.Stores.Backend = BackendSQLite
	}
	c.Stores.PostgresURL = strings.TrimSpace(c.Stores.PostgresURL)
	if c.Stores.PostgresURL == "" {
		if value, ok := lookupEnv("FRAMEPIPE_POSTGRES_URL"); ok {
			c.Stores.PostgresURL = value
		} else if value, ok := lookupEnv("DATABASE_URL"); ok {
			c.Stores.PostgresURL = value
		}
	}
}

func (c *Config) normalizeArtifacts() {
	c.Artifacts.Backend = strings.ToLower(strings.TrimSpace(c.Artifacts.Backend))
	if c.Artifacts.Backend == "" {
		c.Artifacts.Backend = ArtifactsLocal
	}
	c.Artifacts.S3Bucket = strings.TrimSpace(c.Artifacts.S3Bucket)
	if c.Artifacts.S3Bucket == "" {
		if value, ok := lookupEnv("FRAMEPIPE_S3_BUCKET"); ok {
			c.Artifacts.S3Bucket = value
		}
	}
	c.Artifacts.S3Prefix = strings.Trim(strings.TrimSpace(c.Artifacts.S3Prefix), "/")
	if strings.TrimSpace(c.Artifacts.S3Region) == "" {
		c.Artifacts.S3Region = defaultS3Region
	}
	c.Artifacts.S3Endpoint = strings.TrimSpace(c.Artifacts.S3Endpoint)
	if c.Artifacts.S3Endpoint == "" {
		if value, ok := lookupEnv("FRAMEPIPE_S3_ENDPOINT"); ok {
			c.Artifacts.S3Endpoint = value
		}
	}
	if c.Artifacts.S3AccessKey == "" {
		if value, ok := lookupEnv("FRAMEPIPE_S3_ACCESS_KEY"); ok {
			c.Artifacts.S3AccessKey = value
		}
	}
	if c.Artifacts.S3SecretKey == "" {
		if value, ok := lookupEnv("FRAMEPIPE_S3_SECRET_KEY"); ok {
			c.Artifacts.S3SecretKey = value
		}
	}
}

func (c *Config) normalizeDispatch() {
	c.Dispatch.Backend = strings.ToLower(strings.TrimSpace(c.Dispatch.Backend))
	if c.Dispatch.Backend == "" {
		c.Dispatch.Backend = DispatchStore
	}
	c.Dispatch.ValkeyAddr = strings.TrimSpace(c.Dispatch.ValkeyAddr)
	if value, ok := lookupEnv("FRAMEPIPE_VALKEY_ADDR"); ok {
		c.Dispatch.ValkeyAddr = value
	}
	if c.Dispatch.ValkeyAddr == "" {
		c.Dispatch.ValkeyAddr = defaultValkeyAddr
	}
	if c.Dispatch.ValkeyPassword == "" {
		if value, ok := lookupEnv("FRAMEPIPE_VALKEY_PASSWORD"); ok {
			c.Dispatch.ValkeyPassword = value
		}
	}
	c.Dispatch.QueueKey = strings.TrimSpace(c.Dispatch.QueueKey)
	if c.Dispatch.QueueKey == "" {
		c.Dispatch.QueueKey = defaultQueueKey
	}
}

func (c *Config) normalizeActivities() {
	for _, activity := range []*Activity{&c.Activities.Extract, &c.Activities.Process, &c.Activities.Store} {
		if activity.CancelGrace <= 0 {
			activity.CancelGrace = defaultCancelGrace
		}
	}
}

func (c *Config) normalizeFaults() {
	if value, ok := lookupEnv("FRAMEPIPE_INJECT_FAULTS"); ok {
		switch strings.ToLower(value) {
		case "1", "true", "yes", "on":
			c.Faults.Enabled = true
		case "0", "false", "no", "off":
			c.Faults.Enabled = false
		}
	}
	names := make([]string, 0, len(c.Faults.Activities))
	seen := make(map[string]struct{}, len(c.Faults.Activities))
	for _, name := range c.Faults.Activities {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		names = append(names, normalized)
	}
	c.Faults.Activities = names
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if value, ok := lookupEnv("FRAMEPIPE_LOG_LEVEL"); ok {
		c.Logging.Level = strings.ToLower(value)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func lookupEnv(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
