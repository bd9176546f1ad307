package config

import (
	"errors"
	"fmt"
	"slices"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateExtract(); err != nil {
		return err
	}
	if err := c.validateProcess(); err != nil {
		return err
	}
	if err := c.validateEmbedding(); err != nil {
		return err
	}
	if err := c.validateStores(); err != nil {
		return err
	}
	if err := c.validateArtifacts(); err != nil {
		return err
	}
	if err := c.validateDispatch(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateActivities(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return c.validateFaults()
}

func (c *Config) validateExtract() error {
	if c.Extract.FrameStep <= 0 {
		return errors.New("extract.frame_step must be positive")
	}
	if c.Extract.MaxFrames <= 0 {
		return errors.New("extract.max_frames must be positive")
	}
	return nil
}

func (c *Config) validateProcess() error {
	if c.Process.BatchSize <= 0 {
		return errors.New("process.batch_size must be positive")
	}
	return nil
}

func (c *Config) validateEmbedding() error {
	if c.Embedding.Dimensions != defaultEmbeddingDimensions {
		return fmt.Errorf("embedding.dimensions must be %d", defaultEmbeddingDimensions)
	}
	switch c.Embedding.Provider {
	case ProviderHash:
	case ProviderGemini:
		if c.Embedding.GeminiAPIKey == "" {
			return errors.New("embedding.gemini_api_key is required when embedding.provider is gemini (or set GEMINI_API_KEY)")
		}
	default:
		return fmt.Errorf("embedding.provider: unsupported value %q", c.Embedding.Provider)
	}
	return nil
}

func (c *Config) validateStores() error {
	switch c.Stores.Backend {
	case BackendSQLite:
	case BackendPostgres:
		if c.Stores.PostgresURL == "" {
			return errors.New("stores.postgres_url is required when stores.backend is postgres (or set FRAMEPIPE_POSTGRES_URL)")
		}
	default:
		return fmt.Errorf("stores.backend: unsupported value %q", c.Stores.Backend)
	}
	return nil
}

func (c *Config) validateArtifacts() error {
	switch c.Artifacts.Backend {
	case ArtifactsLocal:
	case ArtifactsS3:
		if c.Artifacts.S3Bucket == "" {
			return errors.New("artifacts.s3_bucket is required when artifacts.backend is s3")
		}
	default:
		return fmt.Errorf("artifacts.backend: unsupported value %q", c.Artifacts.Backend)
	}
	return nil
}

func (c *Config) validateDispatch() error {
	switch c.Dispatch.Backend {
	case DispatchStore, DispatchValkey:
		return nil
	default:
		return fmt.Errorf("dispatch.backend: unsupported value %q", c.Dispatch.Backend)
	}
}

func (c *Config) validateRetry() error {
	if c.Retry.InitialInterval <= 0 {
		return errors.New("retry.initial_interval must be positive")
	}
	if c.Retry.BackoffCoefficient < 1 {
		return errors.New("retry.backoff_coefficient must be at least 1")
	}
	if c.Retry.MaximumInterval < c.Retry.InitialInterval {
		return errors.New("retry.maximum_interval must not be smaller than retry.initial_interval")
	}
	if c.Retry.MaximumAttempts < 1 {
		return errors.New("retry.maximum_attempts must be at least 1")
	}
	return nil
}

func (c *Config) validateActivities() error {
	named := map[string]Activity{
		ActivityExtract: c.Activities.Extract,
		ActivityProcess: c.Activities.Process,
		ActivityStore:   c.Activities.Store,
	}
	for _, name := range []string{ActivityExtract, ActivityProcess, ActivityStore} {
		activity := named[name]
		if activity.StartToClose <= 0 {
			return fmt.Errorf("activities.%s.start_to_close must be positive", name)
		}
		if activity.ScheduleToClose < activity.StartToClose {
			return fmt.Errorf("activities.%s.schedule_to_close must not be smaller than start_to_close", name)
		}
		if activity.HeartbeatTimeout < 0 {
			return fmt.Errorf("activities.%s.heartbeat_timeout must not be negative", name)
		}
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.WorkerCount <= 0 {
		return errors.New("workflow.worker_count must be positive")
	}
	if c.Workflow.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.LeaseTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.lease_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateFaults() error {
	if c.Faults.FailAttempts < 0 {
		return errors.New("faults.fail_attempts must not be negative")
	}
	known := []string{ActivityExtract, ActivityProcess, ActivityStore}
	for _, name := range c.Faults.Activities {
		if !slices.Contains(known, name) {
			return fmt.Errorf("faults.activities: unknown activity %q", name)
		}
	}
	return nil
}
