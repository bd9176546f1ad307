package config

const (
	defaultConfigPath = "~/.config/framepipe/config.toml"

	defaultDataDir   = "~/.local/share/framepipe"
	defaultFramesDir = "~/.local/share/framepipe/frames"
	defaultLogDir    = "~/.local/share/framepipe/logs"

	defaultFFmpegBinary  = "ffmpeg"
	defaultFFprobeBinary = "ffprobe"
	defaultFrameStep     = 5
	defaultMaxFrames     = 500

	defaultBatchSize = 50

	defaultEmbeddingDimensions = 512
	defaultGeminiModel         = "gemini-embedding-001"

	defaultS3Region   = "us-east-1"
	defaultValkeyAddr = "127.0.0.1:6379"
	defaultQueueKey   = "framepipe:jobs"

	defaultRetryInitialInterval    = 2.0
	defaultRetryBackoffCoefficient = 2.0
	defaultRetryMaximumInterval    = 20.0
	defaultRetryMaximumAttempts    = 5

	defaultStartToClose     = 600
	defaultScheduleToClose  = 3000
	defaultHeartbeatTimeout = 120
	defaultCancelGrace      = 30

	defaultWorkerCount        = 1
	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultHeartbeatInterval  = 15
	defaultLeaseTimeout       = 300

	defaultFailAttempts = 2

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Backend names accepted by the stores, artifacts, dispatch, and embedding sections.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	ArtifactsLocal  = "local"
	ArtifactsS3     = "s3"
	DispatchStore   = "store"
	DispatchValkey  = "valkey"
	ProviderHash    = "hash"
	ProviderGemini  = "gemini"
	ActivityExtract = "extract"
	ActivityProcess = "process"
	ActivityStore   = "store"
)

func defaultActivity() Activity {
	return Activity{
		StartToClose:     defaultStartToClose,
		ScheduleToClose:  defaultScheduleToClose,
		HeartbeatTimeout: defaultHeartbeatTimeout,
		CancelGrace:      defaultCancelGrace,
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			FramesDir: defaultFramesDir,
			LogDir:    defaultLogDir,
		},
		Extract: Extract{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			FrameStep:     defaultFrameStep,
			MaxFrames:     defaultMaxFrames,
		},
		Process: Process{
			BatchSize: defaultBatchSize,
		},
		Embedding: Embedding{
			Provider:    ProviderHash,
			Dimensions:  defaultEmbeddingDimensions,
			GeminiModel: defaultGeminiModel,
		},
		Stores: Stores{
			Backend: BackendSQLite,
		},
		Artifacts: Artifacts{
			Backend:  ArtifactsLocal,
			S3Region: defaultS3Region,
		},
		Dispatch: Dispatch{
			Backend:    DispatchStore,
			ValkeyAddr: defaultValkeyAddr,
			QueueKey:   defaultQueueKey,
		},
		Retry: Retry{
			InitialInterval:    defaultRetryInitialInterval,
			BackoffCoefficient: defaultRetryBackoffCoefficient,
			MaximumInterval:    defaultRetryMaximumInterval,
			MaximumAttempts:    defaultRetryMaximumAttempts,
		},
		Activities: Activities{
			Extract: defaultActivity(),
			Process: defaultActivity(),
			Store:   defaultActivity(),
		},
		Workflow: Workflow{
			WorkerCount:        defaultWorkerCount,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			LeaseTimeout:       defaultLeaseTimeout,
		},
		Faults: Faults{
			Enabled:      false,
			FailAttempts: defaultFailAttempts,
			Activities:   []string{ActivityExtract, ActivityProcess, ActivityStore},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
