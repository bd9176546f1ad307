package workflow

import (
	"framepipe/internal/activity"
	"framepipe/internal/config"
	"framepipe/internal/retry"
)

// RetryPolicy converts the configured retry section.
func RetryPolicy(cfg config.Retry) retry.Policy {
	return retry.Policy{
		InitialInterval:    config.Seconds(cfg.InitialInterval),
		BackoffCoefficient: cfg.BackoffCoefficient,
		MaximumInterval:    config.Seconds(cfg.MaximumInterval),
		MaximumAttempts:    cfg.MaximumAttempts,
	}
}

// ActivityOptions builds the executor options for the named activity.
func ActivityOptions(cfg *config.Config, name string, observer activity.Observer) activity.Options {
	limits := activityLimits(cfg, name)
	return activity.Options{
		Name:             name,
		StartToClose:     limits.StartToCloseTimeout(),
		ScheduleToClose:  limits.ScheduleToCloseTimeout(),
		HeartbeatTimeout: limits.HeartbeatTimeoutDuration(),
		CancelGrace:      limits.CancelGraceDuration(),
		Policy:           RetryPolicy(cfg.Retry),
		Observer:         observer,
	}
}

func activityLimits(cfg *config.Config, name string) config.Activity {
	switch name {
	case config.ActivityExtract:
		return cfg.Activities.Extract
	case config.ActivityProcess:
		return cfg.Activities.Process
	case config.ActivityStore:
		return cfg.Activities.Store
	default:
		return config.Activity{}
	}
}
