package workflow

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"framepipe/internal/config"
	"framepipe/internal/dispatch"
	"framepipe/internal/logging"
	"framepipe/internal/queue"
)

const minPollInterval = 50 * time.Millisecond

// Manager runs the worker pool that leases jobs and hands them to the
// orchestrator.
type Manager struct {
	cfg          *config.Config
	store        *queue.Store
	source       dispatch.Source
	orchestrator *Orchestrator
	logger       *slog.Logger
	lease        *LeaseKeeper
	instance     string

	pollInterval  time.Duration
	errorInterval time.Duration

	mu      sync.RWMutex
	running bool
	cancel  func()
	wg      sync.WaitGroup
	lastErr error
	lastJob *queue.Job
}

// NewManager constructs a manager. A nil source polls the job store.
func NewManager(cfg *config.Config, store *queue.Store, source dispatch.Source, orchestrator *Orchestrator, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if source == nil {
		source = dispatch.NewStoreSource(store)
	}
	return &Manager{
		cfg:          cfg,
		store:        store,
		source:       source,
		orchestrator: orchestrator,
		logger:       logging.NewComponentLogger(logger, "workflow-manager"),
		lease: NewLeaseKeeper(
			store,
			logger,
			seconds(cfg.Workflow.HeartbeatInterval),
			time.Duration(cfg.Workflow.LeaseTimeout)*time.Second,
		),
		instance:      instanceID(),
		pollInterval:  seconds(cfg.Workflow.QueuePollInterval),
		errorInterval: seconds(cfg.Workflow.ErrorRetryInterval),
	}
}

// Instance returns the prefix of this manager's lease owner ids.
func (m *Manager) Instance() string {
	return m.instance
}

func (m *Manager) workerOwner(n int) string {
	return fmt.Sprintf("%s/worker-%d", m.instance, n)
}

func instanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "framepipe"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString()[:8])
}

func seconds(value int) time.Duration {
	d := time.Duration(value) * time.Second
	if d < minPollInterval {
		return minPollInterval
	}
	return d
}
