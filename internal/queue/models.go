package queue

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"framepipe/internal/frames"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusExtracting Status = "extracting"
	StatusProcessing Status = "processing"
	StatusStoring    Status = "storing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// WorkerStopReason is the progress message recorded when a worker gives up a
// lease during shutdown.
const WorkerStopReason = "Worker stopped"

var allStatuses = []Status{
	StatusPending,
	StatusExtracting,
	StatusProcessing,
	StatusStoring,
	StatusCompleted,
	StatusFailed,
}

// pipelineOrder is the forward path a job takes within one run.
var pipelineOrder = map[Status]int{
	StatusPending:    0,
	StatusExtracting: 1,
	StatusProcessing: 2,
	StatusStoring:    3,
	StatusCompleted:  4,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusExtracting: {},
	StatusProcessing: {},
	StatusStoring:    {},
}

var titleCaser = cases.Title(language.English)

// Label renders the status for humans.
func (s Status) Label() string {
	return titleCaser.String(strings.ReplaceAll(string(s), "_", " "))
}

// IsTerminal reports whether no further transition is possible in this run.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanAdvanceTo reports whether moving from s to next keeps the status
// monotonic: one step forward along the pipeline, or any non-terminal status
// to failed.
func (s Status) CanAdvanceTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	from, ok := pipelineOrder[s]
	if !ok {
		return false
	}
	to, ok := pipelineOrder[next]
	return ok && to == from+1
}

// DatabaseHealth captures diagnostic information about the job database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// HealthSummary describes aggregated job counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Completed  int
	Leased     int
}

// Job is one pipeline run over a single input.
type Job struct {
	ID       string
	InputRef string
	Status   Status
	// Run counts submissions of the same input; it increases when a failed
	// job is resubmitted.
	Run int
	// Attempt is the attempt number of the activity currently executing.
	Attempt         int
	ProgressStage   string
	ProgressMessage string
	ErrorMessage    string
	ErrorKind       string
	Units           []frames.Unit
	CompletedUnits  []string
	StoredRows      int
	Owner           string
	LastHeartbeat   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (j Job) IsProcessing() bool {
	_, ok := processingStatuses[j.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// SetProgress updates the progress fields together.
func (j *Job) SetProgress(stage string, attempt int, message string) {
	j.ProgressStage = stage
	j.Attempt = attempt
	j.ProgressMessage = message
}

// ShortID returns the first eight characters of the job id for display.
func (j Job) ShortID() string {
	if len(j.ID) <= 8 {
		return j.ID
	}
	return j.ID[:8]
}
