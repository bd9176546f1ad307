package stage

import (
	"fmt"

	"framepipe/internal/frames"
	"framepipe/internal/queue"
	"framepipe/internal/services"
)

// RequireUnits returns the extracted units recorded on job. A job that
// reached a later stage without a consistent unit list cannot make progress,
// so the error is terminal.
func RequireUnits(stageName string, job *queue.Job) ([]frames.Unit, error) {
	if job == nil {
		return nil, services.Wrap(services.ErrInvalidInput, stageName, "load units", "job is nil", nil)
	}
	if len(job.Units) == 0 {
		return nil, services.Wrap(services.ErrInvalidInput, stageName, "load units",
			"Job has no extracted frames; resubmit to extract again", nil)
	}
	if err := frames.ValidateUnits(job.ID, job.Units); err != nil {
		return nil, services.Wrap(services.ErrInvalidInput, stageName, "load units",
			fmt.Sprintf("Extracted frame list is inconsistent for job %s", job.ShortID()), err)
	}
	return job.Units, nil
}

// ProgressMessage renders the per-unit heartbeat text.
func ProgressMessage(verb string, done, total int) string {
	return fmt.Sprintf("%s %d/%d", verb, done, total)
}

// Percent returns done/total as a percentage, 100 for an empty total.
func Percent(done, total int) float64 {
	if total <= 0 {
		return 100
	}
	return float64(done) * 100 / float64(total)
}
