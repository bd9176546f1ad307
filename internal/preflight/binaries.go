package preflight

import (
	"fmt"
	"os/exec"
	"strings"

	"framepipe/internal/config"
)

// Requirement defines an external binary framepipe relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// BinaryStatus reports the availability of a binary.
type BinaryStatus struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Result converts the status into a preflight result. Missing optional
// binaries pass.
func (s BinaryStatus) Result() Result {
	if s.Available {
		return Result{Name: s.Name, Passed: true, Detail: s.Command}
	}
	detail := s.Detail
	if s.Optional {
		return Result{Name: s.Name, Passed: true, Detail: detail + " (optional)"}
	}
	return Result{Name: s.Name, Detail: detail}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []BinaryStatus {
	results := make([]BinaryStatus, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := BinaryStatus{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch {
		case cmd == "":
			status.Detail = "command not configured"
		default:
			if resolved, err := exec.LookPath(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
			} else {
				status.Command = resolved
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}

// CheckSystemDeps evaluates the binaries the extract activity needs. The
// worker and the CLI status command share this list.
func CheckSystemDeps(cfg *config.Config) []BinaryStatus {
	return CheckBinaries([]Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Extract.FFmpegBinary,
			Description: "Required for frame extraction",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Extract.FFprobeBinary,
			Description: "Reports video duration for extraction progress",
			Optional:    true,
		},
	})
}
