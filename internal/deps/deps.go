// Package deps checks the external binaries the pipeline shells out to,
// so a missing toolchain surfaces at startup instead of mid-task.
package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"distill/internal/services/whisper"
)

// Requirement defines an external binary the daemon relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	// Optional requirements degrade a feature instead of blocking startup.
	Optional bool
}

// Status reports the availability of a requirement.
type Status struct {
	Requirement
	Available bool
	Detail    string
}

// Default returns the requirements of a full pipeline. Transcription is
// optional: article-only deployments never invoke it.
func Default() []Requirement {
	return []Requirement{
		{
			Name:        "whisperx runner",
			Command:     whisper.UVXCommand,
			Description: "runs WhisperX for podcast transcription",
			Optional:    true,
		},
	}
}

// Check evaluates the provided requirements and reports availability.
func Check(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		status := Status{Requirement: req}
		cmd := strings.TrimSpace(req.Command)
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found in PATH", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the subset of statuses that block startup.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}
