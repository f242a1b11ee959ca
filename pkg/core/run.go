package core

import "time"

// RunStatus represents the terminal status of an extraction run.
type RunStatus string

// Run status constants.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunContext carries the identity of one extraction run. It is supplied
// by the host (job scheduler, CLI) and treated as read-only by the engine.
type RunContext struct {
	// RunID uniquely identifies the run.
	RunID string `json:"run_id"`
	// Metadata holds host-supplied identifiers such as workspace,
	// configuration and build ids.
	Metadata map[string]string `json:"metadata,omitempty"`
	// StartedAt is when the host started the run.
	StartedAt time.Time `json:"started_at"`
	// RootDir is the run's working root; telemetry and the artifact
	// relativize known paths against it.
	RootDir string `json:"root_dir,omitempty"`
	// OutputDir is where run outputs are written.
	OutputDir string `json:"output_dir,omitempty"`
}

// RunError is a structured, user-visible failure. It travels on the
// artifact and the final engine.complete telemetry frame.
type RunError struct {
	Code    string `json:"code"`
	Stage   string `json:"stage,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.Stage != "" {
		return e.Code + " (" + e.Stage + "): " + e.Message
	}
	return e.Code + ": " + e.Message
}
