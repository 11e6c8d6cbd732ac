package models

import "time"

// FailureKind classifies why an execution did not succeed.
type FailureKind int

const (
	// FailureNone means the command exited with status zero.
	FailureNone FailureKind = iota
	// FailureSpawn means the process could not be started.
	FailureSpawn
	// FailureTimeout means the process exceeded its bound and was killed.
	FailureTimeout
	// FailureNonZeroExit means the process ran and exited nonzero.
	FailureNonZeroExit
)

// String returns the human-readable name of the failure kind.
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureSpawn:
		return "spawn_failure"
	case FailureTimeout:
		return "timeout"
	case FailureNonZeroExit:
		return "nonzero_exit"
	default:
		return "unknown"
	}
}

// ExecutionResult is the outcome of running one shell command.
//
// Output holds standard output when Succeeded is true and the diagnostic or
// standard error text otherwise. The two streams are never mixed.
type ExecutionResult struct {
	Succeeded bool          `json:"succeeded"`
	Output    string        `json:"output"`
	Kind      FailureKind   `json:"-"`
	ExitCode  int           `json:"exit_code,omitempty"`
	Duration  time.Duration `json:"-"`
}
