// api/schemas/execution.go
package schemas

import "time"

// RunStatus is the terminal state of a whole plan run.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// RunResult summarizes one plan run.
type RunResult struct {
	Status              RunStatus `json:"status"`
	RunID               string    `json:"run_id"`
	CheckpointsExecuted int       `json:"checkpoints_executed"`
	Timestamp           time.Time `json:"timestamp"`
}

// ActionOutcome records what a successful action actually did. RefUsed is the
// Resolution Result: the reference that performed the action, empty when the
// action needed none (navigate, wait_for_time) or typed into the focused
// element as a last resort.
type ActionOutcome struct {
	RefUsed string
	URL     string
}

// CheckpointRecord is the metadata document persisted alongside a checkpoint
// screenshot. ScreenshotPath is null when the screenshot write failed; the
// metadata document is written regardless.
type CheckpointRecord struct {
	Checkpoint  string `json:"checkpoint"`
	CaptureName string `json:"capture_name,omitempty"`
	ActionIndex int    `json:"action_index"`
	ActionType  string `json:"action_type"`
	// RefUsed is the reference confirmed present during capture verification,
	// or the attempted one when nothing confirmed.
	RefUsed        string    `json:"ref_used,omitempty"`
	RefVerified    bool      `json:"ref_verified"`
	URL            string    `json:"url,omitempty"`
	ScreenshotPath *string   `json:"screenshot_path"`
	Confidence     float64   `json:"confidence,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// FailureRecord is persisted exactly once per aborted run, carrying enough
// context to reproduce the failing action.
type FailureRecord struct {
	Checkpoint  string    `json:"checkpoint"`
	ActionIndex int       `json:"action_index"`
	Action      Action    `json:"action"`
	Error       string    `json:"error"`
	URL         string    `json:"url,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}
