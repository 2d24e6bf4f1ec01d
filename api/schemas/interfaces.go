// api/schemas/interfaces.go
package schemas

import (
	"context"
	"encoding/json"
)

// Page is the capability surface the executor needs from a live browser page.
// The single live page is passed explicitly into every component call rather
// than held as shared state, which keeps the engine testable against a fake
// implementation.
type Page interface {
	// Navigate loads a URL and waits for the load to complete.
	Navigate(ctx context.Context, url string) error

	// Probe resolves one element reference and reports its current state.
	// A reference that matches nothing yields a probe with Exists=false, not
	// an error; errors are reserved for transport-level failures.
	Probe(ctx context.Context, ref string) (ElementProbe, error)

	// Click dispatches a click on the element matching the reference.
	Click(ctx context.Context, ref string) error

	// SetValue assigns a value directly to an input-like element and fires
	// the usual input events. It fails when the element is missing or is not
	// a value-bearing control.
	SetValue(ctx context.Context, ref string, value string) error

	// Focus moves keyboard focus to the element matching the reference.
	Focus(ctx context.Context, ref string) error

	// TypeText emits synthetic keystrokes into the currently focused element.
	TypeText(ctx context.Context, text string) error

	// Screenshot captures a full-page screenshot as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)

	// Location returns the page's current resolved URL.
	Location(ctx context.Context) (string, error)

	// Title returns the current document title.
	Title(ctx context.Context) (string, error)

	// HTML returns the serialized outer HTML of the document.
	HTML(ctx context.Context) (string, error)
}

// RecoveryRequest describes one failing action to the plan-generation
// collaborator, asking for alternative element references for that single
// action.
type RecoveryRequest struct {
	Checkpoint  string        `json:"checkpoint"`
	ActionIndex int           `json:"action_index"`
	Action      Action        `json:"action"`
	Error       string        `json:"error"`
	Snapshot    *PageSnapshot `json:"snapshot,omitempty"`
}

// Planner is the external plan-generation collaborator. GeneratePlan is
// strict: it fails when the response carries no plan-shaped structure.
// ProposeAlternatives is deliberately lenient and returns the raw response
// body; salvaging references out of whatever shape came back is the
// recovery coordinator's job.
type Planner interface {
	GeneratePlan(ctx context.Context, instruction string, snap *PageSnapshot) (*Plan, error)
	ProposeAlternatives(ctx context.Context, req RecoveryRequest) (json.RawMessage, error)
}

// Snapshotter produces a PageSnapshot from a live page. Used only to feed
// recovery requests and initial plan generation.
type Snapshotter interface {
	Capture(ctx context.Context, page Page) (*PageSnapshot, error)
}

// ArtifactStore persists per-run checkpoint artifacts. Capture deduplication
// is tracked explicitly through Captured/SaveCheckpointRecord rather than
// inferred from file presence.
type ArtifactStore interface {
	// SaveScreenshot writes PNG bytes under the checkpoint's directory and
	// returns the path written.
	SaveScreenshot(checkpoint string, data []byte) (string, error)

	// SaveCheckpointRecord writes the metadata document and marks the
	// checkpoint as captured.
	SaveCheckpointRecord(rec *CheckpointRecord) error

	// Captured reports whether a checkpoint record was already produced in
	// this run.
	Captured(checkpoint string) bool

	// SaveFailure persists the failure record for an aborted run.
	SaveFailure(rec *FailureRecord) error

	// SaveResult persists the run summary at the run root.
	SaveResult(res *RunResult) error
}
