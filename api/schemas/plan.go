// api/schemas/plan.go
package schemas

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// ActionType enumerates the fixed set of action kinds the executor understands.
type ActionType string

const (
	ActionNavigate       ActionType = "navigate"
	ActionClick          ActionType = "click"
	ActionFill           ActionType = "fill"
	ActionWaitForElement ActionType = "wait_for_element"
	ActionWaitForTime    ActionType = "wait_for_time"
	// ActionCapture persists a checkpoint screenshot plus metadata. The wire
	// name is "screenshot" because that is what the record describes.
	ActionCapture ActionType = "screenshot"
)

// knownActionTypes is the closed set accepted by strict plan validation.
var knownActionTypes = map[ActionType]bool{
	ActionNavigate:       true,
	ActionClick:          true,
	ActionFill:           true,
	ActionWaitForElement: true,
	ActionWaitForTime:    true,
	ActionCapture:        true,
}

// Action is a single step inside a checkpoint. Refs holds ordered element
// reference candidates; the executor treats them as opaque strings interpreted
// by the browser layer, and only their ordering matters to it.
type Action struct {
	Type ActionType `json:"type"`
	Refs []string   `json:"refs,omitempty"`

	// Text carries the fill payload, or free text used to synthesize a
	// contains-text fallback reference for clicks.
	Text string `json:"text,omitempty"`

	// URL is required for navigate actions.
	URL string `json:"url,omitempty"`

	// CaptureName is required for screenshot actions and scopes the artifact
	// within its checkpoint.
	CaptureName string `json:"capture_name,omitempty"`

	TimeoutMs  int `json:"timeout_ms,omitempty"`
	DurationMs int `json:"duration_ms,omitempty"`

	// ExpectRef names an element that must appear after the action for it to
	// count as successful. Optional; click and wait_for_element mostly.
	ExpectRef       string `json:"expect_ref,omitempty"`
	ExpectTimeoutMs int    `json:"expect_timeout_ms,omitempty"`

	// KeyboardFallback permits a fill to fall back to synthetic keystrokes
	// when no resolvable input-like control exists.
	KeyboardFallback bool `json:"keyboard_fallback,omitempty"`
}

// Timeout returns the action's declared budget, or the provided default.
func (a Action) Timeout(def time.Duration) time.Duration {
	if a.TimeoutMs > 0 {
		return time.Duration(a.TimeoutMs) * time.Millisecond
	}
	return def
}

// ExpectTimeout returns the post-condition budget, or the provided default.
func (a Action) ExpectTimeout(def time.Duration) time.Duration {
	if a.ExpectTimeoutMs > 0 {
		return time.Duration(a.ExpectTimeoutMs) * time.Millisecond
	}
	return def
}

// Duration returns the declared delay for wait_for_time actions.
func (a Action) Duration() time.Duration {
	return time.Duration(a.DurationMs) * time.Millisecond
}

// Validate checks the kind-specific required fields.
func (a Action) Validate() error {
	if !knownActionTypes[a.Type] {
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	switch a.Type {
	case ActionNavigate:
		if a.URL == "" {
			return fmt.Errorf("navigate action requires a url")
		}
	case ActionCapture:
		if a.CaptureName == "" {
			return fmt.Errorf("screenshot action requires a capture_name")
		}
	case ActionWaitForTime:
		if a.DurationMs <= 0 {
			return fmt.Errorf("wait_for_time action requires a positive duration_ms")
		}
	case ActionWaitForElement:
		if len(a.Refs) == 0 {
			return fmt.Errorf("wait_for_element action requires at least one ref")
		}
	}
	return nil
}

// Checkpoint is a named milestone: the unit of artifact capture. Its name must
// be unique within a run because it doubles as the storage key.
type Checkpoint struct {
	Name    string   `json:"name"`
	Actions []Action `json:"actions"`
}

// Plan is an ordered sequence of checkpoints. It is immutable once handed to
// the runner.
type Plan struct {
	Checkpoints []Checkpoint `json:"checkpoints"`

	// Confidence is an optional self-assessment from the plan generator,
	// carried into checkpoint metadata when present.
	Confidence float64 `json:"confidence,omitempty"`
}

// Validate enforces the strict plan schema: at least one checkpoint, every
// checkpoint named and non-empty, names unique, every action well formed.
func (p *Plan) Validate() error {
	if len(p.Checkpoints) == 0 {
		return fmt.Errorf("plan contains no checkpoints")
	}
	seen := make(map[string]bool, len(p.Checkpoints))
	for ci, cp := range p.Checkpoints {
		if cp.Name == "" {
			return fmt.Errorf("checkpoint %d has no name", ci)
		}
		if seen[cp.Name] {
			return fmt.Errorf("duplicate checkpoint name %q", cp.Name)
		}
		seen[cp.Name] = true
		if len(cp.Actions) == 0 {
			return fmt.Errorf("checkpoint %q has no actions", cp.Name)
		}
		for ai, act := range cp.Actions {
			if err := act.Validate(); err != nil {
				return fmt.Errorf("checkpoint %q action %d: %w", cp.Name, ai, err)
			}
		}
	}
	return nil
}

var jsonFenceRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*\\})\\s*```")

var planJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// ParsePlan decodes and validates a plan document. It tolerates a markdown
// code fence around the JSON body, but is otherwise strict: a response with no
// plan-shaped structure fails the originating call rather than being silently
// replaced by a default. Salvage parsing of malformed recovery responses lives
// elsewhere and must never be conflated with this path.
func ParsePlan(raw []byte) (*Plan, error) {
	body := strings.TrimSpace(string(raw))
	if m := jsonFenceRegex.FindStringSubmatch(body); len(m) > 1 {
		body = m[1]
	}

	var plan Plan
	if err := planJSON.Unmarshal([]byte(body), &plan); err != nil {
		return nil, fmt.Errorf("plan is not valid JSON: %w", err)
	}
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("plan failed validation: %w", err)
	}
	return &plan, nil
}
