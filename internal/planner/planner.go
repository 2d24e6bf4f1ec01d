// internal/planner/planner.go
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
	"github.com/xkilldash9x/waypoint-cli/internal/config"
)

// Planner turns a natural-language instruction plus a page snapshot into an
// executable plan, and proposes alternative element references for failed
// actions during recovery. It implements schemas.Planner.
type Planner struct {
	client *geminiClient
	logger *zap.Logger
}

// New constructs the planner for the configured provider.
func New(cfg config.PlannerConfig, logger *zap.Logger) (*Planner, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "gemini":
	default:
		return nil, fmt.Errorf("unknown planner provider %q", cfg.Provider)
	}

	client, err := newGeminiClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create planner client: %w", err)
	}
	return &Planner{
		client: client,
		logger: logger.Named("planner"),
	}, nil
}

const planSystemPrompt = `You drive a web browser on behalf of a user.
Given an instruction and a summary of the current page, produce a JSON plan:
an ordered list of named checkpoints, each with an ordered list of actions.

Action types and fields:
- {"type": "navigate", "url": "<URL>"}
- {"type": "click", "refs": ["<ref>", ...], "text": "<visible label>", "expect_ref": "<ref that must appear>", "expect_timeout_ms": 5000}
- {"type": "fill", "refs": ["<ref>", ...], "text": "<value to enter>", "keyboard_fallback": true}
- {"type": "wait_for_element", "refs": ["<ref>", ...], "timeout_ms": 10000}
- {"type": "wait_for_time", "duration_ms": 1000}
- {"type": "screenshot", "capture_name": "<snake_case_name>"}

Element references ("refs") use one of these forms, most specific first:
id=VALUE, css=SELECTOR, role=ROLE[name='Label'], text=FRAGMENT, xpath=EXPR.
List several candidate refs per action in descending confidence order.

Respond ONLY with a single JSON object:
{"checkpoints": [{"name": "...", "actions": [...]}, ...], "confidence": 0.0-1.0}
Each checkpoint should end at a visually meaningful state worth screenshotting.`

// GeneratePlan requests a plan and validates it strictly: a response with no
// plan-shaped structure fails the call with the raw response preserved in the
// error for diagnosability.
func (p *Planner) GeneratePlan(ctx context.Context, instruction string, snap *schemas.PageSnapshot) (*schemas.Plan, error) {
	snapJSON := []byte("null")
	if snap != nil {
		var err error
		if snapJSON, err = json.Marshal(snap); err != nil {
			return nil, fmt.Errorf("failed to marshal page snapshot: %w", err)
		}
	}

	userPrompt := fmt.Sprintf("Instruction: %s\n\nCurrent page summary (JSON):\n%s\n\nProduce the plan.",
		instruction, snapJSON)

	p.logger.Info("Requesting plan", zap.String("instruction", instruction))
	response, err := p.client.generate(ctx, planSystemPrompt, userPrompt, true)
	if err != nil {
		return nil, fmt.Errorf("plan generation failed: %w", err)
	}

	plan, err := schemas.ParsePlan([]byte(response))
	if err != nil {
		return nil, fmt.Errorf("%w (raw response: %s)", err, truncate(response, 2000))
	}

	p.logger.Info("Plan generated", zap.Int("checkpoints", len(plan.Checkpoints)),
		zap.Float64("confidence", plan.Confidence))
	return plan, nil
}

const recoverySystemPrompt = `You help a browser automation engine recover from a failed UI action.
You receive the failing action, the error, and a fresh summary of the page.
Propose alternative element references for that single action only.

References use: id=VALUE, css=SELECTOR, role=ROLE[name='Label'], text=FRAGMENT, xpath=EXPR.

Respond with a JSON object of the form:
{"selectors": ["<ref>", "<ref>", ...]}
ordered from most to least likely to identify the intended element.`

var jsonObjectRegex = regexp.MustCompile(`(?s)\{.*\}`)

// ProposeAlternatives asks for replacement references for one failing action.
// The response is returned raw: the recovery coordinator salvages references
// out of whatever shape came back, so no schema is enforced here.
func (p *Planner) ProposeAlternatives(ctx context.Context, req schemas.RecoveryRequest) (json.RawMessage, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recovery request: %w", err)
	}

	userPrompt := fmt.Sprintf("The following action failed. Propose alternative references.\n\n%s", reqJSON)

	p.logger.Info("Requesting recovery alternatives",
		zap.String("checkpoint", req.Checkpoint),
		zap.Int("action_index", req.ActionIndex),
		zap.String("action_type", string(req.Action.Type)))

	response, err := p.client.generate(ctx, recoverySystemPrompt, userPrompt, true)
	if err != nil {
		return nil, fmt.Errorf("recovery request failed: %w", err)
	}

	// Strip any prose around the JSON body, but do not validate its shape.
	body := strings.TrimSpace(response)
	if m := jsonObjectRegex.FindString(body); m != "" {
		body = m
	}
	return json.RawMessage(body), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
