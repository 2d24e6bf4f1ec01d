// internal/executor/recovery.go
package executor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
)

var recoveryJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// runState tracks the engine through a recovery episode. Transitions only
// ever move forward within an episode; a recovered run returns to running
// when the next action starts.
type runState string

const (
	stateRunning    runState = "running"
	stateFailed     runState = "failed"
	stateRecovering runState = "recovering"
	stateRecovered  runState = "recovered"
	stateAborted    runState = "aborted"
)

func (e *Executor) setState(next runState) {
	if e.state == next {
		return
	}
	e.logger.Debug("Run state transition",
		zap.String("from", string(e.state)), zap.String("to", string(next)))
	e.state = next
}

// referenceKeys are the JSON object keys whose values are mined for element
// references when salvaging a malformed recovery response.
var referenceKeys = map[string]bool{
	"selector": true, "selectors": true,
	"ref": true, "refs": true,
	"reference": true, "references": true,
	"locator": true, "locators": true,
	"candidate": true, "candidates": true,
	"element": true, "fallback": true,
	"xpath": true, "css": true,
}

// recoverAction runs one recovery episode for a failed action: settle, snap
// the page, ask the planner for alternatives, then trial each candidate with
// full side-effect and post-condition verification. One episode per action;
// exhausting the candidates aborts the run.
func (e *Executor) recoverAction(ctx context.Context, cp schemas.Checkpoint, idx int, act schemas.Action, cause error) (schemas.ActionOutcome, error) {
	e.setState(stateFailed)
	e.setState(stateRecovering)
	e.logger.Warn("Action failed, attempting recovery",
		zap.String("checkpoint", cp.Name),
		zap.Int("action_index", idx),
		zap.String("action_type", string(act.Type)),
		zap.Error(cause))

	// Let in-flight transitions and animations finish before snapshotting,
	// otherwise the planner reasons about a page that no longer exists.
	select {
	case <-time.After(e.cfg.SettleDelay):
	case <-ctx.Done():
		return e.abort(cause, ctx.Err())
	}

	snap, err := e.snapshotter.Capture(ctx, e.page)
	if err != nil {
		e.logger.Warn("Page snapshot failed, recovering without one", zap.Error(err))
		snap = nil
	}

	req := schemas.RecoveryRequest{
		Checkpoint:  cp.Name,
		ActionIndex: idx,
		Action:      act,
		Error:       cause.Error(),
		Snapshot:    snap,
	}
	var cands []string
	if raw, perr := e.planner.ProposeAlternatives(ctx, req); perr != nil {
		e.logger.Warn("Alternative proposal failed, no candidates to trial", zap.Error(perr))
	} else {
		cands = extractReferences(raw, e.cfg.MaxRecoveryCandidates)
	}

	cands = e.filterInteractive(ctx, cands, interactivityCheckFor(act.Type))
	cands = orderByTextAffinity(cands, act.Text)
	e.logger.Info("Trialling recovery candidates", zap.Int("count", len(cands)))

	for _, cand := range cands {
		if terr := e.trial(ctx, act, cand); terr != nil {
			e.logger.Debug("Recovery candidate rejected",
				zap.String("ref", cand), zap.Error(terr))
			if ctx.Err() != nil {
				return e.abort(cause, ctx.Err())
			}
			continue
		}
		e.setState(stateRecovered)
		e.logger.Info("Recovery succeeded",
			zap.String("checkpoint", cp.Name),
			zap.Int("action_index", idx),
			zap.String("ref", cand))
		if act.Type == schemas.ActionWaitForElement {
			e.mem.arm(cand)
		} else {
			e.mem.remember(cand)
		}
		return schemas.ActionOutcome{RefUsed: cand}, nil
	}

	return e.abort(cause, fmt.Errorf("%d recovery candidates exhausted", len(cands)))
}

func (e *Executor) abort(cause, detail error) (schemas.ActionOutcome, error) {
	e.setState(stateAborted)
	return schemas.ActionOutcome{}, fmt.Errorf("%w: %v (original failure: %v)", ErrRunAborted, detail, cause)
}

// trial performs the failing action's real side effect against one candidate
// reference and verifies the declared post-condition. A candidate whose side
// effect lands but whose post-condition misses is rejected like any other.
func (e *Executor) trial(ctx context.Context, act schemas.Action, ref string) error {
	budget := act.Timeout(e.cfg.CandidateTimeout)
	switch act.Type {
	case schemas.ActionClick:
		if !e.awaitElement(ctx, ref, budget) {
			return fmt.Errorf("candidate %q never resolved", ref)
		}
		if err := e.page.Click(ctx, ref); err != nil {
			return fmt.Errorf("click on candidate %q failed: %w", ref, err)
		}
	case schemas.ActionFill:
		if !e.awaitElement(ctx, ref, budget) {
			return fmt.Errorf("candidate %q never resolved", ref)
		}
		if _, err := e.attemptFill(ctx, ref, act); err != nil {
			return err
		}
	case schemas.ActionWaitForElement:
		if !e.awaitElement(ctx, ref, budget) {
			return fmt.Errorf("candidate %q never resolved", ref)
		}
	default:
		return fmt.Errorf("recovery cannot retry %q actions", act.Type)
	}

	if act.ExpectRef != "" {
		if err := e.waitFor(ctx, act.ExpectRef, act.ExpectTimeout(e.cfg.ExpectTimeout)); err != nil {
			return err
		}
	}
	return nil
}

// extractReferences mines element references out of an arbitrary JSON
// document. Any string (or array of strings) sitting under a known reference
// key, at any depth, counts. Traversal is key-sorted so the result is
// deterministic, duplicates collapse to first occurrence, and the total is
// capped.
func extractReferences(raw []byte, max int) []string {
	var doc any
	if err := recoveryJSON.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	var walk func(v any, underKey bool)
	walk = func(v any, underKey bool) {
		if len(out) >= max {
			return
		}
		switch t := v.(type) {
		case string:
			s := strings.TrimSpace(t)
			if underKey && s != "" && !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		case []any:
			for _, item := range t {
				walk(item, underKey)
			}
		case map[string]any:
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(t[k], underKey || referenceKeys[strings.ToLower(k)])
			}
		}
	}
	walk(doc, false)
	return out
}

// orderByTextAffinity stably partitions candidates so those mentioning the
// action's text come first. Ordering within each partition is preserved.
func orderByTextAffinity(refs []string, text string) []string {
	if text == "" || len(refs) < 2 {
		return refs
	}
	needle := strings.ToLower(text)
	matched := make([]string, 0, len(refs))
	rest := make([]string, 0, len(refs))
	for _, r := range refs {
		if strings.Contains(strings.ToLower(r), needle) {
			matched = append(matched, r)
		} else {
			rest = append(rest, r)
		}
	}
	return append(matched, rest...)
}
