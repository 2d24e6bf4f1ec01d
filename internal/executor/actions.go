// internal/executor/actions.go
package executor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
)

// textFallbackMinLen guards the synthesized contains-text click fallback:
// fragments this short match too much of the page to be useful.
const textFallbackMinLen = 3

// perform executes a single action against the live page. Failures come back
// as errors for the runner to hand to recovery; nothing here panics or
// aborts on its own.
func (e *Executor) perform(ctx context.Context, plan *schemas.Plan, cp schemas.Checkpoint, idx int, act schemas.Action) (schemas.ActionOutcome, error) {
	switch act.Type {
	case schemas.ActionNavigate:
		return e.performNavigate(ctx, act)
	case schemas.ActionClick:
		return e.performClick(ctx, act)
	case schemas.ActionFill:
		return e.performFill(ctx, act)
	case schemas.ActionWaitForElement:
		return e.performWaitForElement(ctx, act)
	case schemas.ActionWaitForTime:
		return e.performWaitForTime(ctx, act)
	case schemas.ActionCapture:
		verified, err := e.captureCheckpoint(ctx, cp.Name, idx, act, plan.Confidence)
		return schemas.ActionOutcome{RefUsed: verified}, err
	default:
		return schemas.ActionOutcome{}, fmt.Errorf("unknown action type %q", act.Type)
	}
}

// performNavigate loads the URL directly; no candidate resolution happens and
// selector memory never survives a page load.
func (e *Executor) performNavigate(ctx context.Context, act schemas.Action) (schemas.ActionOutcome, error) {
	e.mem.clear()

	navCtx, cancel := context.WithTimeout(ctx, act.Timeout(e.cfg.ActionTimeout))
	defer cancel()
	if err := e.page.Navigate(navCtx, act.URL); err != nil {
		return schemas.ActionOutcome{}, fmt.Errorf("%w: %q: %v", ErrNavigationFailed, act.URL, err)
	}
	return schemas.ActionOutcome{}, nil
}

// performClick resolves a clickable target, clicks it, and enforces the
// declared follow-on element. A click whose expected dialog never opens is a
// failure even though the click itself landed.
func (e *Executor) performClick(ctx context.Context, act schemas.Action) (schemas.ActionOutcome, error) {
	cands := act.Refs
	if memRef, ok := e.takeMemory(ctx, clickable); ok {
		cands = append([]string{memRef}, cands...)
	}
	cands = e.filterInteractive(ctx, cands, clickable)

	perCandidate := act.Timeout(e.cfg.CandidateTimeout)
	ref := e.resolve(ctx, cands, perCandidate)

	if ref == "" && len([]rune(act.Text)) >= textFallbackMinLen {
		fallback := "text=" + act.Text
		e.logger.Debug("No candidate resolved, trying synthesized text reference",
			zap.String("ref", fallback))
		if e.awaitElement(ctx, fallback, perCandidate) {
			ref = fallback
		}
	}
	if ref == "" {
		return schemas.ActionOutcome{}, fmt.Errorf("click: %w (%d candidates)", ErrNoCandidateResolved, len(cands))
	}

	if err := e.page.Click(ctx, ref); err != nil {
		return schemas.ActionOutcome{}, fmt.Errorf("click on %q failed: %w", ref, err)
	}

	if act.ExpectRef != "" {
		if err := e.waitFor(ctx, act.ExpectRef, act.ExpectTimeout(e.cfg.ExpectTimeout)); err != nil {
			return schemas.ActionOutcome{}, fmt.Errorf("click on %q: %w", ref, err)
		}
	}

	e.mem.remember(ref)
	return schemas.ActionOutcome{RefUsed: ref}, nil
}

// performFill resolves a fillable target and assigns the payload, falling
// back to synthetic keystrokes when permitted. When a follow-on element is
// declared and the first attempt fails, the follow-on is awaited and
// resolution retried once; the reference recorded is always the one that
// produced the verified success.
func (e *Executor) performFill(ctx context.Context, act schemas.Action) (schemas.ActionOutcome, error) {
	cands := act.Refs
	if memRef, ok := e.takeMemory(ctx, fillable); ok {
		cands = append([]string{memRef}, cands...)
	}
	cands = e.filterInteractive(ctx, cands, fillable)

	perCandidate := act.Timeout(e.cfg.CandidateTimeout)
	ref := e.resolve(ctx, cands, perCandidate)

	used, err := e.attemptFill(ctx, ref, act)
	if err != nil && act.ExpectRef != "" {
		e.logger.Debug("Fill attempt failed, waiting for expected element before retrying",
			zap.String("expect_ref", act.ExpectRef), zap.Error(err))
		if werr := e.waitFor(ctx, act.ExpectRef, act.ExpectTimeout(e.cfg.ExpectTimeout)); werr == nil {
			retryRefs := e.filterInteractive(ctx, act.Refs, fillable)
			used, err = e.attemptFill(ctx, e.resolve(ctx, retryRefs, perCandidate), act)
		}
	}
	if err != nil {
		return schemas.ActionOutcome{}, err
	}

	if used != "" {
		e.mem.remember(used)
	}
	return schemas.ActionOutcome{RefUsed: used}, nil
}

// attemptFill performs one fill attempt and returns the reference that
// produced the success; empty when the payload went to the focused element as
// a last resort.
func (e *Executor) attemptFill(ctx context.Context, ref string, act schemas.Action) (string, error) {
	if ref == "" {
		if !act.KeyboardFallback {
			return "", fmt.Errorf("fill: %w", ErrNoCandidateResolved)
		}
		if err := e.page.TypeText(ctx, act.Text); err != nil {
			return "", fmt.Errorf("fill: keyboard fallback into focused element failed: %w", err)
		}
		return "", nil
	}

	if err := e.page.SetValue(ctx, ref, act.Text); err != nil {
		if !act.KeyboardFallback {
			return "", fmt.Errorf("fill on %q failed: %w", ref, err)
		}
		e.logger.Debug("Direct value assignment failed, falling back to keystrokes",
			zap.String("ref", ref), zap.Error(err))
		if ferr := e.page.Focus(ctx, ref); ferr != nil {
			return "", fmt.Errorf("fill on %q: focus for keyboard fallback failed: %w", ref, ferr)
		}
		if terr := e.page.TypeText(ctx, act.Text); terr != nil {
			return "", fmt.Errorf("fill on %q: keyboard fallback failed: %w", ref, terr)
		}
	}
	return ref, nil
}

// performWaitForElement resolves with no interactivity filter and arms the
// selector memory for the immediately following action. Its failure is the
// most common recovery trigger.
func (e *Executor) performWaitForElement(ctx context.Context, act schemas.Action) (schemas.ActionOutcome, error) {
	ref := e.resolve(ctx, act.Refs, act.Timeout(e.cfg.CandidateTimeout))
	if ref == "" {
		return schemas.ActionOutcome{}, fmt.Errorf("wait_for_element: %w (%d candidates)", ErrNoCandidateResolved, len(act.Refs))
	}
	e.mem.arm(ref)
	return schemas.ActionOutcome{RefUsed: ref}, nil
}

// performWaitForTime is a pure delay; it always succeeds unless the context
// is cancelled.
func (e *Executor) performWaitForTime(ctx context.Context, act schemas.Action) (schemas.ActionOutcome, error) {
	select {
	case <-time.After(act.Duration()):
		return schemas.ActionOutcome{}, nil
	case <-ctx.Done():
		return schemas.ActionOutcome{}, ctx.Err()
	}
}

// takeMemory consumes the one-shot selector memory. The value is disarmed no
// matter what; it is only returned when it revalidates under the target
// action's interactivity requirement.
func (e *Executor) takeMemory(ctx context.Context, check func(schemas.ElementProbe) bool) (string, bool) {
	ref, ok := e.mem.takeArmed()
	if !ok {
		return "", false
	}
	probe, err := e.page.Probe(ctx, ref)
	if err != nil || !check(probe) {
		e.logger.Debug("Remembered reference failed revalidation, dropping it",
			zap.String("ref", ref))
		return "", false
	}
	return ref, true
}
