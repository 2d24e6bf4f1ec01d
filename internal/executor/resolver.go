// internal/executor/resolver.go
package executor

import (
	"context"
	"fmt"
	"time"
)

// resolve walks the ordered candidate list and returns the first reference
// that currently resolves to a visible element with a non-degenerate bounding
// box. Each candidate gets its own budget before the next is tried: earlier
// candidates are the plan generator's higher-confidence guesses, so patience
// is spent on them first. Returns "" when every budget is exhausted.
func (e *Executor) resolve(ctx context.Context, candidates []string, perCandidate time.Duration) string {
	for _, ref := range candidates {
		if e.awaitElement(ctx, ref, perCandidate) {
			return ref
		}
		if ctx.Err() != nil {
			return ""
		}
	}
	return ""
}

// awaitElement polls the page at a fixed short interval until the reference
// resolves to an existing, visible element with real geometry, or the budget
// elapses. Probe errors count as "not there yet".
func (e *Executor) awaitElement(ctx context.Context, ref string, budget time.Duration) bool {
	deadline := time.Now().Add(budget)
	for {
		probe, err := e.page.Probe(ctx, ref)
		if err == nil && probe.Exists && probe.Visible && probe.HasBox() {
			return true
		}
		if ctx.Err() != nil || !time.Now().Before(deadline) {
			return false
		}
		select {
		case <-time.After(e.cfg.PollInterval):
		case <-ctx.Done():
			return false
		}
	}
}

// waitFor is awaitElement as a post-condition: a miss is an error carrying
// the reference and budget for diagnostics.
func (e *Executor) waitFor(ctx context.Context, ref string, budget time.Duration) error {
	if e.awaitElement(ctx, ref, budget) {
		return nil
	}
	return fmt.Errorf("%w: %q within %s", ErrPostConditionFailed, ref, budget)
}
