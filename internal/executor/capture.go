// internal/executor/capture.go
package executor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
)

// captureCheckpoint handles an explicit screenshot action: verify best-effort,
// screenshot best-effort, metadata unconditionally. Only a metadata write
// failure fails the action, because the record is the one artifact later
// tooling depends on. Returns the reference confirmed during verification, if
// any.
func (e *Executor) captureCheckpoint(ctx context.Context, checkpoint string, idx int, act schemas.Action, confidence float64) (string, error) {
	rec := &schemas.CheckpointRecord{
		Checkpoint:  checkpoint,
		CaptureName: act.CaptureName,
		ActionIndex: idx,
		ActionType:  string(act.Type),
		Confidence:  confidence,
		Timestamp:   time.Now().UTC(),
	}
	targets := dedupNonEmpty(append([]string{e.mem.last(), act.ExpectRef}, act.Refs...))
	return e.writeCapture(ctx, checkpoint, targets, rec)
}

// captureImplicit is the end-of-checkpoint fallback for checkpoints whose plan
// carries no explicit screenshot action. The record is attributed to the
// checkpoint's final action.
func (e *Executor) captureImplicit(ctx context.Context, cp schemas.Checkpoint, confidence float64) error {
	lastIdx := len(cp.Actions) - 1
	rec := &schemas.CheckpointRecord{
		Checkpoint:  cp.Name,
		ActionIndex: lastIdx,
		ActionType:  string(cp.Actions[lastIdx].Type),
		Confidence:  confidence,
		Timestamp:   time.Now().UTC(),
	}
	_, err := e.writeCapture(ctx, cp.Name, dedupNonEmpty([]string{e.mem.last()}), rec)
	return err
}

// writeCapture runs the shared capture sequence and fills in the record's
// verification, URL, and screenshot fields as it goes.
func (e *Executor) writeCapture(ctx context.Context, checkpoint string, targets []string, rec *schemas.CheckpointRecord) (string, error) {
	rec.RefUsed, rec.RefVerified = e.verifyAny(ctx, targets)
	if !rec.RefVerified && len(targets) > 0 {
		rec.RefUsed = targets[0]
		e.logger.Warn("No capture verification target confirmed, recording anyway",
			zap.String("checkpoint", checkpoint),
			zap.Strings("targets", targets))
	}

	if url, err := e.page.Location(ctx); err == nil {
		rec.URL = url
	}

	if data, err := e.page.Screenshot(ctx); err != nil {
		e.logger.Warn("Screenshot capture failed, writing metadata without it",
			zap.String("checkpoint", checkpoint), zap.Error(err))
	} else if path, err := e.store.SaveScreenshot(checkpoint, data); err != nil {
		e.logger.Warn("Screenshot write failed, writing metadata without it",
			zap.String("checkpoint", checkpoint), zap.Error(err))
	} else {
		rec.ScreenshotPath = &path
	}

	if err := e.store.SaveCheckpointRecord(rec); err != nil {
		return "", fmt.Errorf("checkpoint %q: persisting capture record: %w", checkpoint, err)
	}
	e.logger.Info("Checkpoint captured",
		zap.String("checkpoint", checkpoint),
		zap.Bool("verified", rec.RefVerified),
		zap.Bool("screenshot", rec.ScreenshotPath != nil))
	if rec.RefVerified {
		return rec.RefUsed, nil
	}
	return "", nil
}

// verifyAny splits the verification budget evenly across the targets and
// returns the first one that resolves. Verification is advisory: a miss is
// recorded, never fatal.
func (e *Executor) verifyAny(ctx context.Context, targets []string) (string, bool) {
	if len(targets) == 0 {
		return "", false
	}
	perTarget := e.cfg.CaptureVerifyTimeout / time.Duration(len(targets))
	for _, ref := range targets {
		if e.awaitElement(ctx, ref, perTarget) {
			return ref, true
		}
		if ctx.Err() != nil {
			return "", false
		}
	}
	return "", false
}

// dedupNonEmpty keeps first occurrences and drops empty strings.
func dedupNonEmpty(refs []string) []string {
	seen := make(map[string]bool, len(refs))
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
