// internal/executor/runner.go

// Package executor is the plan execution engine: it walks a validated plan
// checkpoint by checkpoint against a single live page, resolving element
// references, enforcing post-conditions, capturing checkpoint artifacts, and
// coordinating one recovery episode per failed action. Execution is strictly
// single threaded; at most one browser interaction is in flight at any time.
package executor

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/waypoint-cli/api/schemas"
	"github.com/xkilldash9x/waypoint-cli/internal/config"
)

// Executor runs one plan against one page. It is not safe for concurrent use
// and is meant to be constructed per run.
type Executor struct {
	logger      *zap.Logger
	cfg         config.ExecutorConfig
	page        schemas.Page
	planner     schemas.Planner
	snapshotter schemas.Snapshotter
	store       schemas.ArtifactStore

	runID string
	mem   selectorMemory
	state runState
}

// New wires an execution engine for a single run.
func New(logger *zap.Logger, cfg config.ExecutorConfig, page schemas.Page, planner schemas.Planner, snapshotter schemas.Snapshotter, store schemas.ArtifactStore, runID string) *Executor {
	return &Executor{
		logger:      logger.Named("executor"),
		cfg:         cfg,
		page:        page,
		planner:     planner,
		snapshotter: snapshotter,
		store:       store,
		runID:       runID,
		state:       stateRunning,
	}
}

// Run executes the plan's checkpoints in order and persists the run summary.
// The first checkpoint failure that recovery cannot repair stops the run;
// later checkpoints never execute after an abort.
func (e *Executor) Run(ctx context.Context, plan *schemas.Plan) (*schemas.RunResult, error) {
	e.setState(stateRunning)
	res := &schemas.RunResult{
		Status: schemas.RunSuccess,
		RunID:  e.runID,
	}
	e.logger.Info("Starting plan run",
		zap.String("run_id", e.runID),
		zap.Int("checkpoints", len(plan.Checkpoints)))

	var runErr error
	for _, cp := range plan.Checkpoints {
		// Memory armed inside one checkpoint never leaks into the next.
		e.mem.disarm()
		if err := e.runCheckpoint(ctx, plan, cp); err != nil {
			res.Status = schemas.RunFailed
			runErr = err
			break
		}
		res.CheckpointsExecuted++
	}

	res.Timestamp = time.Now().UTC()
	if err := e.store.SaveResult(res); err != nil {
		e.logger.Error("Failed to persist run summary", zap.Error(err))
		if runErr == nil {
			runErr = err
		}
	}
	e.logger.Info("Plan run finished",
		zap.String("run_id", e.runID),
		zap.String("status", string(res.Status)),
		zap.Int("checkpoints_executed", res.CheckpointsExecuted))
	return res, runErr
}

// runCheckpoint executes one checkpoint's actions sequentially, routing each
// failure through recovery, and ends with an implicit capture when the plan
// declared no explicit one.
func (e *Executor) runCheckpoint(ctx context.Context, plan *schemas.Plan, cp schemas.Checkpoint) error {
	log := e.logger.With(zap.String("checkpoint", cp.Name))
	log.Info("Entering checkpoint", zap.Int("actions", len(cp.Actions)))

	for idx, act := range cp.Actions {
		e.setState(stateRunning)
		outcome, err := e.perform(ctx, plan, cp, idx, act)
		if err != nil {
			if ctx.Err() != nil {
				e.persistFailure(ctx, cp, idx, act, err)
				return err
			}
			outcome, err = e.recoverAction(ctx, cp, idx, act, err)
			if err != nil {
				e.persistFailure(ctx, cp, idx, act, err)
				return err
			}
		}
		e.logCompletion(ctx, log, idx, act, outcome)
	}

	if !e.store.Captured(cp.Name) {
		if err := e.captureImplicit(ctx, cp, plan.Confidence); err != nil {
			log.Warn("Implicit checkpoint capture failed", zap.Error(err))
		}
	}
	return nil
}

// logCompletion emits the per-action completion tuple. The page URL is pulled
// best effort; a transport hiccup here must not fail a completed action.
func (e *Executor) logCompletion(ctx context.Context, log *zap.Logger, idx int, act schemas.Action, outcome schemas.ActionOutcome) {
	ref := outcome.RefUsed
	if ref == "" {
		ref = "(none)"
	}
	url := outcome.URL
	if url == "" {
		if loc, err := e.page.Location(ctx); err == nil {
			url = loc
		}
	}
	log.Info("Action complete",
		zap.Int("action_index", idx),
		zap.String("action_type", string(act.Type)),
		zap.String("ref", ref),
		zap.String("url", url))
}

// persistFailure writes the single failure record for an aborted run.
func (e *Executor) persistFailure(ctx context.Context, cp schemas.Checkpoint, idx int, act schemas.Action, cause error) {
	rec := &schemas.FailureRecord{
		Checkpoint:  cp.Name,
		ActionIndex: idx,
		Action:      act,
		Error:       cause.Error(),
		Timestamp:   time.Now().UTC(),
	}
	if url, err := e.page.Location(ctx); err == nil {
		rec.URL = url
	}
	if err := e.store.SaveFailure(rec); err != nil {
		e.logger.Error("Failed to persist failure record", zap.Error(err))
	}
}
