// Package orchestrator owns the stage registry, resolves execution order
// over the stage dependency graph, and drives one full pipeline run:
// validator chains, quality gates, recovery, and snapshot persistence.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cedarwud/stagegate/internal/engine"
	"github.com/cedarwud/stagegate/internal/gate"
	"github.com/cedarwud/stagegate/internal/metrics"
	"github.com/cedarwud/stagegate/internal/recovery"
	"github.com/cedarwud/stagegate/internal/snapshot"
	"github.com/cedarwud/stagegate/pkg/types"
)

// Configuration errors are detected before any stage executes and abort the
// whole run.
var (
	ErrCircularDependency = errors.New("circular dependency between stages")
	ErrUnknownDependency  = errors.New("stage depends on an unregistered stage")
	ErrMissingValidator   = errors.New("stage references an unregistered validator")
)

// Orchestrator drives pipeline runs over the registered stages.
type Orchestrator struct {
	engine   *engine.Engine
	gate     *gate.Gatekeeper
	recovery *recovery.Manager
	store    snapshot.Store
	alertFn  func(context.Context, types.Alert)
	policy   types.FailurePolicy
	logger   *slog.Logger

	mu         sync.RWMutex
	stages     map[string]types.ExecutionStage
	orderCache []string
}

// New creates an Orchestrator. alertFn may be nil.
func New(eng *engine.Engine, gk *gate.Gatekeeper, rec *recovery.Manager, store snapshot.Store, alertFn func(context.Context, types.Alert), policy types.FailurePolicy, logger *slog.Logger) *Orchestrator {
	if policy == "" {
		policy = types.FailureStop
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		engine:   eng,
		gate:     gk,
		recovery: rec,
		store:    store,
		alertFn:  alertFn,
		policy:   policy,
		logger:   logger,
		stages:   make(map[string]types.ExecutionStage),
	}
}

// RegisterStage adds or replaces a stage and invalidates the order cache.
func (o *Orchestrator) RegisterStage(stage types.ExecutionStage) error {
	if stage.StageID == "" {
		return fmt.Errorf("stage must have a non-empty ID")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages[stage.StageID] = stage
	o.orderCache = nil
	return nil
}

// UnregisterStage removes a stage and invalidates the order cache. Removing
// an unknown ID is a no-op.
func (o *Orchestrator) UnregisterStage(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.stages, id)
	o.orderCache = nil
}

// Stage returns a registered stage by ID.
func (o *Orchestrator) Stage(id string) (types.ExecutionStage, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.stages[id]
	return s, ok
}

// Stages returns all registered stages sorted by ID.
func (o *Orchestrator) Stages() []types.ExecutionStage {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]types.ExecutionStage, 0, len(o.stages))
	for _, s := range o.stages {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StageID < out[j].StageID })
	return out
}

// ComputeExecutionOrder topologically sorts the stages in filter (all
// registered stages when filter is nil). Dependencies outside the filter
// count as satisfied. Ready stages are taken in ID order so the result is
// deterministic. A cycle fails with an error naming the stuck stages.
func (o *Orchestrator) ComputeExecutionOrder(filter []string) ([]string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	full := filter == nil
	if full && o.orderCache != nil {
		return append([]string(nil), o.orderCache...), nil
	}

	if full {
		filter = make([]string, 0, len(o.stages))
		for id := range o.stages {
			filter = append(filter, id)
		}
	}

	inFilter := make(map[string]bool, len(filter))
	for _, id := range filter {
		inFilter[id] = true
	}

	remaining := make(map[string]bool, len(filter))
	for _, id := range filter {
		remaining[id] = true
	}

	ordered := make([]string, 0, len(filter))
	placed := make(map[string]bool, len(filter))

	for len(remaining) > 0 {
		var ready []string
		for id := range remaining {
			stage := o.stages[id]
			ok := true
			for _, dep := range stage.Dependencies {
				if inFilter[dep] && !placed[dep] {
					ok = false
					break
				}
			}
			if ok {
				ready = append(ready, id)
			}
		}

		if len(ready) == 0 {
			stuck := make([]string, 0, len(remaining))
			for id := range remaining {
				stuck = append(stuck, id)
			}
			sort.Strings(stuck)
			return nil, fmt.Errorf("%w: stuck stages [%s]", ErrCircularDependency, strings.Join(stuck, ", "))
		}

		sort.Strings(ready)
		for _, id := range ready {
			ordered = append(ordered, id)
			placed[id] = true
			delete(remaining, id)
		}
	}

	if full {
		o.orderCache = append([]string(nil), ordered...)
	}
	return ordered, nil
}

// preflight checks the configuration of every stage about to run: all
// dependencies registered, all chain validators present.
func (o *Orchestrator) preflight(order []string) error {
	o.mu.RLock()
	defer o.mu.RUnlock()

	for _, id := range order {
		stage := o.stages[id]
		for _, dep := range stage.Dependencies {
			if _, ok := o.stages[dep]; !ok {
				return fmt.Errorf("%w: stage %q depends on %q", ErrUnknownDependency, id, dep)
			}
		}
		if missing := o.engine.MissingValidators(stage.Validators); len(missing) > 0 {
			return fmt.Errorf("%w: stage %q needs [%s]", ErrMissingValidator, id, strings.Join(missing, ", "))
		}
	}
	return nil
}

// Run executes every registered stage in dependency order against the data
// payload. Configuration errors abort before any stage runs. The returned
// result always carries a definite overall status; the error is non-nil
// only for configuration failures or cancellation.
func (o *Orchestrator) Run(ctx context.Context, data map[string]interface{}) (*types.PipelineResult, error) {
	order, err := o.ComputeExecutionOrder(nil)
	if err != nil {
		return nil, err
	}
	if err := o.preflight(order); err != nil {
		return nil, err
	}

	metrics.PipelineRuns.Add(1)
	result := &types.PipelineResult{
		ExecutionID: ulid.Make().String(),
		Order:       order,
		Stages:      make(map[string]types.StageResult, len(order)),
		StartedAt:   time.Now().UTC(),
	}
	o.logger.Info("pipeline run started", "execution", result.ExecutionID, "stages", len(order))

	depOutputs := make(map[string]map[string]interface{}, len(order))
	blocked := false
	failed := false

runLoop:
	for _, id := range order {
		// Cancellation is cooperative: checked between stages, never
		// mid-stage.
		select {
		case <-ctx.Done():
			o.logger.Warn("pipeline run cancelled", "execution", result.ExecutionID, "before", id)
			result.OverallStatus = types.ExecFailed
			result.CompletedAt = time.Now().UTC()
			return result, ctx.Err()
		default:
		}

		stage, _ := o.Stage(id)
		sr, output := o.runStage(ctx, result.ExecutionID, stage, data, depOutputs)
		result.Stages[id] = sr
		depOutputs[id] = output

		switch sr.Status {
		case types.ExecBlocked:
			blocked = true
			break runLoop
		case types.ExecFailed:
			failed = true
			if o.policy == types.FailureStop {
				break runLoop
			}
		}
	}

	switch {
	case blocked:
		result.OverallStatus = types.ExecBlocked
		metrics.PipelinesBlocked.Add(1)
	case failed || len(result.Stages) < len(order):
		result.OverallStatus = types.ExecFailed
		metrics.PipelinesFailed.Add(1)
	default:
		result.OverallStatus = types.ExecCompleted
	}
	result.CompletedAt = time.Now().UTC()

	o.logger.Info("pipeline run finished",
		"execution", result.ExecutionID,
		"status", string(result.OverallStatus),
		"stages", len(result.Stages))
	return result, nil
}

// runStage executes one stage: input assembly, chain execution with retry
// and timeout, gate evaluation, recovery on closure, snapshot persistence.
// The returned map is this stage's materialized output for its dependents.
func (o *Orchestrator) runStage(ctx context.Context, executionID string, stage types.ExecutionStage, data map[string]interface{}, depOutputs map[string]map[string]interface{}) (types.StageResult, map[string]interface{}) {
	metrics.StagesExecuted.Add(1)
	sr := types.StageResult{
		StageID:   stage.StageID,
		Name:      stage.Name,
		Status:    types.ExecRunning,
		StartedAt: time.Now().UTC(),
	}

	input := assembleInput(stage, data, depOutputs)
	vctx := types.NewValidationContext(stage.StageID, stage.Name)

	maxAttempts := stage.Retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var summary types.ChainSummary
	var timedOut bool
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sr.Attempts = attempt
		summary, timedOut = o.executeChain(ctx, stage, input, vctx)
		if timedOut || !chainFailed(summary) {
			break
		}
		if attempt < maxAttempts {
			o.logger.Warn("stage failed, retrying",
				"stage", stage.StageID, "attempt", attempt, "of", maxAttempts)
			if !sleepCtx(ctx, time.Duration(stage.Retry.BackoffSeconds)*time.Second) {
				break
			}
		}
	}
	sr.Summary = summary

	switch {
	case timedOut:
		sr.Status = types.ExecFailed
		sr.Error = fmt.Sprintf("stage %q timed out after %ds", stage.StageID, stage.TimeoutSeconds)
		metrics.StagesFailed.Add(1)
	case chainFailed(summary):
		sr.Status = types.ExecFailed
		metrics.StagesFailed.Add(1)
	default:
		sr.Status = types.ExecCompleted
	}

	// An abandoned chain has no results worth judging; the timeout failure
	// routes through the failure policy, not the gate.
	var recoveries []types.RecoveryExecution
	if !timedOut {
		gateEval := o.gate.Evaluate(stage, summary)
		sr.Gate = &gateEval

		if gateEval.Status == types.GateClosed {
			sr.Status = types.ExecBlocked
			o.fireAlert(ctx, types.Alert{
				Level:   types.AlertLevelError,
				StageID: stage.StageID,
				Message: fmt.Sprintf("quality gate closed for stage %s: %d blocking rules", stage.StageID, len(gateEval.BlockingRules)),
				Details: map[string]interface{}{"recommendations": gateEval.Recommendations},
			})

			ec := recovery.ErrorContext{
				StageID: stage.StageID,
				Errors:  errorMessages(summary),
				RuleID:  gateEval.BlockingRules[0].RuleID,
			}
			if plan, ok := o.recovery.CreatePlan(ec); ok {
				exec := o.recovery.Execute(ctx, plan, ec)
				sr.Recovery = &exec
				recoveries = append(recoveries, exec)
			}
		}
	}
	if sr.Status == types.ExecFailed {
		o.fireAlert(ctx, types.Alert{
			Level:   types.AlertLevelWarning,
			StageID: stage.StageID,
			Message: fmt.Sprintf("stage %s failed: %s", stage.StageID, sr.Error),
		})
	}

	snap := snapshot.New(stage.StageID, sr.Status, summary.Results, recoveries, map[string]interface{}{
		"execution_id": executionID,
		"attempts":     sr.Attempts,
	})
	if err := o.store.Save(ctx, snap); err != nil {
		o.logger.Error("snapshot save failed", "stage", stage.StageID, "error", err)
		if sr.Error == "" {
			sr.Error = fmt.Sprintf("snapshot save failed: %v", err)
		}
	} else {
		sr.SnapshotID = snap.SnapshotID
		metrics.SnapshotsSaved.Add(1)
	}
	sr.CompletedAt = time.Now().UTC()

	return sr, stageOutput(sr, input)
}

// executeChain runs the stage's chain, enforcing the stage timeout by wall
// clock. In-flight validators are not interrupted; a timed-out stage is
// abandoned and reported as such.
func (o *Orchestrator) executeChain(ctx context.Context, stage types.ExecutionStage, input map[string]interface{}, vctx *types.ValidationContext) (types.ChainSummary, bool) {
	if stage.TimeoutSeconds <= 0 {
		return o.engine.Execute(ctx, stage.StageID, stage.Validators, input, vctx), false
	}

	stageCtx, cancel := context.WithTimeout(ctx, time.Duration(stage.TimeoutSeconds)*time.Second)
	defer cancel()

	done := make(chan types.ChainSummary, 1)
	go func() {
		done <- o.engine.Execute(stageCtx, stage.StageID, stage.Validators, input, vctx)
	}()

	select {
	case summary := <-done:
		return summary, false
	case <-stageCtx.Done():
		return types.ChainSummary{ChainName: stage.StageID, OverallStatus: types.StatusError}, true
	}
}

// assembleInput copies the pipeline payload and injects each declared
// dependency's materialized output under "<dep>_result".
func assembleInput(stage types.ExecutionStage, data map[string]interface{}, depOutputs map[string]map[string]interface{}) map[string]interface{} {
	input := make(map[string]interface{}, len(data)+len(stage.Dependencies))
	for k, v := range data {
		input[k] = v
	}
	for _, dep := range stage.Dependencies {
		if out, ok := depOutputs[dep]; ok {
			input[dep+"_result"] = out
		}
	}
	return input
}

// stageOutput materializes what dependents can see of a finished stage. The
// record count is the size of the largest record list in the stage's input,
// which is what downstream consistency checks compare against.
func stageOutput(sr types.StageResult, input map[string]interface{}) map[string]interface{} {
	recordCount := 0
	for _, v := range input {
		if s, ok := v.([]interface{}); ok && len(s) > recordCount {
			recordCount = len(s)
		}
	}

	out := map[string]interface{}{
		"stage_id":     sr.StageID,
		"status":       string(sr.Status),
		"record_count": recordCount,
	}
	if sr.Gate != nil {
		out["gate_status"] = string(sr.Gate.Status)
	}
	return out
}

func chainFailed(summary types.ChainSummary) bool {
	return summary.ByStatus[types.StatusFailed] > 0 || summary.ByStatus[types.StatusError] > 0
}

func errorMessages(summary types.ChainSummary) []string {
	var out []string
	for _, r := range summary.Results {
		if r.Status == types.StatusFailed || r.Status == types.StatusError {
			out = append(out, r.Message)
		}
	}
	return out
}

func (o *Orchestrator) fireAlert(ctx context.Context, alert types.Alert) {
	if o.alertFn == nil {
		return
	}
	alert.Timestamp = time.Now().UTC()
	o.alertFn(ctx, alert)
}

// sleepCtx sleeps for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
