// Package engine executes named validator chains against a data payload,
// either sequentially or with a bounded worker pool, and aggregates the
// results into a run summary.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cedarwud/stagegate/internal/metrics"
	"github.com/cedarwud/stagegate/internal/validator"
	"github.com/cedarwud/stagegate/pkg/types"
)

// Engine resolves chains against a validator registry and executes them.
// Chains are registered by name; reads are safe during concurrent runs.
type Engine struct {
	registry *validator.Registry
	cfg      types.EngineConfig
	logger   *slog.Logger

	mu     sync.RWMutex
	chains map[string][]string
}

// New creates an Engine backed by the given registry. Workers defaults to 4
// for parallel mode when unset; mode defaults to sequential.
func New(reg *validator.Registry, cfg types.EngineConfig, logger *slog.Logger) *Engine {
	if cfg.Mode == "" {
		cfg.Mode = types.ModeSequential
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		registry: reg,
		cfg:      cfg,
		logger:   logger,
		chains:   make(map[string][]string),
	}
}

// Registry returns the validator registry the engine resolves against.
func (e *Engine) Registry() *validator.Registry { return e.registry }

// RegisterChain binds an ordered list of validator names to a chain name.
// Re-registering replaces the existing chain.
func (e *Engine) RegisterChain(name string, validatorNames []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.chains[name] = append([]string(nil), validatorNames...)
}

// Chain returns the validator names bound to a chain name.
func (e *Engine) Chain(name string) ([]string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names, ok := e.chains[name]
	if !ok {
		return nil, false
	}
	return append([]string(nil), names...), true
}

// MissingValidators returns the chain members with no registered validator.
func (e *Engine) MissingValidators(validatorNames []string) []string {
	var missing []string
	for _, name := range validatorNames {
		if _, ok := e.registry.Get(name); !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// ExecuteChain runs a registered chain against one payload. An unknown or
// empty chain produces a skipped summary, not an error.
func (e *Engine) ExecuteChain(ctx context.Context, chainName string, data map[string]interface{}, vctx *types.ValidationContext) types.ChainSummary {
	names, _ := e.Chain(chainName)
	return e.Execute(ctx, chainName, names, data, vctx)
}

// Execute runs an explicit list of validator names as a chain. Validators
// missing from the registry yield SKIPPED results. The scheduling mode comes
// from the engine config.
func (e *Engine) Execute(ctx context.Context, chainName string, validatorNames []string, data map[string]interface{}, vctx *types.ValidationContext) types.ChainSummary {
	start := time.Now()

	if len(validatorNames) == 0 {
		e.logger.Debug("empty chain, skipping", "chain", chainName)
		return types.ChainSummary{
			ChainName:     chainName,
			OverallStatus: types.StatusSkipped,
			Skipped:       true,
		}
	}

	var results []types.ValidationResult
	if e.cfg.Mode == types.ModeParallel {
		results = e.runParallel(ctx, validatorNames, data, vctx)
	} else {
		results = e.runSequential(ctx, validatorNames, data, vctx)
	}

	summary := summarize(chainName, results, time.Since(start))
	metrics.ChainExecutions.Add(1)
	e.logger.Info("chain executed",
		"chain", chainName,
		"mode", string(e.cfg.Mode),
		"validators", len(validatorNames),
		"status", string(summary.OverallStatus),
		"duration", summary.Duration)
	return summary
}

// runSequential executes validators one after another. With StopOnCritical
// set, the first blocking result ends the chain early.
func (e *Engine) runSequential(ctx context.Context, names []string, data map[string]interface{}, vctx *types.ValidationContext) []types.ValidationResult {
	var results []types.ValidationResult
	for _, name := range names {
		out := e.runOne(ctx, name, data, vctx)
		results = append(results, out...)

		if e.cfg.StopOnCritical {
			for _, r := range out {
				if r.IsBlocking() {
					e.logger.Warn("blocking result, stopping chain",
						"validator", name, "level", string(r.Level))
					return results
				}
			}
		}
	}
	return results
}

// runParallel fans validators out over a bounded pool. All validators are
// started; a blocking result does not cancel in-flight siblings. Results are
// collected into index slots so the aggregate order matches the chain order.
func (e *Engine) runParallel(ctx context.Context, names []string, data map[string]interface{}, vctx *types.ValidationContext) []types.ValidationResult {
	slots := make([][]types.ValidationResult, len(names))

	g := &errgroup.Group{}
	g.SetLimit(e.cfg.Workers)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			slots[i] = e.runOne(ctx, name, data, vctx)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors

	var results []types.ValidationResult
	for _, out := range slots {
		results = append(results, out...)
	}
	return results
}

// runOne invokes a single validator with the full contract: pre-validate
// gate, panic and error containment, post-validate hook, invocation logging.
func (e *Engine) runOne(ctx context.Context, name string, data map[string]interface{}, vctx *types.ValidationContext) (out []types.ValidationResult) {
	v, ok := e.registry.Get(name)
	if !ok {
		return []types.ValidationResult{{
			ValidatorName: name,
			Status:        types.StatusSkipped,
			Level:         types.LevelInfo,
			Message:       fmt.Sprintf("validator %q not registered", name),
			CreatedAt:     time.Now().UTC(),
		}}
	}

	if vctx != nil {
		vctx.RecordInvocation(name)
	}

	defer func() {
		if rec := recover(); rec != nil {
			metrics.ValidatorPanics.Add(1)
			e.logger.Error("validator panicked", "validator", name, "panic", rec)
			out = []types.ValidationResult{errorResult(name, fmt.Sprintf("validator panicked: %v", rec))}
		}
	}()

	if pre, ok := v.(validator.PreValidator); ok && !pre.PreValidate(data) {
		return []types.ValidationResult{{
			ValidatorName: name,
			Status:        types.StatusSkipped,
			Level:         types.LevelInfo,
			Message:       "pre-validation declined to run",
			CreatedAt:     time.Now().UTC(),
		}}
	}

	results, err := v.Validate(ctx, data, vctx)
	if err != nil {
		e.logger.Error("validator failed", "validator", name, "error", err)
		return []types.ValidationResult{errorResult(name, fmt.Sprintf("validator error: %v", err))}
	}

	if post, ok := v.(validator.PostValidator); ok {
		results = post.PostValidate(results)
	}
	return results
}

func errorResult(name, message string) types.ValidationResult {
	return types.ValidationResult{
		ValidatorName: name,
		Status:        types.StatusError,
		Level:         types.LevelCritical,
		Message:       message,
		CreatedAt:     time.Now().UTC(),
	}
}

// summarize aggregates chain results. Overall status precedence: FAILED,
// then WARNING, then ERROR, then PASSED.
func summarize(chainName string, results []types.ValidationResult, elapsed time.Duration) types.ChainSummary {
	summary := types.ChainSummary{
		ChainName:   chainName,
		Results:     results,
		ByStatus:    make(map[types.ValidationStatus]int),
		ByLevel:     make(map[types.ValidationLevel]int),
		ByValidator: make(map[string][]types.ValidationResult),
		Duration:    elapsed,
	}

	for _, r := range results {
		summary.ByStatus[r.Status]++
		summary.ByLevel[r.Level]++
		summary.ByValidator[r.ValidatorName] = append(summary.ByValidator[r.ValidatorName], r)
	}

	switch {
	case summary.ByStatus[types.StatusFailed] > 0:
		summary.OverallStatus = types.StatusFailed
	case summary.ByStatus[types.StatusWarning] > 0:
		summary.OverallStatus = types.StatusWarning
	case summary.ByStatus[types.StatusError] > 0:
		summary.OverallStatus = types.StatusError
	default:
		summary.OverallStatus = types.StatusPassed
	}
	return summary
}
