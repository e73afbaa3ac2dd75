// Package recovery classifies stage failures, selects the best-matching
// remediation plan from a plan library, and executes its automated fixes.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/cedarwud/stagegate/internal/metrics"
	"github.com/cedarwud/stagegate/pkg/types"
)

// ErrorContext carries what is known about a stage failure into plan
// selection and fix execution.
type ErrorContext struct {
	StageID string
	Errors  []string
	RuleID  string
}

// FixFunc performs one automated remediation. The returned map is recorded
// as the fix's details.
type FixFunc func(ctx context.Context, ec ErrorContext) (map[string]interface{}, error)

// Manager owns the plan library, the fix-function registry, and the
// append-only execution history. Safe for use from concurrent runs.
type Manager struct {
	logger *slog.Logger

	mu       sync.RWMutex
	plans    map[string]types.RecoveryPlan
	fixes    map[string]FixFunc
	breakers map[string]*gobreaker.CircuitBreaker

	histMu  sync.Mutex
	history []types.RecoveryExecution
}

// NewManager creates a Manager preloaded with the default plan library and
// fix functions.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		logger:   logger,
		plans:    make(map[string]types.RecoveryPlan),
		fixes:    make(map[string]FixFunc),
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, p := range defaultPlans() {
		m.plans[p.PlanID] = p
	}
	registerDefaultFixes(m)
	return m
}

// RegisterPlan adds or replaces a plan in the library.
func (m *Manager) RegisterPlan(plan types.RecoveryPlan) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[plan.PlanID] = plan
}

// Plans returns the library's plans sorted by ID.
func (m *Manager) Plans() []types.RecoveryPlan {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.RecoveryPlan, 0, len(m.plans))
	for _, p := range m.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlanID < out[j].PlanID })
	return out
}

// RegisterFix binds a fix function to the name plans refer to. Each fix gets
// its own circuit breaker so a repeatedly failing remediation stops being
// attempted for a while.
func (m *Manager) RegisterFix(name string, fn FixFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixes[name] = fn
	m.breakers[name] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
	})
}

// Classify buckets an error list into a category by keyword matching over
// the concatenated error text.
func Classify(errs []string) types.ErrorCategory {
	text := strings.ToLower(strings.Join(errs, " "))
	switch {
	case containsAny(text, "zero", "academic", "grade"):
		return types.ErrAcademicViolation
	case containsAny(text, "inconsistency", "mismatch"):
		return types.ErrDataQuality
	case containsAny(text, "timeout", "performance"):
		return types.ErrPerformance
	case containsAny(text, "structure", "format"):
		return types.ErrDataStructure
	default:
		return types.ErrUnknown
	}
}

func containsAny(text string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// CreatePlan classifies the error context and selects the highest-scoring
// plan from the library. A plan matches on error type (0.6 exact, 0.3 for
// the any/cross_stage wildcards) plus stage (0.4 exact, 0.2 wildcard),
// capped at 1.0. Scores at or below 0.5 produce no plan. The selected plan
// is cloned with a timestamped ID and its success probability scaled by the
// match score; the template is never mutated.
func (m *Manager) CreatePlan(ec ErrorContext) (types.RecoveryPlan, bool) {
	errType := Classify(ec.Errors)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		best      types.RecoveryPlan
		bestScore float64
	)
	for _, id := range sortedPlanIDs(m.plans) {
		plan := m.plans[id]
		if score := matchScore(plan, errType, ec.StageID); score > bestScore {
			bestScore = score
			best = plan
		}
	}
	if bestScore <= 0.5 {
		m.logger.Info("no recovery plan matched",
			"stage", ec.StageID, "errorType", string(errType), "bestScore", bestScore)
		return types.RecoveryPlan{}, false
	}

	custom := best.Clone()
	custom.PlanID = fmt.Sprintf("%s_%s", best.PlanID, time.Now().UTC().Format("20060102_150405"))
	custom.StageID = ec.StageID
	custom.ErrorType = errType
	custom.SuccessProbability = best.SuccessProbability * bestScore

	m.logger.Info("recovery plan selected",
		"plan", best.PlanID, "stage", ec.StageID,
		"errorType", string(errType), "score", bestScore)
	return custom, true
}

func sortedPlanIDs(plans map[string]types.RecoveryPlan) []string {
	ids := make([]string, 0, len(plans))
	for id := range plans {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func matchScore(plan types.RecoveryPlan, errType types.ErrorCategory, stageID string) float64 {
	var score float64
	switch {
	case plan.ErrorType == errType:
		score += 0.6
	case plan.ErrorType == types.MatchAny || plan.ErrorType == types.MatchCrossStage:
		score += 0.3
	}
	switch {
	case plan.StageID == stageID:
		score += 0.4
	case plan.StageID == string(types.MatchAny) || plan.StageID == string(types.MatchCrossStage):
		score += 0.2
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// Execute runs the plan's automated fixes in order and records the outcome.
// A failed fix is never discarded silently; it lands in the failed-actions
// list. Overall success requires at least 80% of fixes to succeed (or no
// fixes at all). Manual steps are surfaced regardless.
func (m *Manager) Execute(ctx context.Context, plan types.RecoveryPlan, ec ErrorContext) types.RecoveryExecution {
	metrics.RecoveriesAttempted.Add(1)
	exec := types.RecoveryExecution{
		PlanID:      plan.PlanID,
		StageID:     plan.StageID,
		ErrorType:   plan.ErrorType,
		ManualSteps: append([]string(nil), plan.ManualSteps...),
		StartedAt:   time.Now().UTC(),
	}

	for _, fix := range plan.AutomatedFixes {
		fr := m.runFix(ctx, fix, ec)
		if fr.Success {
			exec.ActionsCompleted = append(exec.ActionsCompleted, fr)
		} else {
			exec.ActionsFailed = append(exec.ActionsFailed, fr)
		}
	}

	total := len(plan.AutomatedFixes)
	if total == 0 {
		exec.OverallSuccess = true
	} else {
		exec.OverallSuccess = float64(len(exec.ActionsCompleted))/float64(total) >= 0.8
	}
	exec.CompletedAt = time.Now().UTC()

	if exec.OverallSuccess {
		metrics.RecoveriesSucceeded.Add(1)
	}
	m.logger.Info("recovery plan executed",
		"plan", plan.PlanID,
		"completed", len(exec.ActionsCompleted),
		"failed", len(exec.ActionsFailed),
		"success", exec.OverallSuccess)

	m.histMu.Lock()
	m.history = append(m.history, exec)
	m.histMu.Unlock()
	return exec
}

func (m *Manager) runFix(ctx context.Context, fix types.AutomatedFix, ec ErrorContext) types.FixResult {
	fr := types.FixResult{
		Action:      fix.Action,
		Description: fix.Description,
		StartedAt:   time.Now().UTC(),
	}

	m.mu.RLock()
	fn, ok := m.fixes[fix.Function]
	cb := m.breakers[fix.Function]
	m.mu.RUnlock()

	if !ok {
		fr.Details = map[string]interface{}{"error": fmt.Sprintf("unknown fix function %q", fix.Function)}
		fr.CompletedAt = time.Now().UTC()
		return fr
	}

	out, err := cb.Execute(func() (interface{}, error) {
		return fn(ctx, ec)
	})
	if err != nil {
		m.logger.Warn("automated fix failed", "fix", fix.Function, "error", err)
		fr.Details = map[string]interface{}{"error": err.Error()}
	} else {
		if details, ok := out.(map[string]interface{}); ok {
			fr.Details = details
		}
		fr.Success = true
	}
	fr.CompletedAt = time.Now().UTC()
	return fr
}

// History returns a copy of all recorded executions, oldest first.
func (m *Manager) History() []types.RecoveryExecution {
	m.histMu.Lock()
	defer m.histMu.Unlock()
	out := make([]types.RecoveryExecution, len(m.history))
	copy(out, m.history)
	return out
}
