// Package gate evaluates quality-gate rules against a stage's validation
// results and decides whether the pipeline may proceed.
package gate

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/cedarwud/stagegate/internal/metrics"
	"github.com/cedarwud/stagegate/pkg/types"
)

// Gatekeeper evaluates a stage's gate rules against its chain summary.
type Gatekeeper struct {
	logger *slog.Logger
}

// New creates a Gatekeeper.
func New(logger *slog.Logger) *Gatekeeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gatekeeper{logger: logger}
}

// Evaluate runs every enabled rule on the stage against the summary. Any
// violated block-rule closes the gate; violated warn-rules alone make it
// conditional. A rule whose metric cannot be computed is treated as violated
// (fail-closed). Rules are evaluated in name order for determinism.
func (g *Gatekeeper) Evaluate(stage types.ExecutionStage, summary types.ChainSummary) types.GateEvaluation {
	eval := types.GateEvaluation{
		StageID:     stage.StageID,
		Status:      types.GateOpen,
		EvaluatedAt: time.Now().UTC(),
	}

	names := make([]string, 0, len(stage.GateRules))
	for name := range stage.GateRules {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		rule := stage.GateRules[name]
		if !rule.Enabled {
			continue
		}

		re := types.GateRuleEvaluation{
			RuleID:    rule.RuleID,
			Name:      rule.Name,
			Metric:    rule.Metric,
			Threshold: rule.Threshold,
			Action:    rule.Action,
		}

		value, err := computeMetric(rule.Metric, summary)
		if err != nil {
			// Fail closed: an uncomputable metric counts as a violation.
			re.Violated = true
			re.Error = err.Error()
			g.logger.Warn("gate metric computation failed",
				"stage", stage.StageID, "rule", rule.RuleID, "error", err)
		} else {
			re.ActualValue = value
			re.Violated = violates(rule.Metric, value, rule.Threshold)
		}

		if !re.Violated {
			continue
		}

		switch rule.Action {
		case types.ActionBlock:
			eval.BlockingRules = append(eval.BlockingRules, re)
		default:
			eval.WarningRules = append(eval.WarningRules, re)
		}
		eval.Recommendations = append(eval.Recommendations, recommend(rule, re))
	}

	switch {
	case len(eval.BlockingRules) > 0:
		eval.Status = types.GateClosed
		metrics.GatesClosed.Add(1)
	case len(eval.WarningRules) > 0:
		eval.Status = types.GateConditional
		metrics.GatesConditional.Add(1)
	}

	g.logger.Info("gate evaluated",
		"stage", stage.StageID,
		"status", string(eval.Status),
		"blocking", len(eval.BlockingRules),
		"warnings", len(eval.WarningRules))
	return eval
}

// computeMetric derives a rule's metric value from the chain summary.
// Detail-backed metrics take the worst value any result reported.
func computeMetric(metric types.GateMetric, summary types.ChainSummary) (float64, error) {
	switch metric {
	case types.MetricZeroValuePercent:
		return maxDetail(summary, "zero_percentage")
	case types.MetricCompletenessPercent:
		if v, err := minDetail(summary, "completeness_percent"); err == nil {
			return v, nil
		}
		total := len(summary.Results)
		if total == 0 {
			return 0, fmt.Errorf("no results to compute completeness from")
		}
		return float64(summary.ByStatus[types.StatusPassed]) / float64(total) * 100, nil
	case types.MetricConsistencyScore:
		return minDetail(summary, "consistency_score")
	case types.MetricFailedCount:
		return float64(summary.ByStatus[types.StatusFailed] + summary.ByStatus[types.StatusError]), nil
	default:
		return 0, fmt.Errorf("unknown gate metric %q", metric)
	}
}

// violates applies the metric's comparison direction: max-type metrics
// violate above the threshold, min-type metrics below it.
func violates(metric types.GateMetric, value, threshold float64) bool {
	switch metric {
	case types.MetricCompletenessPercent, types.MetricConsistencyScore:
		return value < threshold
	default:
		return value > threshold
	}
}

func maxDetail(summary types.ChainSummary, key string) (float64, error) {
	found := false
	var max float64
	for _, r := range summary.Results {
		if v, ok := detailFloat(r, key); ok {
			if !found || v > max {
				max = v
			}
			found = true
		}
	}
	if !found {
		return 0, fmt.Errorf("no result reported %q", key)
	}
	return max, nil
}

func minDetail(summary types.ChainSummary, key string) (float64, error) {
	found := false
	var min float64
	for _, r := range summary.Results {
		if v, ok := detailFloat(r, key); ok {
			if !found || v < min {
				min = v
			}
			found = true
		}
	}
	if !found {
		return 0, fmt.Errorf("no result reported %q", key)
	}
	return min, nil
}

func detailFloat(r types.ValidationResult, key string) (float64, bool) {
	raw, ok := r.Details[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// recommend produces a short human hint for a violated rule.
func recommend(rule types.QualityGateRule, re types.GateRuleEvaluation) string {
	if re.Error != "" {
		return fmt.Sprintf("rule %s could not compute metric %s; inspect validator output for this stage", rule.RuleID, rule.Metric)
	}
	switch rule.Metric {
	case types.MetricZeroValuePercent:
		return fmt.Sprintf("zero-value percentage %.2f exceeds %.2f; check the upstream time-basis configuration", re.ActualValue, rule.Threshold)
	case types.MetricCompletenessPercent:
		return fmt.Sprintf("completeness %.2f%% below %.2f%%; verify required record fields are populated upstream", re.ActualValue, rule.Threshold)
	case types.MetricConsistencyScore:
		return fmt.Sprintf("consistency score %.2f below %.2f; compare record counts against the dependency stage output", re.ActualValue, rule.Threshold)
	case types.MetricFailedCount:
		return fmt.Sprintf("%d failed or errored results exceed the allowed %.0f; review the stage's validator messages", int(re.ActualValue), rule.Threshold)
	default:
		return fmt.Sprintf("rule %s violated: actual %.2f vs threshold %.2f", rule.RuleID, re.ActualValue, rule.Threshold)
	}
}
