package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cedarwud/stagegate/pkg/types"
)

func stageWithRule(rule types.QualityGateRule) types.ExecutionStage {
	return types.ExecutionStage{
		StageID:   "stage1",
		GateRules: map[string]types.QualityGateRule{rule.RuleID: rule},
	}
}

func summaryWithDetails(details map[string]interface{}) types.ChainSummary {
	return types.ChainSummary{
		Results: []types.ValidationResult{
			{ValidatorName: "v", Status: types.StatusPassed, Details: details},
		},
		ByStatus: map[types.ValidationStatus]int{types.StatusPassed: 1},
	}
}

func TestEvaluate_ZeroValueBlockRuleCloses(t *testing.T) {
	gk := New(nil)
	rule := types.QualityGateRule{
		RuleID: "zv", Metric: types.MetricZeroValuePercent,
		Threshold: 1.0, Action: types.ActionBlock, Enabled: true,
	}

	eval := gk.Evaluate(stageWithRule(rule), summaryWithDetails(map[string]interface{}{"zero_percentage": 2.5}))
	assert.Equal(t, types.GateClosed, eval.Status)
	require.Len(t, eval.BlockingRules, 1)
	assert.Equal(t, 2.5, eval.BlockingRules[0].ActualValue)
	assert.NotEmpty(t, eval.Recommendations)
}

func TestEvaluate_ZeroValueUnderThresholdOpens(t *testing.T) {
	gk := New(nil)
	rule := types.QualityGateRule{
		RuleID: "zv", Metric: types.MetricZeroValuePercent,
		Threshold: 1.0, Action: types.ActionBlock, Enabled: true,
	}

	eval := gk.Evaluate(stageWithRule(rule), summaryWithDetails(map[string]interface{}{"zero_percentage": 0.5}))
	assert.Equal(t, types.GateOpen, eval.Status)
	assert.Empty(t, eval.BlockingRules)
	assert.Empty(t, eval.Recommendations)
}

func TestEvaluate_WarnRuleIsConditional(t *testing.T) {
	gk := New(nil)
	rule := types.QualityGateRule{
		RuleID: "comp", Metric: types.MetricCompletenessPercent,
		Threshold: 95, Action: types.ActionWarn, Enabled: true,
	}

	eval := gk.Evaluate(stageWithRule(rule), summaryWithDetails(map[string]interface{}{"completeness_percent": 90.0}))
	assert.Equal(t, types.GateConditional, eval.Status)
	require.Len(t, eval.WarningRules, 1)
	assert.Empty(t, eval.BlockingRules)
}

func TestEvaluate_DisabledRuleIgnored(t *testing.T) {
	gk := New(nil)
	rule := types.QualityGateRule{
		RuleID: "zv", Metric: types.MetricZeroValuePercent,
		Threshold: 1.0, Action: types.ActionBlock, Enabled: false,
	}

	eval := gk.Evaluate(stageWithRule(rule), summaryWithDetails(map[string]interface{}{"zero_percentage": 50.0}))
	assert.Equal(t, types.GateOpen, eval.Status)
}

func TestEvaluate_FailedCountRule(t *testing.T) {
	gk := New(nil)
	rule := types.QualityGateRule{
		RuleID: "fc", Metric: types.MetricFailedCount,
		Threshold: 0, Action: types.ActionBlock, Enabled: true,
	}

	summary := types.ChainSummary{
		Results: []types.ValidationResult{
			{Status: types.StatusFailed},
			{Status: types.StatusError},
			{Status: types.StatusPassed},
		},
		ByStatus: map[types.ValidationStatus]int{
			types.StatusFailed: 1,
			types.StatusError:  1,
			types.StatusPassed: 1,
		},
	}

	eval := gk.Evaluate(stageWithRule(rule), summary)
	assert.Equal(t, types.GateClosed, eval.Status)
	require.Len(t, eval.BlockingRules, 1)
	assert.Equal(t, 2.0, eval.BlockingRules[0].ActualValue)
}

func TestEvaluate_ConsistencyBelowThreshold(t *testing.T) {
	gk := New(nil)
	rule := types.QualityGateRule{
		RuleID: "cs", Metric: types.MetricConsistencyScore,
		Threshold: 80, Action: types.ActionBlock, Enabled: true,
	}

	eval := gk.Evaluate(stageWithRule(rule), summaryWithDetails(map[string]interface{}{"consistency_score": 60.0}))
	assert.Equal(t, types.GateClosed, eval.Status)
}

func TestEvaluate_UncomputableMetricFailsClosed(t *testing.T) {
	gk := New(nil)
	rule := types.QualityGateRule{
		RuleID: "cs", Metric: types.MetricConsistencyScore,
		Threshold: 80, Action: types.ActionBlock, Enabled: true,
	}

	// No result carries a consistency_score detail.
	eval := gk.Evaluate(stageWithRule(rule), summaryWithDetails(nil))
	assert.Equal(t, types.GateClosed, eval.Status)
	require.Len(t, eval.BlockingRules, 1)
	assert.NotEmpty(t, eval.BlockingRules[0].Error)
}

func TestEvaluate_CompletenessFallsBackToPassRatio(t *testing.T) {
	gk := New(nil)
	rule := types.QualityGateRule{
		RuleID: "comp", Metric: types.MetricCompletenessPercent,
		Threshold: 90, Action: types.ActionBlock, Enabled: true,
	}

	summary := types.ChainSummary{
		Results: []types.ValidationResult{
			{Status: types.StatusPassed},
			{Status: types.StatusPassed},
			{Status: types.StatusFailed},
			{Status: types.StatusFailed},
		},
		ByStatus: map[types.ValidationStatus]int{
			types.StatusPassed: 2,
			types.StatusFailed: 2,
		},
	}

	// 2/4 passed = 50%, under the 90 threshold.
	eval := gk.Evaluate(stageWithRule(rule), summary)
	assert.Equal(t, types.GateClosed, eval.Status)
	assert.Equal(t, 50.0, eval.BlockingRules[0].ActualValue)
}

func TestEvaluate_WorstDetailValueWins(t *testing.T) {
	gk := New(nil)
	rule := types.QualityGateRule{
		RuleID: "zv", Metric: types.MetricZeroValuePercent,
		Threshold: 1.0, Action: types.ActionBlock, Enabled: true,
	}

	summary := types.ChainSummary{
		Results: []types.ValidationResult{
			{Details: map[string]interface{}{"zero_percentage": 0.2}},
			{Details: map[string]interface{}{"zero_percentage": 3.7}},
		},
	}

	eval := gk.Evaluate(stageWithRule(rule), summary)
	require.Len(t, eval.BlockingRules, 1)
	assert.Equal(t, 3.7, eval.BlockingRules[0].ActualValue)
}

func TestEvaluate_NoRulesIsOpen(t *testing.T) {
	gk := New(nil)
	eval := gk.Evaluate(types.ExecutionStage{StageID: "s"}, types.ChainSummary{})
	assert.Equal(t, types.GateOpen, eval.Status)
}
