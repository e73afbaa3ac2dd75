package validator

import (
	"context"
	"fmt"

	"github.com/cedarwud/stagegate/pkg/types"
)

// ConsistencyChecker compares record counts between this stage's payload and
// the materialized result of an upstream stage, producing a 0-100
// consistency_score that consistency_score gate rules read. A dependency
// entry is injected by the orchestrator under "<stageID>_result".
type ConsistencyChecker struct {
	Field       string
	UpstreamKey string
	MinScore    float64
}

// Name implements Validator.
func (c ConsistencyChecker) Name() string { return "consistency_checker" }

// Validate implements Validator.
func (c ConsistencyChecker) Validate(_ context.Context, data map[string]interface{}, _ *types.ValidationContext) ([]types.ValidationResult, error) {
	records, ok := toSlice(data[c.Field])
	if !ok {
		return []types.ValidationResult{
			result(c.Name(), types.StatusError, types.LevelHigh,
				fmt.Sprintf("field %q is not a record list", c.Field), nil),
		}, nil
	}

	upstream, ok := data[c.UpstreamKey].(map[string]interface{})
	if !ok {
		// No upstream materialized: nothing to compare against.
		return []types.ValidationResult{
			result(c.Name(), types.StatusSkipped, types.LevelInfo,
				fmt.Sprintf("no upstream result under %q", c.UpstreamKey), nil),
		}, nil
	}

	upstreamCount, ok := toFloat64(upstream["record_count"])
	if !ok || upstreamCount == 0 {
		return []types.ValidationResult{
			result(c.Name(), types.StatusWarning, types.LevelMedium,
				"upstream result carries no record_count", nil),
		}, nil
	}

	// Score is the retained fraction, capped at 100: downstream stages
	// filter records but must never invent them.
	ratio := float64(len(records)) / upstreamCount
	score := ratio * 100
	if score > 100 {
		score = 100
	}

	details := map[string]interface{}{
		"consistency_score": score,
		"records":           len(records),
		"upstream_records":  upstreamCount,
	}

	if score < c.MinScore {
		return []types.ValidationResult{
			result(c.Name(), types.StatusFailed, types.LevelHigh,
				fmt.Sprintf("consistency score %.2f below minimum %.2f", score, c.MinScore), details),
		}, nil
	}

	return []types.ValidationResult{
		result(c.Name(), types.StatusPassed, types.LevelInfo,
			fmt.Sprintf("consistency score %.2f", score), details),
	}, nil
}
