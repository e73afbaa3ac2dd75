package validator

import (
	"context"
	"fmt"

	"github.com/cedarwud/stagegate/pkg/types"
)

// CompletenessChecker measures what fraction of records carry every required
// per-record field. Below MinPercent the check fails at HIGH; between
// MinPercent and WarnPercent it warns.
type CompletenessChecker struct {
	Field        string
	RecordFields []string
	MinPercent   float64
	WarnPercent  float64
}

// Name implements Validator.
func (c CompletenessChecker) Name() string { return "completeness_checker" }

// Validate implements Validator.
func (c CompletenessChecker) Validate(_ context.Context, data map[string]interface{}, _ *types.ValidationContext) ([]types.ValidationResult, error) {
	records, ok := toSlice(data[c.Field])
	if !ok {
		return []types.ValidationResult{
			result(c.Name(), types.StatusError, types.LevelHigh,
				fmt.Sprintf("field %q is not a record list", c.Field), nil),
		}, nil
	}
	if len(records) == 0 {
		return []types.ValidationResult{
			result(c.Name(), types.StatusWarning, types.LevelMedium,
				"no records to check", map[string]interface{}{"completeness_percent": 0.0}),
		}, nil
	}

	complete := 0
	for _, rec := range records {
		m, ok := rec.(map[string]interface{})
		if !ok {
			continue
		}
		allPresent := true
		for _, f := range c.RecordFields {
			if _, ok := m[f]; !ok {
				allPresent = false
				break
			}
		}
		if allPresent {
			complete++
		}
	}

	pct := float64(complete) / float64(len(records)) * 100
	details := map[string]interface{}{
		"completeness_percent": pct,
		"complete_records":     complete,
		"total_records":        len(records),
	}

	switch {
	case pct < c.MinPercent:
		return []types.ValidationResult{
			result(c.Name(), types.StatusFailed, types.LevelHigh,
				fmt.Sprintf("completeness %.2f%% below minimum %.2f%%", pct, c.MinPercent), details),
		}, nil
	case c.WarnPercent > 0 && pct < c.WarnPercent:
		return []types.ValidationResult{
			result(c.Name(), types.StatusWarning, types.LevelMedium,
				fmt.Sprintf("completeness %.2f%% below warning level %.2f%%", pct, c.WarnPercent), details),
		}, nil
	default:
		return []types.ValidationResult{
			result(c.Name(), types.StatusPassed, types.LevelInfo,
				fmt.Sprintf("completeness %.2f%%", pct), details),
		}, nil
	}
}
