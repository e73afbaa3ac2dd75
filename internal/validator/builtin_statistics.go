package validator

import (
	"context"
	"fmt"

	"github.com/cedarwud/stagegate/pkg/types"
)

// StatisticalRangeAnalyzer checks that a numeric per-record value stays
// inside a physical range. Out-of-range values are outliers; a few produce a
// warning, too many fail the check.
type StatisticalRangeAnalyzer struct {
	Field             string
	ValueKey          string
	Min               float64
	Max               float64
	MaxOutlierPercent float64
}

// Name implements Validator.
func (a StatisticalRangeAnalyzer) Name() string { return "statistical_range_analyzer" }

// Validate implements Validator.
func (a StatisticalRangeAnalyzer) Validate(_ context.Context, data map[string]interface{}, _ *types.ValidationContext) ([]types.ValidationResult, error) {
	records, ok := toSlice(data[a.Field])
	if !ok {
		return []types.ValidationResult{
			result(a.Name(), types.StatusError, types.LevelHigh,
				fmt.Sprintf("field %q is not a record list", a.Field), nil),
		}, nil
	}

	var checked, outliers int
	for _, rec := range records {
		m, ok := rec.(map[string]interface{})
		if !ok {
			continue
		}
		v, ok := toFloat64(m[a.ValueKey])
		if !ok {
			continue
		}
		checked++
		if v < a.Min || v > a.Max {
			outliers++
		}
	}

	var pct float64
	if checked > 0 {
		pct = float64(outliers) / float64(checked) * 100
	}

	details := map[string]interface{}{
		"outliers":        outliers,
		"values_checked":  checked,
		"outlier_percent": pct,
	}

	switch {
	case pct > a.MaxOutlierPercent:
		return []types.ValidationResult{
			result(a.Name(), types.StatusFailed, types.LevelHigh,
				fmt.Sprintf("%.2f%% of %s values outside [%.2f, %.2f]", pct, a.ValueKey, a.Min, a.Max), details),
		}, nil
	case outliers > 0:
		return []types.ValidationResult{
			result(a.Name(), types.StatusWarning, types.LevelLow,
				fmt.Sprintf("%d outlier %s values", outliers, a.ValueKey), details),
		}, nil
	default:
		return []types.ValidationResult{
			result(a.Name(), types.StatusPassed, types.LevelInfo,
				fmt.Sprintf("all %s values in range", a.ValueKey), details),
		}, nil
	}
}
