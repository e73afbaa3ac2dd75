package validator

import (
	"context"
	"fmt"

	"github.com/cedarwud/stagegate/pkg/types"
)

// ZeroValueDetector scans a records field for zero-valued entries and fails
// when the zero percentage exceeds the configured tolerance. The computed
// zero_percentage detail is what zero_value_percent gate rules read.
//
// A run of zero values in computed coordinates almost always means the
// upstream computation used the wrong time basis, so violations are CRITICAL.
type ZeroValueDetector struct {
	// Field is the payload key holding the record slice.
	Field string
	// ValueKeys are the per-record keys checked for zero (e.g. x, y, z).
	ValueKeys []string
	// TolerancePercent is the maximum acceptable zero percentage.
	TolerancePercent float64
}

// Name implements Validator.
func (d ZeroValueDetector) Name() string { return "zero_value_detector" }

// PreValidate skips the check when the payload has no records field at all.
func (d ZeroValueDetector) PreValidate(data map[string]interface{}) bool {
	_, ok := data[d.Field]
	return ok
}

// Validate implements Validator.
func (d ZeroValueDetector) Validate(_ context.Context, data map[string]interface{}, _ *types.ValidationContext) ([]types.ValidationResult, error) {
	records, ok := toSlice(data[d.Field])
	if !ok {
		return []types.ValidationResult{
			result(d.Name(), types.StatusError, types.LevelHigh,
				fmt.Sprintf("field %q is not a record list", d.Field), nil),
		}, nil
	}

	var total, zeroes int
	for _, rec := range records {
		m, ok := rec.(map[string]interface{})
		if !ok {
			continue
		}
		for _, key := range d.ValueKeys {
			total++
			if v, ok := toFloat64(m[key]); ok && v == 0 {
				zeroes++
			}
		}
	}

	var pct float64
	if total > 0 {
		pct = float64(zeroes) / float64(total) * 100
	}

	details := map[string]interface{}{
		"zero_percentage": pct,
		"zero_count":      zeroes,
		"values_checked":  total,
	}

	if pct > d.TolerancePercent {
		return []types.ValidationResult{
			result(d.Name(), types.StatusFailed, types.LevelCritical,
				fmt.Sprintf("zero-value percentage %.2f exceeds tolerance %.2f", pct, d.TolerancePercent),
				details),
		}, nil
	}

	return []types.ValidationResult{
		result(d.Name(), types.StatusPassed, types.LevelInfo,
			fmt.Sprintf("zero-value percentage %.2f within tolerance", pct), details),
	}, nil
}
