package validator

import (
	"context"
	"fmt"

	"github.com/cedarwud/stagegate/pkg/types"
)

// StructureValidator checks that a payload carries every required top-level
// field. Missing fields are a HIGH failure; the missing list lands in the
// details for the error summary.
type StructureValidator struct {
	RequiredFields []string
}

// Name implements Validator.
func (v StructureValidator) Name() string { return "structure_validator" }

// Validate implements Validator.
func (v StructureValidator) Validate(_ context.Context, data map[string]interface{}, _ *types.ValidationContext) ([]types.ValidationResult, error) {
	var missing []string
	for _, field := range v.RequiredFields {
		if _, ok := data[field]; !ok {
			missing = append(missing, field)
		}
	}

	if len(missing) > 0 {
		errs := make([]string, 0, len(missing))
		for _, f := range missing {
			errs = append(errs, fmt.Sprintf("structure: required field %q missing", f))
		}
		return []types.ValidationResult{
			result(v.Name(), types.StatusFailed, types.LevelHigh,
				fmt.Sprintf("%d of %d required fields missing", len(missing), len(v.RequiredFields)),
				map[string]interface{}{
					"missing":           missing,
					"validation_errors": errs,
				}),
		}, nil
	}

	return []types.ValidationResult{
		result(v.Name(), types.StatusPassed, types.LevelInfo,
			fmt.Sprintf("all %d required fields present", len(v.RequiredFields)), nil),
	}, nil
}
