package validator

import (
	"encoding/json"
	"time"

	"github.com/cedarwud/stagegate/pkg/types"
)

// toFloat64 coerces an interface{} to float64. Handles float64, int, json.Number.
func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// toSlice converts an interface{} to []interface{}.
func toSlice(v interface{}) ([]interface{}, bool) {
	s, ok := v.([]interface{})
	return s, ok
}

// result builds a ValidationResult with the creation timestamp set.
func result(name string, status types.ValidationStatus, level types.ValidationLevel, message string, details map[string]interface{}) types.ValidationResult {
	return types.ValidationResult{
		ValidatorName: name,
		Status:        status,
		Level:         level,
		Message:       message,
		Details:       details,
		CreatedAt:     time.Now().UTC(),
	}
}
