package validator

import (
	"context"
	"testing"

	"github.com/cedarwud/stagegate/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(n int, fields map[string]interface{}) []interface{} {
	out := make([]interface{}, 0, n)
	for i := 0; i < n; i++ {
		rec := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			rec[k] = v
		}
		out = append(out, rec)
	}
	return out
}

func TestZeroValueDetector_WithinTolerance(t *testing.T) {
	d := ZeroValueDetector{Field: "satellites", ValueKeys: []string{"x", "y"}, TolerancePercent: 5.0}

	data := map[string]interface{}{
		"satellites": records(50, map[string]interface{}{"x": 1.2, "y": -3.4}),
	}
	results, err := d.Validate(context.Background(), data, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, types.StatusPassed, results[0].Status)
	assert.Equal(t, 0.0, results[0].Details["zero_percentage"])
	assert.Equal(t, 100, results[0].Details["values_checked"])
}

func TestZeroValueDetector_ExceedsTolerance(t *testing.T) {
	d := ZeroValueDetector{Field: "satellites", ValueKeys: []string{"x"}, TolerancePercent: 5.0}

	recs := records(9, map[string]interface{}{"x": 7.0})
	recs = append(recs, map[string]interface{}{"x": 0.0})
	data := map[string]interface{}{"satellites": recs}

	results, err := d.Validate(context.Background(), data, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, types.StatusFailed, results[0].Status)
	assert.Equal(t, types.LevelCritical, results[0].Level)
	assert.InDelta(t, 10.0, results[0].Details["zero_percentage"], 1e-9)
	assert.True(t, results[0].IsBlocking())
}

func TestZeroValueDetector_PreValidateSkipsMissingField(t *testing.T) {
	d := ZeroValueDetector{Field: "satellites"}
	assert.False(t, d.PreValidate(map[string]interface{}{"other": 1}))
	assert.True(t, d.PreValidate(map[string]interface{}{"satellites": []interface{}{}}))
}

func TestZeroValueDetector_BadFieldType(t *testing.T) {
	d := ZeroValueDetector{Field: "satellites", ValueKeys: []string{"x"}}
	results, err := d.Validate(context.Background(), map[string]interface{}{"satellites": "nope"}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, types.StatusError, results[0].Status)
}

func TestStructureValidator_AllPresent(t *testing.T) {
	v := StructureValidator{RequiredFields: []string{"satellites", "metadata"}}
	data := map[string]interface{}{"satellites": []interface{}{}, "metadata": map[string]interface{}{}}

	results, err := v.Validate(context.Background(), data, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, types.StatusPassed, results[0].Status)
}

func TestStructureValidator_MissingFields(t *testing.T) {
	v := StructureValidator{RequiredFields: []string{"satellites", "metadata"}}

	results, err := v.Validate(context.Background(), map[string]interface{}{"satellites": nil}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, types.StatusFailed, results[0].Status)
	assert.Equal(t, types.LevelHigh, results[0].Level)
	assert.Equal(t, []string{"metadata"}, results[0].Details["missing"])
	errs, ok := results[0].Details["validation_errors"].([]string)
	require.True(t, ok)
	assert.Len(t, errs, 1)
}

func TestCompletenessChecker_Thresholds(t *testing.T) {
	c := CompletenessChecker{Field: "satellites", RecordFields: []string{"id", "epoch"}, MinPercent: 90, WarnPercent: 95}

	full := records(19, map[string]interface{}{"id": "a", "epoch": 1})
	full = append(full, map[string]interface{}{"id": "a"})
	data := map[string]interface{}{"satellites": full}

	results, err := c.Validate(context.Background(), data, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// 19/20 complete = 95%, not below the warn level.
	assert.Equal(t, types.StatusPassed, results[0].Status)
	assert.InDelta(t, 95.0, results[0].Details["completeness_percent"], 1e-9)
}

func TestCompletenessChecker_BelowMinimum(t *testing.T) {
	c := CompletenessChecker{Field: "satellites", RecordFields: []string{"id"}, MinPercent: 90}

	recs := records(5, map[string]interface{}{"id": "a"})
	recs = append(recs, records(5, map[string]interface{}{"name": "b"})...)
	results, err := c.Validate(context.Background(), map[string]interface{}{"satellites": recs}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, types.StatusFailed, results[0].Status)
	assert.InDelta(t, 50.0, results[0].Details["completeness_percent"], 1e-9)
}

func TestCompletenessChecker_EmptyRecords(t *testing.T) {
	c := CompletenessChecker{Field: "satellites", MinPercent: 90}
	results, err := c.Validate(context.Background(), map[string]interface{}{"satellites": []interface{}{}}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, types.StatusWarning, results[0].Status)
}

func TestConsistencyChecker_AgainstUpstream(t *testing.T) {
	c := ConsistencyChecker{Field: "satellites", UpstreamKey: "orbit_computation_result", MinScore: 80}

	data := map[string]interface{}{
		"satellites":               records(90, map[string]interface{}{"id": "a"}),
		"orbit_computation_result": map[string]interface{}{"record_count": 100},
	}
	results, err := c.Validate(context.Background(), data, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, types.StatusPassed, results[0].Status)
	assert.InDelta(t, 90.0, results[0].Details["consistency_score"], 1e-9)
}

func TestConsistencyChecker_BelowMinimum(t *testing.T) {
	c := ConsistencyChecker{Field: "satellites", UpstreamKey: "orbit_computation_result", MinScore: 80}

	data := map[string]interface{}{
		"satellites":               records(10, map[string]interface{}{"id": "a"}),
		"orbit_computation_result": map[string]interface{}{"record_count": 100},
	}
	results, err := c.Validate(context.Background(), data, nil)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, results[0].Status)
}

func TestConsistencyChecker_NoUpstream(t *testing.T) {
	c := ConsistencyChecker{Field: "satellites", UpstreamKey: "orbit_computation_result", MinScore: 80}

	data := map[string]interface{}{"satellites": records(10, map[string]interface{}{"id": "a"})}
	results, err := c.Validate(context.Background(), data, nil)
	require.NoError(t, err)
	assert.Equal(t, types.StatusSkipped, results[0].Status)
}

func TestConsistencyChecker_ScoreCappedAt100(t *testing.T) {
	c := ConsistencyChecker{Field: "satellites", UpstreamKey: "up_result", MinScore: 80}

	data := map[string]interface{}{
		"satellites": records(120, map[string]interface{}{"id": "a"}),
		"up_result":  map[string]interface{}{"record_count": 100},
	}
	results, err := c.Validate(context.Background(), data, nil)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, results[0].Details["consistency_score"], 1e-9)
}

func TestStatisticalRangeAnalyzer_Outliers(t *testing.T) {
	a := StatisticalRangeAnalyzer{Field: "satellites", ValueKey: "altitude_km", Min: 200, Max: 2000, MaxOutlierPercent: 5}

	recs := records(98, map[string]interface{}{"altitude_km": 550.0})
	recs = append(recs,
		map[string]interface{}{"altitude_km": 10.0},
		map[string]interface{}{"altitude_km": 90000.0},
	)
	results, err := a.Validate(context.Background(), map[string]interface{}{"satellites": recs}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// 2/100 = 2% outliers: under the cap but nonzero, so a warning.
	assert.Equal(t, types.StatusWarning, results[0].Status)
	assert.Equal(t, 2, results[0].Details["outliers"])
}

func TestStatisticalRangeAnalyzer_TooManyOutliers(t *testing.T) {
	a := StatisticalRangeAnalyzer{Field: "satellites", ValueKey: "altitude_km", Min: 200, Max: 2000, MaxOutlierPercent: 5}

	recs := records(5, map[string]interface{}{"altitude_km": 550.0})
	recs = append(recs, records(5, map[string]interface{}{"altitude_km": 0.5})...)
	results, err := a.Validate(context.Background(), map[string]interface{}{"satellites": recs}, nil)
	require.NoError(t, err)

	assert.Equal(t, types.StatusFailed, results[0].Status)
	assert.Equal(t, types.LevelHigh, results[0].Level)
}

func TestToFloat64Coercions(t *testing.T) {
	for _, v := range []interface{}{1.5, float32(1.5), 1, int64(1)} {
		_, ok := toFloat64(v)
		assert.True(t, ok, "%T should coerce", v)
	}
	_, ok := toFloat64("1.5")
	assert.False(t, ok)
}
