package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cedarwud/stagegate/internal/validator"
	"github.com/cedarwud/stagegate/pkg/types"
)

func staticValidator(name string, status types.ValidationStatus, level types.ValidationLevel) validator.Func {
	return validator.Func{
		ValidatorName: name,
		Fn: func(_ context.Context, _ map[string]interface{}, _ *types.ValidationContext) ([]types.ValidationResult, error) {
			return []types.ValidationResult{{ValidatorName: name, Status: status, Level: level}}, nil
		},
	}
}

func newTestEngine(t *testing.T, cfg types.EngineConfig, validators ...validator.Validator) *Engine {
	t.Helper()
	reg := validator.NewRegistry()
	for _, v := range validators {
		require.NoError(t, reg.Register(v))
	}
	return New(reg, cfg, nil)
}

func TestExecute_AllPass(t *testing.T) {
	eng := newTestEngine(t, types.EngineConfig{},
		staticValidator("a", types.StatusPassed, types.LevelInfo),
		staticValidator("b", types.StatusPassed, types.LevelInfo),
	)

	sum := eng.Execute(context.Background(), "chain", []string{"a", "b"}, nil, nil)
	assert.Equal(t, types.StatusPassed, sum.OverallStatus)
	assert.Len(t, sum.Results, 2)
	assert.Equal(t, 2, sum.ByStatus[types.StatusPassed])
	assert.False(t, sum.Skipped)
}

func TestExecute_EmptyChainIsSkipped(t *testing.T) {
	eng := newTestEngine(t, types.EngineConfig{})
	sum := eng.Execute(context.Background(), "empty", nil, nil, nil)
	assert.True(t, sum.Skipped)
	assert.Equal(t, types.StatusSkipped, sum.OverallStatus)
	assert.Empty(t, sum.Results)
}

func TestExecute_StatusPrecedence(t *testing.T) {
	cases := []struct {
		name     string
		statuses []types.ValidationStatus
		want     types.ValidationStatus
	}{
		{"failed wins over warning", []types.ValidationStatus{types.StatusWarning, types.StatusFailed}, types.StatusFailed},
		{"warning wins over error", []types.ValidationStatus{types.StatusError, types.StatusWarning}, types.StatusWarning},
		{"error wins over passed", []types.ValidationStatus{types.StatusPassed, types.StatusError}, types.StatusError},
		{"all passed", []types.ValidationStatus{types.StatusPassed, types.StatusSkipped}, types.StatusPassed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := validator.NewRegistry()
			names := make([]string, 0, len(tc.statuses))
			for i, st := range tc.statuses {
				name := string(rune('a' + i))
				require.NoError(t, reg.Register(staticValidator(name, st, types.LevelMedium)))
				names = append(names, name)
			}
			eng := New(reg, types.EngineConfig{}, nil)
			sum := eng.Execute(context.Background(), "chain", names, nil, nil)
			assert.Equal(t, tc.want, sum.OverallStatus)
		})
	}
}

func TestExecute_ValidatorErrorIsContained(t *testing.T) {
	failing := validator.Func{
		ValidatorName: "boom",
		Fn: func(_ context.Context, _ map[string]interface{}, _ *types.ValidationContext) ([]types.ValidationResult, error) {
			return nil, errors.New("backend unavailable")
		},
	}
	eng := newTestEngine(t, types.EngineConfig{}, failing)

	sum := eng.Execute(context.Background(), "chain", []string{"boom"}, nil, nil)
	require.Len(t, sum.Results, 1)
	assert.Equal(t, types.StatusError, sum.Results[0].Status)
	assert.Equal(t, types.LevelCritical, sum.Results[0].Level)
	assert.Contains(t, sum.Results[0].Message, "backend unavailable")
}

func TestExecute_ValidatorPanicIsContained(t *testing.T) {
	panicking := validator.Func{
		ValidatorName: "panicky",
		Fn: func(_ context.Context, _ map[string]interface{}, _ *types.ValidationContext) ([]types.ValidationResult, error) {
			panic("index out of range")
		},
	}
	eng := newTestEngine(t, types.EngineConfig{}, panicking,
		staticValidator("after", types.StatusPassed, types.LevelInfo))

	sum := eng.Execute(context.Background(), "chain", []string{"panicky", "after"}, nil, nil)
	require.Len(t, sum.Results, 2)
	assert.Equal(t, types.StatusError, sum.Results[0].Status)
	assert.Contains(t, sum.Results[0].Message, "index out of range")
	assert.Equal(t, types.StatusPassed, sum.Results[1].Status)
}

func TestExecute_UnregisteredValidatorIsSkipped(t *testing.T) {
	eng := newTestEngine(t, types.EngineConfig{})
	sum := eng.Execute(context.Background(), "chain", []string{"ghost"}, nil, nil)
	require.Len(t, sum.Results, 1)
	assert.Equal(t, types.StatusSkipped, sum.Results[0].Status)
}

func TestExecute_StopOnCritical(t *testing.T) {
	var ran atomic.Int32
	counting := validator.Func{
		ValidatorName: "later",
		Fn: func(_ context.Context, _ map[string]interface{}, _ *types.ValidationContext) ([]types.ValidationResult, error) {
			ran.Add(1)
			return []types.ValidationResult{{ValidatorName: "later", Status: types.StatusPassed}}, nil
		},
	}
	eng := newTestEngine(t, types.EngineConfig{StopOnCritical: true},
		staticValidator("blocker", types.StatusFailed, types.LevelCritical),
		counting)

	sum := eng.Execute(context.Background(), "chain", []string{"blocker", "later"}, nil, nil)
	assert.Equal(t, types.StatusFailed, sum.OverallStatus)
	assert.Len(t, sum.Results, 1)
	assert.Equal(t, int32(0), ran.Load())
}

func TestExecute_PreValidateGate(t *testing.T) {
	d := validator.ZeroValueDetector{Field: "satellites", ValueKeys: []string{"x"}, TolerancePercent: 1}
	eng := newTestEngine(t, types.EngineConfig{}, d)

	sum := eng.Execute(context.Background(), "chain", []string{"zero_value_detector"},
		map[string]interface{}{"unrelated": true}, nil)
	require.Len(t, sum.Results, 1)
	assert.Equal(t, types.StatusSkipped, sum.Results[0].Status)
}

func TestExecute_ParallelBoundedPool(t *testing.T) {
	const workers = 2
	var inFlight, peak atomic.Int32

	reg := validator.NewRegistry()
	names := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		name := string(rune('a' + i))
		names = append(names, name)
		require.NoError(t, reg.Register(validator.Func{
			ValidatorName: name,
			Fn: func(_ context.Context, _ map[string]interface{}, _ *types.ValidationContext) ([]types.ValidationResult, error) {
				n := inFlight.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				defer inFlight.Add(-1)
				return []types.ValidationResult{{ValidatorName: name, Status: types.StatusPassed}}, nil
			},
		}))
	}

	eng := New(reg, types.EngineConfig{Mode: types.ModeParallel, Workers: workers}, nil)
	sum := eng.Execute(context.Background(), "chain", names, nil, nil)

	assert.Len(t, sum.Results, 8)
	assert.LessOrEqual(t, peak.Load(), int32(workers))
}

func TestExecute_ParallelPreservesChainOrder(t *testing.T) {
	eng := newTestEngine(t, types.EngineConfig{Mode: types.ModeParallel, Workers: 4},
		staticValidator("a", types.StatusPassed, types.LevelInfo),
		staticValidator("b", types.StatusWarning, types.LevelLow),
		staticValidator("c", types.StatusPassed, types.LevelInfo),
	)

	sum := eng.Execute(context.Background(), "chain", []string{"a", "b", "c"}, nil, nil)
	require.Len(t, sum.Results, 3)
	assert.Equal(t, "a", sum.Results[0].ValidatorName)
	assert.Equal(t, "b", sum.Results[1].ValidatorName)
	assert.Equal(t, "c", sum.Results[2].ValidatorName)
}

func TestExecute_RecordsInvocations(t *testing.T) {
	eng := newTestEngine(t, types.EngineConfig{},
		staticValidator("a", types.StatusPassed, types.LevelInfo),
		staticValidator("b", types.StatusPassed, types.LevelInfo),
	)

	vctx := types.NewValidationContext("stage1", "satellite_data")
	eng.Execute(context.Background(), "chain", []string{"a", "b"}, nil, vctx)
	assert.Equal(t, []string{"a", "b"}, vctx.Invoked())
}

func TestRegisterChain(t *testing.T) {
	eng := newTestEngine(t, types.EngineConfig{},
		staticValidator("a", types.StatusPassed, types.LevelInfo))

	eng.RegisterChain("c1", []string{"a"})
	names, ok := eng.Chain("c1")
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, names)

	sum := eng.ExecuteChain(context.Background(), "c1", nil, nil)
	assert.Equal(t, types.StatusPassed, sum.OverallStatus)

	_, ok = eng.Chain("missing")
	assert.False(t, ok)
}

func TestMissingValidators(t *testing.T) {
	eng := newTestEngine(t, types.EngineConfig{},
		staticValidator("a", types.StatusPassed, types.LevelInfo))
	assert.Equal(t, []string{"ghost"}, eng.MissingValidators([]string{"a", "ghost"}))
	assert.Nil(t, eng.MissingValidators([]string{"a"}))
}
