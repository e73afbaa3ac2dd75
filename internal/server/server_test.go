package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cedarwud/stagegate/internal/engine"
	"github.com/cedarwud/stagegate/internal/gate"
	"github.com/cedarwud/stagegate/internal/orchestrator"
	"github.com/cedarwud/stagegate/internal/recovery"
	"github.com/cedarwud/stagegate/internal/snapshot/memory"
	"github.com/cedarwud/stagegate/internal/validator"
	"github.com/cedarwud/stagegate/pkg/types"
)

func setupTestServer(t *testing.T) (*httptest.Server, *memory.Store) {
	t.Helper()
	return setupTestServerWithOpts(t, "")
}

func setupTestServerWithOpts(t *testing.T, apiKey string) (*httptest.Server, *memory.Store) {
	t.Helper()
	reg := validator.NewRegistry()
	require.NoError(t, reg.Register(validator.Func{
		ValidatorName: "always_pass",
		Fn: func(_ context.Context, _ map[string]interface{}, _ *types.ValidationContext) ([]types.ValidationResult, error) {
			return []types.ValidationResult{{
				ValidatorName: "always_pass",
				Status:        types.StatusPassed,
				Level:         types.LevelInfo,
			}}, nil
		},
	}))

	eng := engine.New(reg, types.EngineConfig{}, nil)
	store := memory.New()
	orch := orchestrator.New(eng, gate.New(nil), recovery.NewManager(nil), store, nil, types.FailureStop, nil)

	require.NoError(t, orch.RegisterStage(types.ExecutionStage{
		StageID:    "stage1",
		Name:       "Stage One",
		Validators: []string{"always_pass"},
		Required:   true,
	}))
	require.NoError(t, orch.RegisterStage(types.ExecutionStage{
		StageID:      "stage2",
		Name:         "Stage Two",
		Validators:   []string{"always_pass"},
		Dependencies: []string{"stage1"},
		Required:     true,
	}))

	srv := New(types.ServerConfig{Addr: ":0", APIKey: apiKey}, orch, store)

	ts := httptest.NewServer(srv.router)
	t.Cleanup(ts.Close)
	return ts, store
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestStageEndpoints(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/stages")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var stages []types.ExecutionStage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stages))
	assert.Len(t, stages, 2)

	resp, err = http.Get(ts.URL + "/api/stages/stage1")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var stage types.ExecutionStage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stage))
	assert.Equal(t, "Stage One", stage.Name)

	resp, err = http.Get(ts.URL + "/api/stages/unknown")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExecutionOrderEndpoint(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/stages/order")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, []string{"stage1", "stage2"}, body["order"])
}

func TestRunEndpoint(t *testing.T) {
	ts, store := setupTestServer(t)

	payload := `{"data":{"satellites":[{"id":"sat-1"}]}}`
	resp, err := http.Post(ts.URL+"/api/run", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result types.PipelineResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, types.ExecCompleted, result.OverallStatus)
	assert.Len(t, result.Stages, 2)
	assert.NotEmpty(t, result.ExecutionID)

	// Each stage run leaves a snapshot behind.
	summaries, err := store.List(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, summaries, 2)
}

func TestRunEndpoint_InvalidJSON(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Post(ts.URL+"/api/run", "application/json", strings.NewReader("{bad"))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSnapshotEndpoints(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Post(ts.URL+"/api/run", "application/json", strings.NewReader(`{"data":{}}`))
	require.NoError(t, err)
	_ = resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/snapshots?stage=stage1")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var summaries []types.SnapshotSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summaries))
	require.Len(t, summaries, 1)

	resp, err = http.Get(ts.URL + "/api/snapshots/" + summaries[0].SnapshotID)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var snap types.ExecutionSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, "stage1", snap.StageID)

	resp, err = http.Get(ts.URL + "/api/snapshots/missing")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCleanupEndpoint(t *testing.T) {
	ts, store := setupTestServer(t)

	old := types.ExecutionSnapshot{
		SnapshotID:      "01OLD",
		Timestamp:       time.Now().AddDate(0, 0, -60),
		StageID:         "stage1",
		ExecutionStatus: types.ExecCompleted,
	}
	require.NoError(t, store.Save(context.Background(), old))

	resp, err := http.Post(ts.URL+"/api/snapshots/cleanup", "application/json",
		strings.NewReader(`{"retentionDays":30}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result types.CleanupResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 1, result.Deleted)
	assert.Equal(t, 30, result.RetentionDays)
}

func TestReportEndpoint(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Post(ts.URL+"/api/run", "application/json", strings.NewReader(`{"data":{}}`))
	require.NoError(t, err)
	_ = resp.Body.Close()

	resp, err = http.Get(ts.URL + "/api/report")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var report types.ConsolidatedReport
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, 2, report.TotalSnapshots)
}

func TestAPIKeyAuth(t *testing.T) {
	ts, _ := setupTestServerWithOpts(t, "secret")

	// Health is exempt.
	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Other endpoints require the key.
	resp, err = http.Get(ts.URL + "/api/stages")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/stages", nil)
	req.Header.Set("X-API-Key", "secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestIDPropagation(t *testing.T) {
	ts, _ := setupTestServer(t)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "req-123", resp.Header.Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _ := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/debug/vars")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var vars map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&vars))
	assert.Contains(t, vars, "pipeline_runs")
}
