// Package storetest provides a conformance suite every snapshot.Store
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cedarwud/stagegate/internal/snapshot"
	"github.com/cedarwud/stagegate/pkg/types"
)

func snap(id, stageID string, ts time.Time, qualityScore float64, errorCount int) types.ExecutionSnapshot {
	return types.ExecutionSnapshot{
		SnapshotID:      id,
		Timestamp:       ts,
		StageID:         stageID,
		ExecutionStatus: types.ExecCompleted,
		Results: []types.ValidationResult{
			{ValidatorName: "v", Status: types.StatusPassed, Level: types.LevelInfo, CreatedAt: ts},
		},
		QualityMetrics: map[string]float64{"quality_score": qualityScore},
		ErrorSummary:   types.ErrorSummary{TotalErrors: errorCount},
	}
}

// TestSaveLoadRoundTrip validates that a loaded snapshot equals the saved
// one in every field.
func TestSaveLoadRoundTrip(t *testing.T, store snapshot.Store) {
	ctx := context.Background()
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	original := snap("rt-1", "stage1", ts, 80, 2)
	original.Metadata = map[string]interface{}{"attempt": "first"}
	original.RecoveryActions = []types.RecoveryExecution{
		{PlanID: "p1", StageID: "stage1", ErrorType: types.ErrDataQuality, OverallSuccess: true, StartedAt: ts, CompletedAt: ts},
	}

	if err := store.Save(ctx, original); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := store.Load(ctx, "rt-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.SnapshotID != original.SnapshotID {
		t.Errorf("snapshot ID mismatch: %q vs %q", loaded.SnapshotID, original.SnapshotID)
	}
	if !loaded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("timestamp mismatch: %v vs %v", loaded.Timestamp, original.Timestamp)
	}
	if loaded.StageID != original.StageID || loaded.ExecutionStatus != original.ExecutionStatus {
		t.Errorf("stage/status mismatch: %+v", loaded)
	}
	if len(loaded.Results) != 1 || loaded.Results[0].ValidatorName != "v" {
		t.Errorf("results mismatch: %+v", loaded.Results)
	}
	if loaded.QualityMetrics["quality_score"] != 80 {
		t.Errorf("quality score mismatch: %v", loaded.QualityMetrics)
	}
	if loaded.ErrorSummary.TotalErrors != 2 {
		t.Errorf("error summary mismatch: %+v", loaded.ErrorSummary)
	}
	if len(loaded.RecoveryActions) != 1 || loaded.RecoveryActions[0].PlanID != "p1" {
		t.Errorf("recovery actions mismatch: %+v", loaded.RecoveryActions)
	}
}

// TestLoadMissing validates the not-found error.
func TestLoadMissing(t *testing.T, store snapshot.Store) {
	_, err := store.Load(context.Background(), "no-such-snapshot")
	if !errors.Is(err, snapshot.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestListOrderFilterLimit validates newest-first listing with stage filter
// and limit.
func TestListOrderFilterLimit(t *testing.T, store snapshot.Store) {
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i, s := range []types.ExecutionSnapshot{
		snap("l-1", "stageA", base.Add(1*time.Minute), 100, 0),
		snap("l-2", "stageB", base.Add(2*time.Minute), 90, 1),
		snap("l-3", "stageA", base.Add(3*time.Minute), 80, 0),
	} {
		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	all, err := store.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(all))
	}
	if all[0].SnapshotID != "l-3" || all[2].SnapshotID != "l-1" {
		t.Errorf("expected newest first, got %v, %v, %v", all[0].SnapshotID, all[1].SnapshotID, all[2].SnapshotID)
	}

	stageA, err := store.List(ctx, "stageA", 0)
	if err != nil {
		t.Fatalf("List stageA: %v", err)
	}
	if len(stageA) != 2 {
		t.Errorf("expected 2 stageA summaries, got %d", len(stageA))
	}

	limited, err := store.List(ctx, "", 1)
	if err != nil {
		t.Fatalf("List limit: %v", err)
	}
	if len(limited) != 1 || limited[0].SnapshotID != "l-3" {
		t.Errorf("expected only l-3, got %+v", limited)
	}
}

// TestCleanupRetention validates that cleanup deletes only snapshots older
// than the retention window and is idempotent.
func TestCleanupRetention(t *testing.T, store snapshot.Store) {
	ctx := context.Background()
	now := time.Now().UTC()

	old := snap("c-old", "stage1", now.AddDate(0, 0, -10), 100, 0)
	fresh := snap("c-new", "stage1", now.Add(-time.Hour), 100, 0)
	for _, s := range []types.ExecutionSnapshot{old, fresh} {
		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	result, err := store.Cleanup(ctx, 7)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if result.Deleted != 1 {
		t.Errorf("expected 1 deleted, got %d", result.Deleted)
	}
	if result.RetentionDays != 7 {
		t.Errorf("expected retention 7, got %d", result.RetentionDays)
	}

	if _, err := store.Load(ctx, "c-old"); !errors.Is(err, snapshot.ErrNotFound) {
		t.Errorf("expected old snapshot gone, got %v", err)
	}
	if _, err := store.Load(ctx, "c-new"); err != nil {
		t.Errorf("expected fresh snapshot kept, got %v", err)
	}

	// Second pass deletes nothing.
	again, err := store.Cleanup(ctx, 7)
	if err != nil {
		t.Fatalf("Cleanup again: %v", err)
	}
	if again.Deleted != 0 {
		t.Errorf("expected idempotent cleanup, got %d deletions", again.Deleted)
	}
}

// TestConsolidatedReport validates stage distribution, quality statistics,
// and the error rate.
func TestConsolidatedReport(t *testing.T, store snapshot.Store) {
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	for i, s := range []types.ExecutionSnapshot{
		snap("r-1", "stageA", base.Add(1*time.Minute), 100, 0),
		snap("r-2", "stageA", base.Add(2*time.Minute), 80, 2),
		snap("r-3", "stageB", base.Add(3*time.Minute), 60, 0),
	} {
		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	report, err := store.ConsolidatedReport(ctx, "")
	if err != nil {
		t.Fatalf("ConsolidatedReport: %v", err)
	}
	if report.TotalSnapshots != 3 {
		t.Fatalf("expected 3 snapshots, got %d", report.TotalSnapshots)
	}
	if report.StageDistribution["stageA"] != 2 || report.StageDistribution["stageB"] != 1 {
		t.Errorf("stage distribution wrong: %v", report.StageDistribution)
	}
	if report.QualityTrends.Average != 80 || report.QualityTrends.Min != 60 || report.QualityTrends.Max != 100 {
		t.Errorf("quality trends wrong: %+v", report.QualityTrends)
	}
	if report.ErrorPatterns.SnapshotsWithErrors != 1 {
		t.Errorf("expected 1 snapshot with errors, got %d", report.ErrorPatterns.SnapshotsWithErrors)
	}
	if diff := report.ErrorPatterns.ErrorRate - 1.0/3.0; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("error rate wrong: %v", report.ErrorPatterns.ErrorRate)
	}

	filtered, err := store.ConsolidatedReport(ctx, "stageB")
	if err != nil {
		t.Fatalf("ConsolidatedReport stageB: %v", err)
	}
	if filtered.TotalSnapshots != 1 {
		t.Errorf("expected 1 stageB snapshot, got %d", filtered.TotalSnapshots)
	}
}

// RunAll executes the full conformance suite against fresh stores from
// newStore.
func RunAll(t *testing.T, newStore func(t *testing.T) snapshot.Store) {
	cases := []struct {
		name string
		fn   func(*testing.T, snapshot.Store)
	}{
		{"SaveLoadRoundTrip", TestSaveLoadRoundTrip},
		{"LoadMissing", TestLoadMissing},
		{"ListOrderFilterLimit", TestListOrderFilterLimit},
		{"CleanupRetention", TestCleanupRetention},
		{"ConsolidatedReport", TestConsolidatedReport},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			if err := store.Start(ctx); err != nil {
				t.Fatalf("Start: %v", err)
			}
			defer store.Stop(ctx)
			tc.fn(t, store)
		})
	}
}
