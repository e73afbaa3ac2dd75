// Package snapshot defines the durable execution-snapshot store and the
// snapshot construction logic shared by every backend.
package snapshot

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cedarwud/stagegate/pkg/types"
)

// ErrNotFound is returned when a snapshot ID does not exist in the store.
var ErrNotFound = errors.New("snapshot not found")

// Store is the durable snapshot backend. Save must be durable before
// returning. Snapshots are appended, never updated in place; concurrent
// saves from parallel runs must be serialized by the implementation.
type Store interface {
	Save(ctx context.Context, snap types.ExecutionSnapshot) error
	Load(ctx context.Context, id string) (types.ExecutionSnapshot, error)
	// List returns summaries newest first, optionally filtered by stage.
	List(ctx context.Context, stageFilter string, limit int) ([]types.SnapshotSummary, error)
	// Cleanup deletes snapshots strictly older than now minus retentionDays.
	Cleanup(ctx context.Context, retentionDays int) (types.CleanupResult, error)
	ConsolidatedReport(ctx context.Context, stageFilter string) (types.ConsolidatedReport, error)

	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Ping(ctx context.Context) error
}

// New builds a snapshot for one stage execution, deriving quality metrics
// and the error summary from the results. The ID is a ULID so listings sort
// by creation time.
func New(stageID string, status types.ExecutionStatus, results []types.ValidationResult, recoveries []types.RecoveryExecution, metadata map[string]interface{}) types.ExecutionSnapshot {
	now := time.Now().UTC()
	return types.ExecutionSnapshot{
		SnapshotID:      ulid.Make().String(),
		Timestamp:       now,
		StageID:         stageID,
		ExecutionStatus: status,
		Results:         results,
		QualityMetrics:  qualityMetrics(results),
		ErrorSummary:    errorSummary(results),
		RecoveryActions: recoveries,
		Metadata:        metadata,
	}
}

// qualityMetrics derives rate metrics from the results. The quality score
// starts at 100 and loses 10 per failed and 20 per errored result, floored
// at zero.
func qualityMetrics(results []types.ValidationResult) map[string]float64 {
	if len(results) == 0 {
		return map[string]float64{}
	}

	total := len(results)
	var passed, failed, errored int
	for _, r := range results {
		switch r.Status {
		case types.StatusPassed:
			passed++
		case types.StatusFailed:
			failed++
		case types.StatusError:
			errored++
		}
	}

	score := 100 - float64(failed)*10 - float64(errored)*20
	if score < 0 {
		score = 0
	}

	return map[string]float64{
		"success_rate":      float64(passed) / float64(total) * 100,
		"failure_rate":      float64(failed) / float64(total) * 100,
		"error_rate":        float64(errored) / float64(total) * 100,
		"total_validations": float64(total),
		"quality_score":     score,
	}
}

// errorSummary collects the validation_errors and validation_warnings each
// result reported in its details and buckets the errors by keyword. An
// error joins every category whose keywords it matches; only errors that
// match none land in other_issues.
func errorSummary(results []types.ValidationResult) types.ErrorSummary {
	var allErrors, allWarnings []string
	for _, r := range results {
		allErrors = append(allErrors, detailStrings(r, "validation_errors")...)
		allWarnings = append(allWarnings, detailStrings(r, "validation_warnings")...)
	}

	categories := map[string][]string{}
	for _, e := range allErrors {
		lower := strings.ToLower(e)
		matched := false
		if strings.Contains(lower, "academic") || strings.Contains(lower, "grade") {
			categories["academic_violations"] = append(categories["academic_violations"], e)
			matched = true
		}
		if strings.Contains(lower, "data") || strings.Contains(lower, "quality") {
			categories["data_quality_issues"] = append(categories["data_quality_issues"], e)
			matched = true
		}
		if strings.Contains(lower, "error") || strings.Contains(lower, "exception") {
			categories["technical_errors"] = append(categories["technical_errors"], e)
			matched = true
		}
		if !matched {
			categories["other_issues"] = append(categories["other_issues"], e)
		}
	}

	var critical []string
	for _, e := range allErrors {
		lower := strings.ToLower(e)
		for _, kw := range []string{"critical", "blocker", "zero", "academic"} {
			if strings.Contains(lower, kw) {
				critical = append(critical, e)
				break
			}
		}
	}

	return types.ErrorSummary{
		TotalErrors:    len(allErrors),
		TotalWarnings:  len(allWarnings),
		Categories:     categories,
		CriticalErrors: critical,
	}
}

func detailStrings(r types.ValidationResult, key string) []string {
	raw, ok := r.Details[key]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Summarize projects a snapshot into its listing form.
func Summarize(snap types.ExecutionSnapshot) types.SnapshotSummary {
	return types.SnapshotSummary{
		SnapshotID:      snap.SnapshotID,
		Timestamp:       snap.Timestamp,
		StageID:         snap.StageID,
		ExecutionStatus: snap.ExecutionStatus,
		QualityScore:    snap.QualityMetrics["quality_score"],
		ErrorCount:      snap.ErrorSummary.TotalErrors,
	}
}

// BuildReport aggregates snapshot summaries into a consolidated report:
// per-stage counts, quality-score distribution, and the fraction of
// snapshots carrying at least one error.
func BuildReport(summaries []types.SnapshotSummary) types.ConsolidatedReport {
	report := types.ConsolidatedReport{
		GeneratedAt:       time.Now().UTC(),
		TotalSnapshots:    len(summaries),
		StageDistribution: map[string]int{},
	}

	var (
		sum, min, max     float64
		totalErrors       int
		snapshotsWithErrs int
	)
	for i, s := range summaries {
		report.StageDistribution[s.StageID]++
		sum += s.QualityScore
		if i == 0 || s.QualityScore < min {
			min = s.QualityScore
		}
		if i == 0 || s.QualityScore > max {
			max = s.QualityScore
		}
		totalErrors += s.ErrorCount
		if s.ErrorCount > 0 {
			snapshotsWithErrs++
		}
	}

	if n := len(summaries); n > 0 {
		mean := sum / float64(n)
		var variance float64
		if n > 1 {
			for _, s := range summaries {
				d := s.QualityScore - mean
				variance += d * d
			}
			variance /= float64(n)
		}
		report.QualityTrends = types.QualityTrends{
			Average:  mean,
			Min:      min,
			Max:      max,
			Variance: variance,
		}
		report.ErrorPatterns = types.ErrorPatterns{
			TotalErrors:         totalErrors,
			SnapshotsWithErrors: snapshotsWithErrs,
			ErrorRate:           float64(snapshotsWithErrs) / float64(n),
		}
	}
	return report
}

// FilterSummaries applies a stage filter and limit to a newest-first list.
func FilterSummaries(summaries []types.SnapshotSummary, stageFilter string, limit int) []types.SnapshotSummary {
	out := make([]types.SnapshotSummary, 0, len(summaries))
	for _, s := range summaries {
		if stageFilter != "" && s.StageID != stageFilter {
			continue
		}
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
