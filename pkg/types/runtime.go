package types

import "time"

// ChainSummary aggregates the results of executing one validator chain.
type ChainSummary struct {
	ChainName     string                        `json:"chainName"`
	OverallStatus ValidationStatus              `json:"overallStatus"`
	Results       []ValidationResult            `json:"results,omitempty"`
	ByStatus      map[ValidationStatus]int      `json:"byStatus,omitempty"`
	ByLevel       map[ValidationLevel]int       `json:"byLevel,omitempty"`
	ByValidator   map[string][]ValidationResult `json:"byValidator,omitempty"`
	Skipped       bool                          `json:"skipped,omitempty"`
	Duration      time.Duration                 `json:"duration"`
}

// HasBlocking reports whether any result in the summary is blocking.
func (s ChainSummary) HasBlocking() bool {
	for _, r := range s.Results {
		if r.IsBlocking() {
			return true
		}
	}
	return false
}

// StageResult is the runtime outcome of executing one stage.
type StageResult struct {
	StageID     string             `json:"stageId"`
	Name        string             `json:"name,omitempty"`
	Status      ExecutionStatus    `json:"status"`
	Summary     ChainSummary       `json:"summary"`
	Gate        *GateEvaluation    `json:"gate,omitempty"`
	Recovery    *RecoveryExecution `json:"recovery,omitempty"`
	SnapshotID  string             `json:"snapshotId,omitempty"`
	Error       string             `json:"error,omitempty"`
	Attempts    int                `json:"attempts"`
	StartedAt   time.Time          `json:"startedAt"`
	CompletedAt time.Time          `json:"completedAt"`
}

// PipelineResult is the outcome of one full pipeline run. OverallStatus is
// always definite: COMPLETED, FAILED, or BLOCKED.
type PipelineResult struct {
	ExecutionID   string                 `json:"executionId"`
	OverallStatus ExecutionStatus        `json:"overallStatus"`
	Order         []string               `json:"order"`
	Stages        map[string]StageResult `json:"stages"`
	StartedAt     time.Time              `json:"startedAt"`
	CompletedAt   time.Time              `json:"completedAt"`
}

// ConsolidatedReport aggregates quality statistics over a set of snapshots.
type ConsolidatedReport struct {
	GeneratedAt       time.Time      `json:"generatedAt"`
	TotalSnapshots    int            `json:"totalSnapshots"`
	StageDistribution map[string]int `json:"stageDistribution,omitempty"`
	QualityTrends     QualityTrends  `json:"qualityTrends"`
	ErrorPatterns     ErrorPatterns  `json:"errorPatterns"`
}

// QualityTrends summarizes the quality-score distribution of a report.
type QualityTrends struct {
	Average  float64 `json:"average"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Variance float64 `json:"variance"`
}

// ErrorPatterns summarizes error occurrence across a report's snapshots.
type ErrorPatterns struct {
	TotalErrors         int     `json:"totalErrors"`
	SnapshotsWithErrors int     `json:"snapshotsWithErrors"`
	ErrorRate           float64 `json:"errorRate"` // fraction of snapshots with >=1 error
}

// CleanupResult reports what a snapshot retention pass did.
type CleanupResult struct {
	Deleted       int `json:"deleted"`
	Failed        int `json:"failed"`
	RetentionDays int `json:"retentionDays"`
}
