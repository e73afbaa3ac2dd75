// Package types defines the public domain types for the StageGate validation
// pipeline orchestrator.
package types

// ValidationStatus represents the outcome of a single validator invocation.
type ValidationStatus string

// ValidationStatus values enumerate the possible validator outcomes.
const (
	StatusPassed  ValidationStatus = "PASSED"
	StatusFailed  ValidationStatus = "FAILED"
	StatusWarning ValidationStatus = "WARNING"
	StatusSkipped ValidationStatus = "SKIPPED"
	StatusError   ValidationStatus = "ERROR"
)

// ValidationLevel represents the severity attached to a validation result.
type ValidationLevel string

// ValidationLevel values, from most to least severe.
const (
	LevelCritical ValidationLevel = "CRITICAL"
	LevelHigh     ValidationLevel = "HIGH"
	LevelMedium   ValidationLevel = "MEDIUM"
	LevelLow      ValidationLevel = "LOW"
	LevelInfo     ValidationLevel = "INFO"
)

// ExecutionStatus represents the lifecycle state of a stage or pipeline run.
type ExecutionStatus string

// ExecutionStatus values represent the lifecycle states of an execution.
const (
	ExecPending   ExecutionStatus = "PENDING"
	ExecRunning   ExecutionStatus = "RUNNING"
	ExecCompleted ExecutionStatus = "COMPLETED"
	ExecFailed    ExecutionStatus = "FAILED"
	ExecBlocked   ExecutionStatus = "BLOCKED"
	ExecSkipped   ExecutionStatus = "SKIPPED"
)

// GateStatus represents the decision of a stage quality gate.
type GateStatus string

// GateStatus values: OPEN lets the run proceed, CLOSED halts it, and
// CONDITIONAL proceeds with warnings.
const (
	GateOpen        GateStatus = "OPEN"
	GateClosed      GateStatus = "CLOSED"
	GateConditional GateStatus = "CONDITIONAL"
)

// GateAction defines what a triggered gate rule does.
type GateAction string

const (
	ActionBlock GateAction = "block"
	ActionWarn  GateAction = "warn"
)

// GateMetric identifies which metric a gate rule inspects.
type GateMetric string

// GateMetric values enumerate the supported rule metric kinds.
const (
	MetricZeroValuePercent    GateMetric = "zero_value_percent"
	MetricCompletenessPercent GateMetric = "completeness_percent"
	MetricConsistencyScore    GateMetric = "consistency_score"
	MetricFailedCount         GateMetric = "failed_count"
)

// RecoveryActionKind classifies an automated or manual remediation step.
type RecoveryActionKind string

// RecoveryActionKind values enumerate the supported remediation kinds.
const (
	RecoveryRetry              RecoveryActionKind = "retry"
	RecoverySkip               RecoveryActionKind = "skip"
	RecoveryRollback           RecoveryActionKind = "rollback"
	RecoveryManualIntervention RecoveryActionKind = "manual_intervention"
	RecoveryDataCorrection     RecoveryActionKind = "data_correction"
	RecoveryConfigUpdate       RecoveryActionKind = "configuration_update"
)

// ErrorCategory classifies a stage failure for recovery-plan matching.
type ErrorCategory string

// ErrorCategory values. MatchAny and MatchCrossStage are wildcard targets a
// plan may declare; the classifier never produces them.
const (
	ErrAcademicViolation ErrorCategory = "academic_violation"
	ErrDataQuality       ErrorCategory = "data_quality"
	ErrPerformance       ErrorCategory = "performance"
	ErrDataStructure     ErrorCategory = "data_structure"
	ErrUnknown           ErrorCategory = "unknown"

	MatchAny        ErrorCategory = "any"
	MatchCrossStage ErrorCategory = "cross_stage"
)

// ExecutionMode selects how a stage's validator chain is scheduled.
type ExecutionMode string

const (
	ModeSequential ExecutionMode = "sequential"
	ModeParallel   ExecutionMode = "parallel"
)

// FailurePolicy controls whether the orchestrator continues past a FAILED
// stage whose gate stayed open.
type FailurePolicy string

const (
	FailureStop     FailurePolicy = "stop"
	FailureContinue FailurePolicy = "continue"
)

// AlertType defines the alert sink type.
type AlertType string

// AlertType values enumerate the supported alert sink backends.
const (
	AlertConsole AlertType = "console"
	AlertWebhook AlertType = "webhook"
	AlertFile    AlertType = "file"
	AlertSNS     AlertType = "sns"
)

// AlertLevel classifies the urgency of a dispatched alert.
type AlertLevel string

const (
	AlertLevelError   AlertLevel = "error"
	AlertLevelWarning AlertLevel = "warning"
	AlertLevelInfo    AlertLevel = "info"
)
