package types

import (
	"sync"
	"time"
)

// ValidationResult is the immutable outcome of one validator invocation.
// Created once by the engine on the validator's behalf; never mutated after.
type ValidationResult struct {
	ValidatorName string                 `json:"validatorName"`
	Status        ValidationStatus       `json:"status"`
	Level         ValidationLevel        `json:"level"`
	Message       string                 `json:"message"`
	Details       map[string]interface{} `json:"details,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
}

// IsBlocking reports whether this result is severe enough to count toward
// gate closure: a FAILED status at CRITICAL or HIGH level.
func (r ValidationResult) IsBlocking() bool {
	return r.Status == StatusFailed && (r.Level == LevelCritical || r.Level == LevelHigh)
}

// ValidationContext carries shared state through one stage execution. It is
// created by the orchestrator per stage and handed to every validator in the
// chain. The invoked log is the only mutable part; appends are serialized so
// the parallel execution mode can record concurrently.
type ValidationContext struct {
	StageID   string                 `json:"stageId"`
	DataType  string                 `json:"dataType,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	StartedAt time.Time              `json:"startedAt"`

	mu      sync.Mutex
	invoked []string
}

// NewValidationContext creates a context for one stage execution.
func NewValidationContext(stageID, dataType string) *ValidationContext {
	return &ValidationContext{
		StageID:   stageID,
		DataType:  dataType,
		Metadata:  make(map[string]interface{}),
		StartedAt: time.Now().UTC(),
	}
}

// RecordInvocation appends a validator name to the invoked log.
func (c *ValidationContext) RecordInvocation(validatorName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invoked = append(c.invoked, validatorName)
}

// Invoked returns a copy of the ordered list of validators invoked so far.
func (c *ValidationContext) Invoked() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.invoked))
	copy(out, c.invoked)
	return out
}

// RetryPolicy configures automatic retry behavior for a stage.
type RetryPolicy struct {
	MaxAttempts    int `yaml:"maxAttempts" json:"maxAttempts"`
	BackoffSeconds int `yaml:"backoffSeconds" json:"backoffSeconds"`
}

// QualityGateRule is one rule in a stage's quality gate.
type QualityGateRule struct {
	RuleID    string     `yaml:"ruleId" json:"ruleId"`
	Name      string     `yaml:"name" json:"name"`
	Metric    GateMetric `yaml:"metric" json:"metric"`
	Threshold float64    `yaml:"threshold" json:"threshold"`
	Action    GateAction `yaml:"action" json:"action"`
	Severity  string     `yaml:"severity,omitempty" json:"severity,omitempty"`
	Enabled   bool       `yaml:"enabled" json:"enabled"`
}

// ExecutionStage is the configuration for one pipeline stage: its validator
// chain, dependencies, gate rules, and execution limits. It carries no
// runtime state.
type ExecutionStage struct {
	StageID        string                     `yaml:"stageId" json:"stageId"`
	Name           string                     `yaml:"name" json:"name"`
	Description    string                     `yaml:"description,omitempty" json:"description,omitempty"`
	Validators     []string                   `yaml:"validators" json:"validators"`
	Dependencies   []string                   `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	GateRules      map[string]QualityGateRule `yaml:"gateRules,omitempty" json:"gateRules,omitempty"`
	Retry          RetryPolicy                `yaml:"retry,omitempty" json:"retry,omitempty"`
	TimeoutSeconds int                        `yaml:"timeoutSeconds,omitempty" json:"timeoutSeconds,omitempty"`
	Required       bool                       `yaml:"required" json:"required"`
}

// AutomatedFix names one remediation function a recovery plan invokes.
type AutomatedFix struct {
	Action      string `yaml:"action" json:"action"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Function    string `yaml:"function" json:"function"`
}

// RecoveryPlan is a remediation template matched against a classified stage
// failure. Plans live in a static library; executions clone and customize
// them, the template itself is read-only at runtime.
type RecoveryPlan struct {
	PlanID             string               `yaml:"planId" json:"planId"`
	StageID            string               `yaml:"stageId" json:"stageId"`
	ErrorType          ErrorCategory        `yaml:"errorType" json:"errorType"`
	Actions            []RecoveryActionKind `yaml:"actions" json:"actions"`
	EstimatedDuration  int                  `yaml:"estimatedDurationSeconds" json:"estimatedDurationSeconds"`
	SuccessProbability float64              `yaml:"successProbability" json:"successProbability"`
	ManualSteps        []string             `yaml:"manualSteps,omitempty" json:"manualSteps,omitempty"`
	AutomatedFixes     []AutomatedFix       `yaml:"automatedFixes,omitempty" json:"automatedFixes,omitempty"`
}

// Clone returns a deep copy of the plan.
func (p RecoveryPlan) Clone() RecoveryPlan {
	out := p
	out.Actions = append([]RecoveryActionKind(nil), p.Actions...)
	out.ManualSteps = append([]string(nil), p.ManualSteps...)
	out.AutomatedFixes = append([]AutomatedFix(nil), p.AutomatedFixes...)
	return out
}

// FixResult records the outcome of one automated fix within a recovery run.
type FixResult struct {
	Action      string                 `json:"action"`
	Description string                 `json:"description,omitempty"`
	Success     bool                   `json:"success"`
	Details     map[string]interface{} `json:"details,omitempty"`
	StartedAt   time.Time              `json:"startedAt"`
	CompletedAt time.Time              `json:"completedAt"`
}

// RecoveryExecution is the recorded outcome of executing one recovery plan.
type RecoveryExecution struct {
	PlanID           string        `json:"planId"`
	StageID          string        `json:"stageId"`
	ErrorType        ErrorCategory `json:"errorType"`
	ActionsCompleted []FixResult   `json:"actionsCompleted,omitempty"`
	ActionsFailed    []FixResult   `json:"actionsFailed,omitempty"`
	ManualSteps      []string      `json:"manualSteps,omitempty"`
	OverallSuccess   bool          `json:"overallSuccess"`
	StartedAt        time.Time     `json:"startedAt"`
	CompletedAt      time.Time     `json:"completedAt"`
}

// ErrorSummary aggregates the errors and warnings a stage produced,
// bucketed by category for recovery matching and reporting.
type ErrorSummary struct {
	TotalErrors    int                 `json:"totalErrors"`
	TotalWarnings  int                 `json:"totalWarnings"`
	Categories     map[string][]string `json:"categories,omitempty"`
	CriticalErrors []string            `json:"criticalErrors,omitempty"`
}

// ExecutionSnapshot is the durable record of one stage execution. Created
// exactly once per stage run and immutable once persisted; the snapshot
// store owns it after creation.
type ExecutionSnapshot struct {
	SnapshotID      string                 `json:"snapshotId"`
	Timestamp       time.Time              `json:"timestamp"`
	StageID         string                 `json:"stageId"`
	ExecutionStatus ExecutionStatus        `json:"executionStatus"`
	Results         []ValidationResult     `json:"results,omitempty"`
	QualityMetrics  map[string]float64     `json:"qualityMetrics,omitempty"`
	ErrorSummary    ErrorSummary           `json:"errorSummary"`
	RecoveryActions []RecoveryExecution    `json:"recoveryActions,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

// SnapshotSummary is the listing projection of a snapshot.
type SnapshotSummary struct {
	SnapshotID      string          `json:"snapshotId"`
	Timestamp       time.Time       `json:"timestamp"`
	StageID         string          `json:"stageId"`
	ExecutionStatus ExecutionStatus `json:"executionStatus"`
	QualityScore    float64         `json:"qualityScore"`
	ErrorCount      int             `json:"errorCount"`
}

// GateRuleEvaluation records how one gate rule evaluated against a stage.
type GateRuleEvaluation struct {
	RuleID      string     `json:"ruleId"`
	Name        string     `json:"name,omitempty"`
	Metric      GateMetric `json:"metric"`
	Threshold   float64    `json:"threshold"`
	ActualValue float64    `json:"actualValue"`
	Action      GateAction `json:"action"`
	Violated    bool       `json:"violated"`
	Error       string     `json:"error,omitempty"`
}

// GateEvaluation is the gatekeeper's decision for one stage.
type GateEvaluation struct {
	StageID         string               `json:"stageId"`
	Status          GateStatus           `json:"status"`
	BlockingRules   []GateRuleEvaluation `json:"blockingRules,omitempty"`
	WarningRules    []GateRuleEvaluation `json:"warningRules,omitempty"`
	Recommendations []string             `json:"recommendations,omitempty"`
	EvaluatedAt     time.Time            `json:"evaluatedAt"`
}

// Alert represents an alert event to be dispatched.
type Alert struct {
	Level     AlertLevel             `json:"level"`
	StageID   string                 `json:"stageId,omitempty"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// AlertConfig defines an alert sink configuration.
type AlertConfig struct {
	Type     AlertType `yaml:"type" json:"type"`
	URL      string    `yaml:"url,omitempty" json:"url,omitempty"`
	Path     string    `yaml:"path,omitempty" json:"path,omitempty"`
	TopicARN string    `yaml:"topicArn,omitempty" json:"topicArn,omitempty"`
	Region   string    `yaml:"region,omitempty" json:"region,omitempty"`
}

// EngineConfig holds validation-engine scheduling settings.
type EngineConfig struct {
	Mode           ExecutionMode `yaml:"mode,omitempty" json:"mode,omitempty"`
	Workers        int           `yaml:"workers,omitempty" json:"workers,omitempty"`
	StopOnCritical bool          `yaml:"stopOnCritical,omitempty" json:"stopOnCritical,omitempty"`
	FailurePolicy  FailurePolicy `yaml:"failurePolicy,omitempty" json:"failurePolicy,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr           string `yaml:"addr"`
	APIKey         string `yaml:"apiKey,omitempty" json:"apiKey,omitempty"`
	MaxRequestBody int64  `yaml:"maxRequestBody,omitempty" json:"maxRequestBody,omitempty"`
}

// RedisConfig holds Redis/Valkey connection settings for the snapshot store.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db,omitempty"`
	KeyPrefix string `yaml:"keyPrefix,omitempty"`
}

// DynamoConfig holds DynamoDB connection and table settings for the
// snapshot store.
type DynamoConfig struct {
	TableName string `yaml:"tableName" json:"tableName"`
	Region    string `yaml:"region" json:"region"`
	Endpoint  string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
}

// FSConfig holds filesystem snapshot store settings.
type FSConfig struct {
	Dir string `yaml:"dir"`
}

// ArchiverConfig configures the background Postgres archiver.
type ArchiverConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Interval string `yaml:"interval" json:"interval"` // e.g. "5m"
	DSN      string `yaml:"dsn" json:"dsn"`
}

// ProjectConfig represents the top-level stagegate.yaml configuration.
type ProjectConfig struct {
	Store     string          `yaml:"store"`
	Redis     *RedisConfig    `yaml:"redis,omitempty"`
	DynamoDB  *DynamoConfig   `yaml:"dynamodb,omitempty"`
	FS        *FSConfig       `yaml:"fs,omitempty"`
	Engine    *EngineConfig   `yaml:"engine,omitempty"`
	Server    *ServerConfig   `yaml:"server,omitempty"`
	StageDirs []string        `yaml:"stageDirs"`
	PlanDirs  []string        `yaml:"planDirs,omitempty"`
	Alerts    []AlertConfig   `yaml:"alerts,omitempty"`
	Archiver  *ArchiverConfig `yaml:"archiver,omitempty"`
}
