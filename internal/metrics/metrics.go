// Package metrics exposes runtime counters via expvar.
package metrics

import "expvar"

var (
	PipelineRuns        = expvar.NewInt("pipeline_runs")
	PipelinesBlocked    = expvar.NewInt("pipelines_blocked")
	PipelinesFailed     = expvar.NewInt("pipelines_failed")
	StagesExecuted      = expvar.NewInt("stages_executed")
	StagesFailed        = expvar.NewInt("stages_failed")
	ChainExecutions     = expvar.NewInt("chain_executions")
	ValidatorPanics     = expvar.NewInt("validator_panics")
	GatesClosed         = expvar.NewInt("gates_closed")
	GatesConditional    = expvar.NewInt("gates_conditional")
	RecoveriesAttempted = expvar.NewInt("recoveries_attempted")
	RecoveriesSucceeded = expvar.NewInt("recoveries_succeeded")
	SnapshotsSaved      = expvar.NewInt("snapshots_saved")
	SnapshotsDeleted    = expvar.NewInt("snapshots_deleted")
	SnapshotsArchived   = expvar.NewInt("snapshots_archived")
	AlertsDispatched    = expvar.NewInt("alerts_dispatched")
	AlertsFailed        = expvar.NewInt("alerts_failed")
)
