package dbferry

import "github.com/dbferry/dbferry/internal/orchestrator"

// Phase names the stage a progress Event was raised from: connect, plan,
// ddl, data, post, done or error.
type Phase = orchestrator.Phase

// Event is a single progress notification passed to the callback
// registered with Migrator.SetProgressCallback. Events are delivered
// serially, never concurrently, even though table migration itself runs
// on a worker pool.
type Event = orchestrator.Event

const (
	PhaseConnect = orchestrator.PhaseConnect
	PhasePlan    = orchestrator.PhasePlan
	PhaseDDL     = orchestrator.PhaseDDL
	PhaseData    = orchestrator.PhaseData
	PhasePost    = orchestrator.PhasePost
	PhaseDone    = orchestrator.PhaseDone
	PhaseError   = orchestrator.PhaseError
)
