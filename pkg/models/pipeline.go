package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunStatus is the terminal state of a pipeline run.
type RunStatus string

const (
	// RunCompleted means every planned stage ran.
	RunCompleted RunStatus = "completed"
	// RunHalted means a gate stopped the run after a usable stage.
	RunHalted RunStatus = "halted"
	// RunAborted means a stage failed and the run ended early.
	RunAborted RunStatus = "aborted"
)

// NoValueRealized is the marker used when no stage produced a usable payload.
const NoValueRealized = "no value realized"

// PipelineStage records one executed stage.
type PipelineStage struct {
	StageName      string          `json:"stage_name"`
	WorkerID       string          `json:"worker_id"`
	BusinessAction string          `json:"business_action"`
	Result         ExecutionResult `json:"result"`
	NextActionHint string          `json:"next_action_hint,omitempty"`
	PriorityScore  int             `json:"priority_score"`
}

// BusinessValue is the aggregate value estimate of a run.
type BusinessValue struct {
	Amount   decimal.Decimal `json:"amount"`
	Realized bool            `json:"realized"`
	// Degraded is true when the estimate rests on fallback data or an aborted run.
	Degraded bool `json:"degraded"`
	// SourceStage names the stage whose payload produced the estimate.
	SourceStage string `json:"source_stage,omitempty"`
	// Note carries NoValueRealized when nothing was realized.
	Note string `json:"note,omitempty"`
}

// PipelineRun is an ordered sequence of stages plus the aggregate outcome.
type PipelineRun struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Stages        []PipelineStage `json:"stages"`
	PlannedStages int             `json:"planned_stages"`
	Status        RunStatus       `json:"status"`
	SuccessRate   float64         `json:"success_rate"`
	BusinessValue BusinessValue   `json:"business_value"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
}
