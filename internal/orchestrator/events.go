package orchestrator

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventTaskRouted indicates a task has been assigned to a worker.
	EventTaskRouted EventType = "task_routed"
	// EventAttemptFailed indicates a remote attempt failed and will be retried
	// or given up.
	EventAttemptFailed EventType = "attempt_failed"
	// EventFallbackTriggered indicates a worker's local fallback produced the result.
	EventFallbackTriggered EventType = "fallback_triggered"
	// EventTaskCompleted indicates the wrapper returned a result.
	EventTaskCompleted EventType = "task_completed"
	// EventStageCompleted indicates a pipeline stage produced a usable result.
	EventStageCompleted EventType = "stage_completed"
	// EventStageFailed indicates a pipeline stage failed.
	EventStageFailed EventType = "stage_failed"
	// EventPipelineDone indicates a pipeline run has been finalized.
	EventPipelineDone EventType = "pipeline_done"
	// EventBudgetWarning indicates spend crossed the warning threshold.
	EventBudgetWarning EventType = "budget_warning"
	// EventBudgetExhausted indicates spend reached the limit.
	EventBudgetExhausted EventType = "budget_exhausted"
)

// Event represents an event emitted by the orchestrator.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// TaskID is the ID of the related task, if applicable.
	TaskID string
	// WorkerID is the ID of the related worker, if applicable.
	WorkerID string
	// RunID and Stage identify pipeline events.
	RunID string
	Stage string
	// Message provides additional context about the event.
	Message string
	// Error contains error details for failure events.
	Error error
	// PriorityScore is set on task_routed events.
	PriorityScore int
	// Cost is the total spend when the event was emitted.
	Cost decimal.Decimal
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
