package models

import (
	"fmt"
	"sort"
	"time"
)

// TaskType identifies the category of work a task asks for.
// The set is closed: unknown names are rejected when decoding.
type TaskType string

const (
	// TaskTypeDefault is used when no specific category applies.
	TaskTypeDefault TaskType = "default"

	TaskTypeEnterpriseAssessment TaskType = "enterprise_assessment"
	TaskTypeStrategicPlanning    TaskType = "strategic_planning"
	TaskTypeMarketAnalysis       TaskType = "market_analysis"
	TaskTypeCampaignPlanning     TaskType = "campaign_planning"
	TaskTypeSalesForecast        TaskType = "sales_forecast"
	TaskTypeClientOnboarding     TaskType = "client_onboarding"
	TaskTypeLeadQualification    TaskType = "lead_qualification"
	TaskTypeProposalGeneration   TaskType = "proposal_generation"
	TaskTypePricingAnalysis      TaskType = "pricing_analysis"
	TaskTypeSEOAudit             TaskType = "seo_audit"
	TaskTypeContentCreation      TaskType = "content_creation"
)

var knownTaskTypes = map[TaskType]struct{}{
	TaskTypeDefault:              {},
	TaskTypeEnterpriseAssessment: {},
	TaskTypeStrategicPlanning:    {},
	TaskTypeMarketAnalysis:       {},
	TaskTypeCampaignPlanning:     {},
	TaskTypeSalesForecast:        {},
	TaskTypeClientOnboarding:     {},
	TaskTypeLeadQualification:    {},
	TaskTypeProposalGeneration:   {},
	TaskTypePricingAnalysis:      {},
	TaskTypeSEOAudit:             {},
	TaskTypeContentCreation:      {},
}

// Valid returns true if the task type is a known value.
func (t TaskType) Valid() bool {
	_, ok := knownTaskTypes[t]
	return ok
}

// ParseTaskType converts a string into a TaskType.
// Unknown names are an error; use TaskTypeOrDefault for lenient decoding.
func ParseTaskType(s string) (TaskType, error) {
	t := TaskType(s)
	if !t.Valid() {
		return "", fmt.Errorf("unknown task type %q", s)
	}
	return t, nil
}

// TaskTypeOrDefault converts a string into a TaskType, mapping unknown names
// to TaskTypeDefault.
func TaskTypeOrDefault(s string) TaskType {
	t, err := ParseTaskType(s)
	if err != nil {
		return TaskTypeDefault
	}
	return t
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TaskType) UnmarshalText(text []byte) error {
	parsed, err := ParseTaskType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// TaskTypes returns every known task type in sorted order.
func TaskTypes() []TaskType {
	out := make([]TaskType, 0, len(knownTaskTypes))
	for t := range knownTaskTypes {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PriorityHint is the caller's coarse urgency indication.
type PriorityHint string

const (
	// PriorityNormal is the default hint.
	PriorityNormal PriorityHint = "normal"
	// PriorityCritical marks business-critical work.
	PriorityCritical PriorityHint = "critical"
)

// Valid returns true if the hint is a known value.
func (p PriorityHint) Valid() bool {
	return p == PriorityNormal || p == PriorityCritical
}

// Payload is the free-form body of a task or a worker's output.
type Payload map[string]any

// Clone returns a shallow copy of the payload.
func (p Payload) Clone() Payload {
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// String returns the value at key if it is a string.
func (p Payload) String(key string) (string, bool) {
	v, ok := p[key].(string)
	return v, ok
}

// Number returns the value at key as a float64 if it is numeric.
func (p Payload) Number(key string) (float64, bool) {
	return ToFloat(p[key])
}

// ToFloat converts the numeric kinds that appear in decoded payloads.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// TaskDescriptor describes one incoming unit of work.
// It must not be mutated after it has been handed to the router.
type TaskDescriptor struct {
	// ID is an optional caller-assigned identifier used in logs.
	ID string `json:"id,omitempty"`
	// TaskType selects the routing table entry.
	TaskType TaskType `json:"task_type"`
	// PriorityHint is the caller's urgency hint.
	PriorityHint PriorityHint `json:"priority_hint,omitempty"`
	// Payload carries the task body.
	Payload Payload `json:"payload,omitempty"`
}

// RoutingDecision is the router's answer for a single task.
type RoutingDecision struct {
	TaskType            TaskType  `json:"task_type"`
	TargetWorkerID      string    `json:"target_worker_id"`
	PriorityScore       int       `json:"priority_score"`
	EstimatedCompletion time.Time `json:"estimated_completion"`
	// Classified is true when the task type was inferred from the payload.
	Classified bool `json:"classified,omitempty"`
	// Signals holds the normalized priority signals that produced the score.
	Signals map[string]float64 `json:"signals,omitempty"`
}
