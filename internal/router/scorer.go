package router

import (
	"math"
	"strings"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// Priority score bounds.
const (
	BaseScore = 500
	MinScore  = 0
	MaxScore  = 1000
)

// Signal names recognised in task payloads.
const (
	SignalBusinessCriticality = "business_criticality"
	SignalTimeConstraints     = "time_constraints"
	SignalClientValue         = "client_value"
	SignalMarketPriority      = "market_priority"
	SignalTaskComplexity      = "task_complexity"
)

// Weights is the relative importance of each signal.
var Weights = map[string]float64{
	SignalBusinessCriticality: 0.35,
	SignalTimeConstraints:     0.25,
	SignalClientValue:         0.20,
	SignalMarketPriority:      0.15,
	SignalTaskComplexity:      0.10,
}

// signalAliases maps payload keys to the signal they feed.
var signalAliases = map[string]string{
	"business_criticality": SignalBusinessCriticality,
	"criticality":          SignalBusinessCriticality,
	"critical":             SignalBusinessCriticality,
	"time_constraints":     SignalTimeConstraints,
	"urgency":              SignalTimeConstraints,
	"deadline_pressure":    SignalTimeConstraints,
	"client_value":         SignalClientValue,
	"high_value_client":    SignalClientValue,
	"market_priority":      SignalMarketPriority,
	"priority_market":      SignalMarketPriority,
	"task_complexity":      SignalTaskComplexity,
	"complexity":           SignalTaskComplexity,
}

// Signals holds normalized signal values in [0,1].
type Signals map[string]float64

// Scorer extracts priority signals from a task.
// Implementations must be deterministic.
type Scorer interface {
	Signals(task models.TaskDescriptor) Signals
}

// PayloadScorer finds recognised signal keys anywhere in a task payload.
type PayloadScorer struct{}

// Signals walks the payload and normalizes every recognised signal. When a
// signal appears more than once the largest value wins.
func (PayloadScorer) Signals(task models.TaskDescriptor) Signals {
	out := make(Signals)
	walkPayload(map[string]any(task.Payload), 0, out)
	if task.PriorityHint == models.PriorityCritical {
		out[SignalBusinessCriticality] = 1
	}
	return out
}

// maxDepth bounds recursion into nested payloads.
const maxDepth = 8

func walkPayload(v any, depth int, out Signals) {
	if depth > maxDepth {
		return
	}
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			if sig, ok := signalAliases[strings.ToLower(k)]; ok {
				if val, ok := normalize(child); ok && val > out[sig] {
					out[sig] = val
				}
			}
			walkPayload(child, depth+1, out)
		}
	case models.Payload:
		walkPayload(map[string]any(node), depth, out)
	case []any:
		for _, child := range node {
			walkPayload(child, depth+1, out)
		}
	}
}

// normalize maps booleans, numbers and level words onto [0,1].
// Numbers above 1 are read as 0-10 or 0-100 scales.
func normalize(v any) (float64, bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "critical", "urgent", "very_high", "enterprise":
			return 1, true
		case "high", "true", "yes":
			return 0.8, true
		case "medium", "moderate", "normal":
			return 0.5, true
		case "low":
			return 0.2, true
		case "none", "false", "no":
			return 0, true
		}
		return 0, false
	}

	n, ok := models.ToFloat(v)
	if !ok || math.IsNaN(n) {
		return 0, false
	}
	switch {
	case n <= 0:
		return 0, true
	case n <= 1:
		return n, true
	case n <= 10:
		return n / 10, true
	case n <= 100:
		return n / 100, true
	default:
		return 1, true
	}
}

// Score converts signals into a priority score clamped to [MinScore, MaxScore].
func Score(signals Signals) int {
	score := BaseScore
	for name, weight := range Weights {
		v := signals[name]
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		score += int(math.Round(weight * v * 1000))
	}
	return clamp(score)
}

func clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
