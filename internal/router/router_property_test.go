package router

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

var signalKeys = []string{
	"business_criticality", "urgency", "client_value", "high_value_client",
	"market_priority", "complexity", "unrelated", "notes",
}

func drawValue(t *rapid.T, label string) any {
	switch rapid.IntRange(0, 3).Draw(t, label+"_kind") {
	case 0:
		return rapid.Bool().Draw(t, label+"_bool")
	case 1:
		return rapid.Float64Range(-50, 500).Draw(t, label+"_float")
	case 2:
		return rapid.SampledFrom([]string{"low", "medium", "high", "critical", "whatever"}).Draw(t, label+"_word")
	default:
		return map[string]any{
			rapid.SampledFrom(signalKeys).Draw(t, label+"_nested_key"): rapid.Float64Range(0, 1).Draw(t, label+"_nested"),
		}
	}
}

func drawPayload(t *rapid.T, label string) models.Payload {
	n := rapid.IntRange(0, 6).Draw(t, label+"_size")
	p := make(models.Payload, n)
	for i := 0; i < n; i++ {
		key := rapid.SampledFrom(signalKeys).Draw(t, label+"_key")
		p[key] = drawValue(t, label)
	}
	return p
}

// TestRouteTotalProperty checks that any task type and payload produce a
// decision with a target and an in-range score.
func TestRouteTotalProperty(t *testing.T) {
	r := newTestRouter(t)

	rapid.Check(t, func(rt *rapid.T) {
		taskType := models.TaskType(rapid.StringMatching(`[a-z_]{0,24}`).Draw(rt, "task_type"))
		task := models.TaskDescriptor{
			TaskType:     taskType,
			PriorityHint: rapid.SampledFrom([]models.PriorityHint{"", models.PriorityNormal, models.PriorityCritical}).Draw(rt, "hint"),
			Payload:      drawPayload(rt, "payload"),
		}

		d := r.Route(task)
		if d.TargetWorkerID == "" {
			rt.Fatalf("empty target for %+v", task)
		}
		if d.PriorityScore < MinScore || d.PriorityScore > MaxScore {
			rt.Fatalf("score %d out of range", d.PriorityScore)
		}
		again := r.Route(task)
		if again.PriorityScore != d.PriorityScore || again.TargetWorkerID != d.TargetWorkerID {
			rt.Fatalf("routing not deterministic: %+v vs %+v", d, again)
		}
	})
}

// TestScoreMonotoneProperty checks that adding signal keys never lowers the score.
func TestScoreMonotoneProperty(t *testing.T) {
	r := newTestRouter(t)

	rapid.Check(t, func(rt *rapid.T) {
		base := drawPayload(rt, "base")
		extra := drawPayload(rt, "extra")

		// Merge extra under fresh keys so no existing value is replaced.
		merged := base.Clone()
		i := 0
		for k, v := range extra {
			merged[k+"_extra"] = v
			merged[string(rune('a'+i))] = map[string]any{k: v}
			i++
		}

		before := r.Route(models.TaskDescriptor{TaskType: models.TaskTypeSEOAudit, Payload: base})
		after := r.Route(models.TaskDescriptor{TaskType: models.TaskTypeSEOAudit, Payload: merged})
		if after.PriorityScore < before.PriorityScore {
			rt.Fatalf("score dropped from %d to %d after adding %v", before.PriorityScore, after.PriorityScore, extra)
		}
	})
}
