package pipeline

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// GateKind selects how a gate decides whether the run continues.
type GateKind string

const (
	GateAlways   GateKind = "always"
	GateMinScore GateKind = "min_score"
	GateEquals   GateKind = "equals"
	GateNever    GateKind = "never"
)

// Gate is a predicate over a stage result that decides whether the next
// stage runs. A failed result never passes a gate.
type Gate struct {
	Kind      GateKind `yaml:"-"`
	Field     string   `yaml:"field,omitempty"`
	Threshold float64  `yaml:"threshold,omitempty"`
	Value     any      `yaml:"value,omitempty"`
}

// Always is the gate used when a stage declares none.
func Always() Gate { return Gate{Kind: GateAlways} }

// MinScore passes when payload[field] is a number >= threshold.
func MinScore(field string, threshold float64) Gate {
	return Gate{Kind: GateMinScore, Field: field, Threshold: threshold}
}

// Equals passes when payload[field] prints the same as value.
func Equals(field string, value any) Gate {
	return Gate{Kind: GateEquals, Field: field, Value: value}
}

// Validate checks the gate is well formed.
func (g Gate) Validate() error {
	switch g.Kind {
	case GateAlways, GateNever, "":
		return nil
	case GateMinScore, GateEquals:
		if g.Field == "" {
			return fmt.Errorf("%s gate requires a field", g.Kind)
		}
		return nil
	default:
		return fmt.Errorf("unknown gate kind %q", g.Kind)
	}
}

// Allows reports whether the run may continue after res.
func (g Gate) Allows(res models.ExecutionResult) bool {
	if !res.Usable() {
		return false
	}
	switch g.Kind {
	case GateAlways, "":
		return true
	case GateMinScore:
		v, ok := res.Payload.Number(g.Field)
		return ok && v >= g.Threshold
	case GateEquals:
		v, ok := res.Payload[g.Field]
		return ok && fmt.Sprint(v) == fmt.Sprint(g.Value)
	default:
		return false
	}
}

func (g Gate) String() string {
	switch g.Kind {
	case GateMinScore:
		return fmt.Sprintf("min_score(%s >= %g)", g.Field, g.Threshold)
	case GateEquals:
		return fmt.Sprintf("equals(%s == %v)", g.Field, g.Value)
	case "":
		return string(GateAlways)
	default:
		return string(g.Kind)
	}
}

// UnmarshalYAML accepts either a bare kind ("always", "never") or a single
// key mapping such as {min_score: {field: score, threshold: 60}}.
func (g *Gate) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		kind := GateKind(node.Value)
		if kind != GateAlways && kind != GateNever {
			return fmt.Errorf("line %d: gate %q needs parameters", node.Line, node.Value)
		}
		*g = Gate{Kind: kind}
		return nil
	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("line %d: gate must have exactly one kind", node.Line)
		}
		kind := GateKind(node.Content[0].Value)
		body := node.Content[1]
		if body.Kind != yaml.MappingNode {
			return fmt.Errorf("line %d: %s gate parameters must be a mapping", body.Line, kind)
		}
		seen := make(map[string]bool, len(body.Content)/2)
		for i := 0; i < len(body.Content); i += 2 {
			key := body.Content[i]
			switch key.Value {
			case "field", "threshold", "value":
				seen[key.Value] = true
			default:
				return fmt.Errorf("line %d: %s gate: unknown parameter %q", key.Line, kind, key.Value)
			}
		}
		var params struct {
			Field     string  `yaml:"field"`
			Threshold float64 `yaml:"threshold"`
			Value     any     `yaml:"value"`
		}
		if err := body.Decode(&params); err != nil {
			return fmt.Errorf("line %d: %s gate: %w", node.Line, kind, err)
		}
		switch {
		case kind == GateMinScore && !seen["threshold"]:
			return fmt.Errorf("line %d: min_score gate requires a threshold", node.Line)
		case kind == GateEquals && !seen["value"]:
			return fmt.Errorf("line %d: equals gate requires a value", node.Line)
		}
		*g = Gate{Kind: kind, Field: params.Field, Threshold: params.Threshold, Value: params.Value}
		return g.Validate()
	default:
		return fmt.Errorf("line %d: invalid gate", node.Line)
	}
}

// MarshalYAML mirrors UnmarshalYAML.
func (g Gate) MarshalYAML() (any, error) {
	switch g.Kind {
	case GateMinScore:
		return map[string]any{string(g.Kind): map[string]any{"field": g.Field, "threshold": g.Threshold}}, nil
	case GateEquals:
		return map[string]any{string(g.Kind): map[string]any{"field": g.Field, "value": g.Value}}, nil
	case "":
		return string(GateAlways), nil
	default:
		return string(g.Kind), nil
	}
}
