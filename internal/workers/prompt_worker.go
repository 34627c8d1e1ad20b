// Package workers provides the reference worker catalogue: one prompt-driven
// remote worker per routing table entry, each with a deterministic local
// fallback.
package workers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/ShayCichocki/switchboard/internal/agent"
	"github.com/ShayCichocki/switchboard/internal/llm"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

// Spec describes one catalogue worker.
type Spec struct {
	ID                string
	Tier              models.Tier
	Capabilities      []string
	Capacity          int
	AvgProcessingTime time.Duration
	SLA               time.Duration
	SuccessRate       float64
	Model             string
	// Role is the system prompt persona.
	Role string
	// Instructions describe the analysis to perform.
	Instructions string
	// Outputs lists the keys the response object must contain.
	Outputs []string
	// Required lists payload keys that must be present.
	Required []string
	// Fallback computes a local answer.
	Fallback func(models.Payload) models.Payload
}

// Descriptor returns the registry metadata for the worker.
func (s Spec) Descriptor() models.WorkerDescriptor {
	return models.WorkerDescriptor{
		WorkerID:              s.ID,
		Tier:                  s.Tier,
		Capabilities:          append([]string(nil), s.Capabilities...),
		Capacity:              s.Capacity,
		AvgProcessingTime:     s.AvgProcessingTime,
		SLA:                   s.SLA,
		HistoricalSuccessRate: s.SuccessRate,
		Model:                 s.Model,
	}
}

// PromptWorker performs its task with a single LLM completion.
type PromptWorker struct {
	spec Spec
	llm  llm.Completer
}

// NewPromptWorker creates a worker for spec backed by c.
func NewPromptWorker(spec Spec, c llm.Completer) *PromptWorker {
	if c == nil {
		c = llm.Offline{}
	}
	return &PromptWorker{spec: spec, llm: c}
}

// Descriptor implements agent.Worker.
func (w *PromptWorker) Descriptor() models.WorkerDescriptor {
	return w.spec.Descriptor()
}

// Validate implements agent.Validator.
func (w *PromptWorker) Validate(task models.TaskDescriptor) error {
	return agent.RequireFields(task, w.spec.Required...)
}

// ProcessTask implements agent.Worker.
func (w *PromptWorker) ProcessTask(ctx context.Context, task models.TaskDescriptor) (*agent.Response, error) {
	prompt, err := w.prompt(task)
	if err != nil {
		return nil, err
	}
	comp, err := w.llm.Complete(ctx, w.spec.Model, w.spec.Role, prompt)
	if err != nil {
		return nil, err
	}
	// The completion is billed whether or not its reply is usable.
	resp := &agent.Response{
		Model:        comp.Model,
		InputTokens:  comp.InputTokens,
		OutputTokens: comp.OutputTokens,
	}
	obj, err := llm.ExtractObject(comp.Text)
	if err != nil {
		return resp, err
	}
	for _, key := range w.spec.Outputs {
		if _, ok := obj[key]; !ok {
			return resp, agent.Transient(fmt.Errorf("response is missing %q", key))
		}
	}
	obj["source"] = "remote"
	resp.Payload = obj
	return resp, nil
}

// FallbackCompute implements agent.Worker.
func (w *PromptWorker) FallbackCompute(task models.TaskDescriptor) models.Payload {
	out := w.spec.Fallback(task.Payload)
	out["source"] = "fallback"
	return out
}

func (w *PromptWorker) prompt(task models.TaskDescriptor) (string, error) {
	body, err := sonic.MarshalString(task.Payload)
	if err != nil {
		return "", agent.Invalidf("payload is not serializable: %v", err)
	}
	var b strings.Builder
	b.WriteString(w.spec.Instructions)
	b.WriteString("\n\nTask type: ")
	b.WriteString(string(task.TaskType))
	b.WriteString("\nInput:\n")
	b.WriteString(body)
	b.WriteString("\n\nRespond with a single JSON object containing the keys: ")
	b.WriteString(strings.Join(w.spec.Outputs, ", "))
	b.WriteString(". Numbers must be plain JSON numbers.")
	return b.String(), nil
}
