package models

import (
	"errors"
	"sort"
	"time"
)

// WorkerDescriptor holds the static metadata and live counters of one worker.
type WorkerDescriptor struct {
	// WorkerID uniquely identifies the worker.
	WorkerID string `json:"worker_id"`
	// Tier is the worker's position in the hierarchy.
	Tier Tier `json:"tier"`
	// Capabilities lists the task categories the worker understands.
	Capabilities []string `json:"capabilities,omitempty"`
	// Capacity is the maximum number of concurrent tasks.
	Capacity int `json:"capacity"`
	// CurrentLoad is the number of tasks currently reserved on the worker.
	CurrentLoad int `json:"current_load"`
	// AvgProcessingTime is the typical duration of one task.
	AvgProcessingTime time.Duration `json:"avg_processing_time"`
	// SLA is the committed upper bound for one task.
	SLA time.Duration `json:"sla"`
	// HistoricalSuccessRate is in [0,1].
	HistoricalSuccessRate float64 `json:"historical_success_rate"`
	// Model is the language model the worker calls for remote work.
	Model string `json:"model,omitempty"`
}

// Validate checks the descriptor's static fields.
func (w WorkerDescriptor) Validate() error {
	if w.WorkerID == "" {
		return errors.New("worker id is required")
	}
	if !w.Tier.Valid() {
		return errors.New("worker " + w.WorkerID + ": invalid tier " + string(w.Tier))
	}
	if w.Capacity < 1 {
		return errors.New("worker " + w.WorkerID + ": capacity must be at least 1")
	}
	if w.HistoricalSuccessRate < 0 || w.HistoricalSuccessRate > 1 {
		return errors.New("worker " + w.WorkerID + ": success rate must be in [0,1]")
	}
	return nil
}

// HasCapability reports whether the worker lists the capability.
func (w WorkerDescriptor) HasCapability(c string) bool {
	for _, have := range w.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Available reports whether the worker can accept another task.
func (w WorkerDescriptor) Available() bool {
	return w.CurrentLoad < w.Capacity
}

// Clone returns a copy that shares no slices with the receiver.
func (w WorkerDescriptor) Clone() WorkerDescriptor {
	out := w
	out.Capabilities = append([]string(nil), w.Capabilities...)
	sort.Strings(out.Capabilities)
	return out
}
