package models

import "github.com/shopspring/decimal"

// MixedModel is reported when an aggregate spans more than one model.
const MixedModel = "mixed"

// FallbackModel is the model name recorded for local fallback computations.
const FallbackModel = "local-fallback"

// UsageRecord aggregates consumption for one key.
// Cost is derived from the unit counts and the pricing table.
type UsageRecord struct {
	Tier         Tier            `json:"tier"`
	WorkerID     string          `json:"worker_id,omitempty"`
	ModelName    string          `json:"model_name"`
	InputUnits   int64           `json:"input_units"`
	OutputUnits  int64           `json:"output_units"`
	RequestCount int64           `json:"request_count"`
	Cost         decimal.Decimal `json:"cost"`
}

// TotalUnits returns input plus output units.
func (r UsageRecord) TotalUnits() int64 {
	return r.InputUnits + r.OutputUnits
}

// UsageRow is one line of the tabular billing export.
type UsageRow struct {
	Tier         Tier            `json:"tier"`
	Model        string          `json:"model"`
	InputUnits   int64           `json:"input_units"`
	OutputUnits  int64           `json:"output_units"`
	Cost         decimal.Decimal `json:"cost"`
	RequestCount int64           `json:"request_count"`
}
