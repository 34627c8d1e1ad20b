// Package report assembles orchestration telemetry into a Summary and
// exports it as JSON, CSV, SQLite or a terminal table.
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ShayCichocki/switchboard/internal/orchestrator"
	"github.com/ShayCichocki/switchboard/internal/registry"
	"github.com/ShayCichocki/switchboard/internal/usage"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

// BudgetSummary is the cost budget state at report time.
type BudgetSummary struct {
	Limit  decimal.Decimal `json:"limit"`
	Used   decimal.Decimal `json:"used"`
	Status string          `json:"status"`
}

// Summary is a point-in-time report of usage, cost, capacity and runs.
type Summary struct {
	GeneratedAt  time.Time                          `json:"generated_at"`
	TotalCost    decimal.Decimal                    `json:"total_cost"`
	TotalUnits   int64                              `json:"total_units"`
	PerLevel     map[models.Tier]models.UsageRecord `json:"per_level"`
	PerWorker    map[string]models.UsageRecord      `json:"per_worker"`
	ByModel      []models.UsageRow                  `json:"by_model"`
	Capacity     registry.CapacitySnapshot          `json:"capacity"`
	Latency      map[string]usage.LatencyStats      `json:"latency,omitempty"`
	PipelineRuns []models.PipelineRun               `json:"pipeline_runs,omitempty"`
	Budget       BudgetSummary                      `json:"budget"`
}

// Build collects a Summary from a running orchestrator.
func Build(o *orchestrator.Orchestrator, now time.Time) Summary {
	t := o.Tracker()
	b := o.Budget()
	return Summary{
		GeneratedAt:  now.UTC(),
		TotalCost:    t.TotalCost(),
		TotalUnits:   t.TotalUnits(),
		PerLevel:     t.ByLevel(),
		PerWorker:    t.ByWorker(),
		ByModel:      t.ByModel(),
		Capacity:     o.Registry().CapacitySnapshot(),
		Latency:      t.Latencies(),
		PipelineRuns: o.Runs(),
		Budget: BudgetSummary{
			Limit:  b.Limit(),
			Used:   b.Used(),
			Status: b.CheckBudget().String(),
		},
	}
}

// WorkerIDs returns the keys of PerWorker in sorted order.
func (s Summary) WorkerIDs() []string {
	ids := make([]string, 0, len(s.PerWorker))
	for id := range s.PerWorker {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DegradedStages counts stages across all runs that ended on a fallback.
func (s Summary) DegradedStages() int {
	n := 0
	for _, run := range s.PipelineRuns {
		for _, st := range run.Stages {
			if st.Result.Status == models.StatusDegraded {
				n++
			}
		}
	}
	return n
}
