package report

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"github.com/ShayCichocki/switchboard/internal/agent"
	"github.com/ShayCichocki/switchboard/internal/llm"
	"github.com/ShayCichocki/switchboard/internal/orchestrator"
	"github.com/ShayCichocki/switchboard/internal/registry"
	"github.com/ShayCichocki/switchboard/internal/workers"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

func sampleSummary() Summary {
	started := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return Summary{
		GeneratedAt: started.Add(time.Minute),
		TotalCost:   decimal.RequireFromString("0.105"),
		TotalUnits:  2500,
		PerLevel: map[models.Tier]models.UsageRecord{
			models.TierExecutive: {Tier: models.TierExecutive, ModelName: "gpt-4", InputUnits: 1500, OutputUnits: 1000, RequestCount: 2, Cost: decimal.RequireFromString("0.105")},
		},
		PerWorker: map[string]models.UsageRecord{
			"x": {Tier: models.TierExecutive, WorkerID: "x", ModelName: "gpt-4", InputUnits: 1500, OutputUnits: 1000, RequestCount: 2, Cost: decimal.RequireFromString("0.105")},
		},
		ByModel: []models.UsageRow{
			{Tier: models.TierExecutive, Model: "gpt-4", InputUnits: 1500, OutputUnits: 1000, RequestCount: 2, Cost: decimal.RequireFromString("0.105")},
			{Tier: models.TierOperational, Model: models.FallbackModel, RequestCount: 1, Cost: decimal.Zero},
		},
		Capacity: registry.CapacitySnapshot{
			Utilization: 0.25,
			Available:   1,
			Workers: []models.WorkerDescriptor{
				{WorkerID: "x", Tier: models.TierExecutive, Capacity: 4, CurrentLoad: 1, HistoricalSuccessRate: 0.9},
			},
		},
		PipelineRuns: []models.PipelineRun{{
			ID:            "run-0001",
			Name:          "enterprise_sales",
			PlannedStages: 2,
			Status:        models.RunAborted,
			SuccessRate:   0.5,
			StartedAt:     started,
			FinishedAt:    started.Add(time.Second),
			BusinessValue: models.BusinessValue{Amount: decimal.NewFromInt(1000), Realized: true, Degraded: true, SourceStage: "qualify"},
			Stages: []models.PipelineStage{
				{StageName: "qualify", WorkerID: "x", BusinessAction: "qualify lead", PriorityScore: 500,
					Result: models.ExecutionResult{Status: models.StatusDegraded, Reason: models.ReasonRemoteUnavailable, Payload: models.Payload{"deal_value": 1000.0}, Attempts: 1}},
				{StageName: "assess", WorkerID: "x", Result: models.ExecutionResult{Status: models.StatusFailure, ErrorKind: models.ErrorKindInvalid, Message: "missing company"}},
			},
		}},
		Budget: BudgetSummary{Limit: decimal.NewFromInt(10), Used: decimal.RequireFromString("0.105"), Status: "OK"},
	}
}

func TestJSONRoundTrip(t *testing.T) {
	in := sampleSummary()
	path := filepath.Join(t.TempDir(), "out", JSONFileName)
	if err := SaveJSON(path, in); err != nil {
		t.Fatalf("SaveJSON() error = %v", err)
	}
	out, err := LoadJSON(path)
	if err != nil {
		t.Fatalf("LoadJSON() error = %v", err)
	}
	if !out.TotalCost.Equal(in.TotalCost) {
		t.Errorf("TotalCost = %s, want %s", out.TotalCost, in.TotalCost)
	}
	if got := out.PerWorker["x"]; got.InputUnits != 1500 || got.OutputUnits != 1000 || got.RequestCount != 2 {
		t.Errorf("PerWorker[x] = %+v", got)
	}
	if len(out.PipelineRuns) != 1 || out.PipelineRuns[0].Stages[1].Result.ErrorKind != models.ErrorKindInvalid {
		t.Errorf("PipelineRuns = %+v", out.PipelineRuns)
	}
	if !out.GeneratedAt.Equal(in.GeneratedAt) {
		t.Errorf("GeneratedAt = %v, want %v", out.GeneratedAt, in.GeneratedAt)
	}
}

func TestReadJSONRejectsGarbage(t *testing.T) {
	if _, err := ReadJSON(strings.NewReader("{not json")); err == nil {
		t.Error("ReadJSON() error = nil, want decode error")
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleSummary().ByModel); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	want := "tier,model,input_units,output_units,cost,request_count\n" +
		"executive,gpt-4,1500,1000,0.105000,2\n" +
		"operational,local-fallback,0,0,0.000000,1\n"
	if buf.String() != want {
		t.Errorf("WriteCSV() =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestStoreSaveAndQuery(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), SQLiteFileName))
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	defer store.Close()

	sum := sampleSummary()
	first, err := store.Save(sum)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	sum.GeneratedAt = sum.GeneratedAt.Add(time.Hour)
	second, err := store.Save(sum)
	if err != nil {
		t.Fatalf("Save() second snapshot error = %v", err)
	}

	latest, err := store.Latest()
	if err != nil || latest != second {
		t.Errorf("Latest() = %q, %v; want %q", latest, err, second)
	}

	rows, err := store.UsageRows(first)
	if err != nil {
		t.Fatalf("UsageRows() error = %v", err)
	}
	if len(rows) != 2 || rows[0].Model != "gpt-4" || !rows[0].Cost.Equal(decimal.RequireFromString("0.105")) {
		t.Errorf("UsageRows() = %+v", rows)
	}

	runs, err := store.Runs(first)
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("len(Runs()) = %d, want 1", len(runs))
	}
	r := runs[0]
	if r.Status != models.RunAborted || r.StageCount != 2 || !r.Realized || !r.Value.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("run = %+v", r)
	}
	if !r.StartedAt.Equal(sum.PipelineRuns[0].StartedAt) {
		t.Errorf("StartedAt = %v", r.StartedAt)
	}
}

func TestStoreReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), SQLiteFileName)
	store, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	id, err := store.Save(sampleSummary())
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	store.Close()

	store, err = OpenStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer store.Close()
	if latest, _ := store.Latest(); latest != id {
		t.Errorf("Latest() after reopen = %q, want %q", latest, id)
	}
}

func TestRender(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	if err := Render(&buf, sampleSummary()); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"gpt-4", "local-fallback", "enterprise_sales", "aborted", "$1000.00*", "1/4", "$0.1050", "budget OK"} {
		if !strings.Contains(out, want) {
			t.Errorf("Render() output missing %q:\n%s", want, out)
		}
	}
}

func TestBuildFromOfflineOrchestrator(t *testing.T) {
	o, err := orchestrator.New(workers.Catalogue(llm.Offline{}),
		orchestrator.WithExecution(agent.Config{MaxAttempts: 1, Backoff: agent.NoBackoff{}}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer o.Close()
	go func() {
		for range o.Events() {
		}
	}()

	run, err := o.RunPipeline(context.Background(), "enterprise_sales", workers.SamplePayload())
	if err != nil {
		t.Fatalf("RunPipeline() error = %v", err)
	}
	if run.Status != models.RunCompleted {
		t.Errorf("run status = %s, want completed", run.Status)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sum := Build(o, now)
	if !sum.GeneratedAt.Equal(now) {
		t.Errorf("GeneratedAt = %v", sum.GeneratedAt)
	}
	if !sum.TotalCost.IsZero() {
		t.Errorf("TotalCost = %s, want 0 for fallback-only work", sum.TotalCost)
	}
	if len(sum.PipelineRuns) != 1 || sum.DegradedStages() != 4 {
		t.Errorf("runs = %d, degraded stages = %d", len(sum.PipelineRuns), sum.DegradedStages())
	}
	if rec := sum.PerWorker["lead_qualification"]; rec.RequestCount != 1 || rec.ModelName != models.FallbackModel {
		t.Errorf("PerWorker[lead_qualification] = %+v", rec)
	}
	if len(sum.Capacity.Workers) != len(workers.Specs()) {
		t.Errorf("capacity workers = %d, want %d", len(sum.Capacity.Workers), len(workers.Specs()))
	}
	if ids := sum.WorkerIDs(); len(ids) != 4 {
		t.Errorf("WorkerIDs() = %v, want the 4 stage workers", ids)
	}
}
