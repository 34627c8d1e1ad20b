package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ShayCichocki/switchboard/internal/agent"
	"github.com/ShayCichocki/switchboard/internal/pipeline"
	"github.com/ShayCichocki/switchboard/internal/router"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

type stubWorker struct {
	desc    models.WorkerDescriptor
	payload models.Payload
	err     error
	delay   time.Duration
	calls   atomic.Int32
	active  atomic.Int32
	peak    atomic.Int32
}

func (s *stubWorker) Descriptor() models.WorkerDescriptor { return s.desc }

func (s *stubWorker) ProcessTask(ctx context.Context, _ models.TaskDescriptor) (*agent.Response, error) {
	s.calls.Add(1)
	n := s.active.Add(1)
	defer s.active.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &agent.Response{Payload: s.payload.Clone(), InputTokens: 1000, OutputTokens: 500}, nil
}

func (s *stubWorker) FallbackCompute(models.TaskDescriptor) models.Payload {
	return models.Payload{"fallback": true}
}

func stub(id string, tier models.Tier, payload models.Payload) *stubWorker {
	return &stubWorker{
		desc: models.WorkerDescriptor{
			WorkerID:              id,
			Tier:                  tier,
			Capacity:              2,
			AvgProcessingTime:     time.Second,
			HistoricalSuccessRate: 0.9,
			Model:                 "gpt-4",
		},
		payload: payload,
	}
}

func fastExecution() agent.Config {
	return agent.Config{MaxAttempts: 2, Backoff: agent.NoBackoff{}, Timeouts: agent.Timeouts{
		models.TierExecutive:   time.Second,
		models.TierManagement:  time.Second,
		models.TierOperational: time.Second,
	}}
}

// drain consumes events so none are dropped on a full buffer.
func drain(o *Orchestrator) <-chan []Event {
	out := make(chan []Event, 1)
	go func() {
		var all []Event
		for e := range o.Events() {
			all = append(all, e)
		}
		out <- all
	}()
	return out
}

func newTestOrchestrator(t *testing.T, workers []agent.Worker, opts ...Option) *Orchestrator {
	t.Helper()
	opts = append([]Option{WithExecution(fastExecution())}, opts...)
	o, err := New(workers, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

func TestSubmitRoutesAndTracksUsage(t *testing.T) {
	bdd := stub("business_development_director", models.TierExecutive, models.Payload{"deal_value": 5000.0})
	lead := stub("lead_qualification", models.TierOperational, nil)
	o := newTestOrchestrator(t, []agent.Worker{bdd, lead})
	events := drain(o)

	decision, res := o.Submit(context.Background(), models.TaskDescriptor{
		ID:       "t1",
		TaskType: models.TaskTypeEnterpriseAssessment,
	})

	if decision.TargetWorkerID != "business_development_director" {
		t.Errorf("TargetWorkerID = %q", decision.TargetWorkerID)
	}
	if res.Status != models.StatusSuccess || res.Payload["deal_value"] != 5000.0 {
		t.Errorf("result = %+v", res)
	}

	rec := o.Tracker().ByWorker()["business_development_director"]
	if rec.InputUnits != 1000 || rec.OutputUnits != 500 || rec.RequestCount != 1 {
		t.Errorf("usage = %+v", rec)
	}
	if desc, _ := o.Registry().Lookup("business_development_director"); desc.CurrentLoad != 0 {
		t.Errorf("CurrentLoad after dispatch = %d, want 0", desc.CurrentLoad)
	}
	// 0.9 + 0.1 * (1 - 0.9)
	if desc, _ := o.Registry().Lookup("business_development_director"); desc.HistoricalSuccessRate < 0.909 || desc.HistoricalSuccessRate > 0.911 {
		t.Errorf("HistoricalSuccessRate = %v, want 0.91", desc.HistoricalSuccessRate)
	}

	o.Close()
	got := <-events
	if len(got) < 2 || got[0].Type != EventTaskRouted || got[len(got)-1].Type != EventTaskCompleted {
		t.Errorf("events = %v", eventTypes(got))
	}
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}

func TestSubmitUnknownTypeUsesDefaultWorker(t *testing.T) {
	lead := stub("lead_qualification", models.TierOperational, models.Payload{"qualification_score": 10.0})
	o := newTestOrchestrator(t, []agent.Worker{lead})
	defer o.Close()
	go drain(o)

	decision, res := o.Submit(context.Background(), models.TaskDescriptor{TaskType: "astrology"})
	if decision.TargetWorkerID != "lead_qualification" || !res.Usable() {
		t.Errorf("decision = %+v, result = %+v", decision, res)
	}
}

func TestTransientFailuresEmitFallbackEvents(t *testing.T) {
	flaky := stub("seo_specialist", models.TierOperational, nil)
	flaky.err = agent.Transient(errors.New("529 overloaded"))
	o := newTestOrchestrator(t, []agent.Worker{flaky})
	events := drain(o)

	_, res := o.Submit(context.Background(), models.TaskDescriptor{TaskType: models.TaskTypeSEOAudit})
	o.Close()

	if res.Status != models.StatusDegraded || res.Reason != models.ReasonRemoteUnavailable {
		t.Errorf("result = %+v, want degraded", res)
	}
	counts := map[EventType]int{}
	for _, e := range <-events {
		counts[e.Type]++
	}
	if counts[EventAttemptFailed] != 2 || counts[EventFallbackTriggered] != 1 {
		t.Errorf("event counts = %v, want 2 attempt_failed and 1 fallback_triggered", counts)
	}
}

func TestBudgetExhaustionDegrades(t *testing.T) {
	w := stub("seo_specialist", models.TierOperational, models.Payload{})
	// 1000 * 30/1M + 500 * 60/1M = 0.06 per call
	o := newTestOrchestrator(t, []agent.Worker{w}, WithCostBudget(decimal.RequireFromString("0.05"), 0))
	defer o.Close()
	go drain(o)

	_, first := o.Submit(context.Background(), models.TaskDescriptor{TaskType: models.TaskTypeSEOAudit})
	_, second := o.Submit(context.Background(), models.TaskDescriptor{TaskType: models.TaskTypeSEOAudit})

	if first.Status != models.StatusSuccess {
		t.Errorf("first = %s, want success", first.Status)
	}
	if second.Status != models.StatusDegraded || second.Reason != models.ReasonBudgetExhausted {
		t.Errorf("second = %+v, want budget_exhausted", second)
	}
	if w.calls.Load() != 1 {
		t.Errorf("remote calls = %d, want 1", w.calls.Load())
	}
}

func TestDispatchRespectsCapacity(t *testing.T) {
	w := stub("content_creator", models.TierOperational, models.Payload{})
	w.delay = 20 * time.Millisecond
	o := newTestOrchestrator(t, []agent.Worker{w}, WithCapacityOverrides(map[string]int{"content_creator": 1}))
	defer o.Close()
	go drain(o)

	results, err := o.Probe(context.Background(), nil)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}

	done := make(chan struct{})
	for i := 0; i < 4; i++ {
		go func() {
			o.Submit(context.Background(), models.TaskDescriptor{TaskType: models.TaskTypeContentCreation})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}
	if w.peak.Load() != 1 {
		t.Errorf("peak concurrency = %d, want 1", w.peak.Load())
	}
}

func TestDispatchWithoutWaitingDegradesWhenFull(t *testing.T) {
	w := stub("content_creator", models.TierOperational, models.Payload{})
	o := newTestOrchestrator(t, []agent.Worker{w},
		WithCapacityOverrides(map[string]int{"content_creator": 1}),
		WithWaitForCapacity(false))
	defer o.Close()
	go drain(o)

	if err := o.Registry().TryAcquire("content_creator"); err != nil {
		t.Fatal(err)
	}
	_, res := o.Submit(context.Background(), models.TaskDescriptor{TaskType: models.TaskTypeContentCreation})
	o.Registry().Release("content_creator")

	if res.Status != models.StatusDegraded || res.Reason != models.ReasonAtCapacity {
		t.Errorf("result = %+v, want at_capacity degradation", res)
	}
}

func TestProbeCoversEveryWorker(t *testing.T) {
	workers := []agent.Worker{
		stub("lead_qualification", models.TierOperational, models.Payload{}),
		stub("seo_specialist", models.TierOperational, models.Payload{}),
		stub("chief_strategy_officer", models.TierExecutive, models.Payload{}),
		stub("unlisted_worker", models.TierManagement, models.Payload{}),
	}
	o := newTestOrchestrator(t, workers, WithProbeConcurrency(2))
	defer o.Close()
	go drain(o)

	results, err := o.Probe(context.Background(), models.Payload{"company": "Acme"})
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	want := map[string]models.TaskType{
		"chief_strategy_officer": models.TaskTypeStrategicPlanning,
		"lead_qualification":     models.TaskTypeLeadQualification,
		"seo_specialist":         models.TaskTypeSEOAudit,
		"unlisted_worker":        models.TaskTypeDefault,
	}
	if len(results) != len(want) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(want))
	}
	for i := 1; i < len(results); i++ {
		if results[i-1].WorkerID >= results[i].WorkerID {
			t.Errorf("results not sorted: %s before %s", results[i-1].WorkerID, results[i].WorkerID)
		}
	}
	for _, r := range results {
		if r.Decision.TargetWorkerID != r.WorkerID {
			t.Errorf("%s probed via %s", r.WorkerID, r.Decision.TargetWorkerID)
		}
		if r.Decision.TaskType != want[r.WorkerID] {
			t.Errorf("%s task type = %s, want %s", r.WorkerID, r.Decision.TaskType, want[r.WorkerID])
		}
		if r.Result.Status != models.StatusSuccess {
			t.Errorf("%s status = %s", r.WorkerID, r.Result.Status)
		}
	}
}

func TestRunPipeline(t *testing.T) {
	workers := []agent.Worker{
		stub("lead_qualification", models.TierOperational, models.Payload{"qualification_score": 80.0}),
		stub("business_development_director", models.TierExecutive, models.Payload{"deal_value": 120000.0, "recommendation": "pursue"}),
		stub("pricing_analyst", models.TierOperational, models.Payload{"contract_value": 90000.0}),
		stub("proposal_writer", models.TierManagement, models.Payload{"proposal_id": "p-9"}),
	}
	o := newTestOrchestrator(t, workers)
	events := drain(o)

	run, err := o.RunPipeline(context.Background(), "enterprise_sales", models.Payload{"company": "Acme"})
	if err != nil {
		t.Fatalf("RunPipeline() error = %v", err)
	}
	o.Close()

	if run.Status != models.RunCompleted || run.SuccessRate != 1 || len(run.Stages) != 4 {
		t.Fatalf("run = %s at %v with %d stages", run.Status, run.SuccessRate, len(run.Stages))
	}
	if !run.BusinessValue.Amount.Equal(decimal.NewFromInt(90000)) || run.BusinessValue.SourceStage != "price" {
		t.Errorf("BusinessValue = %+v, want 90000 from price", run.BusinessValue)
	}
	if len(o.Runs()) != 1 {
		t.Errorf("len(Runs()) = %d, want 1", len(o.Runs()))
	}

	var stagesDone, pipelinesDone int
	for _, e := range <-events {
		switch e.Type {
		case EventStageCompleted:
			stagesDone++
		case EventPipelineDone:
			pipelinesDone++
		}
	}
	if stagesDone != 4 || pipelinesDone != 1 {
		t.Errorf("stage events = %d, pipeline events = %d", stagesDone, pipelinesDone)
	}
}

func TestRunPipelineConstructionErrors(t *testing.T) {
	o := newTestOrchestrator(t, []agent.Worker{stub("lead_qualification", models.TierOperational, nil)},
		WithPipelines(map[string]pipeline.Definition{
			"pinned": {Name: "pinned", Stages: []pipeline.StageDefinition{
				{Name: "a", TaskType: models.TaskTypeSEOAudit, WorkerID: "ghost"},
			}},
		}))
	defer o.Close()

	if _, err := o.RunPipeline(context.Background(), "nope", nil); !errors.Is(err, ErrUnknownPipeline) {
		t.Errorf("RunPipeline(nope) error = %v, want ErrUnknownPipeline", err)
	}
	if _, err := o.RunPipeline(context.Background(), "pinned", nil); !errors.Is(err, pipeline.ErrInvalidDefinition) {
		t.Errorf("RunPipeline(pinned) error = %v, want ErrInvalidDefinition", err)
	}
	if len(o.Runs()) != 0 {
		t.Errorf("len(Runs()) = %d, want 0", len(o.Runs()))
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	dup := []agent.Worker{
		stub("a", models.TierOperational, nil),
		stub("a", models.TierOperational, nil),
	}
	if _, err := New(dup); err == nil {
		t.Error("New() with duplicate workers should fail")
	}

	bad := stub("b", models.TierOperational, nil)
	if _, err := New([]agent.Worker{bad}, WithCapacityOverrides(map[string]int{"b": 0})); err == nil {
		t.Error("New() with zero capacity should fail")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	o := newTestOrchestrator(t, nil, WithRoutingTable(router.DefaultTable()))
	if err := o.Close(); err != nil {
		t.Fatal(err)
	}
	if err := o.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := o.Probe(context.Background(), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Probe() after Close error = %v, want ErrClosed", err)
	}
	// Emitting after close must not panic.
	o.StageFinished("r", models.PipelineStage{})
}
