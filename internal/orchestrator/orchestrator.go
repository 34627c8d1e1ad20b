package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ShayCichocki/switchboard/internal/agent"
	"github.com/ShayCichocki/switchboard/internal/pipeline"
	"github.com/ShayCichocki/switchboard/internal/registry"
	"github.com/ShayCichocki/switchboard/internal/router"
	"github.com/ShayCichocki/switchboard/internal/usage"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

// ErrUnknownPipeline is returned when a pipeline name has no definition.
var ErrUnknownPipeline = errors.New("unknown pipeline")

// ErrClosed is returned by operations on a closed Orchestrator.
var ErrClosed = errors.New("orchestrator closed")

// Orchestrator is the context object that owns the registry, router,
// execution wrapper, usage tracker and pipelines for one process run.
type Orchestrator struct {
	registry *registry.Registry
	router   *router.Router
	wrapper  *agent.Wrapper
	tracker  *usage.Tracker
	budget   *BudgetHandler
	emitter  *EventEmitter
	logger   *zap.Logger
	opts     orchestratorOptions

	mu     sync.RWMutex
	runs   []models.PipelineRun
	closed bool
}

// New registers the workers and wires every component together.
func New(workers []agent.Worker, opts ...Option) (*Orchestrator, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.prices.Validate(); err != nil {
		return nil, fmt.Errorf("invalid price table: %w", err)
	}
	logger := o.logger.Named("orchestrator")

	reg := registry.New(o.logger)
	tracker := usage.NewTracker(usage.WithPrices(o.prices), usage.WithOutcomeObserver(reg))
	budget := NewBudgetHandler(o.costLimit, tracker)
	budget.SetWarningThreshold(o.warningThreshold)

	orch := &Orchestrator{
		registry: reg,
		tracker:  tracker,
		budget:   budget,
		emitter:  NewEventEmitter(o.eventBuffer, logger),
		logger:   logger,
		opts:     o,
	}
	budget.OnChange(orch.onBudgetChange)

	orch.wrapper = agent.NewWrapper(o.execution,
		agent.WithUsageSink(tracker),
		agent.WithSpendGate(budget),
		agent.WithObserver(orch),
		agent.WithWrapperLogger(o.logger))

	for _, w := range workers {
		desc := w.Descriptor()
		if c, ok := o.capacityOverrides[desc.WorkerID]; ok {
			desc.Capacity = c
		}
		if err := reg.Register(desc); err != nil {
			return nil, fmt.Errorf("register worker %s: %w", desc.WorkerID, err)
		}
		orch.wrapper.Add(w)
	}

	orch.router = router.New(reg,
		router.WithTable(o.table),
		router.WithScorer(o.scorer),
		router.WithClock(o.clock),
		router.WithLogger(o.logger))

	logger.Info("orchestrator ready",
		zap.Int("workers", reg.Count()),
		zap.Int("pipelines", len(o.pipelines)),
		zap.String("cost_limit", o.costLimit.String()))
	return orch, nil
}

// Registry returns the worker registry.
func (o *Orchestrator) Registry() *registry.Registry { return o.registry }

// Router returns the task router.
func (o *Orchestrator) Router() *router.Router { return o.router }

// Tracker returns the usage tracker.
func (o *Orchestrator) Tracker() *usage.Tracker { return o.tracker }

// Budget returns the cost budget handler.
func (o *Orchestrator) Budget() *BudgetHandler { return o.budget }

// Events returns the event stream. It is closed by Close.
func (o *Orchestrator) Events() <-chan Event { return o.emitter.Events() }

// Route returns the routing decision for a task without executing it.
func (o *Orchestrator) Route(task models.TaskDescriptor) models.RoutingDecision {
	return o.router.Route(task)
}

// Submit routes and executes a single task.
func (o *Orchestrator) Submit(ctx context.Context, task models.TaskDescriptor) (models.RoutingDecision, models.ExecutionResult) {
	return o.Dispatch(ctx, task, "")
}

// Dispatch routes the task (or pins it to workerID), reserves a load slot
// and runs it through the execution wrapper. It implements pipeline.Dispatcher.
func (o *Orchestrator) Dispatch(ctx context.Context, task models.TaskDescriptor, workerID string) (models.RoutingDecision, models.ExecutionResult) {
	var decision models.RoutingDecision
	if workerID == "" {
		decision = o.router.Route(task)
	} else {
		decision = o.router.RouteTo(task, workerID)
	}
	o.emitter.Emit(Event{
		Type:          EventTaskRouted,
		TaskID:        task.ID,
		WorkerID:      decision.TargetWorkerID,
		PriorityScore: decision.PriorityScore,
	})

	// Execution uses the resolved task type so workers see what was routed.
	routed := task
	routed.TaskType = decision.TaskType

	var res models.ExecutionResult
	release, err := o.router.Reserve(ctx, decision, o.opts.waitForCapacity)
	switch {
	case errors.Is(err, registry.ErrWorkerNotFound):
		res = o.wrapper.Execute(ctx, decision.TargetWorkerID, routed)
	case err != nil:
		o.logger.Warn("no load slot available",
			zap.String("task", task.ID),
			zap.String("worker", decision.TargetWorkerID),
			zap.Error(err))
		res = o.wrapper.Degrade(decision.TargetWorkerID, routed, models.ReasonAtCapacity)
	default:
		res = o.wrapper.Execute(ctx, decision.TargetWorkerID, routed)
		release()
	}

	o.emitter.Emit(Event{
		Type:     EventTaskCompleted,
		TaskID:   task.ID,
		WorkerID: decision.TargetWorkerID,
		Message:  string(res.Status),
		Cost:     o.tracker.TotalCost(),
	})
	return decision, res
}

// Pipelines returns the names of the known pipelines.
func (o *Orchestrator) Pipelines() []string {
	return pipeline.Names(o.opts.pipelines)
}

// Pipeline returns the named definition.
func (o *Orchestrator) Pipeline(name string) (pipeline.Definition, bool) {
	def, ok := o.opts.pipelines[name]
	return def, ok
}

// BuildPipeline validates a definition against the registered workers.
func (o *Orchestrator) BuildPipeline(def pipeline.Definition) (*pipeline.Pipeline, error) {
	return pipeline.Build(def, o.registry, o,
		pipeline.WithEstimator(o.opts.estimator),
		pipeline.WithObserver(o),
		pipeline.WithLogger(o.logger),
		pipeline.WithClock(o.opts.clock))
}

// RunPipeline builds and runs the named pipeline. Only construction errors
// are returned; a started run always produces a finalized result.
func (o *Orchestrator) RunPipeline(ctx context.Context, name string, input models.Payload) (models.PipelineRun, error) {
	if o.isClosed() {
		return models.PipelineRun{}, ErrClosed
	}
	def, ok := o.opts.pipelines[name]
	if !ok {
		return models.PipelineRun{}, fmt.Errorf("%w: %s", ErrUnknownPipeline, name)
	}
	p, err := o.BuildPipeline(def)
	if err != nil {
		return models.PipelineRun{}, err
	}
	run := p.Run(ctx, input)

	o.mu.Lock()
	o.runs = append(o.runs, run)
	o.mu.Unlock()
	return run, nil
}

// Runs returns a copy of all finished pipeline runs.
func (o *Orchestrator) Runs() []models.PipelineRun {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]models.PipelineRun(nil), o.runs...)
}

// Close tears down the orchestrator. Events emitted afterwards are dropped.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	o.emitter.Close()
	o.logger.Info("orchestrator closed",
		zap.String("total_cost", o.tracker.TotalCost().String()),
		zap.Int64("total_units", o.tracker.TotalUnits()),
		zap.Uint64("dropped_events", o.emitter.DroppedCount()))
	return nil
}

func (o *Orchestrator) isClosed() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.closed
}

// OnTransition implements agent.Observer.
func (o *Orchestrator) OnTransition(workerID string, from, to agent.State, err error) {
	switch {
	case to == agent.StateRetrying:
		o.emitter.Emit(Event{Type: EventAttemptFailed, WorkerID: workerID, Error: err, Message: "retrying"})
	case to == agent.StateFallbackTriggered:
		if from == agent.StateAttempting || from == agent.StateRetrying {
			o.emitter.Emit(Event{Type: EventAttemptFailed, WorkerID: workerID, Error: err, Message: "giving up"})
		}
		o.emitter.Emit(Event{Type: EventFallbackTriggered, WorkerID: workerID, Error: err})
	}
}

// StageFinished implements pipeline.Observer.
func (o *Orchestrator) StageFinished(runID string, stage models.PipelineStage) {
	typ := EventStageCompleted
	if !stage.Result.Usable() {
		typ = EventStageFailed
	}
	o.emitter.Emit(Event{
		Type:     typ,
		RunID:    runID,
		Stage:    stage.StageName,
		WorkerID: stage.WorkerID,
		Message:  string(stage.Result.Status),
	})
}

// RunFinished implements pipeline.Observer.
func (o *Orchestrator) RunFinished(run models.PipelineRun) {
	o.emitter.Emit(Event{
		Type:    EventPipelineDone,
		RunID:   run.ID,
		Message: fmt.Sprintf("%s: %s (%.0f%%)", run.Name, run.Status, run.SuccessRate*100),
		Cost:    o.tracker.TotalCost(),
	})
}

func (o *Orchestrator) onBudgetChange(status BudgetStatus, used decimal.Decimal) {
	switch status {
	case BudgetWarning:
		o.logger.Warn("cost budget warning", zap.String("used", used.String()))
		o.emitter.Emit(Event{Type: EventBudgetWarning, Cost: used})
	case BudgetExhausted:
		o.logger.Warn("cost budget exhausted, remote calls disabled", zap.String("used", used.String()))
		o.emitter.Emit(Event{Type: EventBudgetExhausted, Cost: used})
	}
}
