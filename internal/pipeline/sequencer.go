package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ShayCichocki/switchboard/internal/registry"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

// PreviousStageKey holds the name of the stage that produced the carried payload.
const PreviousStageKey = "previous_stage"

// Dispatcher routes and executes one task. A non-empty workerID bypasses
// routing.
type Dispatcher interface {
	Dispatch(ctx context.Context, task models.TaskDescriptor, workerID string) (models.RoutingDecision, models.ExecutionResult)
}

// WorkerSet reports which worker ids are registered.
type WorkerSet interface {
	Has(workerID string) bool
}

// Observer is notified as a run progresses.
type Observer interface {
	StageFinished(runID string, stage models.PipelineStage)
	RunFinished(run models.PipelineRun)
}

// Pipeline is a validated definition ready to run.
type Pipeline struct {
	def        Definition
	dispatcher Dispatcher
	estimator  ValueEstimator
	observer   Observer
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithEstimator sets the business value estimator.
func WithEstimator(e ValueEstimator) Option {
	return func(p *Pipeline) { p.estimator = e }
}

// WithObserver sets the progress observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithIDGenerator sets the run id generator.
func WithIDGenerator(f func() string) Option {
	return func(p *Pipeline) { p.newID = f }
}

// Build validates def against the registered workers. Any error wraps
// ErrInvalidDefinition and no stage has run.
func Build(def Definition, workers WorkerSet, dispatcher Dispatcher, opts ...Option) (*Pipeline, error) {
	if err := validate(def, workers); err != nil {
		return nil, err
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("%w: no dispatcher", ErrInvalidDefinition)
	}
	p := &Pipeline{
		def:        def,
		dispatcher: dispatcher,
		estimator:  FieldEstimator{},
		logger:     zap.NewNop(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("pipeline").With(zap.String("pipeline", def.Name))
	return p, nil
}

func validate(def Definition, workers WorkerSet) error {
	if def.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDefinition)
	}
	if len(def.Stages) == 0 {
		return fmt.Errorf("%w: %s has no stages", ErrInvalidDefinition, def.Name)
	}
	seen := make(map[string]bool, len(def.Stages))
	for i, s := range def.Stages {
		if s.Name == "" {
			return fmt.Errorf("%w: stage %d has no name", ErrInvalidDefinition, i+1)
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: duplicate stage %q", ErrInvalidDefinition, s.Name)
		}
		seen[s.Name] = true
		if !s.TaskType.Valid() {
			return fmt.Errorf("%w: stage %q: unknown task type %q", ErrInvalidDefinition, s.Name, s.TaskType)
		}
		if s.WorkerID != "" && (workers == nil || !workers.Has(s.WorkerID)) {
			return fmt.Errorf("%w: stage %q: %w: %s", ErrInvalidDefinition, s.Name, registry.ErrWorkerNotFound, s.WorkerID)
		}
		if err := s.Gate.Validate(); err != nil {
			return fmt.Errorf("%w: stage %q: %v", ErrInvalidDefinition, s.Name, err)
		}
	}
	return nil
}

// Definition returns the definition the pipeline was built from.
func (p *Pipeline) Definition() Definition {
	return p.def
}

// Run executes the stages in order and always returns a finalized run.
func (p *Pipeline) Run(ctx context.Context, input models.Payload) models.PipelineRun {
	run := models.PipelineRun{
		ID:            p.newID(),
		Name:          p.def.Name,
		PlannedStages: len(p.def.Stages),
		Status:        models.RunCompleted,
		StartedAt:     p.now(),
	}
	logger := p.logger.With(zap.String("run", run.ID))
	logger.Info("pipeline started", zap.Int("stages", run.PlannedStages))

	carried := input.Clone()
	last := len(p.def.Stages) - 1

	for i, sd := range p.def.Stages {
		task := p.stageTask(run.ID, sd, carried)
		decision, res := p.dispatch(ctx, task, sd.WorkerID)

		stage := models.PipelineStage{
			StageName:      sd.Name,
			WorkerID:       res.WorkerID,
			BusinessAction: sd.BusinessAction,
			Result:         res,
			NextActionHint: sd.NextActionHint,
			PriorityScore:  decision.PriorityScore,
		}
		if stage.WorkerID == "" {
			stage.WorkerID = decision.TargetWorkerID
		}
		run.Stages = append(run.Stages, stage)
		if p.observer != nil {
			p.observer.StageFinished(run.ID, stage)
		}

		allowed := sd.Gate.Allows(res)
		logger.Info("stage finished",
			zap.String("stage", sd.Name),
			zap.String("worker", stage.WorkerID),
			zap.String("status", string(res.Status)),
			zap.Bool("gate", allowed))

		if res.Status == models.StatusFailure {
			run.Status = models.RunAborted
			break
		}
		if i == last {
			break
		}
		if res.Status == models.StatusDegraded && !sd.continueOnDegraded() {
			run.Status = models.RunHalted
			break
		}
		if !allowed {
			run.Status = models.RunHalted
			break
		}

		for k, v := range res.Payload {
			carried[k] = v
		}
		carried[PreviousStageKey] = sd.Name
	}

	p.finalize(&run)
	logger.Info("pipeline finished",
		zap.String("status", string(run.Status)),
		zap.Float64("success_rate", run.SuccessRate),
		zap.String("value", run.BusinessValue.Amount.String()))
	if p.observer != nil {
		p.observer.RunFinished(run)
	}
	return run
}

func (p *Pipeline) stageTask(runID string, sd StageDefinition, carried models.Payload) models.TaskDescriptor {
	payload := sd.Payload.Clone()
	for k, v := range carried {
		payload[k] = v
	}
	hint := models.PriorityNormal
	if sd.Critical {
		hint = models.PriorityCritical
	}
	return models.TaskDescriptor{
		ID:           runID + "/" + sd.Name,
		TaskType:     sd.TaskType,
		PriorityHint: hint,
		Payload:      payload,
	}
}

// dispatch shields the run from a panicking dispatcher.
func (p *Pipeline) dispatch(ctx context.Context, task models.TaskDescriptor, workerID string) (decision models.RoutingDecision, res models.ExecutionResult) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("dispatch panicked", zap.String("task", task.ID), zap.Any("panic", rec))
			res = models.Failure(models.ErrorKindUnavailable, fmt.Sprintf("dispatch panicked: %v", rec))
			res.WorkerID = workerID
		}
	}()
	return p.dispatcher.Dispatch(ctx, task, workerID)
}

func (p *Pipeline) finalize(run *models.PipelineRun) {
	usable := 0
	for _, s := range run.Stages {
		if s.Result.Usable() {
			usable++
		}
	}
	if run.PlannedStages > 0 {
		run.SuccessRate = float64(usable) / float64(run.PlannedStages)
	}
	run.BusinessValue = estimate(p.estimator, run.Stages, run.Status)
	run.FinishedAt = p.now()
}
