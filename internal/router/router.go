// Package router selects a worker for each task and computes its priority.
package router

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// WorkerSource is the part of the registry the router depends on.
type WorkerSource interface {
	Lookup(workerID string) (models.WorkerDescriptor, error)
	Acquire(ctx context.Context, workerID string) error
	TryAcquire(workerID string) error
	Release(workerID string)
}

// Router maps tasks to workers. Route never fails: unknown task types and
// unregistered targets degrade to the default worker.
type Router struct {
	workers    WorkerSource
	table      Table
	scorer     Scorer
	classifier *Classifier
	now        func() time.Time
	logger     *zap.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithTable replaces the reference routing table.
func WithTable(t Table) Option {
	return func(r *Router) { r.table = t }
}

// WithScorer replaces the payload scorer.
func WithScorer(s Scorer) Option {
	return func(r *Router) { r.scorer = s }
}

// WithClassifier replaces the keyword classifier. A nil classifier disables
// classification.
func WithClassifier(c *Classifier) Option {
	return func(r *Router) { r.classifier = c }
}

// WithClock sets the time source used for completion estimates.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New creates a Router over the given worker source.
func New(workers WorkerSource, opts ...Option) *Router {
	r := &Router{
		workers:    workers,
		table:      DefaultTable(),
		scorer:     PayloadScorer{},
		classifier: NewClassifier(),
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("router")
	return r
}

// Table returns the routing table in use.
func (r *Router) Table() Table {
	return r.table
}

// Route classifies the task, picks the target worker and scores its priority.
func (r *Router) Route(task models.TaskDescriptor) models.RoutingDecision {
	taskType := task.TaskType
	classified := false
	if !taskType.Valid() || taskType == models.TaskTypeDefault {
		if r.classifier != nil {
			if tt, ok := r.classifier.Classify(task.Payload); ok {
				taskType = tt
				classified = true
			}
		}
		if !taskType.Valid() {
			taskType = models.TaskTypeDefault
		}
	}

	target := r.table.Target(taskType)
	desc, err := r.workers.Lookup(target)
	if err != nil {
		fallback := r.table.Target(models.TaskTypeDefault)
		r.logger.Warn("routing target not registered, using default",
			zap.String("task_type", string(taskType)),
			zap.String("target", target),
			zap.String("default", fallback))
		target = fallback
		desc, err = r.workers.Lookup(target)
		if err != nil {
			r.logger.Warn("default worker not registered", zap.String("worker", target))
		}
	}

	signals := r.signals(task)
	decision := models.RoutingDecision{
		TaskType:            taskType,
		TargetWorkerID:      target,
		PriorityScore:       Score(signals),
		EstimatedCompletion: r.now().Add(desc.AvgProcessingTime),
		Classified:          classified,
		Signals:             signals,
	}

	r.logger.Debug("task routed",
		zap.String("task", task.ID),
		zap.String("task_type", string(decision.TaskType)),
		zap.String("worker", decision.TargetWorkerID),
		zap.Int("priority", decision.PriorityScore),
		zap.Bool("classified", classified))
	return decision
}

// RouteTo scores the task for an explicitly chosen worker. Unregistered
// workers still get a decision; execution reports them.
func (r *Router) RouteTo(task models.TaskDescriptor, workerID string) models.RoutingDecision {
	taskType := task.TaskType
	if !taskType.Valid() {
		taskType = models.TaskTypeDefault
	}
	desc, _ := r.workers.Lookup(workerID)
	signals := r.signals(task)
	return models.RoutingDecision{
		TaskType:            taskType,
		TargetWorkerID:      workerID,
		PriorityScore:       Score(signals),
		EstimatedCompletion: r.now().Add(desc.AvgProcessingTime),
		Signals:             signals,
	}
}

// signals runs the scorer, falling back to no signals if it panics.
func (r *Router) signals(task models.TaskDescriptor) (out Signals) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("scorer panicked, using base priority", zap.Any("panic", rec))
			out = Signals{}
		}
	}()
	if r.scorer == nil {
		return Signals{}
	}
	s := r.scorer.Signals(task)
	if s == nil {
		return Signals{}
	}
	return s
}

// Reserve takes one load slot on the decision's target worker. It waits for a
// free slot when wait is true and fails with registry.ErrAtCapacity otherwise.
// The returned func releases the slot and is safe to call once.
func (r *Router) Reserve(ctx context.Context, decision models.RoutingDecision, wait bool) (func(), error) {
	id := decision.TargetWorkerID
	var err error
	if wait {
		err = r.workers.Acquire(ctx, id)
	} else {
		err = r.workers.TryAcquire(id)
	}
	if err != nil {
		return nil, fmt.Errorf("reserve %s: %w", id, err)
	}
	released := false
	return func() {
		if released {
			return
		}
		released = true
		r.workers.Release(id)
	}, nil
}
