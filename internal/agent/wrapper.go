package agent

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// State is a step of the execution state machine.
type State string

const (
	StatePending           State = "pending"
	StateAttempting        State = "attempting"
	StateRetrying          State = "retrying"
	StateSucceeded         State = "succeeded"
	StateFallbackTriggered State = "fallback_triggered"
	StateFailed            State = "failed"
)

// Terminal reports whether no further transition can follow.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFallbackTriggered || s == StateFailed
}

// UsageSink receives one record per terminal transition.
type UsageSink interface {
	Record(tier models.Tier, workerID, model string, inputUnits, outputUnits int64) models.UsageRecord
	ObserveLatency(workerID string, d time.Duration)
	ObserveOutcome(workerID string, ok bool)
}

// SpendGate blocks remote calls once the cost budget is exhausted.
type SpendGate interface {
	CanStartNew() bool
}

// Observer is notified of every state transition.
type Observer interface {
	OnTransition(workerID string, from, to State, err error)
}

// Config controls retries and timeouts. Zero values are replaced with defaults.
type Config struct {
	// MaxAttempts is the total number of remote attempts per execution.
	MaxAttempts int
	// Backoff computes the delay between attempts.
	Backoff BackoffPolicy
	// Timeouts bounds every remote call.
	Timeouts Timeouts
}

// DefaultMaxAttempts is the number of remote attempts when none is configured.
const DefaultMaxAttempts = 3

func (c *Config) fillDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Backoff == nil {
		c.Backoff = DefaultBackoff()
	}
	if c.Timeouts == nil {
		c.Timeouts = DefaultTimeouts()
	}
}

// Wrapper invokes workers inside a retry and fallback envelope.
type Wrapper struct {
	cfg      Config
	workers  map[string]Worker
	usage    UsageSink
	budget   SpendGate
	observer Observer
	logger   *zap.Logger
	mu       sync.RWMutex
}

// WrapperOption configures a Wrapper.
type WrapperOption func(*Wrapper)

// WithUsageSink sets the sink that receives usage records.
func WithUsageSink(s UsageSink) WrapperOption {
	return func(w *Wrapper) { w.usage = s }
}

// WithSpendGate sets the budget gate consulted before remote calls.
func WithSpendGate(g SpendGate) WrapperOption {
	return func(w *Wrapper) { w.budget = g }
}

// WithObserver sets the transition observer.
func WithObserver(o Observer) WrapperOption {
	return func(w *Wrapper) { w.observer = o }
}

// WithWrapperLogger sets the logger.
func WithWrapperLogger(l *zap.Logger) WrapperOption {
	return func(w *Wrapper) { w.logger = l }
}

// NewWrapper creates a Wrapper.
func NewWrapper(cfg Config, opts ...WrapperOption) *Wrapper {
	cfg.fillDefaults()
	w := &Wrapper{
		cfg:     cfg,
		workers: make(map[string]Worker),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named("wrapper")
	return w
}

// Add makes a worker callable by id.
func (w *Wrapper) Add(worker Worker) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.workers[worker.Descriptor().WorkerID] = worker
}

// Worker returns the worker registered under id.
func (w *Wrapper) Worker(id string) (Worker, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	worker, ok := w.workers[id]
	return worker, ok
}

// WorkerIDs returns the ids of all callable workers in sorted order.
func (w *Wrapper) WorkerIDs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ids := make([]string, 0, len(w.workers))
	for id := range w.workers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// machine tracks the current state and the transition trace.
type machine struct {
	workerID string
	state    State
	trace    []string
	observer Observer
}

func (m *machine) to(next State, err error) {
	m.trace = append(m.trace, string(m.state)+"->"+string(next))
	if m.observer != nil {
		m.observer.OnTransition(m.workerID, m.state, next, err)
	}
	m.state = next
}

// Execute runs the task on the worker. It never panics and never returns a
// transient failure: those end in a degraded fallback result.
//
// Every terminal transition of a registered worker emits exactly one usage
// record carrying the units billed across all attempts. An unknown worker id
// has no tier or model to bill against, so it fails as invalid without a
// record.
func (w *Wrapper) Execute(ctx context.Context, workerID string, task models.TaskDescriptor) models.ExecutionResult {
	start := time.Now()
	m := &machine{workerID: workerID, state: StatePending, observer: w.observer}

	worker, ok := w.Worker(workerID)
	if !ok {
		m.to(StateFailed, nil)
		res := models.Failure(models.ErrorKindInvalid, fmt.Sprintf("unknown worker %q", workerID))
		return w.finish(res, m, nil, 0, start, nil)
	}
	desc := worker.Descriptor()
	logger := w.logger.With(zap.String("worker", workerID), zap.String("task", task.ID))
	spent := &billed{}

	if v, ok := worker.(Validator); ok {
		if err := v.Validate(task); err != nil {
			m.to(StateFailed, err)
			logger.Info("task rejected", zap.Error(err))
			res := models.Failure(models.ErrorKindInvalid, err.Error())
			return w.finish(res, m, &desc, 0, start, nil)
		}
	}

	if w.budget != nil && !w.budget.CanStartNew() {
		m.to(StateFallbackTriggered, nil)
		logger.Warn("budget exhausted, skipping remote call")
		res := models.Degraded(w.fallback(worker, task, logger), models.ReasonBudgetExhausted)
		return w.finish(res, m, &desc, 0, start, nil)
	}

	timeout := w.cfg.Timeouts.For(desc)
	bo := w.cfg.Backoff.NewBackOff()
	attempt := 0
	for {
		attempt++
		m.to(StateAttempting, nil)

		resp, err := w.attempt(ctx, worker, task, timeout)
		spent.add(resp)
		if err == nil {
			m.to(StateSucceeded, nil)
			return w.finish(models.Success(resp.Payload), m, &desc, attempt, start, spent)
		}

		kind := Classify(err)
		decision := Decide(kind, attempt, w.cfg.MaxAttempts)
		logger.Info("attempt failed",
			zap.Int("attempt", attempt),
			zap.String("kind", string(kind)),
			zap.String("decision", decision.String()),
			zap.Error(err))

		switch decision {
		case Fail:
			m.to(StateFailed, err)
			res := models.Failure(kind, err.Error())
			return w.finish(res, m, &desc, attempt, start, spent)
		case Fallback:
			m.to(StateFallbackTriggered, err)
			res := models.Degraded(w.fallback(worker, task, logger), models.ReasonRemoteUnavailable)
			return w.finish(res, m, &desc, attempt, start, spent)
		}

		m.to(StateRetrying, err)
		delay := bo.NextBackOff()
		if delay == backoff.Stop || !sleep(ctx, delay) {
			m.to(StateFallbackTriggered, ctx.Err())
			res := models.Degraded(w.fallback(worker, task, logger), models.ReasonRemoteUnavailable)
			return w.finish(res, m, &desc, attempt, start, spent)
		}
	}
}

// Degrade skips the remote path entirely and returns the worker's fallback
// under reason. It is used when the caller could not obtain a load slot.
func (w *Wrapper) Degrade(workerID string, task models.TaskDescriptor, reason string) models.ExecutionResult {
	start := time.Now()
	m := &machine{workerID: workerID, state: StatePending, observer: w.observer}

	worker, ok := w.Worker(workerID)
	if !ok {
		m.to(StateFailed, nil)
		res := models.Failure(models.ErrorKindInvalid, fmt.Sprintf("unknown worker %q", workerID))
		return w.finish(res, m, nil, 0, start, nil)
	}
	desc := worker.Descriptor()
	logger := w.logger.With(zap.String("worker", workerID), zap.String("task", task.ID))
	m.to(StateFallbackTriggered, nil)
	logger.Warn("remote call skipped", zap.String("reason", reason))
	res := models.Degraded(w.fallback(worker, task, logger), reason)
	return w.finish(res, m, &desc, 0, start, nil)
}

type attemptResult struct {
	resp *Response
	err  error
}

// attempt runs one bounded remote call. The call is abandoned, not awaited,
// when the timeout fires.
func (w *Wrapper) attempt(ctx context.Context, worker Worker, task models.TaskDescriptor, timeout time.Duration) (*Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan attemptResult, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- attemptResult{err: Transient(fmt.Errorf("worker panicked: %v", rec))}
			}
		}()
		resp, err := worker.ProcessTask(callCtx, task)
		done <- attemptResult{resp: resp, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil && r.resp == nil {
			return nil, Transient(errors.New("empty response"))
		}
		return r.resp, r.err
	case <-callCtx.Done():
		return nil, Transient(fmt.Errorf("call timed out after %s: %w", timeout, callCtx.Err()))
	}
}

// fallback runs the worker's local computation, recovering from panics.
func (w *Wrapper) fallback(worker Worker, task models.TaskDescriptor, logger *zap.Logger) (payload models.Payload) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("fallback panicked", zap.Any("panic", rec))
			payload = models.Payload{"fallback_error": fmt.Sprint(rec)}
		}
	}()
	payload = worker.FallbackCompute(task)
	if payload == nil {
		payload = models.Payload{}
	}
	return payload
}

// billed sums the units reported by every remote call of one execution,
// including calls whose reply was unusable.
type billed struct {
	model   string
	in, out int64
}

func (b *billed) add(resp *Response) {
	if b == nil || resp == nil {
		return
	}
	b.in += resp.InputTokens
	b.out += resp.OutputTokens
	if resp.Model != "" {
		b.model = resp.Model
	}
}

// finish stamps bookkeeping fields and emits the single usage record.
func (w *Wrapper) finish(res models.ExecutionResult, m *machine, desc *models.WorkerDescriptor, attempts int, start time.Time, spent *billed) models.ExecutionResult {
	res.WorkerID = m.workerID
	res.Attempts = attempts
	res.Duration = time.Since(start)
	res.Trace = m.trace

	if w.usage == nil || desc == nil {
		return res
	}

	if spent == nil {
		spent = &billed{}
	}
	model := desc.Model
	if spent.model != "" {
		model = spent.model
	}
	// The local fallback is free; a degraded result is only billed for the
	// remote calls that preceded it.
	if res.Status == models.StatusDegraded && spent.in == 0 && spent.out == 0 {
		model = models.FallbackModel
	}
	w.usage.Record(desc.Tier, desc.WorkerID, model, spent.in, spent.out)
	w.usage.ObserveLatency(desc.WorkerID, res.Duration)
	w.usage.ObserveOutcome(desc.WorkerID, res.Status == models.StatusSuccess)
	return res
}

// sleep waits for d or until ctx is done. It returns false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
