package orchestrator

import (
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ShayCichocki/switchboard/internal/agent"
	"github.com/ShayCichocki/switchboard/internal/pipeline"
	"github.com/ShayCichocki/switchboard/internal/router"
	"github.com/ShayCichocki/switchboard/internal/usage"
)

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*orchestratorOptions)

// orchestratorOptions holds all optional configuration.
// They are only used during construction.
type orchestratorOptions struct {
	logger            *zap.Logger
	execution         agent.Config
	prices            usage.PriceTable
	costLimit         decimal.Decimal
	warningThreshold  float64
	table             router.Table
	scorer            router.Scorer
	estimator         pipeline.ValueEstimator
	pipelines         map[string]pipeline.Definition
	capacityOverrides map[string]int
	eventBuffer       int
	waitForCapacity   bool
	probeConcurrency  int
	clock             func() time.Time
}

func defaultOptions() orchestratorOptions {
	return orchestratorOptions{
		logger:           zap.NewNop(),
		prices:           usage.DefaultPrices(),
		costLimit:        decimal.Zero,
		warningThreshold: DefaultWarningThreshold,
		table:            router.DefaultTable(),
		scorer:           router.PayloadScorer{},
		estimator:        pipeline.FieldEstimator{},
		pipelines:        pipeline.Builtin(),
		eventBuffer:      DefaultEventBuffer,
		waitForCapacity:  true,
		clock:            time.Now,
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *orchestratorOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithExecution sets retry, backoff and timeout configuration.
func WithExecution(c agent.Config) Option {
	return func(o *orchestratorOptions) { o.execution = c }
}

// WithPrices sets the price table used by the usage tracker.
func WithPrices(p usage.PriceTable) Option {
	return func(o *orchestratorOptions) { o.prices = p }
}

// WithCostBudget enables the cost budget. A non-positive limit disables it.
func WithCostBudget(limit decimal.Decimal, warningThreshold float64) Option {
	return func(o *orchestratorOptions) {
		o.costLimit = limit
		if warningThreshold > 0 {
			o.warningThreshold = warningThreshold
		}
	}
}

// WithRoutingTable replaces the reference routing table.
func WithRoutingTable(t router.Table) Option {
	return func(o *orchestratorOptions) { o.table = t }
}

// WithScorer replaces the priority scorer.
func WithScorer(s router.Scorer) Option {
	return func(o *orchestratorOptions) { o.scorer = s }
}

// WithValueEstimator replaces the pipeline business value estimator.
func WithValueEstimator(e pipeline.ValueEstimator) Option {
	return func(o *orchestratorOptions) { o.estimator = e }
}

// WithPipelines adds pipeline definitions, replacing bundled ones with the same name.
func WithPipelines(defs map[string]pipeline.Definition) Option {
	return func(o *orchestratorOptions) {
		for name, def := range defs {
			o.pipelines[name] = def
		}
	}
}

// WithCapacityOverrides overrides worker capacities by id.
func WithCapacityOverrides(m map[string]int) Option {
	return func(o *orchestratorOptions) { o.capacityOverrides = m }
}

// WithEventBuffer sets the event channel capacity.
func WithEventBuffer(n int) Option {
	return func(o *orchestratorOptions) { o.eventBuffer = n }
}

// WithWaitForCapacity selects whether dispatch queues for a free load slot
// (true, the default) or degrades immediately when the worker is full.
func WithWaitForCapacity(wait bool) Option {
	return func(o *orchestratorOptions) { o.waitForCapacity = wait }
}

// WithProbeConcurrency caps concurrent probe executions. Zero means unlimited.
func WithProbeConcurrency(n int) Option {
	return func(o *orchestratorOptions) { o.probeConcurrency = n }
}

// WithClock sets the time source for routing estimates and pipeline timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *orchestratorOptions) { o.clock = now }
}
