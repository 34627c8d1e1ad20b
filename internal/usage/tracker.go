package usage

import (
	"sort"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/shopspring/decimal"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// OutcomeObserver receives success/failure notifications, typically the
// worker registry.
type OutcomeObserver interface {
	ObserveOutcome(workerID string, ok bool)
}

type key struct {
	tier     models.Tier
	workerID string
	model    string
}

type counters struct {
	input    int64
	output   int64
	requests int64
}

// Tracker aggregates usage across the worker hierarchy. Only raw units are
// stored; cost is derived from the current price table on every read.
type Tracker struct {
	mu        sync.RWMutex
	prices    PriceTable
	entries   map[key]*counters
	latencies map[string]*hdrhistogram.Histogram
	observer  OutcomeObserver
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithPrices replaces the default price table.
func WithPrices(p PriceTable) TrackerOption {
	return func(t *Tracker) { t.prices = p }
}

// WithOutcomeObserver forwards outcomes to o.
func WithOutcomeObserver(o OutcomeObserver) TrackerOption {
	return func(t *Tracker) { t.observer = o }
}

// NewTracker creates an empty Tracker priced with DefaultPrices.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		prices:    DefaultPrices(),
		entries:   make(map[key]*counters),
		latencies: make(map[string]*hdrhistogram.Histogram),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record adds one request's units and returns the record for that request.
// Negative unit counts are treated as zero.
func (t *Tracker) Record(tier models.Tier, workerID, model string, inputUnits, outputUnits int64) models.UsageRecord {
	inputUnits = max(inputUnits, 0)
	outputUnits = max(outputUnits, 0)

	t.mu.Lock()
	defer t.mu.Unlock()

	k := key{tier: tier, workerID: workerID, model: model}
	c, ok := t.entries[k]
	if !ok {
		c = &counters{}
		t.entries[k] = c
	}
	c.input += inputUnits
	c.output += outputUnits
	c.requests++

	return models.UsageRecord{
		Tier:         tier,
		WorkerID:     workerID,
		ModelName:    model,
		InputUnits:   inputUnits,
		OutputUnits:  outputUnits,
		RequestCount: 1,
		Cost:         t.prices.Cost(model, inputUnits, outputUnits),
	}
}

// ObserveLatency records the end-to-end duration of one execution.
func (t *Tracker) ObserveLatency(workerID string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.latencies[workerID]
	if !ok {
		h = newHistogram()
		t.latencies[workerID] = h
	}
	recordLatency(h, d)
}

// ObserveOutcome forwards the outcome to the configured observer.
func (t *Tracker) ObserveOutcome(workerID string, ok bool) {
	t.mu.RLock()
	o := t.observer
	t.mu.RUnlock()
	if o != nil {
		o.ObserveOutcome(workerID, ok)
	}
}

// Reprice swaps the price table. Every later read uses the new prices.
func (t *Tracker) Reprice(prices PriceTable) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prices = prices
}

// Prices returns a copy of the current price table.
func (t *Tracker) Prices() PriceTable {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return PriceTable{}.Merge(t.prices)
}

// TotalCost returns the cost of everything recorded so far.
func (t *Tracker) TotalCost() decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()

	total := decimal.Zero
	for k, c := range t.entries {
		total = total.Add(t.prices.Cost(k.model, c.input, c.output))
	}
	return total
}

// TotalUnits returns input plus output units across all records.
func (t *Tracker) TotalUnits() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var total int64
	for _, c := range t.entries {
		total += c.input + c.output
	}
	return total
}

// ByLevel aggregates usage per tier.
func (t *Tracker) ByLevel() map[models.Tier]models.UsageRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[models.Tier]models.UsageRecord)
	for k, c := range t.entries {
		out[k.tier] = t.fold(out[k.tier], k, c)
	}
	for tier, r := range out {
		r.WorkerID = ""
		out[tier] = r
	}
	return out
}

// ByWorker aggregates usage per worker.
func (t *Tracker) ByWorker() map[string]models.UsageRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]models.UsageRecord)
	for k, c := range t.entries {
		out[k.workerID] = t.fold(out[k.workerID], k, c)
	}
	return out
}

// ByModel returns billing rows grouped by tier and model, sorted by tier
// then model.
func (t *Tracker) ByModel() []models.UsageRow {
	t.mu.RLock()
	defer t.mu.RUnlock()

	type rowKey struct {
		tier  models.Tier
		model string
	}
	grouped := make(map[rowKey]*models.UsageRow)
	for k, c := range t.entries {
		rk := rowKey{k.tier, k.model}
		row, ok := grouped[rk]
		if !ok {
			row = &models.UsageRow{Tier: k.tier, Model: k.model, Cost: decimal.Zero}
			grouped[rk] = row
		}
		row.InputUnits += c.input
		row.OutputUnits += c.output
		row.RequestCount += c.requests
		row.Cost = row.Cost.Add(t.prices.Cost(k.model, c.input, c.output))
	}

	rows := make([]models.UsageRow, 0, len(grouped))
	for _, r := range grouped {
		rows = append(rows, *r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Tier != rows[j].Tier {
			return tierRank(rows[i].Tier) < tierRank(rows[j].Tier)
		}
		return rows[i].Model < rows[j].Model
	})
	return rows
}

// Latency returns the latency summary for a worker.
func (t *Tracker) Latency(workerID string) (LatencyStats, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	h, ok := t.latencies[workerID]
	if !ok {
		return LatencyStats{}, false
	}
	return statsOf(h), true
}

// Latencies returns latency summaries for every observed worker.
func (t *Tracker) Latencies() map[string]LatencyStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]LatencyStats, len(t.latencies))
	for id, h := range t.latencies {
		out[id] = statsOf(h)
	}
	return out
}

// fold adds one entry into an aggregate. Must be called with lock held.
func (t *Tracker) fold(acc models.UsageRecord, k key, c *counters) models.UsageRecord {
	if acc.RequestCount == 0 {
		acc.Tier = k.tier
		acc.WorkerID = k.workerID
		acc.ModelName = k.model
		acc.Cost = decimal.Zero
	} else if acc.ModelName != k.model {
		acc.ModelName = models.MixedModel
	}
	acc.InputUnits += c.input
	acc.OutputUnits += c.output
	acc.RequestCount += c.requests
	acc.Cost = acc.Cost.Add(t.prices.Cost(k.model, c.input, c.output))
	return acc
}

func tierRank(t models.Tier) int {
	for i, tier := range models.Tiers {
		if tier == t {
			return i
		}
	}
	return len(models.Tiers)
}
