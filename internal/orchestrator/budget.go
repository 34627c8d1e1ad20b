package orchestrator

import (
	"sync"

	"github.com/shopspring/decimal"
)

// BudgetStatus represents the current state of budget consumption.
type BudgetStatus int

const (
	// BudgetOK indicates spend is below the warning threshold.
	BudgetOK BudgetStatus = iota
	// BudgetWarning indicates spend is between warning and exhaustion.
	BudgetWarning
	// BudgetExhausted indicates the budget is fully consumed.
	BudgetExhausted
)

// String returns a human-readable representation of the budget status.
func (s BudgetStatus) String() string {
	switch s {
	case BudgetOK:
		return "OK"
	case BudgetWarning:
		return "Warning"
	case BudgetExhausted:
		return "Exhausted"
	default:
		return "Unknown"
	}
}

// DefaultWarningThreshold is the default fraction at which warnings begin.
const DefaultWarningThreshold = 0.80

// CostSource reports cumulative spend.
type CostSource interface {
	TotalCost() decimal.Decimal
}

// BudgetHandler compares spend against a cost limit. Once exhausted, remote
// calls are skipped and workers degrade to their fallbacks.
type BudgetHandler struct {
	mu               sync.RWMutex
	limit            decimal.Decimal
	source           CostSource
	warningThreshold float64
	last             BudgetStatus
	onChange         func(BudgetStatus, decimal.Decimal)
}

// NewBudgetHandler creates a BudgetHandler. A zero or negative limit disables
// the budget.
func NewBudgetHandler(limit decimal.Decimal, source CostSource) *BudgetHandler {
	return &BudgetHandler{
		limit:            limit,
		source:           source,
		warningThreshold: DefaultWarningThreshold,
	}
}

// OnChange registers a callback invoked when the status changes.
func (h *BudgetHandler) OnChange(f func(BudgetStatus, decimal.Decimal)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = f
}

// SetWarningThreshold sets the warning threshold (0.0-1.0). Invalid values
// are clamped.
func (h *BudgetHandler) SetWarningThreshold(threshold float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.warningThreshold = min(max(threshold, 0), 1)
}

// Used returns the current spend.
func (h *BudgetHandler) Used() decimal.Decimal {
	if h.source == nil {
		return decimal.Zero
	}
	return h.source.TotalCost()
}

// Limit returns the configured limit.
func (h *BudgetHandler) Limit() decimal.Decimal {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.limit
}

// CheckBudget returns the current budget status.
func (h *BudgetHandler) CheckBudget() BudgetStatus {
	used := h.Used()

	h.mu.Lock()
	status := h.statusFor(used)
	changed := status != h.last
	h.last = status
	onChange := h.onChange
	h.mu.Unlock()

	if changed && onChange != nil {
		onChange(status, used)
	}
	return status
}

// statusFor must be called with lock held.
func (h *BudgetHandler) statusFor(used decimal.Decimal) BudgetStatus {
	if !h.limit.IsPositive() {
		return BudgetOK
	}
	if used.GreaterThanOrEqual(h.limit) {
		return BudgetExhausted
	}
	warnAt := h.limit.Mul(decimal.NewFromFloat(h.warningThreshold))
	if used.GreaterThanOrEqual(warnAt) {
		return BudgetWarning
	}
	return BudgetOK
}

// CanStartNew returns false once the budget is exhausted.
func (h *BudgetHandler) CanStartNew() bool {
	return h.CheckBudget() != BudgetExhausted
}
