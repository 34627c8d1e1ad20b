package pipeline

import (
	"github.com/shopspring/decimal"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// ValueEstimator derives a business value from a stage payload.
type ValueEstimator interface {
	Estimate(payload models.Payload) (decimal.Decimal, bool)
}

// DefaultValueFields are read in order by the default estimator.
var DefaultValueFields = []string{"deal_value", "estimated_value", "contract_value", "value"}

// FieldEstimator returns the first numeric field found in the payload.
type FieldEstimator struct {
	Fields []string
}

// Estimate implements ValueEstimator.
func (e FieldEstimator) Estimate(payload models.Payload) (decimal.Decimal, bool) {
	fields := e.Fields
	if len(fields) == 0 {
		fields = DefaultValueFields
	}
	for _, f := range fields {
		if v, ok := payload.Number(f); ok && v >= 0 {
			return decimal.NewFromFloat(v), true
		}
	}
	return decimal.Zero, false
}

// estimate builds the run value from the recorded stages.
func estimate(est ValueEstimator, stages []models.PipelineStage, status models.RunStatus) models.BusinessValue {
	bv := models.BusinessValue{Amount: decimal.Zero}
	lastUsable := -1
	for i, s := range stages {
		if s.Result.Usable() {
			lastUsable = i
		}
		if s.Result.Status == models.StatusDegraded {
			bv.Degraded = true
		}
	}
	if status == models.RunAborted {
		bv.Degraded = true
	}
	if lastUsable < 0 {
		bv.Note = models.NoValueRealized
		return bv
	}

	bv.Realized = true
	bv.SourceStage = stages[lastUsable].StageName
	for i := lastUsable; i >= 0; i-- {
		s := stages[i]
		if !s.Result.Usable() {
			continue
		}
		if amount, ok := est.Estimate(s.Result.Payload); ok {
			bv.Amount = amount
			bv.SourceStage = s.StageName
			break
		}
	}
	return bv
}
