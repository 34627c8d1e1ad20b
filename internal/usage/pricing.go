// Package usage aggregates per-worker consumption and derives cost from a
// per-model price table.
package usage

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Price contains pricing per 1M units for a model.
type Price struct {
	InputPerMillion  decimal.Decimal `json:"input_per_million"`
	OutputPerMillion decimal.Decimal `json:"output_per_million"`
}

// NewPrice builds a Price from float config values.
func NewPrice(input, output float64) Price {
	return Price{
		InputPerMillion:  decimal.NewFromFloat(input),
		OutputPerMillion: decimal.NewFromFloat(output),
	}
}

// Cost returns the cost of the given units at this price.
func (p Price) Cost(inputUnits, outputUnits int64) decimal.Decimal {
	in := decimal.NewFromInt(inputUnits).Mul(p.InputPerMillion)
	out := decimal.NewFromInt(outputUnits).Mul(p.OutputPerMillion)
	return in.Add(out).Shift(-6)
}

// PriceTable maps model names to prices. Unknown models cost nothing.
// Prices are per million units: a per-unit price of 0.000003 is written 3.00,
// i.e. price_per_unit × 1e6.
type PriceTable map[string]Price

// DefaultPrices returns the built-in price table.
func DefaultPrices() PriceTable {
	return PriceTable{
		"claude-opus-4-5-20251101":   NewPrice(15.00, 75.00),
		"claude-sonnet-4-20250514":   NewPrice(3.00, 15.00),
		"claude-3-5-sonnet-20241022": NewPrice(3.00, 15.00),
		"claude-3-5-haiku-20241022":  NewPrice(0.80, 4.00),
		"gpt-4":                      NewPrice(30.00, 60.00),
		"gpt-3.5-turbo":              NewPrice(0.50, 1.50),
	}
}

// Merge returns a copy of t with overrides applied on top.
func (t PriceTable) Merge(overrides PriceTable) PriceTable {
	out := make(PriceTable, len(t)+len(overrides))
	for m, p := range t {
		out[m] = p
	}
	for m, p := range overrides {
		out[m] = p
	}
	return out
}

// Cost prices units for model.
func (t PriceTable) Cost(model string, inputUnits, outputUnits int64) decimal.Decimal {
	p, ok := t[model]
	if !ok {
		return decimal.Zero
	}
	return p.Cost(inputUnits, outputUnits)
}

// Validate rejects negative prices.
func (t PriceTable) Validate() error {
	for m, p := range t {
		if p.InputPerMillion.IsNegative() || p.OutputPerMillion.IsNegative() {
			return fmt.Errorf("price for model %q must not be negative", m)
		}
	}
	return nil
}
