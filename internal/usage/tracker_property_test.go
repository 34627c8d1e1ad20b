package usage

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

var propertyModels = []string{
	"claude-opus-4-5-20251101",
	"claude-sonnet-4-20250514",
	"claude-3-5-haiku-20241022",
	"gpt-4",
	"unpriced",
}

type event struct {
	model   string
	in, out int64
}

func genEvents() gopter.Gen {
	return gen.SliceOfN(20, gen.Struct(reflect.TypeOf(rawEvent{}), map[string]gopter.Gen{
		"Model": gen.IntRange(0, len(propertyModels)-1),
		"In":    gen.Int64Range(0, 2_000_000),
		"Out":   gen.Int64Range(0, 2_000_000),
	}))
}

// rawEvent is the generator-facing shape of an event.
type rawEvent struct {
	Model int
	In    int64
	Out   int64
}

func toEvents(raw []rawEvent) []event {
	out := make([]event, len(raw))
	for i, r := range raw {
		out[i] = event{model: propertyModels[r.Model], in: r.In, out: r.Out}
	}
	return out
}

func replay(events []event) *Tracker {
	tr := NewTracker()
	for i, e := range events {
		tier := models.Tiers[i%len(models.Tiers)]
		tr.Record(tier, "w", e.model, e.in, e.out)
	}
	return tr
}

// TestTotalCostProperty checks that total cost equals the sum of per-event
// costs and does not depend on recording order.
func TestTotalCostProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("total cost is the sum of event costs", prop.ForAll(
		func(raw []rawEvent) bool {
			events := toEvents(raw)
			prices := DefaultPrices()

			want := decimal.Zero
			for _, e := range events {
				want = want.Add(prices.Cost(e.model, e.in, e.out))
			}
			return replay(events).TotalCost().Equal(want)
		},
		genEvents(),
	))

	properties.Property("total cost is order independent", prop.ForAll(
		func(raw []rawEvent) bool {
			events := toEvents(raw)
			reversed := make([]event, len(events))
			for i, e := range events {
				reversed[len(events)-1-i] = e
			}
			return replay(events).TotalCost().Equal(replay(reversed).TotalCost())
		},
		genEvents(),
	))

	properties.Property("total units is the sum of event units", prop.ForAll(
		func(raw []rawEvent) bool {
			events := toEvents(raw)
			var want int64
			for _, e := range events {
				want += e.in + e.out
			}
			return replay(events).TotalUnits() == want
		},
		genEvents(),
	))

	properties.TestingRun(t)
}

func TestByLevelSumsToTotal(t *testing.T) {
	tr := replay([]event{
		{"gpt-4", 1200, 800},
		{"claude-sonnet-4-20250514", 5000, 100},
		{"claude-3-5-haiku-20241022", 70, 9},
		{"gpt-4", 300, 200},
	})

	sum := decimal.Zero
	var reqs int64
	for _, r := range tr.ByLevel() {
		sum = sum.Add(r.Cost)
		reqs += r.RequestCount
	}
	assert.True(t, sum.Equal(tr.TotalCost()), "per-level costs %s should add up to %s", sum, tr.TotalCost())
	assert.Equal(t, int64(4), reqs)

	rowSum := decimal.Zero
	for _, r := range tr.ByModel() {
		rowSum = rowSum.Add(r.Cost)
	}
	assert.True(t, rowSum.Equal(tr.TotalCost()))
}
