package fundamental

import (
	"fmt"

	"github.com/seenimoa/fininsight/pkg/models"
)

// Threshold rules. Growth values are fractions (0.12 = 12%).
const (
	growthStrong = 0.12

	revenueStrongDelta   = 0.4
	revenueNegativeDelta = -0.1

	earningsStrongDelta   = 0.5
	earningsNegativeDelta = -0.2
	earningsMissingDelta  = -0.1

	peCheap          = 18.0
	peExpensive      = 28.0
	peCheapDelta     = 0.3
	peExpensiveDelta = -0.25

	debtLow       = 1.2
	debtHigh      = 2.5
	debtLowDelta  = 0.2
	debtHighDelta = -0.3
)

// Contribution records one rule that fired while scoring.
type Contribution struct {
	Field string  // highlight field name
	Rule  string  // human-readable condition
	Delta float64 // signed score change
}

func (c Contribution) String() string {
	return fmt.Sprintf("%s %s (%+.2f)", c.Field, c.Rule, c.Delta)
}

// Score maps the four optional highlights onto a single additive score.
// Every field is judged independently; absent fields contribute nothing,
// except a missing earnings growth which carries a small penalty.
func Score(h models.FinancialHighlights) float64 {
	total, _ := ScoreWithBreakdown(h)
	return total
}

// ScoreWithBreakdown returns the score along with each rule that changed it.
func ScoreWithBreakdown(h models.FinancialHighlights) (float64, []Contribution) {
	var (
		total float64
		parts []Contribution
	)
	add := func(field, rule string, delta float64) {
		total += delta
		parts = append(parts, Contribution{Field: field, Rule: rule, Delta: delta})
	}

	if v, ok := h.RevenueGrowth.Get(); ok {
		switch {
		case v > growthStrong:
			add("revenueGrowth", "> 0.12", revenueStrongDelta)
		case v < 0:
			add("revenueGrowth", "< 0", revenueNegativeDelta)
		}
	}

	if v, ok := h.EarningsGrowth.Get(); ok {
		switch {
		case v > growthStrong:
			add("earningsGrowth", "> 0.12", earningsStrongDelta)
		case v < 0:
			add("earningsGrowth", "< 0", earningsNegativeDelta)
		}
	} else {
		add("earningsGrowth", "missing", earningsMissingDelta)
	}

	if v, ok := h.ForwardPE.Get(); ok {
		switch {
		case v > 0 && v < peCheap:
			add("forwardPE", "in (0, 18)", peCheapDelta)
		case v > peExpensive:
			add("forwardPE", "> 28", peExpensiveDelta)
		}
	}

	if v, ok := h.DebtRatio.Get(); ok {
		switch {
		case v < debtLow:
			add("debtRatio", "< 1.2", debtLowDelta)
		case v > debtHigh:
			add("debtRatio", "> 2.5", debtHighDelta)
		}
	}

	return total, parts
}
