package models

import (
	"encoding/json"
	"math"
)

// Metric is an optional real-valued financial figure.
// The zero value is an absent metric, which is distinct from a present zero.
type Metric struct {
	Value float64
	Valid bool
}

// Some returns a present metric. NaN and ±Inf are not numbers a rule can
// compare against, so they produce an absent metric instead.
func Some(v float64) Metric {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Metric{}
	}
	return Metric{Value: v, Valid: true}
}

// None returns an absent metric.
func None() Metric { return Metric{} }

// FromPtr converts a nullable value (as decoded from JSON) into a Metric.
func FromPtr(v *float64) Metric {
	if v == nil {
		return Metric{}
	}
	return Some(*v)
}

// Get returns the value and whether it is present.
func (m Metric) Get() (float64, bool) { return m.Value, m.Valid }

// MarshalJSON encodes an absent metric as null.
func (m Metric) MarshalJSON() ([]byte, error) {
	if !m.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON decodes null or a number.
func (m *Metric) UnmarshalJSON(data []byte) error {
	var v *float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = FromPtr(v)
	return nil
}

// FinancialHighlights holds the four ratios the rating rules look at.
// Growth figures are fractions (0.12 = 12%).
type FinancialHighlights struct {
	RevenueGrowth  Metric `json:"revenue_growth"`
	EarningsGrowth Metric `json:"earnings_growth"`
	ForwardPE      Metric `json:"forward_pe"`
	DebtRatio      Metric `json:"debt_to_equity"` // debt-to-equity, or debt-to-assets when equity data is missing
}

// MarketSnapshot is the point-in-time market data for one ticker.
type MarketSnapshot struct {
	Ticker      string              `json:"ticker"`
	Name        string              `json:"name,omitempty"`
	Currency    string              `json:"currency,omitempty"`
	LatestPrice *float64            `json:"latest_price"` // nil when no trading data is available
	Highlights  FinancialHighlights `json:"financial_highlights"`
}
