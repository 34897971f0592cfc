// Package report renders analysis outcomes for humans and machines: the
// display strings of the financial highlights, the sentiment summary text,
// and the JSON / YAML / text encodings of the final record.
package report

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/fininsight/pkg/models"
)

// NotAvailable is shown in place of an absent metric.
const NotAvailable = "N/A"

var hundred = decimal.NewFromInt(100)

// FormatHighlights renders each highlight as a display string.
// Growth figures become percentages, ratios keep two decimals.
func FormatHighlights(h models.FinancialHighlights) models.FormattedHighlights {
	return models.FormattedHighlights{
		RevenueGrowthPercentage:  FormatPercent(h.RevenueGrowth),
		EarningsGrowthPercentage: FormatPercent(h.EarningsGrowth),
		ForwardPERatio:           FormatRatio(h.ForwardPE),
		DebtToEquityRatio:        FormatRatio(h.DebtRatio),
	}
}

// FormatPercent renders a fraction as a percentage ("0.15" → "15.00%").
func FormatPercent(m models.Metric) string {
	v, ok := m.Get()
	if !ok {
		return NotAvailable
	}
	return decimal.NewFromFloat(v).Mul(hundred).StringFixed(2) + "%"
}

// FormatRatio renders a value with two decimals.
func FormatRatio(m models.Metric) string {
	v, ok := m.Get()
	if !ok {
		return NotAvailable
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// FormatPrice renders an optional price with two decimals.
func FormatPrice(p *float64) string {
	if p == nil {
		return NotAvailable
	}
	return FormatRatio(models.Some(*p))
}

// SentimentSummary renders the human-readable sentiment sentence.
func SentimentSummary(s models.SentimentResult) string {
	switch s.Reason {
	case models.ReasonNoArticles:
		return "Neutral sentiment - No news articles found."
	case models.ReasonNoneAnalyzed:
		return "Neutral sentiment - No articles analyzed."
	}

	label := s.Label
	if label == "" {
		label = models.SentimentNeutral
	}
	summary := "Overall " + string(label) + " sentiment in news articles."
	if label != models.SentimentNeutral && len(s.Themes) > 0 {
		summary += " " + string(label) + " news themes include: " + strings.Join(s.Themes, ", ")
	}
	return summary
}
