// Package rating combines the sentiment label with the financial score into
// the final Buy / Hold / Sell recommendation.
package rating

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/seenimoa/fininsight/internal/logger"
	"github.com/seenimoa/fininsight/pkg/models"
)

const (
	positiveWeight = 0.3
	negativeWeight = -0.25

	buyThreshold  = 0.6
	sellThreshold = -0.3
)

// SentimentWeight returns the score contribution of a sentiment label.
func SentimentWeight(label models.SentimentLabel) float64 {
	switch label {
	case models.SentimentPositive:
		return positiveWeight
	case models.SentimentNegative:
		return negativeWeight
	default:
		return 0
	}
}

// Classify maps an overall score onto a rating. Both thresholds are inclusive.
func Classify(overall float64) models.Rating {
	switch {
	case overall >= buyThreshold:
		return models.RatingBuy
	case overall <= sellThreshold:
		return models.RatingSell
	default:
		return models.RatingHold
	}
}

// Combine computes the decision without side effects.
func Combine(label models.SentimentLabel, financialScore float64) models.Decision {
	overall := SentimentWeight(label) + financialScore
	return models.Decision{
		SentimentLabel: label,
		FinancialScore: financialScore,
		OverallScore:   overall,
		Rating:         Classify(overall),
	}
}

// Decide computes the decision and records it on the context logger and the
// active span.
func Decide(ctx context.Context, label models.SentimentLabel, financialScore float64) models.Decision {
	d := Combine(label, financialScore)

	logger.From(ctx).Info().
		Str("sentiment_label", string(d.SentimentLabel)).
		Float64("financial_score", d.FinancialScore).
		Float64("overall_score", d.OverallScore).
		Str("rating", string(d.Rating)).
		Msg("Rating decided")

	trace.SpanFromContext(ctx).AddEvent("rating.decided", trace.WithAttributes(
		attribute.String("sentiment_label", string(d.SentimentLabel)),
		attribute.Float64("financial_score", d.FinancialScore),
		attribute.Float64("overall_score", d.OverallScore),
		attribute.String("rating", string(d.Rating)),
	))

	return d
}
