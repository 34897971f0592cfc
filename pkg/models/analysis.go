package models

import "time"

// NewsArticle is a single news item. Empty Title or Description means the
// field was absent. Only Title and Description feed sentiment scoring.
type NewsArticle struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Source      string    `json:"source,omitempty"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// SentimentLabel is the overall polarity of a set of articles.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "Positive"
	SentimentNegative SentimentLabel = "Negative"
	SentimentNeutral  SentimentLabel = "Neutral"
)

// SentimentReason records how a sentiment label was reached.
type SentimentReason string

const (
	ReasonNoArticles   SentimentReason = "no_articles"   // the article list was empty
	ReasonNoneAnalyzed SentimentReason = "none_analyzed" // every article had blank text
	ReasonScored       SentimentReason = "scored"
)

// SentimentResult is the aggregated sentiment of a set of articles.
type SentimentResult struct {
	Label        SentimentLabel  `json:"label"`
	Themes       []string        `json:"themes,omitempty"` // at most 3, in first-seen order
	ArticleCount int             `json:"article_count"`
	Analyzed     int             `json:"analyzed"`
	Reason       SentimentReason `json:"reason"`
}

// Rating is the final three-way recommendation.
type Rating string

const (
	RatingBuy  Rating = "Buy"
	RatingHold Rating = "Hold"
	RatingSell Rating = "Sell"
)

// Decision is the audit record of how a rating was derived.
type Decision struct {
	SentimentLabel SentimentLabel `json:"sentiment_label"`
	FinancialScore float64        `json:"financial_score"`
	OverallScore   float64        `json:"overall_score"`
	Rating         Rating         `json:"rating"`
}

// FormattedHighlights are the display strings for FinancialHighlights.
type FormattedHighlights struct {
	RevenueGrowthPercentage  string `json:"revenueGrowthPercentage"  yaml:"revenueGrowthPercentage"`
	EarningsGrowthPercentage string `json:"earningsGrowthPercentage" yaml:"earningsGrowthPercentage"`
	ForwardPERatio           string `json:"forwardPERatio"           yaml:"forwardPERatio"`
	DebtToEquityRatio        string `json:"debtToEquityRatio"        yaml:"debtToEquityRatio"`
}

// AnalysisResult is the externally visible record of one analysis.
// Field names and nesting are a wire contract.
type AnalysisResult struct {
	Ticker              string              `json:"ticker"              yaml:"ticker"`
	LatestPrice         *float64            `json:"latest_price"        yaml:"latest_price"`
	SentimentSummary    string              `json:"sentiment_summary"   yaml:"sentiment_summary"`
	FinancialHighlights FormattedHighlights `json:"financialHighlights" yaml:"financialHighlights"`
	Rating              Rating              `json:"rating"              yaml:"rating"`
}

// ErrorResult is returned in place of an AnalysisResult when analysis fails.
type ErrorResult struct {
	Error string `json:"error" yaml:"error"`
}
