package sentiment

import (
	"strings"

	"github.com/seenimoa/fininsight/pkg/models"
)

const (
	// labelThreshold is the mean compound score at or beyond which the
	// overall label leaves Neutral.
	labelThreshold = 0.2

	// themeThreshold is the per-article score an article must exceed to
	// contribute theme words.
	themeThreshold = 0.3

	// maxThemes is the number of themes surfaced per direction.
	maxThemes = 3
)

// stopWords never become themes. The ticker itself is added per call.
var stopWords = []string{"stock", "stocks", "company", "financial", "market"}

// Aggregator reduces a set of articles to a single sentiment label.
type Aggregator struct {
	scorer Scorer
}

// NewAggregator returns an aggregator backed by scorer.
// A nil scorer selects VADER.
func NewAggregator(scorer Scorer) *Aggregator {
	if scorer == nil {
		scorer = DefaultScorer()
	}
	return &Aggregator{scorer: scorer}
}

// Aggregate scores every article and classifies the mean score.
func (a *Aggregator) Aggregate(ticker string, articles []models.NewsArticle) models.SentimentResult {
	if len(articles) == 0 {
		return models.SentimentResult{
			Label:  models.SentimentNeutral,
			Reason: models.ReasonNoArticles,
		}
	}

	skip := make(map[string]struct{}, len(stopWords)+1)
	for _, w := range stopWords {
		skip[w] = struct{}{}
	}
	skip[strings.ToLower(ticker)] = struct{}{}

	var (
		total    float64
		analyzed int
		positive = newOrderedSet()
		negative = newOrderedSet()
	)

	for _, article := range articles {
		text := articleText(article)
		if strings.TrimSpace(text) == "" {
			continue
		}

		score := a.scorer.Compound(text)
		total += score
		analyzed++

		var themes *orderedSet
		switch {
		case score > themeThreshold:
			themes = positive
		case score < -themeThreshold:
			themes = negative
		default:
			continue
		}
		for _, word := range strings.Fields(strings.ToLower(text)) {
			if _, stop := skip[word]; stop {
				continue
			}
			themes.add(word)
		}
	}

	result := models.SentimentResult{
		Label:        models.SentimentNeutral,
		ArticleCount: len(articles),
		Analyzed:     analyzed,
		Reason:       models.ReasonScored,
	}
	if analyzed == 0 {
		result.Reason = models.ReasonNoneAnalyzed
		return result
	}

	mean := total / float64(analyzed)
	switch {
	case mean >= labelThreshold:
		result.Label = models.SentimentPositive
		result.Themes = positive.first(maxThemes)
	case mean <= -labelThreshold:
		result.Label = models.SentimentNegative
		result.Themes = negative.first(maxThemes)
	}
	return result
}

// articleText joins title and description into one blob.
func articleText(a models.NewsArticle) string {
	return a.Title + " " + a.Description
}

// orderedSet keeps distinct strings in insertion order.
type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

// first returns a copy of the first n items, or nil when empty.
func (s *orderedSet) first(n int) []string {
	if len(s.items) == 0 {
		return nil
	}
	n = min(n, len(s.items))
	out := make([]string, n)
	copy(out, s.items[:n])
	return out
}
