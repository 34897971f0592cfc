package sentiment

import (
	"sync"

	"github.com/jonreiter/govader"
)

// Scorer produces a compound polarity score in [-1, +1] for a text.
type Scorer interface {
	Compound(text string) float64
}

// VADER scores text with the VADER valence lexicon and rules.
// It is safe for concurrent use.
type VADER struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewVADER loads the lexicon and returns a ready scorer.
func NewVADER() *VADER {
	return &VADER{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Compound returns the normalised polarity of text.
// Score ranges from -1.0 (very negative) to +1.0 (very positive).
func (v *VADER) Compound(text string) float64 {
	return v.analyzer.PolarityScores(text).Compound
}

// defaultScorer loads the lexicon once, on first use.
var defaultScorer = sync.OnceValue(func() Scorer { return NewVADER() })

// DefaultScorer returns the shared VADER scorer used when none is supplied.
func DefaultScorer() Scorer {
	return defaultScorer()
}
