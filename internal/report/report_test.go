package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/seenimoa/fininsight/pkg/models"
)

// ════════════════════════════════════════════════════════════════════
// Test Helpers
// ════════════════════════════════════════════════════════════════════

func sampleSnapshot() *models.MarketSnapshot {
	price := 189.84
	return &models.MarketSnapshot{
		Ticker:      "AAPL",
		LatestPrice: &price,
		Highlights: models.FinancialHighlights{
			RevenueGrowth:  models.Some(0.15),
			EarningsGrowth: models.Some(0.2),
			ForwardPE:      models.Some(15),
			DebtRatio:      models.Some(0.8),
		},
	}
}

func sampleSentiment() models.SentimentResult {
	return models.SentimentResult{
		Label:        models.SentimentPositive,
		Themes:       []string{"iphone", "record", "services"},
		ArticleCount: 5,
		Analyzed:     5,
		Reason:       models.ReasonScored,
	}
}

type messageErr struct{ msg string }

func (e *messageErr) Error() string   { return "wrapped: " + e.msg }
func (e *messageErr) Message() string { return e.msg }

// ════════════════════════════════════════════════════════════════════
// Formatting
// ════════════════════════════════════════════════════════════════════

func TestFormatPercent(t *testing.T) {
	tests := []struct {
		in   models.Metric
		want string
	}{
		{models.Some(0.15), "15.00%"},
		{models.Some(0.1234), "12.34%"},
		{models.Some(0.07), "7.00%"},
		{models.Some(0.29), "29.00%"},
		{models.Some(-0.052), "-5.20%"},
		{models.Some(0), "0.00%"},
		{models.Some(1.5), "150.00%"},
		{models.None(), "N/A"},
	}
	for _, tt := range tests {
		if got := FormatPercent(tt.in); got != tt.want {
			t.Errorf("FormatPercent(%+v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatRatio(t *testing.T) {
	tests := []struct {
		in   models.Metric
		want string
	}{
		{models.Some(15), "15.00"},
		{models.Some(24.456), "24.46"},
		{models.Some(0.8), "0.80"},
		{models.Some(-3.2), "-3.20"},
		{models.Some(0), "0.00"},
		{models.None(), "N/A"},
	}
	for _, tt := range tests {
		if got := FormatRatio(tt.in); got != tt.want {
			t.Errorf("FormatRatio(%+v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatHighlightsIdempotent(t *testing.T) {
	h := sampleSnapshot().Highlights
	h.DebtRatio = models.None()
	first := FormatHighlights(h)
	second := FormatHighlights(h)
	if first != second {
		t.Errorf("formatting is not stable: %+v vs %+v", first, second)
	}
	want := models.FormattedHighlights{
		RevenueGrowthPercentage:  "15.00%",
		EarningsGrowthPercentage: "20.00%",
		ForwardPERatio:           "15.00",
		DebtToEquityRatio:        "N/A",
	}
	if first != want {
		t.Errorf("FormatHighlights = %+v, want %+v", first, want)
	}
}

func TestFormatPrice(t *testing.T) {
	if got := FormatPrice(nil); got != "N/A" {
		t.Errorf("FormatPrice(nil) = %q", got)
	}
	p := 101.5
	if got := FormatPrice(&p); got != "101.50" {
		t.Errorf("FormatPrice(101.5) = %q", got)
	}
}

func TestSentimentSummary(t *testing.T) {
	tests := []struct {
		name string
		in   models.SentimentResult
		want string
	}{
		{
			name: "no articles",
			in:   models.SentimentResult{Label: models.SentimentNeutral, Reason: models.ReasonNoArticles},
			want: "Neutral sentiment - No news articles found.",
		},
		{
			name: "none analyzed",
			in:   models.SentimentResult{Label: models.SentimentNeutral, Reason: models.ReasonNoneAnalyzed, ArticleCount: 2},
			want: "Neutral sentiment - No articles analyzed.",
		},
		{
			name: "positive with themes",
			in:   sampleSentiment(),
			want: "Overall Positive sentiment in news articles. Positive news themes include: iphone, record, services",
		},
		{
			name: "negative with one theme",
			in:   models.SentimentResult{Label: models.SentimentNegative, Themes: []string{"recall"}, Reason: models.ReasonScored},
			want: "Overall Negative sentiment in news articles. Negative news themes include: recall",
		},
		{
			name: "positive without themes",
			in:   models.SentimentResult{Label: models.SentimentPositive, Reason: models.ReasonScored},
			want: "Overall Positive sentiment in news articles.",
		},
		{
			name: "neutral scored",
			in:   models.SentimentResult{Label: models.SentimentNeutral, Reason: models.ReasonScored, ArticleCount: 1, Analyzed: 1},
			want: "Overall Neutral sentiment in news articles.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SentimentSummary(tt.in); got != tt.want {
				t.Errorf("SentimentSummary = %q, want %q", got, tt.want)
			}
		})
	}
}

// ════════════════════════════════════════════════════════════════════
// Build / Errors
// ════════════════════════════════════════════════════════════════════

func TestBuild(t *testing.T) {
	snap := sampleSnapshot()
	res := Build("AAPL", snap, sampleSentiment(), models.RatingBuy)

	if res.Ticker != "AAPL" || res.Rating != models.RatingBuy {
		t.Errorf("unexpected header fields: %+v", res)
	}
	if res.LatestPrice == nil || *res.LatestPrice != 189.84 {
		t.Fatalf("LatestPrice = %v, want 189.84", res.LatestPrice)
	}
	if res.LatestPrice == snap.LatestPrice {
		t.Error("result should not alias the snapshot price")
	}
	if res.FinancialHighlights.ForwardPERatio != "15.00" {
		t.Errorf("ForwardPERatio = %q", res.FinancialHighlights.ForwardPERatio)
	}
	if !strings.HasPrefix(res.SentimentSummary, "Overall Positive") {
		t.Errorf("SentimentSummary = %q", res.SentimentSummary)
	}
}

func TestBuildNilSnapshot(t *testing.T) {
	res := Build("ZZZ", nil, models.SentimentResult{Reason: models.ReasonNoArticles}, models.RatingHold)
	if res.LatestPrice != nil {
		t.Errorf("LatestPrice = %v, want nil", *res.LatestPrice)
	}
	if res.FinancialHighlights.RevenueGrowthPercentage != NotAvailable {
		t.Errorf("expected N/A highlights, got %+v", res.FinancialHighlights)
	}
}

func TestNewErrorResult(t *testing.T) {
	wrapped := fmt.Errorf("analyze: %w", &messageErr{msg: "Invalid ticker symbol: ZZZ."})
	if got := NewErrorResult(wrapped).Error; got != "Invalid ticker symbol: ZZZ." {
		t.Errorf("NewErrorResult(messager) = %q", got)
	}
	if got := NewErrorResult(errors.New("boom")).Error; got != "boom" {
		t.Errorf("NewErrorResult(plain) = %q", got)
	}
	if got := NewErrorResult(nil); got.Error != "" {
		t.Errorf("NewErrorResult(nil) = %+v", got)
	}
}

// ════════════════════════════════════════════════════════════════════
// Encoding
// ════════════════════════════════════════════════════════════════════

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"", FormatJSON, false},
		{"YAML", FormatYAML, false},
		{"yml", FormatYAML, false},
		{" text ", FormatText, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEncodeJSON(t *testing.T) {
	res := Build("AAPL", sampleSnapshot(), sampleSentiment(), models.RatingBuy)
	var buf bytes.Buffer
	if err := EncodeJSON(&buf, res); err != nil {
		t.Fatalf("EncodeJSON error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "\n    \"ticker\": \"AAPL\"") {
		t.Errorf("expected four-space indentation, got:\n%s", out)
	}
	if !strings.Contains(out, "\n        \"revenueGrowthPercentage\": \"15.00%\"") {
		t.Errorf("expected nested highlights, got:\n%s", out)
	}

	var decoded models.AnalysisResult
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Rating != models.RatingBuy || *decoded.LatestPrice != 189.84 {
		t.Errorf("decoded %+v", decoded)
	}
}

func TestEncodeJSONNullPrice(t *testing.T) {
	res := Build("AAPL", &models.MarketSnapshot{}, sampleSentiment(), models.RatingHold)
	var buf bytes.Buffer
	if err := EncodeJSON(&buf, res); err != nil {
		t.Fatalf("EncodeJSON error: %v", err)
	}
	if !strings.Contains(buf.String(), `"latest_price": null`) {
		t.Errorf("expected null latest_price, got:\n%s", buf.String())
	}
}

func TestEncodeYAML(t *testing.T) {
	res := Build("AAPL", sampleSnapshot(), sampleSentiment(), models.RatingBuy)
	var buf bytes.Buffer
	if err := Encode(&buf, FormatYAML, res); err != nil {
		t.Fatalf("Encode yaml error: %v", err)
	}

	var decoded map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("yaml decode: %v", err)
	}
	if decoded["rating"] != "Buy" {
		t.Errorf("rating = %v", decoded["rating"])
	}
	fh, ok := decoded["financialHighlights"].(map[string]any)
	if !ok {
		t.Fatalf("financialHighlights missing:\n%s", buf.String())
	}
	if fh["debtToEquityRatio"] != "0.80" {
		t.Errorf("debtToEquityRatio = %v", fh["debtToEquityRatio"])
	}
}

func TestEncodeText(t *testing.T) {
	res := Build("AAPL", sampleSnapshot(), sampleSentiment(), models.RatingBuy)
	errRes := models.ErrorResult{Error: "Could not retrieve data for ticker: MSFT."}

	var buf bytes.Buffer
	if err := Encode(&buf, FormatText, []any{res, errRes}); err != nil {
		t.Fatalf("Encode text error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"AAPL\n",
		"Rating:            Buy",
		"Latest price:      189.84",
		"Forward P/E:       15.00",
		"error: Could not retrieve data for ticker: MSFT.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}

	if err := EncodeText(&buf, 42); err == nil {
		t.Error("expected error for unsupported value")
	}
}

func TestEncodeUnknownFormat(t *testing.T) {
	if err := Encode(&bytes.Buffer{}, Format("xml"), nil); err == nil {
		t.Error("expected error for unknown format")
	}
}
