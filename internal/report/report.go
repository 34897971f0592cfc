package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/seenimoa/fininsight/pkg/models"
)

// Format specifies the output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatText Format = "text"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatYAML, FormatText:
		return f, nil
	case "yml":
		return FormatYAML, nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want json, yaml or text)", s)
	}
}

// Build assembles the externally visible record of one analysis.
func Build(ticker string, snap *models.MarketSnapshot, sent models.SentimentResult, rating models.Rating) *models.AnalysisResult {
	res := &models.AnalysisResult{
		Ticker:           ticker,
		SentimentSummary: SentimentSummary(sent),
		Rating:           rating,
	}
	var h models.FinancialHighlights
	if snap != nil {
		h = snap.Highlights
		if snap.LatestPrice != nil {
			p := *snap.LatestPrice
			res.LatestPrice = &p
		}
	}
	res.FinancialHighlights = FormatHighlights(h)
	return res
}

// messager is implemented by errors that carry a user-facing reason.
type messager interface {
	Message() string
}

// NewErrorResult converts an analysis failure into its wire record.
func NewErrorResult(err error) models.ErrorResult {
	if err == nil {
		return models.ErrorResult{}
	}
	var m messager
	if errors.As(err, &m) {
		return models.ErrorResult{Error: m.Message()}
	}
	return models.ErrorResult{Error: err.Error()}
}

// Encode writes v in the requested format.
func Encode(w io.Writer, f Format, v any) error {
	switch f {
	case FormatJSON, "":
		return EncodeJSON(w, v)
	case FormatYAML:
		return EncodeYAML(w, v)
	case FormatText:
		return EncodeText(w, v)
	default:
		return fmt.Errorf("unknown output format %q", f)
	}
}

// EncodeJSON writes v as JSON indented by four spaces.
func EncodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding json: %w", err)
	}
	return nil
}

// EncodeYAML writes v as a YAML document.
func EncodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(4)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding yaml: %w", err)
	}
	return enc.Close()
}

// ════════════════════════════════════════════════════════════════════
// Plain-text rendering
// ════════════════════════════════════════════════════════════════════

const textTemplate = `{{define "result"}}{{.Ticker}}
  Rating:            {{.Rating}}
  Latest price:      {{price .LatestPrice}}
  Sentiment:         {{.SentimentSummary}}
  Revenue growth:    {{.FinancialHighlights.RevenueGrowthPercentage}}
  Earnings growth:   {{.FinancialHighlights.EarningsGrowthPercentage}}
  Forward P/E:       {{.FinancialHighlights.ForwardPERatio}}
  Debt to equity:    {{.FinancialHighlights.DebtToEquityRatio}}
{{end}}{{define "error"}}error: {{.Error}}
{{end}}`

var textTmpl = template.Must(template.New("text").
	Funcs(template.FuncMap{"price": FormatPrice}).
	Parse(textTemplate))

// EncodeText writes a human-readable rendering of results, error results,
// or slices of either.
func EncodeText(w io.Writer, v any) error {
	switch x := v.(type) {
	case []any:
		for i, item := range x {
			if i > 0 {
				if _, err := io.WriteString(w, "\n"); err != nil {
					return err
				}
			}
			if err := EncodeText(w, item); err != nil {
				return err
			}
		}
		return nil
	case *models.AnalysisResult:
		return textTmpl.ExecuteTemplate(w, "result", x)
	case models.AnalysisResult:
		return textTmpl.ExecuteTemplate(w, "result", &x)
	case models.ErrorResult:
		return textTmpl.ExecuteTemplate(w, "error", x)
	case *models.ErrorResult:
		return textTmpl.ExecuteTemplate(w, "error", x)
	default:
		return fmt.Errorf("cannot render %T as text", v)
	}
}
