// Package engine runs the analysis pipeline: it fetches market data and
// news for a ticker, reduces the news to a sentiment label, scores the
// financial highlights and assembles the final rated result.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/fininsight/internal/analysis/fundamental"
	"github.com/seenimoa/fininsight/internal/analysis/rating"
	"github.com/seenimoa/fininsight/internal/analysis/sentiment"
	"github.com/seenimoa/fininsight/internal/datasource"
	"github.com/seenimoa/fininsight/internal/logger"
	"github.com/seenimoa/fininsight/internal/report"
	"github.com/seenimoa/fininsight/internal/telemetry"
	"github.com/seenimoa/fininsight/pkg/models"
	"github.com/seenimoa/fininsight/pkg/utils"
)

// MarketData supplies point-in-time market data. Unresolvable symbols must
// yield an error wrapping datasource.ErrTickerNotFound.
type MarketData interface {
	Snapshot(ctx context.Context, ticker string) (*models.MarketSnapshot, error)
}

// NewsProvider supplies recent articles. It never fails; problems are
// reported as an empty list.
type NewsProvider interface {
	Articles(ctx context.Context, ticker string) []models.NewsArticle
}

// DefaultConcurrency bounds AnalyzeMany when no limit is configured.
const DefaultConcurrency = 4

var errNoSnapshot = errors.New("market data source returned no snapshot")

// cleaner is implemented by providers that hold expiring cache entries.
type cleaner interface {
	Cleanup() int
}

// Engine wires the data providers to the scoring core.
type Engine struct {
	market      MarketData
	news        NewsProvider
	aggregator  *sentiment.Aggregator
	concurrency int
}

// Option configures an Engine.
type Option func(*Engine)

// WithScorer replaces the default VADER scorer.
func WithScorer(s sentiment.Scorer) Option {
	return func(e *Engine) { e.aggregator = sentiment.NewAggregator(s) }
}

// WithConcurrency sets how many tickers AnalyzeMany processes at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// New creates an engine over the given providers.
func New(market MarketData, news NewsProvider, opts ...Option) *Engine {
	e := &Engine{
		market:      market,
		news:        news,
		aggregator:  sentiment.NewAggregator(nil),
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze produces the rated result for one ticker. Failures are returned
// as *AnalysisError.
func (e *Engine) Analyze(ctx context.Context, ticker string) (res *models.AnalysisResult, err error) {
	symbol := utils.NormalizeTicker(ticker)

	ctx, runID := logger.WithRun(ctx, symbol)
	ctx, span := telemetry.StartSpan(ctx, "engine.analyze")
	span.SetAttributes(attribute.String("ticker", symbol), attribute.String("run_id", runID))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	log := logger.From(ctx)
	start := time.Now()

	if !utils.ValidTicker(symbol) {
		log.Warn().Str("input", ticker).Msg("Rejected malformed ticker")
		return nil, &AnalysisError{Ticker: symbol, Kind: KindInvalidTicker}
	}

	snap, err := e.market.Snapshot(ctx, symbol)
	if err == nil && snap == nil {
		err = errNoSnapshot
	}
	if err != nil {
		kind := KindRetrieval
		if errors.Is(err, datasource.ErrTickerNotFound) {
			kind = KindInvalidTicker
		}
		ev := log.Error()
		if errors.Is(err, datasource.ErrRateLimited) {
			ev = log.Warn().Bool("rate_limited", true)
		}
		ev.Err(err).Str("kind", string(kind)).Msg("Market data unavailable")
		return nil, &AnalysisError{Ticker: symbol, Kind: kind, Err: err}
	}

	articles := e.news.Articles(ctx, symbol)
	if len(articles) == 0 {
		log.Info().Msg("No news articles found")
	} else {
		log.Info().Int("articles", len(articles)).Msg("News articles fetched")
	}

	sent := e.aggregator.Aggregate(symbol, articles)

	score, parts := fundamental.ScoreWithBreakdown(snap.Highlights)
	if ev := log.Debug(); ev.Enabled() {
		rules := make([]string, len(parts))
		for i, p := range parts {
			rules[i] = p.String()
		}
		ev.Strs("rules", rules).Float64("financial_score", score).Msg("Financial highlights scored")
	}

	decision := rating.Decide(ctx, sent.Label, score)
	res = report.Build(symbol, snap, sent, decision.Rating)

	done := log.Info().
		Str("rating", string(res.Rating)).
		Dur("elapsed", time.Since(start))
	if traceID, ok := telemetry.TraceID(ctx); ok {
		done = done.Str("trace_id", traceID)
	}
	done.Msg("Analysis complete")
	return res, nil
}

// Cleanup drops expired cache entries held by the providers and returns
// how many were removed.
func (e *Engine) Cleanup() int {
	removed := 0
	for _, p := range []any{e.market, e.news} {
		if c, ok := p.(cleaner); ok {
			removed += c.Cleanup()
		}
	}
	return removed
}

// RunCleanup calls Cleanup every interval until ctx is done. A
// non-positive interval returns immediately.
func (e *Engine) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.Cleanup(); n > 0 {
				logger.From(ctx).Debug().Int("entries", n).Msg("Expired cache entries removed")
			}
		}
	}
}

// Outcome is the result of one ticker in a batch.
type Outcome struct {
	Ticker string
	Result *models.AnalysisResult
	Err    error
}

// AnalyzeMany analyzes tickers concurrently. Outcomes keep the input order
// and every ticker gets one, successful or not. The returned error is only
// the context error when ctx ends before all tickers are done.
func (e *Engine) AnalyzeMany(ctx context.Context, tickers []string) ([]Outcome, error) {
	out := make([]Outcome, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, t := range tickers {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				out[i] = Outcome{Ticker: utils.NormalizeTicker(t), Err: err}
				return nil
			}
			res, err := e.Analyze(gctx, t)
			out[i] = Outcome{Ticker: utils.NormalizeTicker(t), Result: res, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, ctx.Err()
}

// ErrorKind classifies an analysis failure.
type ErrorKind string

const (
	KindInvalidTicker ErrorKind = "invalid_ticker"
	KindRetrieval     ErrorKind = "retrieval"
)

// AnalysisError reports why a ticker could not be analyzed.
type AnalysisError struct {
	Ticker string
	Kind   ErrorKind
	Err    error
}

func (e *AnalysisError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Ticker)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Ticker, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// Message returns the user-facing reason.
func (e *AnalysisError) Message() string {
	if e.Kind == KindInvalidTicker {
		return fmt.Sprintf("Invalid ticker symbol: %s. Please check the ticker symbol and ensure it is valid.", e.Ticker)
	}
	return fmt.Sprintf("Could not retrieve data for ticker: %s. Please check the ticker symbol or try again later.", e.Ticker)
}
