package datasource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/seenimoa/fininsight/internal/infra"
	"github.com/seenimoa/fininsight/internal/logger"
	"github.com/seenimoa/fininsight/internal/telemetry"
	"github.com/seenimoa/fininsight/pkg/models"
	"github.com/seenimoa/fininsight/pkg/utils"
)

const (
	// DefaultYahooBaseURL serves the quoteSummary and crumb endpoints.
	DefaultYahooBaseURL = "https://query2.finance.yahoo.com"

	// DefaultYahooCookieURL hands out the session cookie the crumb is bound to.
	DefaultYahooCookieURL = "https://fc.yahoo.com"

	summaryModules = "price,summaryDetail,financialData,defaultKeyStatistics,balanceSheetHistory"
)

// YFinanceConfig configures the Yahoo Finance provider. Zero values select
// defaults.
type YFinanceConfig struct {
	BaseURL    string
	CookieURL  string
	Timeout    time.Duration
	RatePerSec float64
	CacheTTL   time.Duration
}

// YFinance fetches market snapshots from the Yahoo Finance quoteSummary API.
type YFinance struct {
	baseURL   string
	cookieURL string
	client    *infra.Client
	cache     *infra.Cache[*models.MarketSnapshot]

	mu    sync.Mutex
	crumb string
}

// NewYFinance creates a new Yahoo Finance data source.
func NewYFinance(cfg YFinanceConfig) *YFinance {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultYahooBaseURL
	}
	if cfg.CookieURL == "" {
		cfg.CookieURL = DefaultYahooCookieURL
	}
	if cfg.RatePerSec == 0 {
		cfg.RatePerSec = 5
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = infra.DefaultTimeout
	}
	jar, _ := cookiejar.New(nil)

	return &YFinance{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		cookieURL: cfg.CookieURL,
		client: infra.NewClient(
			infra.WithHTTPClient(&http.Client{Timeout: timeout, Jar: jar}),
			infra.WithRateLimit(cfg.RatePerSec),
		),
		cache: infra.NewCache[*models.MarketSnapshot](cfg.CacheTTL),
	}
}

// Name returns the data source name.
func (y *YFinance) Name() string { return "Yahoo Finance" }

// Cleanup drops expired cached snapshots.
func (y *YFinance) Cleanup() int { return y.cache.Cleanup() }

// --- Yahoo Finance v10 quoteSummary types ---

type yfQuoteSummaryResponse struct {
	QuoteSummary struct {
		Result []yfQuoteSummaryResult `json:"result"`
		Error  *yfError               `json:"error"`
	} `json:"quoteSummary"`
}

type yfQuoteSummaryResult struct {
	Price                *yfPrice                `json:"price"`
	SummaryDetail        *yfSummaryDetail        `json:"summaryDetail"`
	FinancialData        *yfFinancialData        `json:"financialData"`
	DefaultKeyStatistics *yfDefaultKeyStatistics `json:"defaultKeyStatistics"`
	BalanceSheetHistory  *yfBalanceSheetHistory  `json:"balanceSheetHistory"`
}

// yfFinVal is Yahoo's {raw, fmt} number wrapper. Missing values arrive as
// an empty object, leaving Raw nil.
type yfFinVal struct {
	Raw *float64 `json:"raw"`
	Fmt string   `json:"fmt"`
}

func (v yfFinVal) metric() models.Metric { return models.FromPtr(v.Raw) }

type yfPrice struct {
	Symbol             string   `json:"symbol"`
	ShortName          string   `json:"shortName"`
	LongName           string   `json:"longName"`
	Currency           string   `json:"currency"`
	RegularMarketPrice yfFinVal `json:"regularMarketPrice"`
}

type yfSummaryDetail struct {
	ForwardPE yfFinVal `json:"forwardPE"`
}

type yfFinancialData struct {
	CurrentPrice   yfFinVal `json:"currentPrice"`
	RevenueGrowth  yfFinVal `json:"revenueGrowth"`
	EarningsGrowth yfFinVal `json:"earningsGrowth"`
	TotalDebt      yfFinVal `json:"totalDebt"`
	DebtToEquity   yfFinVal `json:"debtToEquity"` // reported in percent
}

type yfDefaultKeyStatistics struct {
	ForwardPE yfFinVal `json:"forwardPE"`
}

type yfBalanceSheetHistory struct {
	Statements []yfBalanceSheet `json:"balanceSheetStatements"`
}

type yfBalanceSheet struct {
	TotalAssets yfFinVal `json:"totalAssets"`
}

type yfError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// --- Public methods ---

// Snapshot returns the latest price and financial highlights for ticker.
// Unknown symbols yield an error wrapping ErrTickerNotFound.
func (y *YFinance) Snapshot(ctx context.Context, ticker string) (snap *models.MarketSnapshot, err error) {
	yfTicker := utils.ToYFinanceTicker(ticker)

	ctx, span := telemetry.StartSpan(ctx, "datasource.snapshot")
	span.SetAttributes(attribute.String("ticker", yfTicker))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	cacheKey := "snapshot:" + yfTicker
	if cached, ok := y.cache.Get(cacheKey); ok {
		return cached, nil
	}

	crumb := y.ensureCrumb(ctx)

	q := url.Values{}
	q.Set("modules", summaryModules)
	if crumb != "" {
		q.Set("crumb", crumb)
	}
	reqURL := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?%s", y.baseURL, url.PathEscape(yfTicker), q.Encode())

	var resp yfQuoteSummaryResponse
	if err := y.client.GetJSON(ctx, reqURL, map[string]string{"Accept": "application/json"}, &resp); err != nil {
		var httpErr *infra.ErrHTTP
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized {
			y.resetCrumb()
		}
		return nil, fmt.Errorf("yfinance quoteSummary %s: %w", yfTicker, classifyHTTP(err, ticker))
	}

	if e := resp.QuoteSummary.Error; e != nil {
		if strings.EqualFold(e.Code, "Not Found") {
			return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, ticker)
		}
		return nil, fmt.Errorf("yfinance API error: %s", e.Description)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, ticker)
	}

	snap = buildSnapshot(ticker, resp.QuoteSummary.Result[0])
	y.cache.Set(cacheKey, snap)

	logger.From(ctx).Debug().
		Str("symbol", yfTicker).
		Bool("has_price", snap.LatestPrice != nil).
		Msg("Market snapshot fetched")
	return snap, nil
}

// --- Helpers ---

// buildSnapshot converts the raw modules into a snapshot. Every field is
// optional; the debt ratio prefers debt-to-equity and falls back to
// debt-to-assets from the latest balance sheet.
func buildSnapshot(ticker string, r yfQuoteSummaryResult) *models.MarketSnapshot {
	snap := &models.MarketSnapshot{Ticker: ticker}

	price := models.None()
	if p := r.Price; p != nil {
		snap.Name = coalesce(p.LongName, p.ShortName)
		snap.Currency = p.Currency
		price = p.RegularMarketPrice.metric()
	}

	var h models.FinancialHighlights
	if fd := r.FinancialData; fd != nil {
		h.RevenueGrowth = fd.RevenueGrowth.metric()
		h.EarningsGrowth = fd.EarningsGrowth.metric()
		if de, ok := fd.DebtToEquity.metric().Get(); ok {
			h.DebtRatio = models.Some(de / 100)
		}
		if !price.Valid {
			price = fd.CurrentPrice.metric()
		}
	}

	if ks := r.DefaultKeyStatistics; ks != nil {
		h.ForwardPE = ks.ForwardPE.metric()
	}
	if !h.ForwardPE.Valid && r.SummaryDetail != nil {
		h.ForwardPE = r.SummaryDetail.ForwardPE.metric()
	}

	if !h.DebtRatio.Valid {
		h.DebtRatio = debtToAssets(r)
	}

	if v, ok := price.Get(); ok {
		snap.LatestPrice = &v
	}
	snap.Highlights = h
	return snap
}

func debtToAssets(r yfQuoteSummaryResult) models.Metric {
	if r.FinancialData == nil || r.BalanceSheetHistory == nil || len(r.BalanceSheetHistory.Statements) == 0 {
		return models.None()
	}
	debt, ok := r.FinancialData.TotalDebt.metric().Get()
	if !ok {
		return models.None()
	}
	assets, ok := r.BalanceSheetHistory.Statements[0].TotalAssets.metric().Get()
	if !ok || assets == 0 {
		return models.None()
	}
	return models.Some(debt / assets)
}

// ensureCrumb returns the cached API crumb, obtaining one on first use.
// Failures are not fatal: the request is attempted without a crumb.
func (y *YFinance) ensureCrumb(ctx context.Context) string {
	y.mu.Lock()
	defer y.mu.Unlock()
	if y.crumb != "" {
		return y.crumb
	}

	// The cookie endpoint answers 404 but still sets the session cookie.
	if body, _, err := y.client.Get(ctx, y.cookieURL, nil); err == nil {
		body.Close()
	}

	body, _, err := y.client.Get(ctx, y.baseURL+"/v1/test/getcrumb", map[string]string{"Accept": "text/plain"})
	if err != nil {
		logger.From(ctx).Debug().Err(err).Msg("Yahoo crumb unavailable")
		return ""
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, 256))
	if err != nil {
		return ""
	}
	crumb := strings.TrimSpace(string(data))
	if strings.ContainsAny(crumb, "{<") {
		return ""
	}
	y.crumb = crumb
	return crumb
}

func (y *YFinance) resetCrumb() {
	y.mu.Lock()
	y.crumb = ""
	y.mu.Unlock()
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
