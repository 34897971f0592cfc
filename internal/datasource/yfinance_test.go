package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const appleSummary = `{"quoteSummary":{"result":[{
	"price":{"symbol":"AAPL","longName":"Apple Inc.","currency":"USD","regularMarketPrice":{"raw":189.5,"fmt":"189.50"}},
	"financialData":{"currentPrice":{"raw":188.0},"revenueGrowth":{"raw":0.15},"earningsGrowth":{"raw":0.2},"debtToEquity":{"raw":145.0},"totalDebt":{"raw":100.0}},
	"defaultKeyStatistics":{"forwardPE":{"raw":16.5}},
	"summaryDetail":{"forwardPE":{"raw":99.0}},
	"balanceSheetHistory":{"balanceSheetStatements":[{"totalAssets":{"raw":400.0}}]}
}],"error":null}}`

// yahooStub serves the cookie, crumb and quoteSummary endpoints. Summaries
// maps a Yahoo symbol to the JSON body returned for it; unknown symbols get
// a 404.
type yahooStub struct {
	summaries    map[string]string
	summaryCalls atomic.Int32
	crumbCalls   atomic.Int32
	unauthorized atomic.Bool
	rateLimited  atomic.Bool
	lastCrumb    atomic.Value
	crumbCookie  atomic.Bool
}

func (s *yahooStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/cookie", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "A3", Value: "session", Path: "/"})
		http.NotFound(w, r)
	})
	mux.HandleFunc("/v1/test/getcrumb", func(w http.ResponseWriter, r *http.Request) {
		s.crumbCalls.Add(1)
		if c, err := r.Cookie("A3"); err == nil && c.Value == "session" {
			s.crumbCookie.Store(true)
		}
		fmt.Fprint(w, "abc123")
	})
	mux.HandleFunc("/v10/finance/quoteSummary/", func(w http.ResponseWriter, r *http.Request) {
		s.summaryCalls.Add(1)
		s.lastCrumb.Store(r.URL.Query().Get("crumb"))
		if s.rateLimited.Load() {
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		if s.unauthorized.CompareAndSwap(true, false) {
			http.Error(w, `{"finance":{"error":{"code":"Unauthorized"}}}`, http.StatusUnauthorized)
			return
		}
		sym := strings.TrimPrefix(r.URL.Path, "/v10/finance/quoteSummary/")
		body, ok := s.summaries[sym]
		if !ok {
			http.Error(w, `{"quoteSummary":{"result":null,"error":{"code":"Not Found","description":"Quote not found"}}}`, http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	})
	return mux
}

func newTestYFinance(t *testing.T, stub *yahooStub, cacheTTL time.Duration) *YFinance {
	t.Helper()
	srv := httptest.NewServer(stub.handler())
	t.Cleanup(srv.Close)
	return NewYFinance(YFinanceConfig{
		BaseURL:    srv.URL,
		CookieURL:  srv.URL + "/cookie",
		Timeout:    5 * time.Second,
		RatePerSec: -1,
		CacheTTL:   cacheTTL,
	})
}

func TestSnapshot(t *testing.T) {
	stub := &yahooStub{summaries: map[string]string{"AAPL": appleSummary}}
	yf := newTestYFinance(t, stub, 0)

	snap, err := yf.Snapshot(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	if snap.Ticker != "AAPL" || snap.Name != "Apple Inc." || snap.Currency != "USD" {
		t.Errorf("identity = %q %q %q", snap.Ticker, snap.Name, snap.Currency)
	}
	if snap.LatestPrice == nil || *snap.LatestPrice != 189.5 {
		t.Errorf("LatestPrice = %v, want 189.5", snap.LatestPrice)
	}

	h := snap.Highlights
	checks := []struct {
		name string
		got  float64
		ok   bool
		want float64
	}{
		{"revenue growth", h.RevenueGrowth.Value, h.RevenueGrowth.Valid, 0.15},
		{"earnings growth", h.EarningsGrowth.Value, h.EarningsGrowth.Valid, 0.2},
		{"forward PE", h.ForwardPE.Value, h.ForwardPE.Valid, 16.5},
		{"debt ratio", h.DebtRatio.Value, h.DebtRatio.Valid, 1.45},
	}
	for _, c := range checks {
		if !c.ok || c.got != c.want {
			t.Errorf("%s = %v (valid %v), want %v", c.name, c.got, c.ok, c.want)
		}
	}
}

func TestSnapshotFallbacks(t *testing.T) {
	body := `{"quoteSummary":{"result":[{
		"price":{"symbol":"XYZ","shortName":"XYZ Corp","regularMarketPrice":{}},
		"financialData":{"currentPrice":{"raw":42.0},"debtToEquity":{},"totalDebt":{"raw":50.0}},
		"summaryDetail":{"forwardPE":{"raw":12.0}},
		"balanceSheetHistory":{"balanceSheetStatements":[{"totalAssets":{"raw":200.0}},{"totalAssets":{"raw":1.0}}]}
	}],"error":null}}`
	stub := &yahooStub{summaries: map[string]string{"XYZ": body}}
	yf := newTestYFinance(t, stub, 0)

	snap, err := yf.Snapshot(context.Background(), "xyz")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Name != "XYZ Corp" {
		t.Errorf("Name = %q, want short name", snap.Name)
	}
	if snap.LatestPrice == nil || *snap.LatestPrice != 42 {
		t.Errorf("LatestPrice = %v, want current price 42", snap.LatestPrice)
	}
	if v, ok := snap.Highlights.ForwardPE.Get(); !ok || v != 12 {
		t.Errorf("ForwardPE = %v (valid %v), want summaryDetail 12", v, ok)
	}
	if v, ok := snap.Highlights.DebtRatio.Get(); !ok || v != 0.25 {
		t.Errorf("DebtRatio = %v (valid %v), want debt-to-assets 0.25", v, ok)
	}
	if snap.Highlights.RevenueGrowth.Valid || snap.Highlights.EarningsGrowth.Valid {
		t.Error("missing growth figures should stay absent")
	}
}

func TestSnapshotNoTradingData(t *testing.T) {
	body := `{"quoteSummary":{"result":[{"price":{"symbol":"DORM","regularMarketPrice":{}}}],"error":null}}`
	stub := &yahooStub{summaries: map[string]string{"DORM": body}}
	yf := newTestYFinance(t, stub, 0)

	snap, err := yf.Snapshot(context.Background(), "DORM")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.LatestPrice != nil {
		t.Errorf("LatestPrice = %v, want nil", *snap.LatestPrice)
	}
	h := snap.Highlights
	if h.RevenueGrowth.Valid || h.EarningsGrowth.Valid || h.ForwardPE.Valid || h.DebtRatio.Valid {
		t.Errorf("expected all highlights absent, got %+v", h)
	}
}

func TestSnapshotNotFound(t *testing.T) {
	tests := []struct {
		name   string
		ticker string
		body   string
	}{
		{"http 404", "ZZZZ", ""},
		{"error code", "GONE", `{"quoteSummary":{"result":null,"error":{"code":"Not Found","description":"Quote not found"}}}`},
		{"empty result", "NONE", `{"quoteSummary":{"result":[],"error":null}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summaries := map[string]string{}
			if tt.body != "" {
				summaries[tt.ticker] = tt.body
			}
			yf := newTestYFinance(t, &yahooStub{summaries: summaries}, 0)

			_, err := yf.Snapshot(context.Background(), tt.ticker)
			if !errors.Is(err, ErrTickerNotFound) {
				t.Fatalf("err = %v, want ErrTickerNotFound", err)
			}
		})
	}
}

func TestSnapshotAPIError(t *testing.T) {
	body := `{"quoteSummary":{"result":null,"error":{"code":"Internal","description":"backend unavailable"}}}`
	yf := newTestYFinance(t, &yahooStub{summaries: map[string]string{"AAPL": body}}, 0)

	_, err := yf.Snapshot(context.Background(), "AAPL")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrTickerNotFound) {
		t.Errorf("API error should not be reported as not found: %v", err)
	}
	if !strings.Contains(err.Error(), "backend unavailable") {
		t.Errorf("err = %v, want description", err)
	}
}

func TestSnapshotRateLimited(t *testing.T) {
	stub := &yahooStub{summaries: map[string]string{"AAPL": appleSummary}}
	stub.rateLimited.Store(true)
	yf := newTestYFinance(t, stub, 0)

	_, err := yf.Snapshot(context.Background(), "AAPL")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, want ErrRateLimited", err)
	}
	if errors.Is(err, ErrTickerNotFound) {
		t.Errorf("rate limiting should not be reported as not found: %v", err)
	}
}

func TestSnapshotCrumb(t *testing.T) {
	stub := &yahooStub{summaries: map[string]string{"AAPL": appleSummary}}
	yf := newTestYFinance(t, stub, 0)

	for i := 0; i < 2; i++ {
		if _, err := yf.Snapshot(context.Background(), "AAPL"); err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
	}
	if got := stub.lastCrumb.Load(); got != "abc123" {
		t.Errorf("crumb = %v, want abc123", got)
	}
	if n := stub.crumbCalls.Load(); n != 1 {
		t.Errorf("crumb fetched %d times, want 1", n)
	}
	if !stub.crumbCookie.Load() {
		t.Error("crumb request did not carry the session cookie")
	}
}

func TestSnapshotUnauthorizedResetsCrumb(t *testing.T) {
	stub := &yahooStub{summaries: map[string]string{"AAPL": appleSummary}}
	stub.unauthorized.Store(true)
	yf := newTestYFinance(t, stub, 0)

	if _, err := yf.Snapshot(context.Background(), "AAPL"); err == nil {
		t.Fatal("expected 401 error")
	}
	if _, err := yf.Snapshot(context.Background(), "AAPL"); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if n := stub.crumbCalls.Load(); n != 2 {
		t.Errorf("crumb fetched %d times, want 2", n)
	}
}

func TestSnapshotCache(t *testing.T) {
	stub := &yahooStub{summaries: map[string]string{"AAPL": appleSummary}}
	yf := newTestYFinance(t, stub, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := yf.Snapshot(context.Background(), "aapl"); err != nil {
			t.Fatalf("Snapshot: %v", err)
		}
	}
	if n := stub.summaryCalls.Load(); n != 1 {
		t.Errorf("quoteSummary called %d times, want 1", n)
	}
}

func TestSnapshotSymbolMapping(t *testing.T) {
	stub := &yahooStub{summaries: map[string]string{
		"BRK-B": `{"quoteSummary":{"result":[{"price":{"regularMarketPrice":{"raw":410.0}}}]}}`,
		"^GSPC": `{"quoteSummary":{"result":[{"price":{"regularMarketPrice":{"raw":5000.0}}}]}}`,
	}}
	yf := newTestYFinance(t, stub, 0)

	for ticker, want := range map[string]float64{"BRK.B": 410, "SPX": 5000} {
		snap, err := yf.Snapshot(context.Background(), ticker)
		if err != nil {
			t.Fatalf("Snapshot(%s): %v", ticker, err)
		}
		if snap.LatestPrice == nil || *snap.LatestPrice != want {
			t.Errorf("Snapshot(%s) price = %v, want %v", ticker, snap.LatestPrice, want)
		}
	}
}

func TestYFinanceName(t *testing.T) {
	if got := NewYFinance(YFinanceConfig{}).Name(); got != "Yahoo Finance" {
		t.Errorf("Name() = %q", got)
	}
}
