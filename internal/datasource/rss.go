package datasource

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/seenimoa/fininsight/internal/infra"
	"github.com/seenimoa/fininsight/pkg/models"
	"github.com/seenimoa/fininsight/pkg/utils"
)

// DefaultYahooRSSURL is the per-ticker headline feed. "{ticker}" is
// replaced with the query-escaped Yahoo symbol.
const DefaultYahooRSSURL = "https://feeds.finance.yahoo.com/rss/2.0/headline?s={ticker}&region=US&lang=en-US"

// YahooRSSConfig configures the Yahoo Finance headline feed source.
type YahooRSSConfig struct {
	FeedURL    string
	PageSize   int
	Timeout    time.Duration
	RatePerSec float64
}

// YahooRSS reads ticker headlines from the Yahoo Finance RSS feed. It needs
// no credentials and backs NewsAPI when no key is configured.
type YahooRSS struct {
	feedURL  string
	pageSize int
	client   *infra.Client
	parser   *gofeed.Parser
}

// NewYahooRSS creates a new Yahoo Finance RSS source.
func NewYahooRSS(cfg YahooRSSConfig) *YahooRSS {
	if cfg.FeedURL == "" {
		cfg.FeedURL = DefaultYahooRSSURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	return &YahooRSS{
		feedURL:  cfg.FeedURL,
		pageSize: cfg.PageSize,
		client:   infra.NewClient(infra.WithTimeout(cfg.Timeout), infra.WithRateLimit(cfg.RatePerSec)),
		parser:   gofeed.NewParser(),
	}
}

// Name returns the data source name.
func (r *YahooRSS) Name() string { return "Yahoo Finance RSS" }

// FetchArticles returns the latest feed items for ticker.
func (r *YahooRSS) FetchArticles(ctx context.Context, ticker string) ([]models.NewsArticle, error) {
	symbol := utils.ToYFinanceTicker(ticker)
	feedURL := strings.ReplaceAll(r.feedURL, "{ticker}", url.QueryEscape(symbol))

	body, _, err := r.client.Get(ctx, feedURL, map[string]string{
		"Accept": "application/rss+xml, application/xml;q=0.9, */*;q=0.8",
	})
	if err != nil {
		return nil, fmt.Errorf("fetch RSS %s: %w", symbol, err)
	}
	defer body.Close()

	feed, err := r.parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse RSS %s: %w", symbol, err)
	}

	source := coalesce(feed.Title, "Yahoo Finance")
	articles := make([]models.NewsArticle, 0, len(feed.Items))
	for _, item := range feed.Items {
		a := models.NewsArticle{
			Title:       cleanHTML(item.Title),
			Description: cleanHTML(item.Description),
			Source:      source,
			URL:         item.Link,
		}
		if item.PublishedParsed != nil {
			a.PublishedAt = *item.PublishedParsed
		}
		articles = append(articles, a)
	}
	return truncateArticles(articles, r.pageSize), nil
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}
