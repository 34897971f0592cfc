package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/seenimoa/fininsight/internal/infra"
	"github.com/seenimoa/fininsight/internal/logger"
	"github.com/seenimoa/fininsight/internal/telemetry"
	"github.com/seenimoa/fininsight/pkg/models"
	"github.com/seenimoa/fininsight/pkg/utils"
)

// DefaultNewsAPIBaseURL is the NewsAPI.org endpoint root.
const DefaultNewsAPIBaseURL = "https://newsapi.org"

// DefaultPageSize is the number of articles requested per ticker.
const DefaultPageSize = 5

// News implements the analysis news provider on top of an ordered list of
// sources. The first source that supports the request is used; failures
// are logged and yield no articles.
type News struct {
	sources []ArticleSource
	cache   *infra.Cache[[]models.NewsArticle]
}

// NewNews creates a news provider over sources, tried in order.
func NewNews(cacheTTL time.Duration, sources ...ArticleSource) *News {
	return &News{
		sources: sources,
		cache:   infra.NewCache[[]models.NewsArticle](cacheTTL),
	}
}

// Name returns the data source name.
func (n *News) Name() string {
	names := make([]string, len(n.sources))
	for i, s := range n.sources {
		names[i] = s.Name()
	}
	return strings.Join(names, ", ")
}

// Cleanup drops expired cached article lists.
func (n *News) Cleanup() int { return n.cache.Cleanup() }

// Articles returns recent articles about ticker. It never fails: any error
// is logged and an empty list is returned.
func (n *News) Articles(ctx context.Context, ticker string) []models.NewsArticle {
	symbol := utils.NormalizeTicker(ticker)
	log := logger.From(ctx)

	ctx, span := telemetry.StartSpan(ctx, "datasource.news")
	defer span.End()
	span.SetAttributes(attribute.String("ticker", symbol))

	cacheKey := "news:" + symbol
	if cached, ok := n.cache.Get(cacheKey); ok {
		return cached
	}

	for _, src := range n.sources {
		articles, err := src.FetchArticles(ctx, symbol)
		if errors.Is(err, ErrNotSupported) {
			continue
		}
		if err != nil {
			log.Warn().Err(err).Str("source", src.Name()).Msg("News fetch failed, continuing without articles")
			span.RecordError(err)
			return nil
		}

		span.SetAttributes(
			attribute.String("source", src.Name()),
			attribute.Int("articles", len(articles)),
		)
		log.Debug().Str("source", src.Name()).Int("articles", len(articles)).Msg("News fetched")
		n.cache.Set(cacheKey, articles)
		return articles
	}

	log.Warn().Msg("No news source configured, continuing without articles")
	return nil
}

// ── NewsAPI.org ──

// NewsAPIConfig configures the NewsAPI.org source.
type NewsAPIConfig struct {
	APIKey     string
	BaseURL    string
	PageSize   int
	Timeout    time.Duration
	RatePerSec float64
}

// NewsAPI fetches articles from the NewsAPI.org "everything" endpoint.
type NewsAPI struct {
	apiKey   string
	baseURL  string
	pageSize int
	client   *infra.Client
}

// NewNewsAPI creates a NewsAPI source. Without an API key every request
// returns ErrNotSupported.
func NewNewsAPI(cfg NewsAPIConfig) *NewsAPI {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultNewsAPIBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.RatePerSec == 0 {
		cfg.RatePerSec = 2
	}
	return &NewsAPI{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		pageSize: cfg.PageSize,
		client:   infra.NewClient(infra.WithTimeout(cfg.Timeout), infra.WithRateLimit(cfg.RatePerSec)),
	}
}

// Name returns the data source name.
func (a *NewsAPI) Name() string { return "NewsAPI" }

type newsAPIResponse struct {
	Status       string           `json:"status"`
	Code         string           `json:"code"`
	Message      string           `json:"message"`
	TotalResults int              `json:"totalResults"`
	Articles     []newsAPIArticle `json:"articles"`
}

type newsAPIArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Content     string `json:"content"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}

// FetchArticles queries NewsAPI for English articles about ticker, most
// relevant first.
func (a *NewsAPI) FetchArticles(ctx context.Context, ticker string) ([]models.NewsArticle, error) {
	if a.apiKey == "" {
		return nil, ErrNotSupported
	}

	q := url.Values{}
	q.Set("q", newsQuery(ticker))
	q.Set("language", "en")
	q.Set("sortBy", "relevancy")
	q.Set("pageSize", fmt.Sprint(a.pageSize))
	reqURL := a.baseURL + "/v2/everything?" + q.Encode()

	var resp newsAPIResponse
	err := a.client.GetJSON(ctx, reqURL, map[string]string{
		"Accept":    "application/json",
		"X-Api-Key": a.apiKey,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("newsapi %s: %w", ticker, err)
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("newsapi %s: status %q: %s %s", ticker, resp.Status, resp.Code, resp.Message)
	}

	articles := make([]models.NewsArticle, 0, len(resp.Articles))
	for _, item := range resp.Articles {
		art := models.NewsArticle{
			Title:       item.Title,
			Description: coalesce(item.Description, item.Content),
			Source:      item.Source.Name,
			URL:         item.URL,
		}
		if ts, err := time.Parse(time.RFC3339, item.PublishedAt); err == nil {
			art.PublishedAt = ts
		}
		articles = append(articles, art)
	}
	return truncateArticles(articles, a.pageSize), nil
}

// newsQuery builds the search expression for a ticker.
func newsQuery(ticker string) string {
	return fmt.Sprintf("%[1]s finance OR %[1]s stock OR %[1]s market", ticker)
}
