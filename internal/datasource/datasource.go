// Package datasource fetches the raw inputs of an analysis: point-in-time
// market data from Yahoo Finance and recent news articles from NewsAPI.org
// or the Yahoo Finance headline feed.
package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/seenimoa/fininsight/internal/infra"
	"github.com/seenimoa/fininsight/pkg/models"
)

// --- Sentinel errors ---

// ErrNotSupported is returned when a source cannot serve a request, for
// example a keyed API constructed without a key.
var ErrNotSupported = errors.New("operation not supported by this data source")

// ErrTickerNotFound is returned when a ticker cannot be resolved.
var ErrTickerNotFound = errors.New("ticker not found")

// ErrRateLimited is returned when a source rate-limits the request.
var ErrRateLimited = errors.New("rate limited by data source")

// ArticleSource is a single upstream of news articles.
type ArticleSource interface {
	// Name returns the human-readable name of this source.
	Name() string

	// FetchArticles returns recent articles about ticker. Sources that
	// cannot serve the request return ErrNotSupported.
	FetchArticles(ctx context.Context, ticker string) ([]models.NewsArticle, error)
}

// classifyHTTP maps well-known HTTP failures onto sentinel errors while
// keeping the original error in the chain.
func classifyHTTP(err error, ticker string) error {
	var httpErr *infra.ErrHTTP
	if !errors.As(err, &httpErr) {
		return err
	}
	switch httpErr.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s: %w", ErrTickerNotFound, ticker, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	default:
		return err
	}
}

// truncateArticles truncates articles to at most n entries when n is positive.
func truncateArticles(articles []models.NewsArticle, n int) []models.NewsArticle {
	if n > 0 && len(articles) > n {
		return articles[:n]
	}
	return articles
}
