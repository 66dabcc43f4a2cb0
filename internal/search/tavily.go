// Package search wraps the web-search provider used to fill data gaps.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"resty.dev/v3"

	"metricsfetcher/internal/fetcher"
	"metricsfetcher/internal/ratelimit"
)

// DefaultBaseURL is the Tavily API root.
const DefaultBaseURL = "https://api.tavily.com"

type searchRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
}

type searchResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Client is a Tavily search client.
type Client struct {
	apiKey  string
	client  *resty.Client
	limiter *ratelimit.Limiter
	logger  zerolog.Logger
}

// NewClient creates a search client. An empty apiKey yields a client that
// reports itself unavailable.
func NewClient(apiKey, baseURL string, limiter *ratelimit.Limiter, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		client:  fetcher.NewHTTPClient(baseURL),
		limiter: limiter,
		logger:  logger.With().Str("source", "tavily").Logger(),
	}
}

// Available reports whether an API key is configured.
func (c *Client) Available() bool {
	return c != nil && c.apiKey != ""
}

// Search returns the plain-text content of up to maxResults results.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]string, error) {
	if !c.Available() {
		return nil, fetcher.NewUnavailableError("tavily")
	}
	if err := c.limiter.Wait(ctx, ratelimit.APITavily); err != nil {
		return nil, fetcher.ClassifyRequestError(ctx, err)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(searchRequest{
			APIKey:      c.apiKey,
			Query:       query,
			MaxResults:  maxResults,
			SearchDepth: "basic",
		}).
		Post("/search")
	if err != nil {
		return nil, fetcher.ClassifyRequestError(ctx, err)
	}
	if !resp.IsSuccess() {
		return nil, fetcher.ClassifyHTTPError(resp.StatusCode())
	}

	var out searchResponse
	if err := json.Unmarshal(resp.Bytes(), &out); err != nil {
		return nil, fetcher.NewValidationError(fmt.Sprintf("failed to decode search response: %v", err))
	}

	snippets := make([]string, 0, len(out.Results))
	for _, r := range out.Results {
		if text := PlainText(r.Content); text != "" {
			snippets = append(snippets, text)
		}
		if len(snippets) == maxResults {
			break
		}
	}
	c.logger.Debug().Str("query", query).Int("results", len(snippets)).Msg("search_complete")
	return snippets, nil
}

// PlainText reduces an HTML fragment to whitespace-normalized text. Input
// without markup passes through with only whitespace collapsed.
func PlainText(content string) string {
	if !strings.ContainsAny(content, "<&") {
		return strings.Join(strings.Fields(content), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return strings.Join(strings.Fields(content), " ")
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}
