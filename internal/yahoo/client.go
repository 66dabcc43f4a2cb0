// Package yahoo talks to the keyless Yahoo Finance endpoints: quoteSummary
// for fundamentals and statements, v7 quote for the flat fallback, and
// chart for price history and FX pairs.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"resty.dev/v3"

	"metricsfetcher/internal/fetcher"
	"metricsfetcher/internal/ratelimit"
)

const (
	// DefaultBaseURL is the Yahoo Finance query host.
	DefaultBaseURL = "https://query2.finance.yahoo.com"

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	crumbTTL  = 1 * time.Hour
)

// Client is a small Yahoo Finance client shared by both Yahoo fetchers.
// The aggregation path makes one attempt per call; history and FX lookups
// sit outside the aggregation budget and retry under the client's policy.
type Client struct {
	api     *resty.Client
	retry   fetcher.RetryPolicy
	limiter *ratelimit.Limiter
	logger  zerolog.Logger

	crumbMu  sync.Mutex
	crumb    string
	crumbExp time.Time
}

// NewClient creates a Yahoo client rooted at baseURL.
func NewClient(baseURL string, limiter *ratelimit.Limiter, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logger = logger.With().Str("provider", "yahoo").Logger()

	c := &Client{
		api:     fetcher.NewHTTPClient(baseURL).SetHeader("User-Agent", userAgent),
		limiter: limiter,
		logger:  logger,
	}
	c.SetRetryPolicy(fetcher.DefaultRetryPolicy())
	return c
}

// SetRetryPolicy replaces the policy used by History and FXRate.
func (c *Client) SetRetryPolicy(p fetcher.RetryPolicy) *Client {
	if p.Timeout <= 0 {
		p.Timeout = fetcher.DefaultTimeout
	}
	p.OnRetry = func(attempt int, err error) {
		c.logger.Debug().Int("attempt", attempt).Err(err).Msg("yahoo_retry")
	}
	c.retry = p
	return c
}

// getCrumb returns the cached crumb, fetching a fresh one when it expired.
// Yahoo serves some deployments without a crumb; failures leave it empty.
func (c *Client) getCrumb(ctx context.Context) string {
	c.crumbMu.Lock()
	defer c.crumbMu.Unlock()

	if c.crumb != "" && time.Now().Before(c.crumbExp) {
		return c.crumb
	}

	resp, err := c.api.R().
		SetContext(ctx).
		SetHeader("Accept", "text/plain").
		Get("/v1/test/getcrumb")
	if err != nil || resp.StatusCode() != http.StatusOK {
		c.logger.Debug().Err(err).Msg("yahoo_crumb_unavailable")
		return ""
	}

	crumb := strings.TrimSpace(resp.String())
	if crumb == "" {
		return ""
	}
	c.crumb = crumb
	c.crumbExp = time.Now().Add(crumbTTL)
	return crumb
}

func (c *Client) resetCrumb() {
	c.crumbMu.Lock()
	c.crumb = ""
	c.crumbExp = time.Time{}
	c.crumbMu.Unlock()
}

// getJSON performs a GET against path and decodes the body into out.
// A 404 yields found == false with no error. A 401 drops the crumb so the
// next call fetches a new one.
func (c *Client) getJSON(ctx context.Context, path string, params map[string]string, out any) (found bool, err error) {
	if err := c.limiter.Wait(ctx, ratelimit.APIYahoo); err != nil {
		return false, fetcher.ClassifyRequestError(ctx, err)
	}

	req := c.api.R().
		SetContext(ctx).
		SetQueryParams(params)
	if crumb := c.getCrumb(ctx); crumb != "" {
		req.SetQueryParam("crumb", crumb)
	}

	resp, err := req.Get(path)
	if err != nil {
		return false, fetcher.ClassifyRequestError(ctx, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound:
		return false, nil
	case code == http.StatusUnauthorized:
		c.resetCrumb()
		return false, fetcher.ClassifyHTTPError(code)
	case !resp.IsSuccess():
		return false, fetcher.ClassifyHTTPError(code)
	}

	if err := json.Unmarshal(resp.Bytes(), out); err != nil {
		return false, fetcher.NewValidationError(fmt.Sprintf("failed to decode %s: %v", path, err))
	}
	return true, nil
}

// summaryModules are requested from quoteSummary by the statement fetcher.
var summaryModules = []string{
	"price",
	"summaryDetail",
	"defaultKeyStatistics",
	"financialData",
	"incomeStatementHistory",
	"cashflowStatementHistory",
	"balanceSheetHistory",
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []map[string]json.RawMessage `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteSummary"`
}

// quoteSummary returns the requested modules for symbol, nil when Yahoo
// does not know the symbol.
func (c *Client) quoteSummary(ctx context.Context, symbol string, modules []string) (map[string]json.RawMessage, error) {
	var out quoteSummaryResponse
	found, err := c.getJSON(ctx, "/v10/finance/quoteSummary/"+symbol, map[string]string{
		"modules": strings.Join(modules, ","),
	}, &out)
	if err != nil || !found {
		return nil, err
	}
	if len(out.QuoteSummary.Result) == 0 {
		return nil, nil
	}
	return out.QuoteSummary.Result[0], nil
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []map[string]json.RawMessage `json:"result"`
	} `json:"quoteResponse"`
}

// quote returns the flat v7 quote for symbol, nil when unknown.
func (c *Client) quote(ctx context.Context, symbol string) (module, error) {
	var out quoteResponse
	found, err := c.getJSON(ctx, "/v7/finance/quote", map[string]string{
		"symbols": symbol,
	}, &out)
	if err != nil || !found {
		return nil, err
	}
	if len(out.QuoteResponse.Result) == 0 {
		return nil, nil
	}
	return module(out.QuoteResponse.Result[0]), nil
}
