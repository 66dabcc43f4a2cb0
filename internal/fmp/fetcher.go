// Package fmp fetches fundamentals from the Financial Modeling Prep stable API.
package fmp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/rs/zerolog"
	"resty.dev/v3"

	"metricsfetcher/internal/breaker"
	"metricsfetcher/internal/fetcher"
	"metricsfetcher/internal/ratelimit"
	"metricsfetcher/internal/record"
)

// Source is the quality-table tag for this provider.
const Source = "fmp"

// DefaultBaseURL is the FMP stable API root.
const DefaultBaseURL = "https://financialmodelingprep.com/stable"

type endpoint struct {
	path   string
	fields map[string]record.Field
}

// endpoints are queried in this order; later endpoints overwrite earlier
// ones for the same canonical field.
var endpoints = []endpoint{
	{
		path: "ratios",
		fields: map[string]record.Field{
			"priceToEarningsRatio":       record.TrailingPE,
			"priceToBookRatio":           record.PriceToBook,
			"priceToEarningsGrowthRatio": record.PEGRatio,
			"currentRatio":               record.CurrentRatio,
			"debtToEquityRatio":          record.DebtToEquity,
			"netProfitMargin":            record.ProfitMargins,
			"grossProfitMargin":          record.GrossMargins,
			"operatingProfitMargin":      record.OperatingMargins,
		},
	},
	{
		path: "key-metrics",
		fields: map[string]record.Field{
			"marketCap":      record.MarketCap,
			"returnOnEquity": record.ReturnOnEquity,
			"returnOnAssets": record.ReturnOnAssets,
			"evToEBITDA":     record.EnterpriseToEBITDA,
		},
	},
	{
		path: "income-statement-growth",
		fields: map[string]record.Field{
			"growthRevenue": record.RevenueGrowth,
			"growthEPS":     record.EarningsGrowth,
		},
	},
}

// Fetcher fetches ratios, key metrics and growth from FMP
type Fetcher struct {
	apiKey       string
	client       *resty.Client
	limiter      *ratelimit.Limiter
	breaker      *breaker.Breaker
	logger       zerolog.Logger
	keyValidated atomic.Bool
}

// NewFetcher creates a new FMP fetcher. The breaker is owned by the caller
// and may be shared; nil disables it.
func NewFetcher(apiKey, baseURL string, limiter *ratelimit.Limiter, br *breaker.Breaker, logger zerolog.Logger) *Fetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Fetcher{
		apiKey:  apiKey,
		client:  fetcher.NewHTTPClient(baseURL),
		limiter: limiter,
		breaker: br,
		logger:  logger.With().Str("source", Source).Logger(),
	}
}

// Name implements fetcher.Fetcher
func (f *Fetcher) Name() string {
	return Source
}

// IsAvailable implements fetcher.Fetcher
func (f *Fetcher) IsAvailable() bool {
	return f.apiKey != "" && f.breaker.Ready()
}

// Validate implements fetcher.Fetcher
func (f *Fetcher) Validate(rec *record.Record) bool {
	return fetcher.ValidateRecord(rec)
}

// Fetch queries every endpoint for symbol and combines the first row of
// each. A failing endpoint does not discard data from the others; the
// first error is returned only when no endpoint produced anything.
func (f *Fetcher) Fetch(ctx context.Context, symbol string) (*record.Record, error) {
	rec := record.New()
	var firstErr error

	for _, ep := range endpoints {
		row, err := f.get(ctx, ep.path, symbol)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			f.logger.Debug().Str("symbol", symbol).Str("endpoint", ep.path).Err(err).Msg("fmp_endpoint_failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		for key, field := range ep.fields {
			if v, ok := row[key].(float64); ok {
				rec.SetFloat(field, v)
			}
		}
	}

	if !rec.HasData() {
		return nil, firstErr
	}
	rec.SetText(record.Symbol, symbol)
	return rec, nil
}

// get returns the first row of an endpoint, or nil when the endpoint has
// no data for symbol.
func (f *Fetcher) get(ctx context.Context, path, symbol string) (map[string]any, error) {
	if err := f.limiter.Wait(ctx, ratelimit.APIFMP); err != nil {
		return nil, fetcher.ClassifyRequestError(ctx, err)
	}

	var rows []map[string]any
	err := f.breaker.Execute(func() error {
		var err error
		rows, err = f.request(ctx, path, symbol)
		return err
	})
	if errors.Is(err, breaker.ErrOpen) {
		return nil, fetcher.NewUnavailableError(Source)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (f *Fetcher) request(ctx context.Context, path, symbol string) ([]map[string]any, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol": symbol,
			"limit":  "1",
			"apikey": f.apiKey,
		}).
		Get(path)

	if err != nil {
		return nil, fetcher.ClassifyRequestError(ctx, err)
	}

	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound:
		return nil, nil
	case code == http.StatusForbidden:
		// A 403 on a key that has worked before means the plan quota ran out.
		if f.keyValidated.Load() {
			return nil, fetcher.NewRateLimitError(code)
		}
		f.logger.Error().Msg("fmp_invalid_api_key")
		return nil, fetcher.NewClientError(code, "FMP_API_KEY is invalid")
	case !resp.IsSuccess():
		return nil, fetcher.ClassifyHTTPError(code)
	}
	f.keyValidated.Store(true)

	var rows []map[string]any
	if err := json.Unmarshal(resp.Bytes(), &rows); err != nil {
		return nil, fetcher.NewValidationError(fmt.Sprintf("failed to decode %s for %s: %v", path, symbol, err))
	}
	return rows, nil
}
