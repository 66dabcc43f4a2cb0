// Package eodhd fetches fundamentals from EOD Historical Data.
package eodhd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"resty.dev/v3"

	"metricsfetcher/internal/breaker"
	"metricsfetcher/internal/fetcher"
	"metricsfetcher/internal/ratelimit"
	"metricsfetcher/internal/record"
)

const (
	// Source is the quality-table tag for this provider.
	Source = "eodhd"

	// DefaultBaseURL is the base URL for the EODHD API.
	DefaultBaseURL = "https://eodhd.com/api"

	// defaultExchange is appended to bare tickers; EODHD wants CODE.EXCHANGE.
	defaultExchange = "US"
)

// Fetcher fetches the fundamentals document for a symbol
type Fetcher struct {
	apiKey  string
	client  *resty.Client
	limiter *ratelimit.Limiter
	breaker *breaker.Breaker
	logger  zerolog.Logger
}

// NewFetcher creates a new EODHD fetcher. The breaker is owned by the caller
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

// Fetch retrieves fundamentals for symbol
func (f *Fetcher) Fetch(ctx context.Context, symbol string) (*record.Record, error) {
	if err := f.limiter.Wait(ctx, ratelimit.APIEODHD); err != nil {
		return nil, fetcher.ClassifyRequestError(ctx, err)
	}

	var result *FundamentalsResponse
	err := f.breaker.Execute(func() error {
		var err error
		result, err = f.getFundamentals(ctx, exchangeSymbol(symbol))
		return err
	})
	if errors.Is(err, breaker.ErrOpen) {
		return nil, fetcher.NewUnavailableError(Source)
	}
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	rec := mapFundamentals(result)
	if !rec.HasData() {
		return nil, nil
	}
	rec.SetText(record.Symbol, symbol)
	return rec, nil
}

func (f *Fetcher) getFundamentals(ctx context.Context, symbol string) (*FundamentalsResponse, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"api_token": f.apiKey,
			"fmt":       "json",
		}).
		Get("/fundamentals/" + symbol)

	if err != nil {
		return nil, fetcher.ClassifyRequestError(ctx, err)
	}

	if resp.StatusCode() == http.StatusNotFound {
		return nil, nil
	}
	if !resp.IsSuccess() {
		return nil, fetcher.ClassifyHTTPError(resp.StatusCode())
	}

	var result FundamentalsResponse
	if err := json.Unmarshal(resp.Bytes(), &result); err != nil {
		return nil, fetcher.NewValidationError(fmt.Sprintf("failed to decode fundamentals for %s: %v", symbol, err))
	}
	return &result, nil
}

// exchangeSymbol turns a Yahoo style ticker into CODE.EXCHANGE.
func exchangeSymbol(symbol string) string {
	if strings.Contains(symbol, ".") {
		return symbol
	}
	return symbol + "." + defaultExchange
}

func mapFundamentals(res *FundamentalsResponse) *record.Record {
	rec := record.New()
	set := func(field record.Field, v *float64) {
		if v != nil {
			rec.SetFloat(field, *v)
		}
	}

	if h := res.Highlights; h != nil {
		set(record.MarketCap, h.MarketCapitalization)
		set(record.TrailingPE, h.PERatio)
		set(record.PEGRatio, h.PEGRatio)
		set(record.BookValue, h.BookValue)
		set(record.ProfitMargins, h.ProfitMargin)
		set(record.OperatingMargins, h.OperatingMarginTTM)
		set(record.ReturnOnAssets, h.ReturnOnAssetsTTM)
		set(record.ReturnOnEquity, h.ReturnOnEquityTTM)
		set(record.RevenueGrowth, h.QuarterlyRevenueGrowthYOY)
		set(record.EarningsGrowth, h.QuarterlyEarningsGrowthYOY)
	}
	if v := res.Valuation; v != nil {
		// Valuation is more specific than Highlights.PERatio.
		set(record.TrailingPE, v.TrailingPE)
		set(record.ForwardPE, v.ForwardPE)
		set(record.PriceToBook, v.PriceBookMRQ)
		set(record.EnterpriseToEBITDA, v.EnterpriseValueEbitda)
	}
	if t := res.Technicals; t != nil {
		set(record.Beta, t.Beta)
	}
	if s := res.SharesStats; s != nil {
		set(record.SharesOutstanding, s.SharesOutstanding)
	}
	if a := res.AnalystRatings; a != nil {
		total, seen := 0.0, false
		for _, v := range []*float64{a.StrongBuy, a.Buy, a.Hold, a.Sell, a.StrongSell} {
			if v != nil {
				total += *v
				seen = true
			}
		}
		if seen {
			rec.SetFloat(record.NumberOfAnalystOpinions, total)
		}
	}

	if !rec.HasData() {
		return rec
	}
	if g := res.General; g != nil {
		rec.SetText(record.LongName, g.Name)
		rec.SetText(record.Currency, g.CurrencyCode)
	}
	return rec
}
