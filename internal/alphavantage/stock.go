package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"resty.dev/v3"

	"metricsfetcher/internal/breaker"
	"metricsfetcher/internal/fetcher"
	"metricsfetcher/internal/ratelimit"
	"metricsfetcher/internal/record"
)

// Source is the quality-table tag for this provider.
const Source = "alpha_vantage"

// DefaultBaseURL is the AlphaVantage query endpoint.
const DefaultBaseURL = "https://www.alphavantage.co/query"

// overviewFields maps OVERVIEW keys onto canonical fields.
var overviewFields = map[string]record.Field{
	"MarketCapitalization":       record.MarketCap,
	"TrailingPE":                 record.TrailingPE,
	"PERatio":                    record.TrailingPE,
	"ForwardPE":                  record.ForwardPE,
	"PEGRatio":                   record.PEGRatio,
	"PriceToBookRatio":           record.PriceToBook,
	"BookValue":                  record.BookValue,
	"SharesOutstanding":          record.SharesOutstanding,
	"EVToEBITDA":                 record.EnterpriseToEBITDA,
	"Beta":                       record.Beta,
	"ReturnOnEquityTTM":          record.ReturnOnEquity,
	"ReturnOnAssetsTTM":          record.ReturnOnAssets,
	"ProfitMargin":               record.ProfitMargins,
	"OperatingMarginTTM":         record.OperatingMargins,
	"QuarterlyRevenueGrowthYOY":  record.RevenueGrowth,
	"QuarterlyEarningsGrowthYOY": record.EarningsGrowth,
}

// overviewKeys fixes the mapping order so that PERatio, which comes after
// TrailingPE, wins when both are present.
var overviewKeys = []string{
	"MarketCapitalization",
	"TrailingPE",
	"PERatio",
	"ForwardPE",
	"PEGRatio",
	"PriceToBookRatio",
	"BookValue",
	"SharesOutstanding",
	"EVToEBITDA",
	"Beta",
	"ReturnOnEquityTTM",
	"ReturnOnAssetsTTM",
	"ProfitMargin",
	"OperatingMarginTTM",
	"QuarterlyRevenueGrowthYOY",
	"QuarterlyEarningsGrowthYOY",
}

// analystRatingKeys are summed into numberOfAnalystOpinions.
var analystRatingKeys = []string{
	"AnalystRatingStrongBuy",
	"AnalystRatingBuy",
	"AnalystRatingHold",
	"AnalystRatingSell",
	"AnalystRatingStrongSell",
}

// OverviewFetcher fetches company fundamentals from the OVERVIEW function
type OverviewFetcher struct {
	apiKey  string
	client  *resty.Client
	limiter *ratelimit.Limiter
	breaker *breaker.Breaker
	logger  zerolog.Logger
}

// NewOverviewFetcher creates a new overview fetcher. The breaker is owned by
// the caller and may be shared; nil disables it.
func NewOverviewFetcher(apiKey, baseURL string, limiter *ratelimit.Limiter, br *breaker.Breaker, logger zerolog.Logger) *OverviewFetcher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &OverviewFetcher{
		apiKey:  apiKey,
		client:  fetcher.NewHTTPClient(baseURL),
		limiter: limiter,
		breaker: br,
		logger:  logger.With().Str("source", Source).Logger(),
	}
}

// Name implements fetcher.Fetcher
func (f *OverviewFetcher) Name() string {
	return Source
}

// IsAvailable implements fetcher.Fetcher
func (f *OverviewFetcher) IsAvailable() bool {
	return f.apiKey != "" && f.breaker.Ready()
}

// Validate implements fetcher.Fetcher
func (f *OverviewFetcher) Validate(rec *record.Record) bool {
	return fetcher.ValidateRecord(rec)
}

// Fetch retrieves the company overview for symbol
func (f *OverviewFetcher) Fetch(ctx context.Context, symbol string) (*record.Record, error) {
	if err := f.limiter.Wait(ctx, ratelimit.APIAlphaVantage); err != nil {
		return nil, fetcher.ClassifyRequestError(ctx, err)
	}

	var rec *record.Record
	err := f.breaker.Execute(func() error {
		var err error
		rec, err = f.fetchOverview(ctx, symbol)
		return err
	})
	if errors.Is(err, breaker.ErrOpen) {
		return nil, fetcher.NewUnavailableError(Source)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (f *OverviewFetcher) fetchOverview(ctx context.Context, symbol string) (*record.Record, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"apikey":   f.apiKey,
			"function": "OVERVIEW",
			"symbol":   symbol,
		}).
		Get("")

	if err != nil {
		return nil, fetcher.ClassifyRequestError(ctx, err)
	}

	if !resp.IsSuccess() {
		return nil, fetcher.ClassifyHTTPError(resp.StatusCode())
	}

	var body map[string]any
	if err := json.Unmarshal(resp.Bytes(), &body); err != nil {
		return nil, fetcher.NewValidationError(fmt.Sprintf("failed to decode overview for %s: %v", symbol, err))
	}

	// Quota problems come back as HTTP 200 with a note instead of data.
	for _, key := range []string{"Note", "Information"} {
		if msg, ok := body[key].(string); ok && msg != "" {
			f.logger.Warn().Str("symbol", symbol).Str("note", msg).Msg("alpha_vantage_rate_limited")
			return nil, fetcher.NewRateLimitError(resp.StatusCode())
		}
	}
	if msg, ok := body["Error Message"].(string); ok && msg != "" {
		return nil, fetcher.NewClientError(resp.StatusCode(), msg)
	}

	return mapOverview(body), nil
}

// mapOverview converts an OVERVIEW payload to a record. It returns nil when
// nothing usable was found.
func mapOverview(body map[string]any) *record.Record {
	rec := record.New()

	for _, key := range overviewKeys {
		if v, ok := parseValue(body[key]); ok {
			rec.SetFloat(overviewFields[key], v)
		}
	}

	analysts, seen := 0.0, false
	for _, key := range analystRatingKeys {
		if v, ok := parseValue(body[key]); ok {
			analysts += v
			seen = true
		}
	}
	if seen {
		rec.SetFloat(record.NumberOfAnalystOpinions, analysts)
	}

	if !rec.HasData() {
		return nil
	}

	if s, ok := body["Symbol"].(string); ok {
		rec.SetText(record.Symbol, s)
	}
	if s, ok := body["Name"].(string); ok {
		rec.SetText(record.LongName, s)
	}
	if s, ok := body["Currency"].(string); ok {
		rec.SetText(record.Currency, s)
	}

	return rec
}

// parseValue reads an AlphaVantage value. Numbers are sent as strings and
// missing ones as "None" or "-".
func parseValue(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case string:
		s := strings.TrimSpace(v)
		if s == "" || s == "None" || s == "-" {
			return 0, false
		}
		x, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return x, true
	}
	return 0, false
}
