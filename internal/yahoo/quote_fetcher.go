package yahoo

import (
	"context"

	"github.com/rs/zerolog"

	"metricsfetcher/internal/fetcher"
	"metricsfetcher/internal/record"
)

// SourceQuote is the quality-table tag of the fallback fetcher.
const SourceQuote = "yahooquery"

// quoteFields maps the flat v7 quote onto canonical fields.
var quoteFields = []moduleField{
	{"regularMarketPrice", record.RegularMarketPrice},
	{"regularMarketPreviousClose", record.PreviousClose},
	{"marketCap", record.MarketCap},
	{"trailingPE", record.TrailingPE},
	{"forwardPE", record.ForwardPE},
	{"priceToBook", record.PriceToBook},
	{"bookValue", record.BookValue},
	{"sharesOutstanding", record.SharesOutstanding},
	{"beta", record.Beta},
}

var quoteText = []moduleField{
	{"symbol", record.Symbol},
	{"currency", record.Currency},
	{"financialCurrency", record.FinancialCurrency},
	{"longName", record.LongName},
	{"shortName", record.ShortName},
}

// QuoteFetcher is the free fallback built on the flat quote endpoint.
type QuoteFetcher struct {
	client *Client
	logger zerolog.Logger
}

// NewQuoteFetcher creates the fallback Yahoo fetcher.
func NewQuoteFetcher(client *Client, logger zerolog.Logger) *QuoteFetcher {
	return &QuoteFetcher{
		client: client,
		logger: logger.With().Str("source", SourceQuote).Logger(),
	}
}

// Name implements fetcher.Fetcher
func (f *QuoteFetcher) Name() string {
	return SourceQuote
}

// IsAvailable implements fetcher.Fetcher
func (f *QuoteFetcher) IsAvailable() bool {
	return true
}

// Validate implements fetcher.Fetcher
func (f *QuoteFetcher) Validate(rec *record.Record) bool {
	return fetcher.ValidateRecord(rec)
}

// Fetch implements fetcher.Fetcher
func (f *QuoteFetcher) Fetch(ctx context.Context, symbol string) (*record.Record, error) {
	q, err := f.client.quote(ctx, symbol)
	if err != nil {
		f.logger.Warn().Str("symbol", symbol).Err(err).Msg("yahooquery_fallback_failed")
		return nil, err
	}

	rec := record.New()
	for _, qf := range quoteFields {
		if v, ok := q.number(qf.key); ok {
			rec.SetFloat(qf.field, v)
		}
	}
	for _, qf := range quoteText {
		if s, ok := q.text(qf.key); ok {
			rec.SetText(qf.field, s)
		}
	}

	if rec.Len() < fetcher.MinInfoFields {
		return nil, nil
	}
	if !rec.NonNull(record.CurrentPrice) {
		if v, ok := rec.Get(record.RegularMarketPrice); ok && !v.IsNull() {
			rec.Set(record.CurrentPrice, v)
		}
	}
	return rec, nil
}
