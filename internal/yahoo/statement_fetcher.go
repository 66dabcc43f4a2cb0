package yahoo

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"metricsfetcher/internal/fetcher"
	"metricsfetcher/internal/record"
)

// SourceStatements is the quality-table tag of the primary fetcher.
const SourceStatements = "yfinance"

// minFieldsWithoutPrice is how many fields a record without any price needs
// before it is worth returning.
const minFieldsWithoutPrice = 5

type moduleField struct {
	key   string
	field record.Field
}

// summaryFields lists, per quoteSummary module, the numeric keys that map
// onto canonical fields. Modules are applied in this order, so a later
// module overwrites an earlier one.
var summaryFields = []struct {
	module string
	fields []moduleField
}{
	{"price", []moduleField{
		{"regularMarketPrice", record.RegularMarketPrice},
		{"marketCap", record.MarketCap},
	}},
	{"summaryDetail", []moduleField{
		{"previousClose", record.PreviousClose},
		{"trailingPE", record.TrailingPE},
		{"forwardPE", record.ForwardPE},
		{"marketCap", record.MarketCap},
		{"beta", record.Beta},
	}},
	{"defaultKeyStatistics", []moduleField{
		{"forwardPE", record.ForwardPE},
		{"pegRatio", record.PEGRatio},
		{"priceToBook", record.PriceToBook},
		{"bookValue", record.BookValue},
		{"sharesOutstanding", record.SharesOutstanding},
		{"enterpriseToEbitda", record.EnterpriseToEBITDA},
	}},
	{"financialData", []moduleField{
		{"currentPrice", record.CurrentPrice},
		{"returnOnEquity", record.ReturnOnEquity},
		{"returnOnAssets", record.ReturnOnAssets},
		{"debtToEquity", record.DebtToEquity},
		{"currentRatio", record.CurrentRatio},
		{"revenueGrowth", record.RevenueGrowth},
		{"earningsGrowth", record.EarningsGrowth},
		{"grossMargins", record.GrossMargins},
		{"operatingMargins", record.OperatingMargins},
		{"profitMargins", record.ProfitMargins},
		{"operatingCashflow", record.OperatingCashflow},
		{"freeCashflow", record.FreeCashflow},
		{"numberOfAnalystOpinions", record.NumberOfAnalystOpinions},
	}},
}

// summaryText lists the string keys, same ordering rules.
var summaryText = []struct {
	module string
	fields []moduleField
}{
	{"price", []moduleField{
		{"symbol", record.Symbol},
		{"currency", record.Currency},
		{"longName", record.LongName},
		{"shortName", record.ShortName},
	}},
	{"financialData", []moduleField{
		{"financialCurrency", record.FinancialCurrency},
	}},
}

// StatementFetcher is the primary source: the quoteSummary fundamentals
// enriched with metrics derived from the financial statements.
type StatementFetcher struct {
	client *Client
	logger zerolog.Logger
}

// NewStatementFetcher creates the primary Yahoo fetcher.
func NewStatementFetcher(client *Client, logger zerolog.Logger) *StatementFetcher {
	return &StatementFetcher{
		client: client,
		logger: logger.With().Str("source", SourceStatements).Logger(),
	}
}

// Name implements fetcher.Fetcher
func (f *StatementFetcher) Name() string {
	return SourceStatements
}

// IsAvailable implements fetcher.Fetcher. Yahoo needs no key.
func (f *StatementFetcher) IsAvailable() bool {
	return true
}

// Validate implements fetcher.Fetcher
func (f *StatementFetcher) Validate(rec *record.Record) bool {
	return fetcher.ValidateRecord(rec)
}

// Fetch implements fetcher.Fetcher
func (f *StatementFetcher) Fetch(ctx context.Context, symbol string) (*record.Record, error) {
	modules, err := f.client.quoteSummary(ctx, symbol, summaryModules)
	if err != nil {
		f.logger.Warn().Str("symbol", symbol).Err(err).Msg("yfinance_summary_failed")
		return nil, err
	}

	rec := mapSummary(modules)
	hasPrice := hasAnyPrice(rec)
	if !hasPrice && modules != nil {
		if price, ok := f.client.lastPrice(ctx, symbol); ok {
			rec.SetFloat(record.CurrentPrice, price)
			hasPrice = true
		}
	}
	if !hasPrice {
		f.logger.Warn().Str("symbol", symbol).Msg("yfinance_no_price")
	}

	// Statement values only fill what the summary left empty.
	derived := parseStatements(modules).Extract()
	for _, field := range derived.Fields() {
		if rec.NonNull(field) {
			continue
		}
		v, _ := derived.Get(field)
		rec.Set(field, v)
		tag, _ := derived.Tag(field)
		rec.SetTag(field, tag)
	}

	if rec.Empty() || (!hasPrice && rec.Len() < minFieldsWithoutPrice) {
		return nil, nil
	}
	if !rec.NonNull(record.Symbol) {
		rec.SetText(record.Symbol, symbol)
	}
	return rec, nil
}

func mapSummary(modules map[string]json.RawMessage) *record.Record {
	rec := record.New()
	for _, group := range summaryFields {
		m := decodeModule(modules[group.module])
		for _, mf := range group.fields {
			if v, ok := m.number(mf.key); ok {
				rec.SetFloat(mf.field, v)
			}
		}
	}
	for _, group := range summaryText {
		m := decodeModule(modules[group.module])
		for _, mf := range group.fields {
			if s, ok := m.text(mf.key); ok {
				rec.SetText(mf.field, s)
			}
		}
	}
	return rec
}

func decodeModule(raw json.RawMessage) module {
	if len(raw) == 0 {
		return nil
	}
	var m module
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

func hasAnyPrice(rec *record.Record) bool {
	for _, f := range record.PriceFields {
		if rec.NonNull(f) {
			return true
		}
	}
	return false
}
