package record

import "time"

// Field is a canonical metric name shared by every provider.
type Field string

const (
	Symbol            Field = "symbol"
	Currency          Field = "currency"
	FinancialCurrency Field = "financialCurrency"
	LongName          Field = "longName"
	ShortName         Field = "shortName"

	CurrentPrice       Field = "currentPrice"
	RegularMarketPrice Field = "regularMarketPrice"
	PreviousClose      Field = "previousClose"
	// Price is only produced by rescue extraction and aliased into CurrentPrice.
	Price Field = "price"

	MarketCap          Field = "marketCap"
	TrailingPE         Field = "trailingPE"
	ForwardPE          Field = "forwardPE"
	PEGRatio           Field = "pegRatio"
	PriceToBook        Field = "priceToBook"
	BookValue          Field = "bookValue"
	SharesOutstanding  Field = "sharesOutstanding"
	EnterpriseToEBITDA Field = "enterpriseToEbitda"
	Beta               Field = "beta"

	ReturnOnEquity Field = "returnOnEquity"
	ReturnOnAssets Field = "returnOnAssets"
	DebtToEquity   Field = "debtToEquity"
	CurrentRatio   Field = "currentRatio"

	RevenueGrowth  Field = "revenueGrowth"
	EarningsGrowth Field = "earningsGrowth"

	GrossMargins     Field = "grossMargins"
	OperatingMargins Field = "operatingMargins"
	ProfitMargins    Field = "profitMargins"

	OperatingCashflow Field = "operatingCashflow"
	FreeCashflow      Field = "freeCashflow"

	NumberOfAnalystOpinions Field = "numberOfAnalystOpinions"

	// TrailingPEOriginal keeps the reported trailing P/E after normalization
	// replaced it.
	TrailingPEOriginal Field = "trailingPEOriginal"

	// USRevenuePct is the share of revenue earned in the United States or
	// North America, in percent. Only web search reports it.
	USRevenuePct Field = "usRevenuePct"
)

// PriceFields satisfy the "has a price" checks.
var PriceFields = []Field{CurrentPrice, RegularMarketPrice, PreviousClose}

// Bar is one row of an OHLCV price history.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}
