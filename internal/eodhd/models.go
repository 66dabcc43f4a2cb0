package eodhd

// FundamentalsResponse is the subset of /fundamentals/{symbol} that maps
// onto canonical fields. Numbers are pointers because EODHD reports missing
// values as null.
type FundamentalsResponse struct {
	General        *GeneralInfo    `json:"General"`
	Highlights     *Highlights     `json:"Highlights"`
	Valuation      *Valuation      `json:"Valuation"`
	Technicals     *Technicals     `json:"Technicals"`
	SharesStats    *SharesStats    `json:"SharesStats"`
	AnalystRatings *AnalystRatings `json:"AnalystRatings"`
}

// GeneralInfo contains general company information.
type GeneralInfo struct {
	Code         string `json:"Code"`
	Name         string `json:"Name"`
	Exchange     string `json:"Exchange"`
	CurrencyCode string `json:"CurrencyCode"`
}

// Highlights contains key financial highlights.
type Highlights struct {
	MarketCapitalization       *float64 `json:"MarketCapitalization"`
	PERatio                    *float64 `json:"PERatio"`
	PEGRatio                   *float64 `json:"PEGRatio"`
	BookValue                  *float64 `json:"BookValue"`
	ProfitMargin               *float64 `json:"ProfitMargin"`
	OperatingMarginTTM         *float64 `json:"OperatingMarginTTM"`
	ReturnOnAssetsTTM          *float64 `json:"ReturnOnAssetsTTM"`
	ReturnOnEquityTTM          *float64 `json:"ReturnOnEquityTTM"`
	QuarterlyRevenueGrowthYOY  *float64 `json:"QuarterlyRevenueGrowthYOY"`
	QuarterlyEarningsGrowthYOY *float64 `json:"QuarterlyEarningsGrowthYOY"`
}

// Valuation contains valuation metrics.
type Valuation struct {
	TrailingPE            *float64 `json:"TrailingPE"`
	ForwardPE             *float64 `json:"ForwardPE"`
	PriceBookMRQ          *float64 `json:"PriceBookMRQ"`
	EnterpriseValueEbitda *float64 `json:"EnterpriseValueEbitda"`
}

// Technicals contains technical analysis data.
type Technicals struct {
	Beta *float64 `json:"Beta"`
}

// SharesStats contains share count data.
type SharesStats struct {
	SharesOutstanding *float64 `json:"SharesOutstanding"`
}

// AnalystRatings contains analyst ratings data.
type AnalystRatings struct {
	StrongBuy  *float64 `json:"StrongBuy"`
	Buy        *float64 `json:"Buy"`
	Hold       *float64 `json:"Hold"`
	Sell       *float64 `json:"Sell"`
	StrongSell *float64 `json:"StrongSell"`
}
