package quality

import "strings"

// Provenance tags that do not name a fetcher.
const (
	TagCalculated          = "calculated"
	TagCalculatedPrefix    = "calculated_from_"
	TagWebSearch           = "web_search_extraction"
	TagTavily              = "tavily_extraction"
	TagProxy               = "proxy"
	TagProxyFromForwardPE  = "proxy_from_forward_pe"
	TagNormalizedFX        = "normalized_fx"
	TagNormalizedPercent   = "normalized_percentage"
	TagNormalizedForwardPE = "normalized_forward_proxy"
)

// RankUnknown is the rank of a tag missing from the table.
const RankUnknown = 5.0

// table ranks every known source and provenance tag. Higher wins.
var table = map[string]float64{
	"yfinance_statements":        10,
	"calculated_from_statements": 10,
	"extracted_from_statements":  10,
	"eodhd":                      9.5,
	"yfinance":                   9,
	"yfinance_info":              9,
	"alpha_vantage":              9,
	TagCalculated:                8,
	"fmp":                        7,
	"fmp_info":                   7,
	"yahooquery":                 6,
	"yahooquery_info":            6,
	TagTavily:                    4,
	TagWebSearch:                 4,
	TagProxy:                     2,
	TagProxyFromForwardPE:        2,
}

// PriorityOrder is the fixed merge sequence, weakest source first. Later
// sources may overwrite earlier ones only with strictly higher quality.
var PriorityOrder = []string{"yahooquery", "fmp", "alpha_vantage", "eodhd", "yfinance"}

// Rank returns the quality rank of a source or provenance tag.
func Rank(tag string) float64 {
	if r, ok := table[tag]; ok {
		return r
	}
	if r, ok := table[tag+"_info"]; ok {
		return r
	}
	if strings.HasPrefix(tag, TagCalculatedPrefix) {
		return table[TagCalculated]
	}
	return RankUnknown
}

// tagRank returns the rank of a provenance tag when it has one of its own.
func tagRank(tag string) (float64, bool) {
	if r, ok := table[tag]; ok {
		return r, true
	}
	if strings.HasPrefix(tag, TagCalculatedPrefix) {
		return table[TagCalculated], true
	}
	return 0, false
}
