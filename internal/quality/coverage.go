package quality

import "metricsfetcher/internal/record"

// ImportantFields is the checklist coverage is measured against.
var ImportantFields = []record.Field{
	record.MarketCap,
	record.TrailingPE,
	record.PriceToBook,
	record.ReturnOnEquity,
	record.RevenueGrowth,
	record.ProfitMargins,
	record.OperatingMargins,
	record.GrossMargins,
	record.DebtToEquity,
	record.CurrentRatio,
	record.FreeCashflow,
	record.OperatingCashflow,
	record.NumberOfAnalystOpinions,
	record.PEGRatio,
	record.ForwardPE,
}

// CriticalGapFields are the fields worth a web search when missing.
var CriticalGapFields = []record.Field{
	record.TrailingPE,
	record.ForwardPE,
	record.PriceToBook,
	record.PEGRatio,
	record.ReturnOnEquity,
	record.ReturnOnAssets,
	record.DebtToEquity,
	record.CurrentRatio,
	record.OperatingMargins,
	record.GrossMargins,
	record.ProfitMargins,
	record.RevenueGrowth,
	record.EarningsGrowth,
	record.OperatingCashflow,
	record.FreeCashflow,
	record.NumberOfAnalystOpinions,
}

// Coverage returns the fraction of ImportantFields that are non-null.
func Coverage(rec *record.Record) float64 {
	present := 0
	for _, f := range ImportantFields {
		if rec != nil && rec.NonNull(f) {
			present++
		}
	}
	return float64(present) / float64(len(ImportantFields))
}

// CriticalGaps returns the CriticalGapFields that are missing or null, in
// list order.
func CriticalGaps(rec *record.Record) []record.Field {
	var gaps []record.Field
	for _, f := range CriticalGapFields {
		if rec == nil || !rec.NonNull(f) {
			gaps = append(gaps, f)
		}
	}
	return gaps
}
