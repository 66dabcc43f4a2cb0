// Package derive computes ratios from whatever partial data survived the
// merge.
package derive

import "metricsfetcher/internal/record"

// Provenance tags of derived values.
const (
	TagROEFromROADE        = "calculated_from_roa_de"
	TagPEGFromPEGrowth     = "calculated_from_pe_growth"
	TagMarketCapFromShares = "calculated_from_price_shares"
)

const percentDebtToEquityLimit = 100.0

// Compute returns the fields of rec that can be derived but are missing or
// null. Every value is tagged with the calculation that produced it. rec is
// not modified.
func Compute(rec *record.Record) *record.Record {
	out := record.New()
	if rec == nil {
		return out
	}

	// ROE ~ ROA * (1 + D/E)
	if !rec.NonNull(record.ReturnOnEquity) {
		roa, okROA := rec.Float(record.ReturnOnAssets)
		de, okDE := rec.Float(record.DebtToEquity)
		if okROA && okDE {
			// The ratio may still be in percent here; the normalizer runs later.
			if de > percentDebtToEquityLimit {
				de /= 100
			}
			set(out, record.ReturnOnEquity, roa*(1+de), TagROEFromROADE)
		}
	}

	// PEG = P/E / (growth * 100), only for positive growth
	if !rec.NonNull(record.PEGRatio) {
		pe, okPE := rec.Float(record.TrailingPE)
		growth, okGrowth := rec.Float(record.EarningsGrowth)
		if okPE && okGrowth && pe != 0 && growth > 0 {
			set(out, record.PEGRatio, pe/(growth*100), TagPEGFromPEGrowth)
		}
	}

	// Market cap = price * shares
	if !rec.NonNull(record.MarketCap) {
		price, okPrice := rec.Float(record.CurrentPrice)
		if !okPrice || price == 0 {
			price, okPrice = rec.Float(record.RegularMarketPrice)
		}
		shares, okShares := rec.Float(record.SharesOutstanding)
		if okPrice && okShares && price != 0 && shares != 0 {
			set(out, record.MarketCap, price*shares, TagMarketCapFromShares)
		}
	}

	return out
}

func set(rec *record.Record, f record.Field, v float64, tag string) {
	rec.SetFloat(f, v)
	rec.SetTag(f, tag)
}
