package quality

import "metricsfetcher/internal/record"

// RequiredBasics must all be present for a record to pass ValidateBasics.
// The price requirement is met by any of record.PriceFields.
var RequiredBasics = []record.Field{record.Symbol, record.CurrentPrice, record.Currency}

// DataQualityReport summarizes whether a record is usable.
type DataQualityReport struct {
	BasicsOK      bool     `json:"basics_ok"`
	BasicsMissing []string `json:"basics_missing"`
	CoveragePct   float64  `json:"coverage_pct"`
	SourcesUsed   []string `json:"sources_used"`
}

// ValidateBasics checks the required basics and reports coverage as a
// percentage.
func ValidateBasics(rec *record.Record, sourcesUsed []string) DataQualityReport {
	missing := []string{}
	for _, f := range RequiredBasics {
		if f == record.CurrentPrice {
			if !hasPrice(rec) {
				missing = append(missing, string(f))
			}
			continue
		}
		if rec == nil || !rec.NonNull(f) {
			missing = append(missing, string(f))
		}
	}

	if sourcesUsed == nil {
		sourcesUsed = []string{}
	}
	return DataQualityReport{
		BasicsOK:      len(missing) == 0,
		BasicsMissing: missing,
		CoveragePct:   Coverage(rec) * 100,
		SourcesUsed:   sourcesUsed,
	}
}

func hasPrice(rec *record.Record) bool {
	if rec == nil {
		return false
	}
	for _, f := range record.PriceFields {
		if rec.NonNull(f) {
			return true
		}
	}
	return false
}
