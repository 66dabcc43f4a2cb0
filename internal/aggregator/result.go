package aggregator

import (
	"encoding/json"

	"metricsfetcher/internal/quality"
	"metricsfetcher/internal/record"
)

// ErrNoData is the Result.Error of a call where no source had anything.
const ErrNoData = "No data available"

// Result is the outcome of one GetFinancialMetrics call.
type Result struct {
	Symbol string
	CallID string

	// Error is set instead of the fields below when nothing was found.
	Error string

	Record       *record.Record
	CoveragePct  float64
	DataSource   string
	SourcesUsed  []string
	GapsFilled   int
	FieldSources map[record.Field]string
	Quality      quality.DataQualityReport
}

// OK reports whether the result carries data.
func (r *Result) OK() bool {
	return r != nil && r.Error == ""
}

// Map flattens the result into the canonical fields plus "_"-prefixed
// metadata. Per-field provenance tags appear as "_<field>_source".
func (r *Result) Map() map[string]any {
	if !r.OK() {
		return map[string]any{"error": r.Error, "symbol": r.Symbol}
	}

	out := r.Record.Map()
	for field, tag := range r.Record.Tags() {
		out["_"+string(field)+"_source"] = tag
	}

	fieldSources := make(map[string]string, len(r.FieldSources))
	for field, source := range r.FieldSources {
		fieldSources[string(field)] = source
	}

	out["_coveragePct"] = r.CoveragePct
	out["_dataSource"] = r.DataSource
	out["_sourcesUsed"] = r.SourcesUsed
	out["_gapsFilled"] = r.GapsFilled
	out["_fieldSources"] = fieldSources
	out["_quality"] = r.Quality
	return out
}

// MarshalJSON implements json.Marshaler
func (r *Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}
