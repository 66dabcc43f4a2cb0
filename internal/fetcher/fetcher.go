package fetcher

import (
	"context"

	"metricsfetcher/internal/record"
)

// Fetcher is the core interface that every fundamentals source implements.
// Each fetcher maps one provider's native schema onto the canonical field
// vocabulary in package record.
type Fetcher interface {
	// Name returns the source tag used for quality ranking, e.g. "fmp".
	Name() string

	// Fetch retrieves the metrics for symbol. A nil record with a nil error
	// means the source had nothing for the symbol. Ordinary failures are
	// returned as *FetchError values.
	Fetch(ctx context.Context, symbol string) (*record.Record, error)

	// Validate reports whether rec looks usable. It is diagnostic only.
	Validate(rec *record.Record) bool

	// IsAvailable reports whether the source should be called at all
	// (API key configured, circuit breaker not tripped).
	IsAvailable() bool
}

// MinInfoFields is the minimum number of non-null fields for a record to
// pass ValidateRecord.
const MinInfoFields = 3

// ValidateRecord returns true when rec has at least MinInfoFields non-null
// fields, one of them a price.
func ValidateRecord(rec *record.Record) bool {
	if rec.Empty() {
		return false
	}
	hasPrice := false
	for _, f := range record.PriceFields {
		if rec.NonNull(f) {
			hasPrice = true
			break
		}
	}
	return hasPrice && rec.CountNonNull() >= MinInfoFields
}
