package fetcher

import (
	"time"

	"metricsfetcher/internal/record"
)

// Outcome is what one source produced during a single aggregation call.
// Every failure folds to a nil Record; Err keeps the category for logging
// and for outage detection.
type Outcome struct {
	// Source is the fetcher's Name()
	Source string

	// Record is the fetched data, nil when the source had nothing or failed
	Record *record.Record

	// Err is the folded failure, if any
	Err error

	// Skipped is set when IsAvailable() returned false and no call was made
	Skipped bool

	// Duration is the wall time spent on the attempt
	Duration time.Duration
}

// Absent reports whether the outcome carries no usable data.
func (o Outcome) Absent() bool {
	return o.Record.Empty()
}
