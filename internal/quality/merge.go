package quality

import (
	"slices"
	"sort"
	"strings"

	"metricsfetcher/internal/record"
)

// Merged is the reconciled record of one aggregation call together with
// the side-tables that explain where every value came from.
type Merged struct {
	Record *record.Record

	// Provenance maps each accepted field to the source that supplied it.
	Provenance map[record.Field]string

	// Quality maps each accepted field to the rank it was accepted at.
	Quality map[record.Field]float64

	// GapsFilled counts null or missing fields that received a value.
	GapsFilled int

	// CoveragePct is Coverage(Record), refreshed after every phase.
	CoveragePct float64

	sources map[string]bool
}

// NewMerged returns an empty merge state.
func NewMerged() *Merged {
	return &Merged{
		Record:     record.New(),
		Provenance: make(map[record.Field]string),
		Quality:    make(map[record.Field]float64),
		sources:    make(map[string]bool),
	}
}

// Merge reconciles per-source records. Sources are applied in
// PriorityOrder, never in arrival order, so the result only depends on the
// records themselves. Sources missing from PriorityOrder go first, sorted
// by name.
func Merge(results map[string]*record.Record) *Merged {
	m := NewMerged()
	for _, source := range mergeOrder(results) {
		rec := results[source]
		if !rec.HasData() {
			continue
		}
		m.sources[source] = true
		m.apply(rec, source, nil, false)
	}
	m.Refresh()
	return m
}

func mergeOrder(results map[string]*record.Record) []string {
	var extra []string
	for source := range results {
		if !slices.Contains(PriorityOrder, source) {
			extra = append(extra, source)
		}
	}
	sort.Strings(extra)
	return append(extra, PriorityOrder...)
}

// Apply merges the output of a later phase (rescue, gap-fill, derived
// metrics) under the same acceptance rule as Merge. Fields that were
// missing or null count as gaps filled. The phase is recorded in
// Provenance but not in SourcesUsed. It returns the accepted fields.
func (m *Merged) Apply(rec *record.Record, source string, exclude ...record.Field) []record.Field {
	accepted := m.apply(rec, source, exclude, true)
	m.Refresh()
	return accepted
}

func (m *Merged) apply(rec *record.Record, source string, exclude []record.Field, countNew bool) []record.Field {
	if rec.Empty() {
		return nil
	}
	base := Rank(source)

	var accepted []record.Field
	for _, f := range rec.Fields() {
		if slices.Contains(exclude, f) {
			continue
		}
		v, _ := rec.Get(f)
		current, present := m.Record.Get(f)

		// Nulls only ever hold a place for a field nobody has reported.
		if v.IsNull() {
			if !present {
				m.Record.SetNull(f)
			}
			continue
		}

		q := base
		tag, tagged := rec.Tag(f)
		if tagged {
			if r, ok := tagRank(tag); ok {
				q = r
			}
		}

		switch {
		case !present:
			if countNew {
				m.GapsFilled++
			}
		case current.IsNull():
			m.GapsFilled++
		case q > m.Quality[f]:
		default:
			continue
		}

		m.Record.Set(f, v)
		m.Record.SetTag(f, tag)
		m.Provenance[f] = source
		m.Quality[f] = q
		accepted = append(accepted, f)
	}
	return accepted
}

// Retag points Provenance at the record's own tag for fields a later step
// rewrote in place. Quality keeps the rank the value was accepted at.
func (m *Merged) Retag(fields []record.Field) {
	for _, f := range fields {
		if tag, ok := m.Record.Tag(f); ok && tag != "" {
			m.Provenance[f] = tag
		}
	}
}

// Refresh recomputes CoveragePct from the current record.
func (m *Merged) Refresh() {
	m.CoveragePct = Coverage(m.Record)
}

// SourcesUsed returns the fetchers that contributed data, sorted.
func (m *Merged) SourcesUsed() []string {
	out := make([]string, 0, len(m.sources))
	for s := range m.sources {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// CompositeSource names the blend, e.g. "composite_fmp+yfinance".
func (m *Merged) CompositeSource() string {
	return "composite_" + strings.Join(m.SourcesUsed(), "+")
}
