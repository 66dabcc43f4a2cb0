package gapfill

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"metricsfetcher/internal/record"
)

const (
	// DefaultMaxFields caps the number of searches one Fill may issue.
	DefaultMaxFields = 5
	// DefaultTimeout bounds each individual search.
	DefaultTimeout = 5 * time.Second

	fillSnippets   = 3
	rescueSnippets = 5
	rescueTopic    = "stock price currency market cap P/E ratio price to book ROE analyst coverage"
)

// DangerousFields are never populated from web search. A wrong price,
// P/E, PEG or market cap is worse than none.
var DangerousFields = []record.Field{
	record.TrailingPE,
	record.ForwardPE,
	record.PEGRatio,
	record.CurrentPrice,
	record.MarketCap,
}

// DefaultRescueSuffixes are exchange suffixes whose tickers the structured
// sources often get wrong.
var DefaultRescueSuffixes = []string{".HK", ".TW", ".KS", ".T"}

// Searcher is a web-search provider.
type Searcher interface {
	// Search returns the text of up to maxResults results for query.
	Search(ctx context.Context, query string, maxResults int) ([]string, error)

	// Available reports whether the provider is configured.
	Available() bool
}

// Pipeline fills record gaps from web search snippets.
type Pipeline struct {
	searcher  Searcher
	extractor *Extractor
	maxFields int
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewPipeline creates a gap-fill pipeline. searcher may be nil, in which
// case Fill and Rescue do nothing.
func NewPipeline(searcher Searcher, maxFields int, timeout time.Duration, logger zerolog.Logger) *Pipeline {
	if maxFields <= 0 {
		maxFields = DefaultMaxFields
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Pipeline{
		searcher:  searcher,
		extractor: NewExtractor(),
		maxFields: maxFields,
		timeout:   timeout,
		logger:    logger,
	}
}

// Enabled reports whether a configured searcher is present.
func (p *Pipeline) Enabled() bool {
	return p != nil && p.searcher != nil && p.searcher.Available()
}

// SafeFields returns gaps without the dangerous fields, capped at the
// pipeline's field limit.
func (p *Pipeline) SafeFields(gaps []record.Field) []record.Field {
	var safe []record.Field
	for _, f := range gaps {
		if slices.Contains(DangerousFields, f) {
			continue
		}
		safe = append(safe, f)
		if len(safe) == p.maxFields {
			break
		}
	}
	return safe
}

// Fill searches once per safe gap, sequentially, and extracts values from
// the combined snippets. The result never contains a dangerous field.
func (p *Pipeline) Fill(ctx context.Context, symbol, company string, gaps []record.Field) *record.Record {
	if !p.Enabled() {
		return nil
	}
	fields := p.SafeFields(gaps)
	if len(fields) == 0 {
		return nil
	}

	var texts []string
	for _, field := range fields {
		if ctx.Err() != nil {
			return nil
		}
		query := FieldQuery(symbol, company, field)
		snippets, err := p.search(ctx, query, fillSnippets)
		if err != nil {
			p.logger.Debug().Str("symbol", symbol).Str("field", string(field)).Err(err).Msg("gap_fill_search_failed")
			continue
		}
		if len(snippets) > 0 {
			texts = append(texts, strings.Join(snippets, "\n"))
		}
	}
	if len(texts) == 0 {
		return nil
	}

	out := p.extractor.Extract(strings.Join(texts, "\n\n"))
	for _, f := range DangerousFields {
		out.Delete(f)
	}
	out.Delete(record.Price)

	p.logger.Info().Str("symbol", symbol).Int("searched", len(fields)).Int("extracted", out.Len()).Msg("gap_fill_complete")
	return out
}

// Rescue issues one broad search for a symbol the structured sources could
// not describe and keeps the extracted values for fields. A generic price
// is kept under record.Price for the caller to alias.
func (p *Pipeline) Rescue(ctx context.Context, symbol, company string, fields []record.Field) *record.Record {
	if !p.Enabled() {
		return nil
	}

	query := StrictQuery(symbol, company, rescueTopic)
	snippets, err := p.search(ctx, query, rescueSnippets)
	if err != nil {
		p.logger.Warn().Str("symbol", symbol).Err(err).Msg("rescue_search_failed")
		return nil
	}
	if len(snippets) == 0 {
		return nil
	}

	extracted := p.extractor.Extract(strings.Join(snippets, "\n"))
	out := record.New()
	for _, f := range extracted.Fields() {
		if f != record.Price && !slices.Contains(fields, f) {
			continue
		}
		v, _ := extracted.Get(f)
		out.Set(f, v)
		if tag, ok := extracted.Tag(f); ok {
			out.SetTag(f, tag)
		}
	}
	return out
}

func (p *Pipeline) search(ctx context.Context, query string, maxResults int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.searcher.Search(ctx, query, maxResults)
}

// NeedsRescue reports whether the structured sources left a data vacuum:
// nothing merged at all, or a ticker with one of suffixes whose basics are
// incomplete.
func NeedsRescue(symbol string, merged *record.Record, suffixes []string) bool {
	if !merged.HasData() {
		return true
	}
	risky := false
	upper := strings.ToUpper(symbol)
	for _, s := range suffixes {
		if strings.HasSuffix(upper, strings.ToUpper(s)) {
			risky = true
			break
		}
	}
	if !risky {
		return false
	}
	for _, f := range []record.Field{record.Symbol, record.CurrentPrice, record.Currency} {
		if !merged.NonNull(f) {
			return true
		}
	}
	return false
}
