// Package aggregator is the engine entry point: it fans a symbol out to
// every source, merges the answers by quality and enriches the result.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"metricsfetcher/internal/coordinator"
	"metricsfetcher/internal/derive"
	"metricsfetcher/internal/fetcher"
	"metricsfetcher/internal/fxcache"
	"metricsfetcher/internal/gapfill"
	"metricsfetcher/internal/normalize"
	"metricsfetcher/internal/quality"
	"metricsfetcher/internal/record"
)

// DefaultCoverageThreshold is the coverage below which gap-fill runs.
const DefaultCoverageThreshold = 0.70

// ErrTotalOutage is returned when every source that was called failed
// with a network, timeout or server error and rescue found nothing.
var ErrTotalOutage = errors.New("total outage: every source failed")

// HistorySource serves daily price history.
type HistorySource interface {
	History(ctx context.Context, symbol, period string) ([]record.Bar, error)
}

// Options wires a Service. Zero durations and limits use the package
// defaults of the components they configure.
type Options struct {
	// Fetchers in registration order. Merge order does not depend on it.
	Fetchers []fetcher.Fetcher

	// Searcher enables rescue and gap-fill; nil disables both.
	Searcher gapfill.Searcher

	History HistorySource
	Rates   fxcache.RateFunc

	PerSourceTimeout  time.Duration
	GapFillTimeout    time.Duration
	MaxGapFillFields  int
	CoverageThreshold float64
	RescueSuffixes    []string
	FXCacheTTL        time.Duration
}

// Service aggregates fundamentals for one symbol per call. It is safe for
// concurrent use.
type Service struct {
	coord      *coordinator.Coordinator
	pipeline   *gapfill.Pipeline
	normalizer *normalize.Normalizer
	fx         *fxcache.Cache
	history    HistorySource
	threshold  float64
	suffixes   []string
	stats      *Stats
	logger     zerolog.Logger
}

// New creates the Service.
func New(opts Options, logger zerolog.Logger) *Service {
	threshold := opts.CoverageThreshold
	if threshold <= 0 {
		threshold = DefaultCoverageThreshold
	}
	suffixes := opts.RescueSuffixes
	if suffixes == nil {
		suffixes = gapfill.DefaultRescueSuffixes
	}

	s := &Service{
		coord:     coordinator.New(opts.Fetchers, opts.PerSourceTimeout, logger),
		pipeline:  gapfill.NewPipeline(opts.Searcher, opts.MaxGapFillFields, opts.GapFillTimeout, logger),
		history:   opts.History,
		threshold: threshold,
		suffixes:  suffixes,
		logger:    logger,
	}
	s.stats = newStats(s.coord.Sources())

	rates := opts.Rates
	if rates == nil {
		rates = func(ctx context.Context, from, to string) (float64, error) {
			return 0, fmt.Errorf("no fx rate source configured")
		}
	}
	s.fx = fxcache.New(rates, opts.FXCacheTTL)
	s.normalizer = normalize.New(s.fx.Get, logger)
	return s
}

// GetFinancialMetrics aggregates the fundamentals of ticker. Per-source
// and per-field failures only lower coverage. An error is returned only
// for cancellation, an empty ticker or a total outage; a symbol nobody
// knows yields a Result whose Error is ErrNoData.
func (s *Service) GetFinancialMetrics(ctx context.Context, ticker string) (*Result, error) {
	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	if symbol == "" {
		return nil, fetcher.NewValidationError("ticker is required")
	}

	callID := uuid.NewString()
	log := s.logger.With().Str("call_id", callID).Str("symbol", symbol).Logger()
	s.stats.fetch()
	start := time.Now()

	outcomes, err := s.coord.FetchAll(ctx, symbol)
	if err != nil {
		log.Warn().Err(err).Msg("fetch_cancelled")
		return nil, err
	}

	results := make(map[string]*record.Record, len(outcomes))
	for name, o := range outcomes {
		if o.Absent() {
			continue
		}
		results[name] = o.Record
		s.stats.source(name)
	}

	merged := quality.Merge(results)
	log.Info().
		Int("total_fields", merged.Record.Len()).
		Strs("sources", merged.SourcesUsed()).
		Int("gaps_filled", merged.GapsFilled).
		Msg("smart_merge_complete")

	if gapfill.NeedsRescue(symbol, merged.Record, s.suffixes) {
		s.rescue(ctx, log, symbol, merged)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !merged.Record.HasData() {
		if totalOutage(outcomes) {
			log.Error().Msg("total_outage")
			return nil, fmt.Errorf("%w for %s", ErrTotalOutage, symbol)
		}
		log.Warn().Msg("no_data_available")
		return &Result{Symbol: symbol, CallID: callID, Error: ErrNoData}, nil
	}

	if merged.CoveragePct < s.threshold {
		s.fillGaps(ctx, log, symbol, merged)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if accepted := merged.Apply(derive.Compute(merged.Record), quality.TagCalculated); len(accepted) > 0 {
		s.stats.source(StatCalculated)
		log.Debug().Interface("fields", accepted).Msg("derived_metrics_added")
	}

	merged.Retag(s.normalizer.Normalize(ctx, merged.Record))
	merged.Refresh()

	report := quality.ValidateBasics(merged.Record, merged.SourcesUsed())
	s.stats.complete(report.BasicsOK, merged.GapsFilled, merged.CoveragePct)
	if !report.BasicsOK {
		log.Warn().Strs("missing", report.BasicsMissing).Msg("basics_missing")
	}

	log.Info().
		Float64("coverage", merged.CoveragePct).
		Int("gaps_filled", merged.GapsFilled).
		Dur("duration", time.Since(start)).
		Msg("fetch_complete")

	return &Result{
		Symbol:       symbol,
		CallID:       callID,
		Record:       merged.Record,
		CoveragePct:  merged.CoveragePct,
		DataSource:   merged.CompositeSource(),
		SourcesUsed:  merged.SourcesUsed(),
		GapsFilled:   merged.GapsFilled,
		FieldSources: merged.Provenance,
		Quality:      report,
	}, nil
}

// rescue runs one broad search for a symbol the structured sources left
// without basics. A generic price stands in for a missing currentPrice.
func (s *Service) rescue(ctx context.Context, log zerolog.Logger, symbol string, merged *quality.Merged) {
	log.Warn().Msg("data_vacuum_detected")
	if !s.pipeline.Enabled() {
		return
	}

	fields := append(append([]record.Field{}, quality.ImportantFields...), quality.RequiredBasics...)
	rescued := s.pipeline.Rescue(ctx, symbol, companyName(merged.Record, symbol), fields)
	if !rescued.HasData() {
		return
	}

	price, hasPrice := rescued.Get(record.Price)
	rescued.Delete(record.Price)
	accepted := merged.Apply(rescued, quality.TagTavily)

	if hasPrice && !merged.Record.NonNull(record.CurrentPrice) {
		alias := record.New()
		alias.Set(record.CurrentPrice, price)
		alias.SetTag(record.CurrentPrice, quality.TagWebSearch)
		accepted = append(accepted, merged.Apply(alias, quality.TagTavily)...)
	}

	if len(accepted) > 0 {
		s.stats.source(StatWebSearch)
	}
	log.Info().Interface("fields", accepted).Msg("rescue_complete")
}

// fillGaps searches for critical gaps when coverage is below threshold.
func (s *Service) fillGaps(ctx context.Context, log zerolog.Logger, symbol string, merged *quality.Merged) {
	gaps := quality.CriticalGaps(merged.Record)
	if len(gaps) == 0 || !s.pipeline.Enabled() {
		return
	}

	log.Info().Float64("coverage", merged.CoveragePct).Int("gaps", len(gaps)).Msg("gap_fill_started")
	filled := s.pipeline.Fill(ctx, symbol, companyName(merged.Record, symbol), gaps)
	accepted := merged.Apply(filled, quality.TagTavily, gapfill.DangerousFields...)
	if len(accepted) > 0 {
		s.stats.source(StatWebSearch)
	}
	log.Info().Interface("fields", accepted).Float64("coverage", merged.CoveragePct).Msg("gap_fill_merged")
}

// totalOutage reports whether every source that was called failed with an
// outage-type error. Skipped sources do not count either way.
func totalOutage(outcomes map[string]fetcher.Outcome) bool {
	attempted := 0
	for _, o := range outcomes {
		if o.Skipped {
			continue
		}
		attempted++
		if !fetcher.IsOutage(o.Err) {
			return false
		}
	}
	return attempted > 0
}

func companyName(rec *record.Record, symbol string) string {
	for _, f := range []record.Field{record.LongName, record.ShortName} {
		if name, ok := rec.Text(f); ok && name != "" {
			return name
		}
	}
	return symbol
}

// GetHistoricalPrices returns daily bars from the primary source.
func (s *Service) GetHistoricalPrices(ctx context.Context, ticker, period string) ([]record.Bar, error) {
	if s.history == nil {
		return nil, fetcher.NewUnavailableError("history")
	}
	symbol := strings.ToUpper(strings.TrimSpace(ticker))
	if symbol == "" {
		return nil, fetcher.NewValidationError("ticker is required")
	}
	return s.history.History(ctx, symbol, period)
}

// GetCurrencyRate returns the cached rate from one currency to another,
// falling back to 1 when no rate can be had.
func (s *Service) GetCurrencyRate(ctx context.Context, from, to string) float64 {
	rate, err := s.fx.Get(ctx, from, to)
	if err != nil {
		s.logger.Warn().Str("from", from).Str("to", to).Err(err).Msg("fx_rate_fallback")
		return 1
	}
	return rate
}

// ClearFXCache drops every cached rate.
func (s *Service) ClearFXCache() {
	s.fx.Clear()
}

// Stats returns a snapshot of the process-wide counters.
func (s *Service) Stats() StatsSnapshot {
	return s.stats.Snapshot()
}
