package cli

import (
	"github.com/rs/zerolog"

	"metricsfetcher/internal/aggregator"
	"metricsfetcher/internal/alphavantage"
	"metricsfetcher/internal/breaker"
	"metricsfetcher/internal/config"
	"metricsfetcher/internal/eodhd"
	"metricsfetcher/internal/fetcher"
	"metricsfetcher/internal/fmp"
	"metricsfetcher/internal/ratelimit"
	"metricsfetcher/internal/search"
	"metricsfetcher/internal/yahoo"
)

// NewService wires every provider, the search client and the FX source
// into an aggregator. Each paid API gets its own breaker; all clients
// share one rate limiter.
func NewService(cfg *config.Config, logger zerolog.Logger) *aggregator.Service {
	limiter := ratelimit.New(ratelimit.DefaultLimits())
	newBreaker := func(name string) *breaker.Breaker {
		return breaker.New(name, cfg.BreakerFailures, cfg.BreakerCooldown, logger)
	}

	yc := yahoo.NewClient(cfg.YahooBaseURL, limiter, logger)
	fetchers := []fetcher.Fetcher{
		yahoo.NewStatementFetcher(yc, logger),
		yahoo.NewQuoteFetcher(yc, logger),
		fmp.NewFetcher(cfg.FMPAPIKey, cfg.FMPBaseURL, limiter, newBreaker(fmp.Source), logger),
		eodhd.NewFetcher(cfg.EODHDAPIKey, cfg.EODHDBaseURL, limiter, newBreaker(eodhd.Source), logger),
		alphavantage.NewOverviewFetcher(cfg.AlphavantageAPIKey, cfg.AlphavantageBaseURL, limiter, newBreaker(alphavantage.Source), logger),
	}

	return aggregator.New(aggregator.Options{
		Fetchers:          fetchers,
		Searcher:          search.NewClient(cfg.TavilyAPIKey, cfg.TavilyBaseURL, limiter, logger),
		History:           yc,
		Rates:             yc.FXRate,
		PerSourceTimeout:  cfg.PerSourceTimeout,
		GapFillTimeout:    cfg.GapFillTimeout,
		MaxGapFillFields:  cfg.MaxGapFillFields,
		CoverageThreshold: cfg.CoverageThreshold,
		RescueSuffixes:    cfg.RescueSuffixes,
		FXCacheTTL:        cfg.FXCacheTTL,
	}, logger)
}
