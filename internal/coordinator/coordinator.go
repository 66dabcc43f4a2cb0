package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"metricsfetcher/internal/fetcher"
)

// ErrNoFetchers is returned when the coordinator has nothing to run.
var ErrNoFetchers = errors.New("no fetchers configured")

// Coordinator fans one symbol out to every configured source concurrently.
type Coordinator struct {
	fetchers []fetcher.Fetcher
	timeout  time.Duration
	logger   zerolog.Logger
}

// New creates a new Coordinator. A non-positive timeout falls back to
// fetcher.DefaultTimeout.
func New(fetchers []fetcher.Fetcher, timeout time.Duration, logger zerolog.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = fetcher.DefaultTimeout
	}
	return &Coordinator{
		fetchers: fetchers,
		timeout:  timeout,
		logger:   logger,
	}
}

// Sources returns the configured source names in registration order.
func (c *Coordinator) Sources() []string {
	names := make([]string, len(c.fetchers))
	for i, f := range c.fetchers {
		names[i] = f.Name()
	}
	return names
}

// FetchAll runs every available fetcher once for symbol, each bounded by
// the per-source timeout, and returns one Outcome per source keyed by name.
// Failures of any kind fold to an absent record on that source's Outcome.
// The only errors returned are ErrNoFetchers and ctx cancellation.
func (c *Coordinator) FetchAll(ctx context.Context, symbol string) (map[string]fetcher.Outcome, error) {
	if len(c.fetchers) == 0 {
		return nil, ErrNoFetchers
	}

	// One slot per fetcher, written only by its own goroutine.
	outcomes := make([]fetcher.Outcome, len(c.fetchers))

	wg := conc.NewWaitGroup()
	for i, f := range c.fetchers {
		outcomes[i].Source = f.Name()
		if !f.IsAvailable() {
			outcomes[i].Skipped = true
			outcomes[i].Err = fetcher.NewUnavailableError(f.Name())
			c.logger.Debug().Str("source", f.Name()).Str("symbol", symbol).Msg("source_unavailable")
			continue
		}

		wg.Go(func() {
			outcomes[i] = c.fetchOne(ctx, f, symbol)
		})
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make(map[string]fetcher.Outcome, len(outcomes))
	for _, o := range outcomes {
		results[o.Source] = o
	}
	return results, nil
}

func (c *Coordinator) fetchOne(ctx context.Context, f fetcher.Fetcher, symbol string) fetcher.Outcome {
	start := time.Now()
	rec, err := fetcher.FetchWithTimeout(ctx, f, symbol, c.timeout)
	out := fetcher.Outcome{
		Source:   f.Name(),
		Err:      err,
		Duration: time.Since(start),
	}

	log := c.logger.With().Str("source", f.Name()).Str("symbol", symbol).Dur("duration", out.Duration).Logger()
	switch {
	case err == nil && rec.Empty():
		log.Debug().Msg("fetch_empty")
	case err == nil:
		valid, verr := fetcher.ValidateSafely(f, rec)
		if verr != nil {
			out.Err = verr
			log.Error().Err(verr).Msg("fetch_unexpected_error")
			break
		}
		out.Record = rec
		log.Debug().Int("fields", rec.CountNonNull()).Bool("valid", valid).Msg("fetch_complete")
	case errors.Is(err, context.Canceled):
		log.Debug().Msg("fetch_cancelled")
	case fetcher.TypeOf(err) == fetcher.ErrorTypeTimeout:
		log.Warn().Dur("timeout", c.timeout).Msg("fetch_timeout")
	case fetcher.TypeOf(err) == fetcher.ErrorTypeUnknown:
		log.Error().Err(err).Msg("fetch_unexpected_error")
	default:
		log.Warn().Err(err).Str("error_type", string(fetcher.TypeOf(err))).Msg("fetch_failed")
	}
	return out
}
