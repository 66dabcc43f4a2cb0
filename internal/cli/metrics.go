package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"metricsfetcher/internal/aggregator"
)

var (
	// Metrics flags
	metricsConcurrency int
	metricsStats       bool
)

// metricsCmd represents the metrics command
var metricsCmd = &cobra.Command{
	Use:   "metrics TICKER...",
	Short: "Fetch merged fundamentals for one or more tickers",
	Long: `Fetch merged fundamentals for each ticker and print them as JSON.

Tickers are processed concurrently, at most --concurrency at a time. A
ticker no source knows prints {"error": "No data available"}; a total
outage of every source is reported per ticker without failing the batch.

Example:
  metricsfetcher metrics AAPL
  metricsfetcher metrics AAPL MSFT 0700.HK --stats`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMetrics,
}

func init() {
	rootCmd.AddCommand(metricsCmd)

	metricsCmd.Flags().IntVar(&metricsConcurrency, "concurrency", 4, "tickers fetched at once")
	metricsCmd.Flags().BoolVar(&metricsStats, "stats", false, "print aggregate statistics after the results")
}

// BatchOutput is what metrics prints for more than one ticker or --stats.
type BatchOutput struct {
	Results []any                     `json:"results"`
	Stats   *aggregator.StatsSnapshot `json:"stats,omitempty"`
}

func runMetrics(cmd *cobra.Command, args []string) error {
	_, svc, _, err := setup()
	if err != nil {
		return err
	}

	results, err := fetchBatch(cmd, svc, args, metricsConcurrency)
	if err != nil {
		return err
	}

	if len(results) == 1 && !metricsStats {
		return writeJSON(cmd.OutOrStdout(), results[0])
	}
	out := BatchOutput{Results: results}
	if metricsStats {
		stats := svc.Stats()
		out.Stats = &stats
	}
	return writeJSON(cmd.OutOrStdout(), out)
}

// fetchBatch returns one entry per ticker, in argument order. Only
// cancellation and invalid tickers abort the batch.
func fetchBatch(cmd *cobra.Command, svc *aggregator.Service, tickers []string, limit int) ([]any, error) {
	if limit <= 0 {
		limit = 1
	}
	results := make([]any, len(tickers))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(limit)
	for i, ticker := range tickers {
		g.Go(func() error {
			res, err := svc.GetFinancialMetrics(ctx, ticker)
			switch {
			case errors.Is(err, aggregator.ErrTotalOutage):
				results[i] = map[string]any{"error": err.Error(), "symbol": ticker}
				return nil
			case err != nil:
				return fmt.Errorf("%s: %w", ticker, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
