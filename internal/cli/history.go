package cli

import (
	"github.com/spf13/cobra"

	"metricsfetcher/internal/yahoo"
)

var historyPeriod string

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history TICKER",
	Short: "Print daily OHLCV history for a ticker",
	Long: `Print daily bars from the primary source as JSON.

Periods: 1d 5d 1mo 3mo 6mo 1y 2y 5y 10y ytd max

Example:
  metricsfetcher history AAPL --period 6mo`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyPeriod, "period", yahoo.DefaultPeriod, "history range")
}

func runHistory(cmd *cobra.Command, args []string) error {
	_, svc, _, err := setup()
	if err != nil {
		return err
	}

	bars, err := svc.GetHistoricalPrices(cmd.Context(), args[0], historyPeriod)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), bars)
}
