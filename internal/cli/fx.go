package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// fxCmd represents the fx command
var fxCmd = &cobra.Command{
	Use:   "fx FROM TO",
	Short: "Print the exchange rate between two currencies",
	Long: `Print how many units of TO one unit of FROM buys. Unknown pairs
print 1.0, the same fallback the normalizer uses.

Example:
  metricsfetcher fx EUR USD`,
	Args: cobra.ExactArgs(2),
	RunE: runFX,
}

func init() {
	rootCmd.AddCommand(fxCmd)
}

func runFX(cmd *cobra.Command, args []string) error {
	_, svc, _, err := setup()
	if err != nil {
		return err
	}

	from, to := strings.ToUpper(args[0]), strings.ToUpper(args[1])
	return writeJSON(cmd.OutOrStdout(), map[string]any{
		"from": from,
		"to":   to,
		"rate": svc.GetCurrencyRate(cmd.Context(), from, to),
	})
}
