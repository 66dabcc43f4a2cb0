// Package cli holds the cobra commands of the metricsfetcher binary.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"metricsfetcher/internal/aggregator"
	"metricsfetcher/internal/config"
	"metricsfetcher/internal/logging"
)

var (
	// Global flags
	envFile   string
	logLevel  string
	logFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "metricsfetcher",
	Short: "Aggregate stock fundamentals from several data sources",
	Long: `metricsfetcher queries every configured market-data source for a ticker,
merges the answers by source quality, fills critical gaps from web search and
returns one normalized record with per-field provenance.

Examples:
  metricsfetcher metrics AAPL MSFT 0700.HK
  metricsfetcher history AAPL --period 6mo
  metricsfetcher fx EUR USD
  metricsfetcher serve --addr :8080`,
	SilenceUsage: true,
}

// Execute runs the root command until it returns or the process is
// interrupted. It is called by main.main().
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "override LOG_FORMAT (json|console)")
}

// setup loads configuration and builds the service shared by every command.
// Logs go to stderr so stdout stays machine-readable.
func setup() (*config.Config, *aggregator.Service, zerolog.Logger, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, nil, zerolog.Nop(), err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	return cfg, NewService(cfg, logger), logger, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
