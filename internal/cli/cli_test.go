package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metricsfetcher/internal/aggregator"
	"metricsfetcher/internal/fetcher"
	"metricsfetcher/internal/record"
	"metricsfetcher/internal/testutil"
)

func newTestCommand() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	return cmd
}

func TestFetchBatch_KeepsArgumentOrder(t *testing.T) {
	yf := &testutil.MockFetcher{
		NameFunc: func() string { return "yfinance" },
		FetchFunc: func(ctx context.Context, symbol string) (*record.Record, error) {
			switch symbol {
			case "DOWN":
				return nil, fetcher.NewServerError(503)
			case "NOPE":
				return nil, nil
			}
			rec := record.New()
			rec.SetText(record.Symbol, symbol)
			rec.SetFloat(record.TrailingPE, 20)
			return rec, nil
		},
	}
	svc := aggregator.New(aggregator.Options{Fetchers: []fetcher.Fetcher{yf}}, zerolog.Nop())

	results, err := fetchBatch(newTestCommand(), svc, []string{"AAPL", "DOWN", "NOPE", "MSFT"}, 2)
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, "AAPL", results[0].(*aggregator.Result).Symbol)
	outage := results[1].(map[string]any)
	assert.Equal(t, "DOWN", outage["symbol"])
	assert.Contains(t, outage["error"], "total outage")
	assert.Equal(t, aggregator.ErrNoData, results[2].(*aggregator.Result).Error)
	assert.Equal(t, "MSFT", results[3].(*aggregator.Result).Symbol)
}

func TestFetchBatch_InvalidTickerFails(t *testing.T) {
	svc := aggregator.New(aggregator.Options{Fetchers: []fetcher.Fetcher{
		testutil.NewMockFetcher("yfinance", nil, nil),
	}}, zerolog.Nop())

	_, err := fetchBatch(newTestCommand(), svc, []string{"AAPL", " "}, 0)
	require.Error(t, err)
	assert.Equal(t, fetcher.ErrorTypeValidation, fetcher.TypeOf(err))
}

func TestFetchBatch_Cancelled(t *testing.T) {
	svc := aggregator.New(aggregator.Options{Fetchers: []fetcher.Fetcher{
		testutil.NewMockFetcher("yfinance", nil, nil),
	}}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cmd := &cobra.Command{}
	cmd.SetContext(ctx)

	_, err := fetchBatch(cmd, svc, []string{"AAPL"}, 1)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	stats := aggregator.StatsSnapshot{Fetches: 2}
	require.NoError(t, writeJSON(&buf, BatchOutput{Results: []any{}, Stats: &stats}))

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, []any{}, out["results"])
	assert.Equal(t, 2.0, out["stats"].(map[string]any)["fetches"])
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"metrics", "history", "fx", "serve"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}
