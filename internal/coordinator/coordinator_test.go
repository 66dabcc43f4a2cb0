package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metricsfetcher/internal/fetcher"
	"metricsfetcher/internal/record"
	"metricsfetcher/internal/testutil"
)

func TestNew(t *testing.T) {
	fetchers := []fetcher.Fetcher{
		testutil.NewMockFetcher("yfinance", nil, nil),
		testutil.NewMockFetcher("fmp", nil, nil),
	}

	coord := New(fetchers, 0, zerolog.Nop())
	require.NotNil(t, coord)
	assert.Len(t, coord.fetchers, len(fetchers))
	assert.Equal(t, fetcher.DefaultTimeout, coord.timeout)
	assert.Equal(t, []string{"yfinance", "fmp"}, coord.Sources())
}

func TestFetchAll_Success(t *testing.T) {
	yf := testutil.NewRecord(map[record.Field]float64{record.CurrentPrice: 150, record.TrailingPE: 20})
	fmp := testutil.NewRecord(map[record.Field]float64{record.TrailingPE: 18})

	coord := New([]fetcher.Fetcher{
		testutil.NewMockFetcher("yfinance", yf, nil),
		testutil.NewMockFetcher("fmp", fmp, nil),
		testutil.NewMockFetcher("eodhd", nil, nil),
	}, time.Second, zerolog.Nop())

	got, err := coord.FetchAll(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, got, 3)

	pe, _ := got["yfinance"].Record.Float(record.TrailingPE)
	assert.Equal(t, 20.0, pe)
	pe, _ = got["fmp"].Record.Float(record.TrailingPE)
	assert.Equal(t, 18.0, pe)
	assert.True(t, got["eodhd"].Absent())
	assert.NoError(t, got["eodhd"].Err)
}

func TestFetchAll_ErrorsFoldToAbsent(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType fetcher.ErrorType
	}{
		{"network", fetcher.NewNetworkError(errors.New("connection refused")), fetcher.ErrorTypeNetwork},
		{"server", fetcher.NewServerError(503), fetcher.ErrorTypeServer},
		{"rate limit", fetcher.NewRateLimitError(429), fetcher.ErrorTypeRateLimit},
		{"plain error", errors.New("boom"), fetcher.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok := testutil.NewRecord(map[record.Field]float64{record.CurrentPrice: 1})
			coord := New([]fetcher.Fetcher{
				testutil.NewMockFetcher("broken", nil, tt.err),
				testutil.NewMockFetcher("healthy", ok, nil),
			}, time.Second, zerolog.Nop())

			got, err := coord.FetchAll(context.Background(), "AAPL")
			require.NoError(t, err)

			assert.True(t, got["broken"].Absent())
			assert.Equal(t, tt.wantType, fetcher.TypeOf(got["broken"].Err))
			assert.False(t, got["healthy"].Absent())
		})
	}
}

func TestFetchAll_TimeoutIsolation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	ok := testutil.NewRecord(map[record.Field]float64{record.CurrentPrice: 1})
	timeout := 100 * time.Millisecond
	coord := New([]fetcher.Fetcher{
		testutil.NewBlockingFetcher("stuck", release),
		testutil.NewMockFetcher("healthy", ok, nil),
	}, timeout, zerolog.Nop())

	start := time.Now()
	got, err := coord.FetchAll(context.Background(), "AAPL")
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, timeout+500*time.Millisecond)
	assert.True(t, got["stuck"].Absent())
	assert.Equal(t, fetcher.ErrorTypeTimeout, fetcher.TypeOf(got["stuck"].Err))
	assert.False(t, got["healthy"].Absent())
}

func TestFetchAll_PanicFoldsToAbsent(t *testing.T) {
	panicky := &testutil.MockFetcher{
		NameFunc: func() string { return "panicky" },
		FetchFunc: func(ctx context.Context, symbol string) (*record.Record, error) {
			panic("nil map write")
		},
	}
	ok := testutil.NewRecord(map[record.Field]float64{record.CurrentPrice: 1})
	coord := New([]fetcher.Fetcher{panicky, testutil.NewMockFetcher("healthy", ok, nil)}, time.Second, zerolog.Nop())

	got, err := coord.FetchAll(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, got["panicky"].Absent())
	require.Error(t, got["panicky"].Err)
	assert.Contains(t, got["panicky"].Err.Error(), "panicked")
	assert.False(t, got["healthy"].Absent())
}

func TestFetchAll_PanickingValidateFoldsToAbsent(t *testing.T) {
	rec := testutil.NewRecord(map[record.Field]float64{record.CurrentPrice: 1})
	broken := testutil.NewMockFetcher("broken", rec, nil)
	broken.ValidateFunc = func(*record.Record) bool {
		panic("validator bug")
	}
	ok := testutil.NewRecord(map[record.Field]float64{record.CurrentPrice: 2})
	coord := New([]fetcher.Fetcher{broken, testutil.NewMockFetcher("healthy", ok, nil)}, time.Second, zerolog.Nop())

	got, err := coord.FetchAll(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.True(t, got["broken"].Absent())
	assert.Equal(t, fetcher.ErrorTypeUnknown, fetcher.TypeOf(got["broken"].Err))
	assert.Contains(t, got["broken"].Err.Error(), "panicked")
	assert.False(t, got["healthy"].Absent())
}

func TestFetchAll_SkipsUnavailable(t *testing.T) {
	paid := testutil.NewMockFetcher("fmp", testutil.NewRecord(map[record.Field]float64{record.TrailingPE: 1}), nil)
	paid.AvailableFunc = func() bool { return false }

	coord := New([]fetcher.Fetcher{paid}, time.Second, zerolog.Nop())
	got, err := coord.FetchAll(context.Background(), "AAPL")
	require.NoError(t, err)

	assert.True(t, got["fmp"].Skipped)
	assert.True(t, got["fmp"].Absent())
	assert.Equal(t, fetcher.ErrorTypeUnavailable, fetcher.TypeOf(got["fmp"].Err))
	assert.Equal(t, 0, paid.Calls())
}

func TestFetchAll_ExactlyOneAttempt(t *testing.T) {
	f := testutil.NewMockFetcher("yfinance", nil, fetcher.NewServerError(500))
	coord := New([]fetcher.Fetcher{f}, time.Second, zerolog.Nop())

	_, err := coord.FetchAll(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, f.Calls())
}

func TestFetchAll_Cancelled(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	coord := New([]fetcher.Fetcher{testutil.NewBlockingFetcher("stuck", release)}, 5*time.Second, zerolog.Nop())
	_, err := coord.FetchAll(ctx, "AAPL")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchAll_NoFetchers(t *testing.T) {
	coord := New([]fetcher.Fetcher{}, time.Second, zerolog.Nop())

	_, err := coord.FetchAll(context.Background(), "AAPL")
	require.Error(t, err)
	assert.Equal(t, "no fetchers configured", err.Error())
}
