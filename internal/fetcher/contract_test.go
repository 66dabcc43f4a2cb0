package fetcher_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metricsfetcher/internal/fetcher"
	"metricsfetcher/internal/record"
	"metricsfetcher/internal/testutil"
)

func TestFetchWithTimeout(t *testing.T) {
	t.Run("returns the record", func(t *testing.T) {
		rec := testutil.NewRecord(map[record.Field]float64{record.CurrentPrice: 10})
		f := testutil.NewMockFetcher("yfinance", rec, nil)

		got, err := fetcher.FetchWithTimeout(context.Background(), f, "AAPL", time.Second)
		require.NoError(t, err)
		v, ok := got.Float(record.CurrentPrice)
		assert.True(t, ok)
		assert.Equal(t, 10.0, v)
	})

	t.Run("fetcher ignoring context resolves to timeout", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		f := testutil.NewBlockingFetcher("stuck", release)

		start := time.Now()
		got, err := fetcher.FetchWithTimeout(context.Background(), f, "AAPL", 50*time.Millisecond)
		elapsed := time.Since(start)

		assert.Nil(t, got)
		require.Error(t, err)
		assert.Equal(t, fetcher.ErrorTypeTimeout, fetcher.TypeOf(err))
		assert.Less(t, elapsed, time.Second)
	})

	t.Run("parent cancellation is returned as is", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		f := testutil.NewBlockingFetcher("stuck", release)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()

		_, err := fetcher.FetchWithTimeout(ctx, f, "AAPL", 5*time.Second)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("hard errors pass through", func(t *testing.T) {
		f := testutil.NewMockFetcher("fmp", nil, fetcher.NewClientError(404, "not found"))

		_, err := fetcher.FetchWithTimeout(context.Background(), f, "AAPL", time.Second)
		assert.Equal(t, fetcher.ErrorTypeClient, fetcher.TypeOf(err))
	})
}

func TestFetchWithRetry(t *testing.T) {
	policy := fetcher.RetryPolicy{MaxRetries: 3, Timeout: time.Second, Base: time.Millisecond}

	t.Run("retries retryable errors until success", func(t *testing.T) {
		attempts := 0
		f := &testutil.MockFetcher{
			FetchFunc: func(ctx context.Context, symbol string) (*record.Record, error) {
				attempts++
				if attempts < 3 {
					return nil, fetcher.NewServerError(503)
				}
				return testutil.NewRecord(map[record.Field]float64{record.TrailingPE: 12}), nil
			},
		}

		got, err := fetcher.FetchWithRetry(context.Background(), f, "AAPL", policy)
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
		assert.True(t, got.NonNull(record.TrailingPE))
	})

	t.Run("stops on non-retryable error", func(t *testing.T) {
		f := testutil.NewMockFetcher("fmp", nil, fetcher.NewClientError(401, "bad key"))

		_, err := fetcher.FetchWithRetry(context.Background(), f, "AAPL", policy)
		require.Error(t, err)
		assert.Equal(t, 1, f.Calls())
	})

	t.Run("absent results use every attempt", func(t *testing.T) {
		f := testutil.NewMockFetcher("fmp", nil, nil)

		got, err := fetcher.FetchWithRetry(context.Background(), f, "AAPL", policy)
		assert.NoError(t, err)
		assert.Nil(t, got)
		assert.Equal(t, 3, f.Calls())
	})

	t.Run("cancellation aborts the backoff", func(t *testing.T) {
		f := testutil.NewMockFetcher("fmp", nil, fetcher.NewNetworkError(errors.New("refused")))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := fetcher.FetchWithRetry(ctx, f, "AAPL", fetcher.RetryPolicy{MaxRetries: 3, Base: time.Hour})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := fetcher.RetryPolicy{Base: time.Second}
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
	}
	for _, tt := range tests {
		if got := p.Backoff(tt.attempt); got != tt.want {
			t.Errorf("Backoff(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestRetry(t *testing.T) {
	t.Run("reports each retry and returns the last error", func(t *testing.T) {
		var retried []int
		policy := fetcher.RetryPolicy{
			MaxRetries: 3,
			Base:       time.Millisecond,
			OnRetry:    func(attempt int, err error) { retried = append(retried, attempt) },
		}
		calls := 0
		err := fetcher.Retry(context.Background(), policy, func(ctx context.Context) error {
			calls++
			return fetcher.NewServerError(502)
		})
		assert.Equal(t, fetcher.ErrorTypeServer, fetcher.TypeOf(err))
		assert.Equal(t, 3, calls)
		assert.Equal(t, []int{1, 2}, retried)
	})

	t.Run("plain errors are not retried", func(t *testing.T) {
		calls := 0
		err := fetcher.Retry(context.Background(), fetcher.RetryPolicy{Base: time.Millisecond}, func(ctx context.Context) error {
			calls++
			return errors.New("decode failed")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestValidateSafely(t *testing.T) {
	f := testutil.NewMockFetcher("fmp", nil, nil)
	f.ValidateFunc = func(*record.Record) bool { panic("boom") }

	valid, err := fetcher.ValidateSafely(f, record.New())
	assert.False(t, valid)
	assert.Equal(t, fetcher.ErrorTypeUnknown, fetcher.TypeOf(err))
}
