package fxcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func countingRate(rate float64) (RateFunc, *atomic.Int32) {
	var calls atomic.Int32
	return func(ctx context.Context, from, to string) (float64, error) {
		calls.Add(1)
		return rate, nil
	}, &calls
}

func TestCache_SameCurrency(t *testing.T) {
	fetch, calls := countingRate(2)
	c := New(fetch, time.Hour)

	rate, err := c.Get(context.Background(), "usd", "USD")
	require.NoError(t, err)
	assert.Equal(t, 1.0, rate)
	assert.Equal(t, int32(0), calls.Load())
}

func TestCache_HitAndInverse(t *testing.T) {
	fetch, calls := countingRate(0.8)
	c := New(fetch, time.Hour)
	ctx := context.Background()

	rate, err := c.Get(ctx, "USD", "EUR")
	require.NoError(t, err)
	assert.Equal(t, 0.8, rate)

	rate, err = c.Get(ctx, "usd", "eur")
	require.NoError(t, err)
	assert.Equal(t, 0.8, rate)

	rate, err = c.Get(ctx, "EUR", "USD")
	require.NoError(t, err)
	assert.InDelta(t, 1.25, rate, 1e-12)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestCache_ExpiredIsMiss(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	fetch, calls := countingRate(150)
	c := New(fetch, time.Hour, WithClock(clock.Now))
	ctx := context.Background()

	_, err := c.Get(ctx, "USD", "JPY")
	require.NoError(t, err)

	clock.Advance(59 * time.Minute)
	_, err = c.Get(ctx, "USD", "JPY")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	clock.Advance(time.Minute)
	_, err = c.Get(ctx, "USD", "JPY")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestCache_ConcurrentMissesShareOneCall(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context, from, to string) (float64, error) {
		calls.Add(1)
		<-release
		if from == "USD" {
			return 7.8, nil
		}
		return 1 / 7.8, nil
	}
	c := New(fetch, time.Hour)

	var wg sync.WaitGroup
	rates := make([]float64, 20)
	for i := range rates {
		wg.Add(1)
		go func() {
			defer wg.Done()
			from, to := "USD", "HKD"
			if i%2 == 1 {
				from, to = to, from
			}
			rate, err := c.Get(context.Background(), from, to)
			assert.NoError(t, err)
			rates[i] = rate
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i, rate := range rates {
		if i%2 == 1 {
			assert.InDelta(t, 1/7.8, rate, 1e-12)
		} else {
			assert.InDelta(t, 7.8, rate, 1e-12)
		}
	}
}

func TestCache_RejectsNonPositiveRates(t *testing.T) {
	for _, bad := range []float64{0, -1} {
		fetch, calls := countingRate(bad)
		c := New(fetch, time.Hour)

		_, err := c.Get(context.Background(), "USD", "EUR")
		assert.ErrorIs(t, err, ErrInvalidRate)
		_, err = c.Get(context.Background(), "USD", "EUR")
		assert.ErrorIs(t, err, ErrInvalidRate)

		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, 0, c.Len())
	}
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	var calls atomic.Int32
	fetch := func(ctx context.Context, from, to string) (float64, error) {
		if calls.Add(1) == 1 {
			return 0, errors.New("upstream down")
		}
		return 1.1, nil
	}
	c := New(fetch, time.Hour)

	_, err := c.Get(context.Background(), "EUR", "USD")
	require.Error(t, err)

	rate, err := c.Get(context.Background(), "EUR", "USD")
	require.NoError(t, err)
	assert.Equal(t, 1.1, rate)
}

func TestCache_Clear(t *testing.T) {
	fetch, calls := countingRate(1.3)
	c := New(fetch, time.Hour)
	ctx := context.Background()

	_, _ = c.Get(ctx, "GBP", "USD")
	c.Clear()
	assert.Equal(t, 0, c.Len())

	_, _ = c.Get(ctx, "GBP", "USD")
	assert.Equal(t, int32(2), calls.Load())
}

func TestCache_ContextCancelledWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	fetch := func(ctx context.Context, from, to string) (float64, error) {
		<-release
		return 1, nil
	}
	c := New(fetch, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Get(ctx, "USD", "CHF")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCache_CancelledCallerDoesNotFailOthers(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	fetch := func(ctx context.Context, from, to string) (float64, error) {
		calls.Add(1)
		select {
		case <-release:
			return 7.8, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	c := New(fetch, time.Hour)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Get(first, "USD", "HKD")
		firstErr <- err
	}()

	type result struct {
		rate float64
		err  error
	}
	second := make(chan result, 1)
	go func() {
		time.Sleep(20 * time.Millisecond)
		rate, err := c.Get(context.Background(), "HKD", "USD")
		second <- result{rate, err}
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	got := <-second
	require.NoError(t, got.err)
	assert.InDelta(t, 1/7.8, got.rate, 1e-12)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestCache_SharedCallHasOwnTimeout(t *testing.T) {
	fetch := func(ctx context.Context, from, to string) (float64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	c := New(fetch, time.Hour, WithFetchTimeout(20*time.Millisecond))

	_, err := c.Get(context.Background(), "USD", "SGD")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, c.Len())
}
