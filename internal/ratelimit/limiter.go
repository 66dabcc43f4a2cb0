package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// API represents the different external APIs we interact with
type API string

const (
	// APIYahoo covers both Yahoo endpoints (quoteSummary, quote, chart)
	APIYahoo API = "yahoo"
	// APIFMP represents the Financial Modeling Prep API
	APIFMP API = "fmp"
	// APIEODHD represents the EOD Historical Data API
	APIEODHD API = "eodhd"
	// APIAlphaVantage represents the AlphaVantage API
	APIAlphaVantage API = "alpha_vantage"
	// APITavily represents the web search API used by gap-fill
	APITavily API = "tavily"
)

// Limit is the token bucket configuration for one API.
type Limit struct {
	PerSecond float64
	Burst     int
}

// DefaultLimits returns conservative production limits.
func DefaultLimits() map[API]Limit {
	return map[API]Limit{
		// Yahoo has no published limit; stay polite.
		APIYahoo: {PerSecond: 5, Burst: 5},
		// FMP starter plan: 300 requests per minute.
		APIFMP: {PerSecond: 5, Burst: 3},
		// EODHD: 1000 requests per minute on paid plans.
		APIEODHD: {PerSecond: 10, Burst: 5},
		// AlphaVantage: 5 requests per minute on free tier = 1 request every 12 seconds
		APIAlphaVantage: {PerSecond: 1.0 / 12.0, Burst: 1},
		APITavily:       {PerSecond: 2, Burst: 1},
	}
}

// Limiter manages rate limits for different APIs
type Limiter struct {
	limiters map[API]*rate.Limiter
	mu       sync.RWMutex
}

// New creates a limiter with one token bucket per API in limits.
func New(limits map[API]Limit) *Limiter {
	l := &Limiter{
		limiters: make(map[API]*rate.Limiter, len(limits)),
	}
	for api, lim := range limits {
		l.Set(api, lim)
	}
	return l
}

// Unlimited returns a limiter that never blocks. Used by tests and by
// callers that opt out of limiting.
func Unlimited() *Limiter {
	return &Limiter{
		limiters: make(map[API]*rate.Limiter),
	}
}

// Set replaces the bucket for api.
func (l *Limiter) Set(api API, lim Limit) {
	burst := lim.Burst
	if burst < 1 {
		burst = 1
	}
	r := rate.Limit(lim.PerSecond)
	if lim.PerSecond <= 0 {
		r = rate.Inf
	}

	l.mu.Lock()
	l.limiters[api] = rate.NewLimiter(r, burst)
	l.mu.Unlock()
}

// Wait blocks until the rate limiter permits an event for the given API
// It returns ctx.Err() if the context is done, and an error wrapping
// context.DeadlineExceeded when the wait would outlive the deadline
func (l *Limiter) Wait(ctx context.Context, api API) error {
	if l == nil {
		return nil
	}

	l.mu.RLock()
	limiter, exists := l.limiters[api]
	l.mu.RUnlock()

	if !exists {
		// If no limiter exists for this API, allow the request without limiting
		return nil
	}

	if err := limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("rate limit wait for %s: %w", api, context.DeadlineExceeded)
	}
	return nil
}

// Allow reports whether an event for the given API may happen now
func (l *Limiter) Allow(api API) bool {
	if l == nil {
		return true
	}

	l.mu.RLock()
	limiter, exists := l.limiters[api]
	l.mu.RUnlock()

	if !exists {
		// If no limiter exists for this API, allow the request
		return true
	}

	return limiter.Allow()
}
