// Package fxcache caches currency-pair rates. It performs no I/O itself;
// rates come from a function supplied by the caller.
package fxcache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL is how long a rate stays fresh.
	DefaultTTL = time.Hour

	// DefaultFetchTimeout bounds one shared call to the rate function.
	DefaultFetchTimeout = 10 * time.Second
)

// ErrInvalidRate is returned when the rate function yields a non-positive
// rate. Such rates are never cached.
var ErrInvalidRate = errors.New("invalid fx rate")

// RateFunc returns how many units of to one unit of from buys.
type RateFunc func(ctx context.Context, from, to string) (float64, error)

// entry holds the rate from base to quote, base < quote.
type entry struct {
	rate    float64
	expires time.Time
}

// Cache is a TTL cache keyed by an order-independent currency pair. Both
// directions of a pair share one entry. Safe for concurrent use.
type Cache struct {
	fetch        RateFunc
	ttl          time.Duration
	fetchTimeout time.Duration
	now          func() time.Time

	mu      sync.RWMutex
	entries map[string]entry
	group   singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithFetchTimeout bounds each call to the rate function.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// New creates a cache over fetch. A non-positive ttl means DefaultTTL.
func New(fetch RateFunc, ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		fetch:        fetch,
		ttl:          ttl,
		fetchTimeout: DefaultFetchTimeout,
		now:          time.Now,
		entries:      make(map[string]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// pair normalizes a currency pair to its cache key and reports whether the
// requested direction is the inverse of the stored one.
func pair(from, to string) (key string, inverse bool) {
	if from > to {
		return to + "/" + from, true
	}
	return from + "/" + to, false
}

// Get returns the rate from one currency to another. Identical currencies
// return 1 without consulting the rate function. Concurrent misses for the
// same pair, in either direction, share one call. The shared call does not
// inherit the first caller's cancellation, so a caller that gives up never
// fails the others waiting on the pair.
func (c *Cache) Get(ctx context.Context, from, to string) (float64, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to {
		return 1, nil
	}

	key, inverse := pair(from, to)
	if rate, ok := c.lookup(key); ok {
		return orient(rate, inverse), nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		if rate, ok := c.lookup(key); ok {
			return rate, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		rate, err := c.fetch(fetchCtx, from, to)
		if err != nil {
			return 0.0, err
		}
		if rate <= 0 {
			return 0.0, fmt.Errorf("%w: %s->%s = %v", ErrInvalidRate, from, to, rate)
		}
		// Store in base->quote direction.
		stored := orient(rate, inverse)
		c.mu.Lock()
		c.entries[key] = entry{rate: stored, expires: c.now().Add(c.ttl)}
		c.mu.Unlock()
		return stored, nil
	})

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return orient(res.Val.(float64), inverse), nil
	}
}

func (c *Cache) lookup(key string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expires) {
		return 0, false
	}
	return e.rate, true
}

func orient(rate float64, inverse bool) float64 {
	if inverse {
		return 1 / rate
	}
	return rate
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.mu.Unlock()
}
