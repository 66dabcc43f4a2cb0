// Package breaker provides circuit breakers for the paid data providers.
//
// Breakers are owned by the host process and shared by reference: the
// provider client reports call outcomes through Execute and the fetcher
// consults Ready before deciding whether to call at all. Ready is a
// best-effort read; the state may change between the check and the call.
package breaker

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"metricsfetcher/internal/fetcher"
)

const (
	// DefaultFailures is the number of consecutive failures that trips a breaker.
	DefaultFailures = 3
	// DefaultCooldown is how long a tripped breaker stays open.
	DefaultCooldown = 60 * time.Second
)

// ErrOpen is returned by Execute when the breaker rejects the call.
var ErrOpen = errors.New("circuit breaker is open")

// Breaker wraps a gobreaker circuit breaker.
type Breaker struct {
	cb          *gobreaker.CircuitBreaker[struct{}]
	rateLimited atomic.Bool
}

// New creates a breaker that opens after failures consecutive failures,
// or immediately on a rate-limit error, and stays open for cooldown.
func New(name string, failures int, cooldown time.Duration, logger zerolog.Logger) *Breaker {
	if failures <= 0 {
		failures = DefaultFailures
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}

	b := &Breaker{}
	b.cb = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if b.rateLimited.Swap(false) {
				return true
			}
			return counts.ConsecutiveFailures >= uint32(failures)
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit_breaker_state_change")
		},
	})
	return b
}

// countsAsSuccess decides which errors leave the failure count alone.
// Client errors and caller cancellation say nothing about provider health.
func countsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	switch fetcher.TypeOf(err) {
	case fetcher.ErrorTypeClient, fetcher.ErrorTypeValidation:
		return true
	}
	return false
}

// Execute runs fn through the breaker. When the breaker is open fn is not
// called and ErrOpen is returned.
func (b *Breaker) Execute(fn func() error) error {
	if b == nil {
		return fn()
	}
	_, err := b.cb.Execute(func() (struct{}, error) {
		err := fn()
		if fetcher.TypeOf(err) == fetcher.ErrorTypeRateLimit {
			b.rateLimited.Store(true)
		}
		return struct{}{}, err
	})
	b.rateLimited.Store(false)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrOpen
	}
	return err
}

// Ready reports whether the breaker would currently let a call through.
// A nil breaker is always ready.
func (b *Breaker) Ready() bool {
	if b == nil {
		return true
	}
	return b.cb.State() != gobreaker.StateOpen
}

// State returns the breaker state as "closed", "half-open" or "open".
func (b *Breaker) State() string {
	if b == nil {
		return gobreaker.StateClosed.String()
	}
	return b.cb.State().String()
}
