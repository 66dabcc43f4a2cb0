package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/panics"

	"metricsfetcher/internal/record"
)

const (
	// DefaultTimeout is the per-attempt timeout when none is given.
	DefaultTimeout = 15 * time.Second
	// DefaultMaxRetries is the number of attempts FetchWithRetry makes.
	DefaultMaxRetries = 3
	// DefaultRetryBase is the first backoff delay; attempt n waits base*2^n.
	DefaultRetryBase = 1 * time.Second
)

type fetchResult struct {
	rec *record.Record
	err error
}

// ValidateSafely runs f.Validate, turning a panic into the same
// ErrorTypeUnknown error a panicking Fetch produces.
func ValidateSafely(f Fetcher, rec *record.Record) (valid bool, err error) {
	var pc panics.Catcher
	pc.Try(func() {
		valid = f.Validate(rec)
	})
	if r := pc.Recovered(); r != nil {
		return false, panicError(f, r)
	}
	return valid, nil
}

func panicError(f Fetcher, r *panics.Recovered) *FetchError {
	return &FetchError{
		Type:    ErrorTypeUnknown,
		Message: fmt.Sprintf("%s panicked", f.Name()),
		Cause:   r.AsError(),
	}
}

// FetchWithTimeout runs f.Fetch bounded by timeout. When the timeout fires
// the call resolves to a timeout FetchError even if the fetcher ignores its
// context. Cancellation of ctx is returned as ctx.Err(). A panicking fetcher
// resolves to an ErrorTypeUnknown error.
func FetchWithTimeout(ctx context.Context, f Fetcher, symbol string, timeout time.Duration) (*record.Record, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so a fetcher that returns after we gave up does not block forever.
	done := make(chan fetchResult, 1)
	go func() {
		var res fetchResult
		var pc panics.Catcher
		pc.Try(func() {
			res.rec, res.err = f.Fetch(attemptCtx, symbol)
		})
		if r := pc.Recovered(); r != nil {
			res = fetchResult{err: panicError(f, r)}
		}
		done <- res
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(res.err, context.DeadlineExceeded) {
				return nil, NewTimeoutError(res.err)
			}
			return nil, res.err
		}
		return res.rec, nil
	case <-attemptCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, NewTimeoutError(attemptCtx.Err())
	}
}

// RetryPolicy configures Retry and FetchWithRetry.
type RetryPolicy struct {
	MaxRetries int
	Timeout    time.Duration
	Base       time.Duration

	// OnRetry, when set, is called before each backoff sleep.
	OnRetry func(attempt int, err error)
}

// DefaultRetryPolicy returns three attempts with a 1s backoff base.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: DefaultMaxRetries,
		Timeout:    DefaultTimeout,
		Base:       DefaultRetryBase,
	}
}

// Backoff returns the delay before retry number attempt (zero based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	base := p.Base
	if base <= 0 {
		base = DefaultRetryBase
	}
	return base << uint(attempt)
}

// errAbsent makes an absent result worth another attempt inside Retry.
var errAbsent = &FetchError{Type: ErrorTypeUnknown, Retryable: true, Message: "no data"}

// Retry calls op up to MaxRetries times, sleeping Base*2^attempt between
// attempts. It stops at once on success, cancellation of ctx or an error
// IsRetryable rejects, and returns the last error when attempts run out.
func Retry(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) error {
	retries := policy.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}

	var err error
	for attempt := 0; attempt < retries; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt == retries-1 {
			break
		}

		if policy.OnRetry != nil {
			policy.OnRetry(attempt+1, err)
		}
		timer := time.NewTimer(policy.Backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

// FetchWithRetry retries FetchWithTimeout under policy. Absent results and
// retryable errors use up attempts; when every attempt came back absent the
// result is absent with no error.
func FetchWithRetry(ctx context.Context, f Fetcher, symbol string, policy RetryPolicy) (*record.Record, error) {
	var rec *record.Record
	err := Retry(ctx, policy, func(ctx context.Context) error {
		r, err := FetchWithTimeout(ctx, f, symbol, policy.Timeout)
		if err != nil {
			return err
		}
		if r.Empty() {
			return errAbsent
		}
		rec = r
		return nil
	})
	if errors.Is(err, errAbsent) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}
