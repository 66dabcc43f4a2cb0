package testutil

import (
	"context"
	"sync/atomic"

	"metricsfetcher/internal/fetcher"
	"metricsfetcher/internal/record"
)

// MockFetcher is a mock implementation of the Fetcher interface for testing
type MockFetcher struct {
	NameFunc      func() string
	FetchFunc     func(ctx context.Context, symbol string) (*record.Record, error)
	ValidateFunc  func(rec *record.Record) bool
	AvailableFunc func() bool

	calls atomic.Int32
}

// Name implements the Fetcher interface
func (m *MockFetcher) Name() string {
	if m.NameFunc != nil {
		return m.NameFunc()
	}
	return "mock"
}

// Fetch implements the Fetcher interface
func (m *MockFetcher) Fetch(ctx context.Context, symbol string) (*record.Record, error) {
	m.calls.Add(1)
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, symbol)
	}
	return nil, nil
}

// Validate implements the Fetcher interface
func (m *MockFetcher) Validate(rec *record.Record) bool {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(rec)
	}
	return fetcher.ValidateRecord(rec)
}

// IsAvailable implements the Fetcher interface
func (m *MockFetcher) IsAvailable() bool {
	if m.AvailableFunc != nil {
		return m.AvailableFunc()
	}
	return true
}

// Calls returns how many times Fetch was invoked.
func (m *MockFetcher) Calls() int {
	return int(m.calls.Load())
}

// NewMockFetcher creates a simple mock fetcher that returns a copy of rec
// (or err) for every symbol
func NewMockFetcher(name string, rec *record.Record, err error) *MockFetcher {
	return &MockFetcher{
		NameFunc: func() string {
			return name
		},
		FetchFunc: func(ctx context.Context, symbol string) (*record.Record, error) {
			if err != nil {
				return nil, err
			}
			if rec == nil {
				return nil, nil
			}
			return rec.Clone(), nil
		},
	}
}

// NewBlockingFetcher creates a mock fetcher that never returns on its own.
// It ignores its context until release is closed, like a misbehaving SDK.
func NewBlockingFetcher(name string, release <-chan struct{}) *MockFetcher {
	return &MockFetcher{
		NameFunc: func() string {
			return name
		},
		FetchFunc: func(ctx context.Context, symbol string) (*record.Record, error) {
			<-release
			return nil, nil
		},
	}
}

// NewRecord builds a record from numeric fields. Use Set with record.Null()
// for explicit nulls.
func NewRecord(values map[record.Field]float64) *record.Record {
	rec := record.New()
	for f, v := range values {
		rec.SetFloat(f, v)
	}
	return rec
}
