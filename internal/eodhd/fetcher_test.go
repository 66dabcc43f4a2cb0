package eodhd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metricsfetcher/internal/fetcher"
	"metricsfetcher/internal/ratelimit"
	"metricsfetcher/internal/record"
)

const fundamentalsJSON = `{
	"General": {"Code": "AAPL", "Name": "Apple Inc", "Exchange": "US", "CurrencyCode": "USD"},
	"Highlights": {
		"MarketCapitalization": 2900000000000,
		"PERatio": 29.1,
		"PEGRatio": null,
		"ProfitMargin": 0.246,
		"ReturnOnEquityTTM": 1.47,
		"QuarterlyRevenueGrowthYOY": 0.061
	},
	"Valuation": {"TrailingPE": 29.4, "ForwardPE": 27.0, "PriceBookMRQ": 45.2},
	"Technicals": {"Beta": 1.24},
	"SharesStats": {"SharesOutstanding": 15500000000},
	"AnalystRatings": {"StrongBuy": 20, "Buy": 10, "Hold": 9, "Sell": 1, "StrongSell": 1}
}`

func newTestFetcher(baseURL string) *Fetcher {
	return NewFetcher("test-token", baseURL, ratelimit.Unlimited(), nil, zerolog.Nop())
}

func TestFetch_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fundamentals/AAPL.US", r.URL.Path)
		assert.Equal(t, "test-token", r.URL.Query().Get("api_token"))
		assert.Equal(t, "json", r.URL.Query().Get("fmt"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(fundamentalsJSON))
	}))
	defer server.Close()

	rec, err := newTestFetcher(server.URL).Fetch(context.Background(), "AAPL")
	require.NoError(t, err)

	want := map[record.Field]float64{
		record.MarketCap:               2.9e12,
		record.TrailingPE:              29.4,
		record.ForwardPE:               27.0,
		record.PriceToBook:             45.2,
		record.ProfitMargins:           0.246,
		record.ReturnOnEquity:          1.47,
		record.RevenueGrowth:           0.061,
		record.Beta:                    1.24,
		record.SharesOutstanding:       1.55e10,
		record.NumberOfAnalystOpinions: 41,
	}
	for field, v := range want {
		got, ok := rec.Float(field)
		assert.True(t, ok, "missing %s", field)
		assert.Equal(t, v, got, "field %s", field)
	}
	assert.False(t, rec.Has(record.PEGRatio), "null values are not mapped")

	name, _ := rec.Text(record.LongName)
	assert.Equal(t, "Apple Inc", name)
	sym, _ := rec.Text(record.Symbol)
	assert.Equal(t, "AAPL", sym)
}

func TestFetch_NotFoundIsAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Ticker Not Found."))
	}))
	defer server.Close()

	rec, err := newTestFetcher(server.URL).Fetch(context.Background(), "ZZZZ")
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestFetch_EmptyDocumentIsAbsent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"General": {"Code": "X"}}`))
	}))
	defer server.Close()

	rec, err := newTestFetcher(server.URL).Fetch(context.Background(), "X")
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		status int
		want   fetcher.ErrorType
	}{
		{http.StatusUnauthorized, fetcher.ErrorTypeClient},
		{http.StatusTooManyRequests, fetcher.ErrorTypeRateLimit},
		{http.StatusServiceUnavailable, fetcher.ErrorTypeServer},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			_, err := newTestFetcher(server.URL).Fetch(context.Background(), "AAPL")
			assert.Equal(t, tt.want, fetcher.TypeOf(err))
		})
	}
}

func TestExchangeSymbol(t *testing.T) {
	tests := map[string]string{
		"AAPL":    "AAPL.US",
		"0700.HK": "0700.HK",
		"BMW.DE":  "BMW.DE",
	}
	for in, want := range tests {
		if got := exchangeSymbol(in); got != want {
			t.Errorf("exchangeSymbol(%q) = %q, want %q", in, got, want)
		}
	}
}
