package gapfill

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"metricsfetcher/internal/quality"
	"metricsfetcher/internal/record"
)

func TestExtractor_Fields(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		field record.Field
		want  float64
	}{
		{"trailing pe ttm", "Key stats. P/E (TTM): 24.51 as of today", record.TrailingPE, 24.51},
		{"trades at multiple", "The stock trades at 18.3x earnings", record.TrailingPE, 18.3},
		{"price to book", "Price-to-Book Ratio: 3.42", record.PriceToBook, 3.42},
		{"pb eu decimal", "PB Ratio 1,85", record.PriceToBook, 1.85},
		{"roe percent", "Return on Equity of 18.5% last year", record.ReturnOnEquity, 0.185},
		{"roe fraction", "ROE 0.21", record.ReturnOnEquity, 0.21},
		{"market cap billions", "Market Cap 2,950.1 B as of close", record.MarketCap, 2950.1e9},
		{"ev ebitda", "EV/EBITDA: 14.20", record.EnterpriseToEBITDA, 14.2},
		{"analysts", "The stock is covered by 38 analysts", record.NumberOfAnalystOpinions, 38},
		{"price", "Shares closed at HK$ 312.40 on Friday", record.Price, 312.4},
		{"us revenue share", "US revenue accounted for 42.5% of total sales", record.USRevenuePct, 42.5},
		{"north america share", "North America revenue made up about 61% in 2024", record.USRevenuePct, 61},
		{"americas share", "Revenue from the Americas segment was 38.2% of the total", record.USRevenuePct, 38.2},
	}

	e := NewExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := e.Extract(tt.text)
			got, ok := out.Float(tt.field)
			if assert.True(t, ok, "field %s not extracted", tt.field) {
				assert.InDelta(t, tt.want, got, 1e-6)
			}
			tag, _ := out.Tag(tt.field)
			assert.Equal(t, quality.TagWebSearch, tag)
		})
	}
}

func TestExtractor_AnalystSanity(t *testing.T) {
	out := NewExtractor().Extract("covered by 450 analysts worldwide")
	assert.False(t, out.Has(record.NumberOfAnalystOpinions))
}

func TestExtractor_ForwardProxy(t *testing.T) {
	e := NewExtractor()

	out := e.Extract("Forward P/E: 21.5 according to estimates")
	fwd, _ := out.Float(record.ForwardPE)
	assert.Equal(t, 21.5, fwd)

	trailing, ok := out.Float(record.TrailingPE)
	assert.True(t, ok)
	assert.Equal(t, 21.5, trailing)
	tag, _ := out.Tag(record.TrailingPE)
	assert.Equal(t, quality.TagProxyFromForwardPE, tag)
}

func TestExtractor_ProxyNeverReversed(t *testing.T) {
	out := NewExtractor().Extract("Trailing P/E: 30.10")
	assert.True(t, out.Has(record.TrailingPE))
	assert.False(t, out.Has(record.ForwardPE))
}

func TestExtractor_TrailingIgnoresForwardPrefix(t *testing.T) {
	out := NewExtractor().Extract("Fwd P/E 19.25 while the P/E is 26.75 today")
	trailing, _ := out.Float(record.TrailingPE)
	assert.Equal(t, 26.75, trailing)
	tag, _ := out.Tag(record.TrailingPE)
	assert.Equal(t, quality.TagWebSearch, tag)
}

func TestExtractor_Skip(t *testing.T) {
	out := NewExtractor().Extract("Forward P/E: 21.5, Price to Book 2.10", record.TrailingPE, record.ForwardPE, record.PriceToBook)
	assert.False(t, out.Has(record.TrailingPE))
	assert.False(t, out.Has(record.PriceToBook))
	// forwardPE is always extracted
	assert.True(t, out.Has(record.ForwardPE))
}

func TestExtractor_RevenueShareOutOfRange(t *testing.T) {
	out := NewExtractor().Extract("US revenue grew 140% after the acquisition")
	assert.False(t, out.Has(record.USRevenuePct))
}
