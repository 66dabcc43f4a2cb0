// Package normalize repairs unit and scale anomalies in a merged record.
package normalize

import (
	"context"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"metricsfetcher/internal/quality"
	"metricsfetcher/internal/record"
)

const (
	fxChangeThreshold      = 0.10
	debtToEquityPercentCap = 100.0
	peForwardRatio         = 1.4
)

// RateFunc returns how many units of to one unit of from buys.
type RateFunc func(ctx context.Context, from, to string) (float64, error)

// Normalizer applies the fixes in a fixed order. Running it twice leaves
// the record as the first run did.
type Normalizer struct {
	rates  RateFunc
	logger zerolog.Logger
}

// New creates a Normalizer. A nil rates function disables the currency fix.
func New(rates RateFunc, logger zerolog.Logger) *Normalizer {
	return &Normalizer{rates: rates, logger: logger}
}

// Normalize fixes rec in place and returns the fields it changed.
func (n *Normalizer) Normalize(ctx context.Context, rec *record.Record) []record.Field {
	var changed []record.Field
	if rec == nil {
		return nil
	}
	if n.fixCurrency(ctx, rec) {
		changed = append(changed, record.BookValue, record.PriceToBook)
	}
	if fixDebtToEquity(rec) {
		changed = append(changed, record.DebtToEquity)
	}
	if fixTrailingPE(rec) {
		changed = append(changed, record.TrailingPE)
	}
	if len(changed) > 0 {
		n.logger.Debug().Interface("fields", changed).Msg("data_normalized")
	}
	return changed
}

// fixCurrency converts bookValue from the reporting currency into the
// trading currency when that moves price-to-book by more than 10%.
func (n *Normalizer) fixCurrency(ctx context.Context, rec *record.Record) bool {
	if n.rates == nil || tagged(rec, record.BookValue, quality.TagNormalizedFX) {
		return false
	}
	trading, _ := rec.Text(record.Currency)
	trading = strings.ToUpper(trading)
	if trading == "" {
		trading = "USD"
	}
	financial, ok := rec.Text(record.FinancialCurrency)
	financial = strings.ToUpper(financial)
	if !ok || financial == "" || financial == trading {
		return false
	}

	price, okPrice := rec.Float(record.CurrentPrice)
	book, okBook := rec.Float(record.BookValue)
	if !okPrice || !okBook || price == 0 || book == 0 {
		return false
	}

	fx, err := n.rates(ctx, financial, trading)
	if err != nil || fx <= 0 {
		n.logger.Debug().Str("from", financial).Str("to", trading).Err(err).Msg("fx_normalization_skipped")
		return false
	}

	oldPB := price / book
	adjusted := book * fx
	newPB := price / adjusted
	if math.Abs(newPB-oldPB)/math.Abs(oldPB) <= fxChangeThreshold {
		return false
	}

	rec.SetFloat(record.BookValue, adjusted)
	rec.SetTag(record.BookValue, quality.TagNormalizedFX)
	rec.SetFloat(record.PriceToBook, newPB)
	rec.SetTag(record.PriceToBook, quality.TagNormalizedFX)
	return true
}

// fixDebtToEquity rescales a ratio reported in percent.
func fixDebtToEquity(rec *record.Record) bool {
	if tagged(rec, record.DebtToEquity, quality.TagNormalizedPercent) {
		return false
	}
	de, ok := rec.Float(record.DebtToEquity)
	if !ok || de <= debtToEquityPercentCap {
		return false
	}
	rec.SetFloat(record.DebtToEquity, de/100)
	rec.SetTag(record.DebtToEquity, quality.TagNormalizedPercent)
	return true
}

// fixTrailingPE replaces a trailing P/E more than 40% above the forward
// one. The replaced value is kept under trailingPEOriginal.
func fixTrailingPE(rec *record.Record) bool {
	trailing, okT := rec.Float(record.TrailingPE)
	forward, okF := rec.Float(record.ForwardPE)
	if !okT || !okF || trailing <= 0 || forward <= 0 {
		return false
	}
	if trailing <= forward*peForwardRatio {
		return false
	}
	rec.SetFloat(record.TrailingPEOriginal, trailing)
	rec.SetFloat(record.TrailingPE, forward)
	rec.SetTag(record.TrailingPE, quality.TagNormalizedForwardPE)
	return true
}

func tagged(rec *record.Record, f record.Field, tag string) bool {
	t, ok := rec.Tag(f)
	return ok && t == tag
}
