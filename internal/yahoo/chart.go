package yahoo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"metricsfetcher/internal/fetcher"
	"metricsfetcher/internal/record"
)

// DefaultPeriod is the history range used when none is given.
const DefaultPeriod = "1y"

// validPeriods are the ranges the chart endpoint accepts.
var validPeriods = map[string]bool{
	"1d": true, "5d": true, "1mo": true, "3mo": true, "6mo": true,
	"1y": true, "2y": true, "5y": true, "10y": true, "ytd": true, "max": true,
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Currency           string   `json:"currency"`
		RegularMarketPrice *float64 `json:"regularMarketPrice"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*int64   `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

func (c *Client) chart(ctx context.Context, symbol, period string) (*chartResult, error) {
	var out chartResponse
	found, err := c.getJSON(ctx, "/v8/finance/chart/"+symbol, map[string]string{
		"range":    period,
		"interval": "1d",
	}, &out)
	if err != nil || !found {
		return nil, err
	}
	if len(out.Chart.Result) == 0 {
		return nil, nil
	}
	return &out.Chart.Result[0], nil
}

// bars converts the parallel chart arrays into rows, skipping days without
// a close.
func (r *chartResult) bars() []record.Bar {
	if r == nil || len(r.Indicators.Quote) == 0 {
		return nil
	}
	q := r.Indicators.Quote[0]
	at := func(s []*float64, i int) float64 {
		if i < len(s) && s[i] != nil {
			return *s[i]
		}
		return 0
	}

	bars := make([]record.Bar, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		if i >= len(q.Close) || q.Close[i] == nil {
			continue
		}
		bar := record.Bar{
			Date:  time.Unix(ts, 0).UTC(),
			Open:  at(q.Open, i),
			High:  at(q.High, i),
			Low:   at(q.Low, i),
			Close: *q.Close[i],
		}
		if i < len(q.Volume) && q.Volume[i] != nil {
			bar.Volume = *q.Volume[i]
		}
		bars = append(bars, bar)
	}
	return bars
}

// chartWithRetry runs chart under the client's retry policy, each attempt
// bounded by the policy timeout.
func (c *Client) chartWithRetry(ctx context.Context, symbol, period string) (*chartResult, error) {
	var res *chartResult
	err := fetcher.Retry(ctx, c.retry, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.retry.Timeout)
		defer cancel()
		r, err := c.chart(attemptCtx, symbol, period)
		if err != nil {
			return fetcher.ClassifyRequestError(ctx, err)
		}
		res = r
		return nil
	})
	return res, err
}

// lastPrice is the price fallback for symbols whose summary has no quote.
func (c *Client) lastPrice(ctx context.Context, symbol string) (float64, bool) {
	res, err := c.chart(ctx, symbol, "1d")
	if err != nil || res == nil {
		return 0, false
	}
	if p := res.Meta.RegularMarketPrice; p != nil && *p > 0 {
		return *p, true
	}
	bars := res.bars()
	if len(bars) == 0 {
		return 0, false
	}
	return bars[len(bars)-1].Close, true
}

// History returns daily OHLCV bars for symbol over period. Unknown symbols
// yield an empty slice.
func (c *Client) History(ctx context.Context, symbol, period string) ([]record.Bar, error) {
	if period == "" {
		period = DefaultPeriod
	}
	if !validPeriods[period] {
		return nil, fetcher.NewValidationError(fmt.Sprintf("unsupported period %q", period))
	}

	res, err := c.chartWithRetry(ctx, symbol, period)
	if err != nil {
		c.logger.Warn().Str("ticker", symbol).Str("period", period).Err(err).Msg("history_fetch_failed")
		return nil, err
	}
	return res.bars(), nil
}

// FXRate returns the latest close of the from/to currency pair.
func (c *Client) FXRate(ctx context.Context, from, to string) (float64, error) {
	pair := strings.ToUpper(from) + strings.ToUpper(to) + "=X"

	res, err := c.chartWithRetry(ctx, pair, "5d")
	if err != nil {
		return 0, err
	}
	bars := res.bars()
	if len(bars) > 0 {
		return bars[len(bars)-1].Close, nil
	}
	if res != nil && res.Meta.RegularMarketPrice != nil {
		return *res.Meta.RegularMarketPrice, nil
	}
	return 0, fetcher.NewValidationError(fmt.Sprintf("no rate for %s", pair))
}
