package gapfill

import (
	"math"
	"regexp"
	"slices"
	"strings"

	"metricsfetcher/internal/quality"
	"metricsfetcher/internal/record"
)

const (
	roePercentThreshold = 1.0
	maxAnalystCount     = 200
	maxPercent          = 100
)

// pattern is one extraction regexp. The first capture group is the number.
type pattern struct {
	re *regexp.Regexp

	// notAfter rejects matches preceded by any of these words, e.g. a
	// trailing P/E pattern must not fire on "Forward P/E".
	notAfter []string
}

type fieldPatterns struct {
	field    record.Field
	patterns []pattern
}

func newPattern(expr string, notAfter ...string) pattern {
	return pattern{re: regexp.MustCompile(`(?i)` + expr), notAfter: notAfter}
}

var notForward = []string{"forward", "fwd"}

// Extractor pulls metric values out of unstructured search snippets.
type Extractor struct {
	fields []fieldPatterns
}

// NewExtractor returns an extractor with the built-in patterns.
func NewExtractor() *Extractor {
	return &Extractor{fields: []fieldPatterns{
		{record.TrailingPE, []pattern{
			newPattern(`(?:Trailing P/E|P/E \(TTM\)|P/E Ratio \(TTM\))(?:.*?)\s*[:=]?\s*(\d+[\.,]\d+)`),
			newPattern(`(?:P/E|\best\b|trading at|valuation).*?\s+(\d+[\.,]\d+)x`, notForward...),
			newPattern(`P/E\s+(?:of|is|around)\s+(\d+[\.,]\d+)`, notForward...),
			newPattern(`(?:P/E|Price[- ]to[- ]Earnings)(?:.*?)(?:Ratio)?\s*[:=]?\s*(\d+[\.,]\d+)`, notForward...),
			newPattern(`\btrades?\s+at\s+(\d+[\.,]\d+)x`),
			newPattern(`\bvalued\s+at\s+(\d+[\.,]\d+)x`),
			newPattern(`\btrading\s+at\s+(\d+(?:[\.,]\d+)?)\s+times`),
		}},
		{record.ForwardPE, []pattern{
			newPattern(`(?:Forward P/E|Fwd P/E)(?:.*?)\s*[:=]?\s*(\d+[\.,]\d+)`),
			newPattern(`(?:Forward P/E|Fwd P/E).*?(\d+[\.,]\d+)x`),
			newPattern(`\best\b.*?P/E.*?(\d+[\.,]\d+)x`),
		}},
		{record.PriceToBook, []pattern{
			newPattern(`(?:P/B|Price[- ]to[- ]Book)(?:.*?)(?:Ratio)?\s*[:=]?\s*(\d+[\.,]\d+)`),
			newPattern(`PB\s*Ratio\s*[:=]?\s*(\d+[\.,]\d+)`),
			newPattern(`Price\s*/\s*Book\s*[:=]?\s*(\d+[\.,]\d+)`),
			newPattern(`trading at\s+(\d+[\.,]\d+)x\s+book`),
		}},
		{record.ReturnOnEquity, []pattern{
			newPattern(`(?:ROE|Return on Equity).*?(\d+[\.,]\d+)%?`),
		}},
		{record.MarketCap, []pattern{
			newPattern(`(?:Market Cap|Valuation).*?(\d{1,3}(?:[,\.]\d{3})*(?:[,\.]\d+)?)\s*([TBM])`),
		}},
		{record.EnterpriseToEBITDA, []pattern{
			newPattern(`(?:EV/EBITDA|Enterprise Value/EBITDA)(?:.*?)\s*[:=]?\s*(\d+[\.,]\d+)`),
			newPattern(`EV/EBITDA.*?(\d+[\.,]\d+)x`),
		}},
		{record.NumberOfAnalystOpinions, []pattern{
			newPattern(`(\d+)\s+analysts?\s+cover`),
			newPattern(`covered\s+by\s+(\d+)\s+analyst`),
			newPattern(`(\d+)\s+analysts?\s+rating`),
			newPattern(`analyst\s+coverage:\s*(\d+)`),
			newPattern(`based\s+on\s+(\d+)\s+analyst`),
			newPattern(`consensus.*?(\d+)\s+analyst`),
			newPattern(`(\d+)\s+wall\s+street\s+analyst`),
		}},
		{record.USRevenuePct, []pattern{
			newPattern(`\bUS\s+revenue\s+.*?\s+(\d+(?:\.\d+)?)%`),
			newPattern(`North\s+America\s+revenue\s+.*?\s+(\d+(?:\.\d+)?)%`),
			newPattern(`revenue\s+from\s+.*?Americas.*?\s+(\d+(?:\.\d+)?)%`),
		}},
		{record.Price, []pattern{
			newPattern(`(?:share price|stock price|last price|current price|closed at)\s*(?:of|is|was|at|:)?\s*(?:HK\$|NT\$|US\$|\$|€|£|¥|₩|[A-Z]{3}\s)?\s*(\d[\d,]*(?:\.\d+)?)([x%])?`),
		}},
	}}
}

// Extract runs every pattern over text and returns the first valid match
// per field, tagged as a web-search extraction. Fields in skip are not
// extracted, except forwardPE, which always feeds the trailing P/E proxy.
func (e *Extractor) Extract(text string, skip ...record.Field) *record.Record {
	out := record.New()
	for _, fp := range e.fields {
		if fp.field != record.ForwardPE && slices.Contains(skip, fp.field) {
			continue
		}
		for _, pat := range fp.patterns {
			v, ok := pat.value(fp.field, text)
			if !ok {
				continue
			}
			out.SetFloat(fp.field, v)
			out.SetTag(fp.field, quality.TagWebSearch)
			break
		}
	}

	// A forward P/E may stand in for a missing trailing one, never the reverse.
	if !slices.Contains(skip, record.TrailingPE) && !out.Has(record.TrailingPE) {
		if fwd, ok := out.Float(record.ForwardPE); ok {
			out.SetFloat(record.TrailingPE, fwd)
			out.SetTag(record.TrailingPE, quality.TagProxyFromForwardPE)
		}
	}
	return out
}

// value converts the first match not rejected by notAfter. A failed
// conversion is not retried on later matches.
func (pat pattern) value(field record.Field, text string) (float64, bool) {
	for _, m := range pat.re.FindAllStringSubmatchIndex(text, -1) {
		if pat.rejected(text[:m[0]]) {
			continue
		}
		return convert(field, submatches(text, m))
	}
	return 0, false
}

func (pat pattern) rejected(before string) bool {
	if len(pat.notAfter) == 0 {
		return false
	}
	prev := strings.Fields(strings.ToLower(before))
	if len(prev) == 0 {
		return false
	}
	return slices.Contains(pat.notAfter, prev[len(prev)-1])
}

func submatches(text string, idx []int) []string {
	out := make([]string, 0, len(idx)/2)
	for i := 0; i+1 < len(idx); i += 2 {
		if idx[i] < 0 {
			out = append(out, "")
			continue
		}
		out = append(out, text[idx[i]:idx[i+1]])
	}
	return out
}

// convert parses the captured groups and applies the per-field sanity
// rules. groups[0] is the whole match.
func convert(field record.Field, groups []string) (float64, bool) {
	if len(groups) < 2 {
		return 0, false
	}
	raw := groups[1]

	switch field {
	case record.MarketCap:
		if len(groups) < 3 {
			return 0, false
		}
		raw += strings.ToUpper(groups[2])
	case record.Price:
		if len(groups) > 2 && groups[2] != "" {
			return 0, false
		}
	}

	v, err := ParseNumber(raw)
	if err != nil {
		return 0, false
	}

	switch field {
	case record.ReturnOnEquity:
		if v > roePercentThreshold {
			v /= 100
		}
	case record.NumberOfAnalystOpinions:
		v = math.Trunc(v)
		if v < 0 || v > maxAnalystCount {
			return 0, false
		}
	case record.USRevenuePct:
		if v < 0 || v > maxPercent {
			return 0, false
		}
	case record.Price:
		if v <= 0 {
			return 0, false
		}
	}
	return v, true
}
