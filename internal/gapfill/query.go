package gapfill

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"metricsfetcher/internal/record"
)

// legalSuffixes are stripped from the end of company names.
var legalSuffixes = []string{
	`\s+Company\s+Limited`, `\s+Co\.,?\s+Ltd\.?`, `\s+Ltd\.?`, `\s+Limited`,
	`\s+Corp\.?`, `\s+Corporation`, `\s+Inc\.?`, `\s+Incorporated`,
	`\s+PLC`, `\s+Public\s+Limited\s+Company`, `\s+S\.A\.`, `\s+AG`,
	`\s+SE`, `\s+Group`, `\s+Holdings?`, `\s+\(Holdings?\)`,
	`\s+NV`, `\s+BV`, `\s+GmbH`, `\s+K\.K\.`, `\s+Kabushiki\s+Kaisha`,
	`\s+Pty`, `\s+Pte`, `\s+S\.p\.A\.`, `\s+SA/NV`,
}

var (
	parenthesized = regexp.MustCompile(`\s*\(.*?\)`)

	// suffixPatterns is longest first so "Public Limited Company" goes
	// before "Limited".
	suffixPatterns = compileSuffixes(legalSuffixes)
)

func compileSuffixes(suffixes []string) []*regexp.Regexp {
	sorted := append([]string(nil), suffixes...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	out := make([]*regexp.Regexp, len(sorted))
	for i, s := range sorted {
		out[i] = regexp.MustCompile(`(?i)` + s + `$`)
	}
	return out
}

// NormalizeCompanyName strips parentheses and legal-entity suffixes so that
// "Samsung Electronics Co., Ltd." becomes "Samsung Electronics". If nothing
// meaningful is left the name is returned with only parentheses removed.
func NormalizeCompanyName(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return ""
	}
	name = parenthesized.ReplaceAllString(name, "")
	original := name

	// Suffixes stack, e.g. "Group Holdings Ltd".
	for range 2 {
		for _, re := range suffixPatterns {
			name = re.ReplaceAllString(name, "")
		}
	}

	name = strings.TrimSpace(name)
	if len(name) < 2 {
		return original
	}
	return name
}

// StrictQuery builds a search query that pins the company name. Multi-word
// names are quoted so similarly named companies do not match.
func StrictQuery(ticker, companyName, topic string) string {
	core := NormalizeCompanyName(companyName)
	if core == "" {
		core = ticker
	}
	if len(strings.Fields(core)) > 1 {
		return fmt.Sprintf("\"%s\" %s %s", core, ticker, topic)
	}
	return fmt.Sprintf("%s %s %s", core, ticker, topic)
}

// searchTerms are the topics queried for specific fields. Other fields are
// searched by name.
var searchTerms = map[record.Field]string{
	record.TrailingPE:              "trailing P/E ratio price earnings",
	record.ForwardPE:               "forward P/E ratio estimate",
	record.PriceToBook:             "price to book ratio P/B",
	record.ReturnOnEquity:          "ROE return on equity",
	record.DebtToEquity:            "debt to equity ratio leverage",
	record.NumberOfAnalystOpinions: "analyst coverage count",
	record.RevenueGrowth:           "revenue growth year over year",
}

// FieldQuery builds the gap-fill query for field. Geographic revenue is
// reported in annual reports rather than quote pages, so it gets its own
// query instead of the strict ticker one.
func FieldQuery(ticker, companyName string, field record.Field) string {
	if field == record.USRevenuePct {
		name := NormalizeCompanyName(companyName)
		if name == "" {
			name = ticker
		}
		return `"` + name + `" annual report revenue by geography North America United States`
	}
	return StrictQuery(ticker, companyName, SearchTerm(field))
}

// SearchTerm returns the search topic for field.
func SearchTerm(field record.Field) string {
	if term, ok := searchTerms[field]; ok {
		return term
	}
	return string(field)
}
