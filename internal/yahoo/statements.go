package yahoo

import (
	"encoding/json"

	"metricsfetcher/internal/record"
)

// Statement line items, named the way the financial statements label them.
const (
	lineTotalRevenue           = "Total Revenue"
	lineGrossProfit            = "Gross Profit"
	lineOperatingIncome        = "Operating Income"
	lineNetIncome              = "Net Income"
	lineOperatingCashFlow      = "Operating Cash Flow"
	lineCapitalExpenditure     = "Capital Expenditure"
	lineCurrentAssets          = "Current Assets"
	lineCurrentLiabilities     = "Current Liabilities"
	lineTotalDebt              = "Total Debt"
	lineLongTermDebt           = "Long Term Debt"
	lineCurrentDebt            = "Current Debt"
	lineStockholdersEquity     = "Stockholders Equity"
	lineTotalStockholderEquity = "Total Stockholder Equity"
)

const (
	// TagCalculatedFromStatements marks values computed from statements.
	TagCalculatedFromStatements = "calculated_from_statements"
	// TagExtractedFromStatements marks values read straight off a statement.
	TagExtractedFromStatements = "extracted_from_statements"

	minRevenueGrowth = -0.5
	maxRevenueGrowth = 5.0
)

// Statement is a financial statement with the most recent period first.
type Statement []map[string]float64

// value returns line item label for period, if reported.
func (s Statement) value(label string, period int) (float64, bool) {
	if period >= len(s) {
		return 0, false
	}
	v, ok := s[period][label]
	return v, ok
}

func (s Statement) latest(label string) (float64, bool) {
	return s.value(label, 0)
}

// Statements groups the three statements of one company.
type Statements struct {
	Income   Statement
	CashFlow Statement
	Balance  Statement
}

var (
	incomeLines = map[string]string{
		"totalRevenue":    lineTotalRevenue,
		"grossProfit":     lineGrossProfit,
		"operatingIncome": lineOperatingIncome,
		"netIncome":       lineNetIncome,
	}
	cashFlowLines = map[string]string{
		"totalCashFromOperatingActivities": lineOperatingCashFlow,
		"operatingCashflow":                lineOperatingCashFlow,
		"capitalExpenditures":              lineCapitalExpenditure,
	}
	balanceLines = map[string]string{
		"totalCurrentAssets":      lineCurrentAssets,
		"totalCurrentLiabilities": lineCurrentLiabilities,
		"totalDebt":               lineTotalDebt,
		"longTermDebt":            lineLongTermDebt,
		"shortLongTermDebt":       lineCurrentDebt,
		"stockholdersEquity":      lineStockholdersEquity,
		"totalStockholderEquity":  lineTotalStockholderEquity,
	}
)

// parseStatements reads the three *History modules of a quoteSummary result.
func parseStatements(modules map[string]json.RawMessage) Statements {
	return Statements{
		Income:   parseStatement(modules["incomeStatementHistory"], "incomeStatementHistory", incomeLines),
		CashFlow: parseStatement(modules["cashflowStatementHistory"], "cashflowStatements", cashFlowLines),
		Balance:  parseStatement(modules["balanceSheetHistory"], "balanceSheetStatements", balanceLines),
	}
}

func parseStatement(raw json.RawMessage, listKey string, lines map[string]string) Statement {
	if len(raw) == 0 {
		return nil
	}
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil
	}
	var periods []module
	if err := json.Unmarshal(wrapper[listKey], &periods); err != nil {
		return nil
	}

	out := make(Statement, 0, len(periods))
	for _, p := range periods {
		row := make(map[string]float64)
		for key, label := range lines {
			if v, ok := p.number(key); ok {
				row[label] = v
			}
		}
		out = append(out, row)
	}
	return out
}

// Extract derives metrics from the statements. Every value it returns is
// tagged with how it was produced.
func (s Statements) Extract() *record.Record {
	rec := record.New()
	s.extractIncome(rec)
	s.extractCashFlow(rec)
	s.extractBalance(rec)
	return rec
}

func (s Statements) extractIncome(rec *record.Record) {
	current, okCur := s.Income.value(lineTotalRevenue, 0)
	previous, okPrev := s.Income.value(lineTotalRevenue, 1)
	if okCur && okPrev && previous != 0 {
		growth := (current - previous) / previous
		if growth > minRevenueGrowth && growth < maxRevenueGrowth {
			setTagged(rec, record.RevenueGrowth, growth, TagCalculatedFromStatements)
		}
	}

	revenue, ok := s.Income.latest(lineTotalRevenue)
	if !ok || revenue == 0 {
		return
	}
	margins := []struct {
		line  string
		field record.Field
	}{
		{lineGrossProfit, record.GrossMargins},
		{lineOperatingIncome, record.OperatingMargins},
		{lineNetIncome, record.ProfitMargins},
	}
	for _, m := range margins {
		if v, ok := s.Income.latest(m.line); ok {
			setTagged(rec, m.field, v/revenue, TagCalculatedFromStatements)
		}
	}
}

func (s Statements) extractCashFlow(rec *record.Record) {
	ocf, ok := s.CashFlow.latest(lineOperatingCashFlow)
	if !ok {
		return
	}
	setTagged(rec, record.OperatingCashflow, ocf, TagExtractedFromStatements)

	// Capital expenditure is reported as a negative number.
	if capex, ok := s.CashFlow.latest(lineCapitalExpenditure); ok {
		setTagged(rec, record.FreeCashflow, ocf+capex, TagCalculatedFromStatements)
	}
}

func (s Statements) extractBalance(rec *record.Record) {
	assets, okA := s.Balance.latest(lineCurrentAssets)
	liabilities, okL := s.Balance.latest(lineCurrentLiabilities)
	if okA && okL && liabilities != 0 {
		setTagged(rec, record.CurrentRatio, assets/liabilities, TagCalculatedFromStatements)
	}

	debt, haveDebt := s.Balance.latest(lineTotalDebt)
	if !haveDebt {
		if longTerm, ok := s.Balance.latest(lineLongTermDebt); ok {
			shortTerm, _ := s.Balance.latest(lineCurrentDebt)
			debt, haveDebt = longTerm+shortTerm, true
		}
	}

	equity, haveEquity := s.Balance.latest(lineStockholdersEquity)
	if !haveEquity {
		equity, haveEquity = s.Balance.latest(lineTotalStockholderEquity)
	}

	if haveDebt && haveEquity && equity != 0 {
		setTagged(rec, record.DebtToEquity, debt/equity, TagCalculatedFromStatements)
	}
}

func setTagged(rec *record.Record, field record.Field, v float64, tag string) {
	rec.SetFloat(field, v)
	rec.SetTag(field, tag)
}
