package reconcile

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-reconciler/internal/domain"
)

// Metrics summarise a reconciliation run.
type Metrics struct {
	LedgerCount        int             `json:"ledger_count"`
	BankCount          int             `json:"bank_count"`
	Matched            int             `json:"matched"`
	Combinatorial      int             `json:"combinatorial"`
	UnmatchedLedger    int             `json:"unmatched_ledger"`
	UnmatchedBank      int             `json:"unmatched_bank"`
	InitialGap         decimal.Decimal `json:"initial_gap"`
	FinalGap           decimal.Decimal `json:"final_gap"`
	CombinatorialCount int             `json:"combinatorial_count"`
}

// ChartPoint is the daily total of each side.
type ChartPoint struct {
	Date        time.Time       `json:"date"`
	LedgerTotal decimal.Decimal `json:"ledger_total"`
	BankTotal   decimal.Decimal `json:"bank_total"`
}

// Report is everything a reconciliation run hands to its caller.
type Report struct {
	Metrics     Metrics             `json:"metrics"`
	Rows        []ViewRow           `json:"rows"`
	ChartSeries []ChartPoint        `json:"chart_series"`
	Groups      []domain.MatchGroup `json:"groups"`
}

// BuildReport computes the metrics and chart series. initialGap is the
// unmatched difference after the one-to-one phase; the final gap is taken
// from res as it stands.
func BuildReport(res *Result, initialGap decimal.Decimal) Report {
	m := Metrics{
		LedgerCount: len(res.Ledger),
		BankCount:   len(res.Bank),
		InitialGap:  initialGap,
		FinalGap:    unmatchedGap(res),
	}
	for _, g := range res.Groups {
		if g.Kind == domain.MatchCombinatorial {
			m.CombinatorialCount++
		}
	}
	for _, r := range res.Ledger {
		countRow(&m, r, true)
	}
	for _, r := range res.Bank {
		countRow(&m, r, false)
	}

	return Report{
		Metrics:     m,
		Rows:        BuildView(res),
		ChartSeries: chartSeries(res),
		Groups:      res.Groups,
	}
}

func countRow(m *Metrics, r domain.Row, ledger bool) {
	switch {
	case !isMatched(r) && ledger:
		m.UnmatchedLedger++
	case !isMatched(r):
		m.UnmatchedBank++
	case r.Kind == domain.MatchCombinatorial:
		m.Combinatorial++
	default:
		m.Matched++
	}
}

// unmatchedGap is |Σ unmatched ledger − Σ unmatched bank|.
func unmatchedGap(res *Result) decimal.Decimal {
	total := decimal.Zero
	for _, r := range res.Ledger {
		if !isMatched(r) {
			total = total.Add(r.Amount)
		}
	}
	for _, r := range res.Bank {
		if !isMatched(r) {
			total = total.Sub(r.Amount)
		}
	}
	return total.Abs()
}

func chartSeries(res *Result) []ChartPoint {
	byDay := make(map[time.Time]*ChartPoint)
	point := func(d time.Time) *ChartPoint {
		p, ok := byDay[d]
		if !ok {
			p = &ChartPoint{Date: d, LedgerTotal: decimal.Zero, BankTotal: decimal.Zero}
			byDay[d] = p
		}
		return p
	}
	for _, r := range res.Ledger {
		p := point(r.Date)
		p.LedgerTotal = p.LedgerTotal.Add(r.Amount)
	}
	for _, r := range res.Bank {
		p := point(r.Date)
		p.BankTotal = p.BankTotal.Add(r.Amount)
	}

	out := make([]ChartPoint, 0, len(byDay))
	for _, p := range byDay {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}
