package reconcile

import (
	"context"
	"time"

	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/logger"
)

// Engine runs a full reconciliation with fixed options.
type Engine struct {
	opts Options
}

// NewEngine creates an engine.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts}
}

// Run consolidates each side, reconciles them one to one, searches
// combinations among the leftovers and builds the report.
func (e *Engine) Run(ctx context.Context, ledger []domain.LedgerRow, bank []domain.FileResult) (Report, *Result) {
	log := logger.FromContext(ctx)

	ledgerRows := Consolidate(e.opts.DedupPolicy, domain.RowsFromLedger(ledger))

	tables := make([][]domain.Row, 0, len(bank))
	for _, f := range bank {
		if f.Error != "" {
			log.Warn().Str("file", f.File).Str("error", f.Error).Msg("Skipping failed statement")
			continue
		}
		tables = append(tables, domain.RowsFromTransactions(f.Transactions))
	}
	bankRows := Consolidate(e.opts.DedupPolicy, tables...)

	if e.opts.FilterToLedgerPeriod && len(ledgerRows) > 0 {
		bankRows = withinPeriod(bankRows, ledgerRows[0].Date, ledgerRows[len(ledgerRows)-1].Date)
	}

	res := Reconcile(ctx, ledgerRows, bankRows, e.opts)
	initialGap := unmatchedGap(res)
	MatchCombinations(ctx, res, e.opts)
	report := BuildReport(res, initialGap)

	log.Info().
		Int("ledger", report.Metrics.LedgerCount).
		Int("bank", report.Metrics.BankCount).
		Int("matched", report.Metrics.Matched).
		Int("combinatorial", report.Metrics.Combinatorial).
		Int("unmatched_ledger", report.Metrics.UnmatchedLedger).
		Int("unmatched_bank", report.Metrics.UnmatchedBank).
		Msg("Reconciliation finished")
	return report, res
}

// withinPeriod keeps rows dated between from and to inclusive.
func withinPeriod(rows []domain.Row, from, to time.Time) []domain.Row {
	out := make([]domain.Row, 0, len(rows))
	for _, r := range rows {
		if !r.Date.Before(from) && !r.Date.After(to) {
			out = append(out, r)
		}
	}
	return out
}
