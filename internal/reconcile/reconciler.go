// Package reconcile pairs ledger entries with bank transactions: exact and
// date-tolerant one-to-one matches first, then many-to-one combinations.
package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/logger"
)

// Result holds both tables sorted by (date, amount) with their group
// annotations. Groups refer to rows by index into Ledger and Bank.
type Result struct {
	Ledger []domain.Row
	Bank   []domain.Row
	Groups []domain.MatchGroup
}

// MatchedLedger returns the ledger rows that belong to a group.
func (r *Result) MatchedLedger() []domain.Row { return filterRows(r.Ledger, true) }

// MatchedBank returns the bank rows that belong to a group.
func (r *Result) MatchedBank() []domain.Row { return filterRows(r.Bank, true) }

// UnmatchedLedger returns the ledger rows without a group.
func (r *Result) UnmatchedLedger() []domain.Row { return filterRows(r.Ledger, false) }

// UnmatchedBank returns the bank rows without a group.
func (r *Result) UnmatchedBank() []domain.Row { return filterRows(r.Bank, false) }

func filterRows(rows []domain.Row, matched bool) []domain.Row {
	out := []domain.Row{}
	for _, row := range rows {
		if isMatched(row) == matched {
			out = append(out, row)
		}
	}
	return out
}

func isMatched(row domain.Row) bool {
	return row.GroupID != "" && row.GroupID != domain.UnmatchedGroup
}

// sortRows orders a copy of rows by (date, amount), keeping input order on ties.
func sortRows(rows []domain.Row) []domain.Row {
	out := make([]domain.Row, len(rows))
	copy(out, rows)
	for i := range out {
		out[i].GroupID = domain.UnmatchedGroup
		out[i].Kind = ""
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Amount.LessThan(out[j].Amount)
	})
	return out
}

// Reconcile runs the one-to-one phase. Pass A pairs rows on the same day;
// pass B pairs the rest within the date tolerance, closest day first.
// Amounts must agree in sign and within the amount tolerance.
func Reconcile(ctx context.Context, ledger, bank []domain.Row, opts Options) *Result {
	res := &Result{Ledger: sortRows(ledger), Bank: sortRows(bank)}
	seq := 0
	pair := func(li, bi int, kind domain.MatchKind) {
		id := fmt.Sprintf("S-%d", seq)
		seq++
		res.Ledger[li].GroupID, res.Ledger[li].Kind = id, kind
		res.Bank[bi].GroupID, res.Bank[bi].Kind = id, kind
		res.Groups = append(res.Groups, domain.MatchGroup{ID: id, Kind: kind, Bank: []int{bi}, Ledger: []int{li}})
	}

	// Pass A: same day.
	for li, l := range res.Ledger {
		for bi, b := range res.Bank {
			if isMatched(b) || !b.Date.Equal(l.Date) || !amountsAgree(l.Amount, b.Amount, opts.AmountTolerance) {
				continue
			}
			pair(li, bi, domain.MatchExact)
			break
		}
	}

	// Pass B: within tolerance, smallest gap wins, first seen on ties.
	for li, l := range res.Ledger {
		if isMatched(l) {
			continue
		}
		best, bestGap := -1, 0
		for bi, b := range res.Bank {
			if isMatched(b) || !amountsAgree(l.Amount, b.Amount, opts.AmountTolerance) {
				continue
			}
			gap := dayGap(l.Date, b.Date)
			if gap > opts.DateToleranceDays {
				continue
			}
			if best < 0 || gap < bestGap {
				best, bestGap = bi, gap
			}
		}
		if best >= 0 {
			pair(li, best, domain.MatchTolerant)
		}
	}

	log := logger.FromContext(ctx)
	log.Debug().Int("groups", len(res.Groups)).Int("ledger", len(res.Ledger)).Int("bank", len(res.Bank)).Msg("One-to-one reconciliation done")
	return res
}

// amountsAgree requires the same sign and a difference under tol.
func amountsAgree(a, b, tol decimal.Decimal) bool {
	if a.Sign() != b.Sign() {
		return false
	}
	return a.Sub(b).Abs().LessThan(tol)
}
