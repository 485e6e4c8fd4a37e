package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/dvloznov/statement-reconciler/internal/brnum"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/pdftext"
)

// Stone balance policies.
const (
	StoneDerive = "derive"
	StoneSwap   = "swap"
)

var stoneTxRe = regexp.MustCompile(`^(\d{2}/\d{2}/\d{2,4})\s+(.*?)\s+((?:R\$\s*)?[\-\s]*[\d\.]+,\d{2})\s+((?:R\$\s*)?[\-\s]*[\d\.]+,\d{2})`)

// Stone reads Stone statements, printed newest first with a running
// balance on every row.
type Stone struct {
	// BalancePolicy is StoneDerive (default) or StoneSwap.
	BalancePolicy string
}

func (s *Stone) Name() string { return "stone" }

func (s *Stone) ExtractPage(_ context.Context, page pdftext.Page, st State) (PageResult, State, error) {
	var res PageResult
	for _, line := range textLines(page) {
		line = strings.TrimSpace(line)
		m := stoneTxRe.FindStringSubmatch(line)
		if m == nil {
			if st.Pending != nil && !ShouldIgnoreLine(line) && IsContinuation(line) {
				appendMemo(st.Pending, line)
			}
			continue
		}
		if ShouldIgnoreLine(line) {
			continue
		}

		date, ok := parseDate(m[1])
		if !ok {
			continue
		}
		desc := strings.TrimSpace(m[2])
		amount := brnum.ParseAmount(strings.ReplaceAll(m[3], "R$", ""))
		if brnum.ContainsFold(desc, "SAIDA", "DEBITO") && amount.IsPositive() {
			amount = amount.Neg()
		}
		if amount.IsZero() {
			continue
		}
		rec := domain.RawRecord{Date: date, Amount: amount, Memo: desc}
		if bal, ok := brnum.ParseAmountOK(strings.ReplaceAll(m[4], "R$", "")); ok {
			rec.RowBalance = &bal
		}

		if st.Pending != nil {
			res.Records = append(res.Records, *st.Pending)
		}
		st.Pending = &rec
	}
	return res, st, nil
}

// Finish puts the records in chronological order and derives the balances
// from the running balances of the first and last printed rows.
func (s *Stone) Finish(res *Extraction) {
	n := len(res.Records)
	if n == 0 {
		return
	}
	first, last := res.Records[0], res.Records[n-1]

	if !first.Date.Before(last.Date) && n > 1 {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			res.Records[i], res.Records[j] = res.Records[j], res.Records[i]
		}
	} else {
		// Already ascending: the printed order is chronological.
		first, last = last, first
	}
	// first is now the newest printed row, last the oldest.

	res.Balance.End = nil
	if first.RowBalance != nil {
		res.Balance.End = domain.Ptr(*first.RowBalance)
	}

	res.Balance.Start = nil
	if last.RowBalance == nil {
		return
	}
	switch s.BalancePolicy {
	case StoneSwap:
		res.Balance.Start = domain.Ptr(*last.RowBalance)
	default:
		res.Balance.Start = domain.Ptr(last.RowBalance.Sub(last.Amount))
	}
}
