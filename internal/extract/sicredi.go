package extract

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-reconciler/internal/brnum"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/pdftext"
)

// Sicredi sub-layouts, committed on the first page of a file.
const (
	sicrediColumns = "columns"
	sicrediSigned  = "signed"
)

// Sicredi column bands (x0) for the columns sub-layout.
const (
	sicrediDebitMinX    = 370
	sicrediDebitMaxX    = 410
	sicrediCreditMinX   = 440
	sicrediCreditMaxX   = 495
	sicrediBalanceMinX  = 510
	sicrediSignedAmount = 300
)

// Sicredi reads either the two column layout (separate debit and credit
// columns) or the signed layout (one signed amount followed by the balance).
type Sicredi struct {
	// HeaderKeywords select the columns sub-layout when all are present on
	// the first page.
	HeaderKeywords []string
}

func (s *Sicredi) Name() string { return "sicredi" }

func (s *Sicredi) ExtractPage(_ context.Context, page pdftext.Page, st State) (PageResult, State, error) {
	if st.SubLayout == "" {
		st.SubLayout = s.detect(page.Text())
	}
	if len(page.Words()) == 0 {
		res, st := smartExtract(page, st)
		return res, st, nil
	}

	var res PageResult
	var last *domain.RawRecord
	for _, line := range pdftext.GroupLines(page.Words(), 2) {
		text := line.Text()
		if IsSummary(text) {
			s.harvestBalance(line, &res)
			last = nil
			continue
		}

		var amounts []pdftext.Word
		for _, w := range line.Words {
			if strings.Contains(w.Text, ",") && moneyTokenRe.MatchString(w.Text) {
				amounts = append(amounts, w)
			}
		}

		start := 0
		if len(line.Words) > 0 {
			if d, ok := parseDate(line.Words[0].Text); ok {
				st.CurrentDate = d
				start = 1
			}
		}
		if len(amounts) == 0 {
			if last != nil && start == 0 && IsContinuation(text) {
				appendMemo(last, text)
			}
			continue
		}
		if st.CurrentDate.IsZero() {
			continue
		}

		amount, ok := s.amount(st.SubLayout, amounts)
		if !ok || amount.IsZero() {
			continue
		}
		var memo []string
		for _, w := range line.Words[start:] {
			if w.X0 >= amounts[0].X0 {
				break
			}
			memo = append(memo, w.Text)
		}
		res.Records = append(res.Records, domain.RawRecord{Date: st.CurrentDate, Amount: amount, Memo: strings.Join(memo, " ")})
		last = &res.Records[len(res.Records)-1]
	}
	return res, st, nil
}

func (s *Sicredi) detect(text string) string {
	keywords := s.HeaderKeywords
	if len(keywords) == 0 {
		keywords = []string{"Débito", "Crédito"}
	}
	for _, k := range keywords {
		if !brnum.ContainsFold(text, k) {
			return sicrediSigned
		}
	}
	return sicrediColumns
}

func (s *Sicredi) amount(sub string, amounts []pdftext.Word) (decimal.Decimal, bool) {
	if sub == sicrediColumns {
		for _, w := range amounts {
			switch {
			case w.X0 >= sicrediDebitMinX && w.X0 <= sicrediDebitMaxX:
				return brnum.ParseAmount(w.Text).Abs().Neg(), true
			case w.X0 >= sicrediCreditMinX && w.X0 <= sicrediCreditMaxX:
				return brnum.ParseAmount(w.Text).Abs(), true
			}
		}
		return decimal.Zero, false
	}
	// Signed: the first amount is the movement, anything right of it the balance.
	for _, w := range amounts {
		if w.X0 >= sicrediSignedAmount && w.X0 < sicrediBalanceMinX {
			return brnum.ParseAmount(w.Text), true
		}
	}
	return brnum.ParseAmount(amounts[0].Text), true
}

func (s *Sicredi) harvestBalance(line pdftext.Line, res *PageResult) {
	var v *decimal.Decimal
	for _, w := range line.Words {
		if strings.Contains(w.Text, ",") && moneyTokenRe.MatchString(w.Text) {
			v = domain.Ptr(brnum.ParseAmount(w.Text))
		}
	}
	if v == nil {
		return
	}
	if brnum.ContainsFold(line.Text(), "ANTERIOR") {
		if res.BalanceStart == nil {
			res.BalanceStart = v
		}
		return
	}
	res.BalanceEnd = v
}
