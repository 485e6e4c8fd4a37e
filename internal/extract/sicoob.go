package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-reconciler/internal/brnum"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/pdftext"
)

const (
	sicoobDateMaxX    = 200
	sicoobDescMinX    = 95
	sicoobDescMaxX    = 430
	sicoobAmountMinX  = 300
	sicoobBalanceMinX = 525
)

var sicoobAmountRe = regexp.MustCompile(`^([\d\.]*\d,\d{2})([CD\*])$`)

// Sicoob reads the word geometry of Sicoob statements. Amounts carry a C, D
// or * suffix; the date is printed once per day and descriptions wrap, so the
// open record and current date carry over between lines and pages.
type Sicoob struct{}

func (Sicoob) Name() string { return "sicoob" }

// ParseSicoobAmount parses "1.234,56D" style tokens.
func ParseSicoobAmount(token string) (decimal.Decimal, bool) {
	m := sicoobAmountRe.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return decimal.Zero, false
	}
	return signDC(brnum.ParseAmount(m[1]), m[2]), true
}

func (Sicoob) ExtractPage(_ context.Context, page pdftext.Page, st State) (PageResult, State, error) {
	if len(page.Words()) == 0 {
		res, st := smartExtract(page, st)
		return res, st, nil
	}

	var res PageResult
	for _, line := range pdftext.GroupLines(page.Words(), 2) {
		text := line.Text()
		if brnum.ContainsFold(text, "SALDO", "TOTAL") {
			sicoobBalance(line, &res)
			continue
		}

		if w := line.Words[0]; w.X0 < sicoobDateMaxX {
			if d, ok := parseDate(w.Text); ok {
				st.CurrentDate = d
			}
		}

		var amount *decimal.Decimal
		for _, w := range line.Words {
			if w.X0 <= sicoobAmountMinX || w.X0 >= sicoobBalanceMinX {
				continue
			}
			if v, ok := ParseSicoobAmount(w.Text); ok {
				amount = &v
				break
			}
		}

		var descWords []string
		for _, w := range wordsBetween(line.Words, sicoobDescMinX, sicoobDescMaxX) {
			if _, ok := ParseSicoobAmount(w); !ok && !moneyTokenRe.MatchString(w) {
				descWords = append(descWords, w)
			}
		}
		desc := strings.Join(descWords, " ")
		if amount == nil {
			if st.Pending != nil && desc != "" && IsContinuation(desc) {
				appendMemo(st.Pending, desc)
			}
			continue
		}
		if st.CurrentDate.IsZero() || amount.IsZero() {
			continue
		}

		if st.Pending != nil {
			res.Records = append(res.Records, *st.Pending)
		}
		st.Pending = &domain.RawRecord{Date: st.CurrentDate, Amount: *amount, Memo: desc}
	}
	return res, st, nil
}

// sicoobBalance harvests SALDO and TOTAL lines, keeping only those tagged as
// a daily, account or previous balance.
func sicoobBalance(line pdftext.Line, res *PageResult) {
	text := line.Text()
	if !brnum.ContainsFold(text, "DIA", "EM CONTA", "ANTERIOR") {
		return
	}
	var v *decimal.Decimal
	for _, w := range line.Words {
		if d, ok := ParseSicoobAmount(w.Text); ok {
			v = &d
		} else if moneyTokenRe.MatchString(w.Text) {
			v = domain.Ptr(brnum.ParseAmount(w.Text))
		}
	}
	if v == nil {
		return
	}
	if brnum.ContainsFold(text, "ANTERIOR") {
		if res.BalanceStart == nil {
			res.BalanceStart = v
		}
		return
	}
	res.BalanceEnd = v
}
