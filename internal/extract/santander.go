package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/dvloznov/statement-reconciler/internal/brnum"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/pdftext"
)

var (
	santanderDayBalRe = regexp.MustCompile(`(\d{2}/\d{2}/\d{4})\s+Saldo do dia\s+(.*?)\s*R\$\s+(-?[\d\.,]+)`)
	santanderTxRe     = regexp.MustCompile(`(\d{2}/\d{2}/\d{4})\s+(.*?)\s+([+-])\s+R\$\s+([\d\.,]+)`)
)

// Santander amount column, by the right edge of the value.
const (
	santanderAmountMinX = 465
	santanderAmountMaxX = 510
)

// Santander reads the text layer first ("date desc +|- R$ value" with
// "Saldo do dia" balances); pages without such rows fall back to the
// amount column geometry and then to the smart extractor.
type Santander struct{}

func (Santander) Name() string { return "santander" }

func (Santander) ExtractPage(_ context.Context, page pdftext.Page, st State) (PageResult, State, error) {
	var res PageResult
	for _, line := range textLines(page) {
		line = strings.TrimSpace(line)
		if m := santanderDayBalRe.FindStringSubmatch(line); m != nil {
			v := brnum.ParseAmount(m[3])
			if res.BalanceStart == nil {
				res.BalanceStart = domain.Ptr(v)
			}
			res.BalanceEnd = domain.Ptr(v)
			continue
		}
		m := santanderTxRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		date, ok := parseDate(m[1])
		if !ok {
			continue
		}
		res.Records = append(res.Records, domain.RawRecord{
			Date:   date,
			Amount: signDC(brnum.ParseAmount(m[4]), m[3]),
			Memo:   strings.TrimSpace(m[2]),
		})
	}

	if len(res.Records) == 0 {
		res.Records = santanderColumns(page)
	}
	if len(res.Records) == 0 {
		res, st = smartExtract(page, st)
	}
	return res, st, nil
}

// santanderColumns picks, on every dated line, the amount whose right edge
// falls inside the amount band.
func santanderColumns(page pdftext.Page) []domain.RawRecord {
	var out []domain.RawRecord
	for _, line := range pageLines(page, 3) {
		if len(line.Words) == 0 || IsSummary(line.Text()) {
			continue
		}
		date, ok := parseDate(line.Words[0].Text)
		if !ok {
			continue
		}
		for i, w := range line.Words {
			if i == 0 || w.X1 < santanderAmountMinX || w.X1 > santanderAmountMaxX || !moneyTokenRe.MatchString(w.Text) {
				continue
			}
			amount := brnum.ParseAmount(w.Text)
			if i > 1 && line.Words[i-1].Text == "-" {
				amount = amount.Abs().Neg()
			}
			if amount.IsZero() {
				break
			}
			var memo []string
			for _, mw := range line.Words[1:i] {
				if mw.Text != "-" && mw.Text != "R$" {
					memo = append(memo, mw.Text)
				}
			}
			out = append(out, domain.RawRecord{Date: date, Amount: amount, Memo: strings.Join(memo, " ")})
			break
		}
	}
	return out
}
