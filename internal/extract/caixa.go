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
	caixaTxRe  = regexp.MustCompile(`^(\d{2}/\d{2}/\d{4})\s+(\d+)\s+(.+?)\s+([\d\.]*\d,\d{2})\s*([CD])\b(?:\s+([\d\.]*\d,\d{2})\s*([CD])\b)?`)
	caixaBalRe = regexp.MustCompile(`([\d\.]*\d,\d{2})\s*([CD])\b`)
)

// Caixa reads Caixa Econômica Federal statements: "date doc description
// amount D|C" with an optional running balance.
type Caixa struct{}

func (Caixa) Name() string { return "caixa" }

func (Caixa) ExtractPage(_ context.Context, page pdftext.Page, st State) (PageResult, State, error) {
	var res PageResult
	for _, line := range textLines(page) {
		if IsSummary(line) {
			if ms := caixaBalRe.FindAllStringSubmatch(line, -1); ms != nil {
				last := ms[len(ms)-1]
				v := signDC(brnum.ParseAmount(last[1]), last[2])
				if brnum.ContainsFold(line, "ANTERIOR") {
					if res.BalanceStart == nil {
						res.BalanceStart = domain.Ptr(v)
					}
				} else {
					res.BalanceEnd = domain.Ptr(v)
				}
			}
			continue
		}

		m := caixaTxRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		date, ok := parseDate(m[1])
		if !ok {
			continue
		}
		rec := domain.RawRecord{
			Date:   date,
			DocID:  m[2],
			Memo:   strings.TrimSpace(m[3]),
			Amount: signDC(brnum.ParseAmount(m[4]), m[5]),
		}
		if m[6] != "" {
			bal := signDC(brnum.ParseAmount(m[6]), m[7])
			rec.RowBalance = &bal
			res.BalanceEnd = domain.Ptr(bal)
		}
		res.Records = append(res.Records, rec)
		st.LastYear = date.Year()
	}

	if len(res.Records) == 0 {
		res, st = smartExtract(page, st)
	}
	return res, st, nil
}
