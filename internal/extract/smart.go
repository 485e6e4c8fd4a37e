package extract

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-reconciler/internal/brnum"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/pdftext"
)

var (
	smartAmountRe = regexp.MustCompile(`(-?[\d\.]*\d,\d{2})\s*([CD])?\b`)
	smartDateRe   = regexp.MustCompile(`^(\d{2})[/\.\s]+([A-Za-z]{3}|\d{2})(?:[/\.\s]+(\d{4}|\d{2}))?\b`)
	yearRe        = regexp.MustCompile(`\b(20\d{2})\b`)

	smartDebitWords  = []string{"DEBITO", "PAGTO", "ENVIADO", "SAQU", "TARIFA", "PIX -", "PGTO"}
	smartCreditWords = []string{"CREDITO", "RECEBIDO", "ESTORN", "DEPOSITO", "PIX +", "APLICA"}
)

// Smart is the layout-agnostic fallback: it anchors on a leading date,
// takes the last amount as the running balance when two are present and
// collects undated lines as the next record's description.
type Smart struct{}

func (Smart) Name() string { return "smart" }

func (Smart) ExtractPage(_ context.Context, page pdftext.Page, st State) (PageResult, State, error) {
	res, st := smartExtract(page, st)
	return res, st, nil
}

func smartExtract(page pdftext.Page, st State) (PageResult, State) {
	var res PageResult

	year := st.LastYear
	if m := yearRe.FindStringSubmatch(page.Text()); m != nil {
		year, _ = strconv.Atoi(m[1])
	}
	if year == 0 {
		year = time.Now().Year()
	}

	var descBuffer []string
	for _, line := range pageLines(page, 2) {
		text := line.Text()
		amounts := smartAmountRe.FindAllStringSubmatch(text, -1)

		if brnum.ContainsFold(text, "SALDO", "S A L D O", "TRANSPORTE") && len(amounts) > 0 {
			last := amounts[len(amounts)-1]
			bal := signDC(brnum.ParseAmount(last[1]), last[2])
			if res.BalanceStart == nil || brnum.ContainsFold(text, "ANTERIOR", "INICIAL") {
				res.BalanceStart = domain.Ptr(bal)
			}
			res.BalanceEnd = domain.Ptr(bal)
			continue
		}

		date, ok := smartDate(text, year)
		if !ok {
			if !ShouldIgnoreLine(text) {
				descBuffer = append(descBuffer, text)
			}
			continue
		}
		if len(amounts) == 0 {
			descBuffer = append(descBuffer, text)
			continue
		}

		rec := domain.RawRecord{Date: date}
		amt := amounts[0]
		if len(amounts) >= 2 {
			bal := brnum.ParseAmount(amounts[len(amounts)-1][1])
			rec.RowBalance = &bal
			res.BalanceEnd = domain.Ptr(bal)
			amt = amounts[len(amounts)-2]
		}
		rec.Amount = smartSign(brnum.ParseAmount(amt[1]), amt[1], amt[2], text)
		if rec.Amount.IsZero() {
			continue
		}
		rec.Memo = joinMemo(descBuffer...)
		if rec.Memo == "" {
			rec.Memo = text
		}
		descBuffer = nil
		res.Records = append(res.Records, rec)
		st.CurrentDate = date
		st.LastYear = date.Year()
	}
	return res, st
}

func smartDate(text string, year int) (time.Time, bool) {
	m := smartDateRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return time.Time{}, false
	}
	if y := m[3]; y != "" {
		n, _ := strconv.Atoi(y)
		if len(y) == 2 {
			n += 2000
		}
		year = n
	}
	return brnum.ParseDayMonth(m[1], m[2], year)
}

func smartSign(d decimal.Decimal, raw, dc, text string) decimal.Decimal {
	switch {
	case strings.Contains(raw, "-") || dc == "D" || brnum.ContainsFold(text, smartDebitWords...):
		return d.Abs().Neg()
	case dc == "C" || brnum.ContainsFold(text, smartCreditWords...):
		return d.Abs()
	}
	return d
}
