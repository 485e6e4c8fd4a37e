package extract

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-reconciler/internal/brnum"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/pdftext"
)

const (
	itauSagrado = "sagrado"
	itauText    = "text"
)

// Itaú "Sagrado" column bands (x0).
const (
	itauLancMinX  = 80
	itauRazaoMinX = 210
	itauDocMinX   = 350
	itauValueMinX = 460
	// A "Lançamentos" line belongs to the dated row below it when closer than this.
	itauLancGap = 20
)

var (
	itauPeriodRe    = regexp.MustCompile(`(?i)per[ií]odo:?\s+(\d{2}/\d{2}/\d{4})\s+at[ée]\s+(\d{2}/\d{2}/\d{4})`)
	itauHeaderBalRe = regexp.MustCompile(`(?is)Saldo total.*?R\$\s*(-?)\s*([\d\.]+,\d{2})`)
	itauAnteriorRe  = regexp.MustCompile(`(?i)SALDO ANTERIOR.*?([\-–—\s]*[\d\.]+,\d{2})`)
	itauAnyAmountRe = regexp.MustCompile(`([\-–—\s]*[\d\.]+,\d{2})`)
	itauFullRe      = regexp.MustCompile(`^(\d{2}/\d{2}/\d{4})\s+(.*?)\s+([\-–—\s]*[\d\.]+,\d{2})`)
	itauShortRe     = regexp.MustCompile(`(?i)^(\d{2})\s*/\s*([a-z]{3})\s+(.*?)\s+([\-–—\s]*[\d\.]+,\d{2})`)
	itauDateRe      = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

	itauCreditWords   = []string{"ESTORNO", "PIX QR", "RECEBIDO", "CRED", "RESGATE", "DEPOSITO", "TRANSF.CRED"}
	itauDebitWords    = []string{"PIX ENVIADO", "ENVIADO", "PAGAMENTO", "ENVIO", "SAQUE", "TARIFA", "IOF", "SISPAG", "DEBITO"}
	itauTextDebitWord = []string{"JUROS", "MULTA", "TAR ", "TARIFA", "IOF", "PAGTO", "PAGAMENTO", "SAQUE", "RENEGOCIA"}
)

// Itau reads the column layout of Itaú business statements and falls back to
// a text parser that understands both "27/10/2025" and "03 / fev" dates.
type Itau struct{}

func (Itau) Name() string { return "itau" }

func (Itau) ExtractPage(_ context.Context, page pdftext.Page, st State) (PageResult, State, error) {
	text := page.Text()
	if st.SubLayout == "" {
		st.SubLayout = itauText
		if brnum.ContainsFold(text, "Saldo total") && brnum.ContainsFold(text, "Lançamentos do período") {
			st.SubLayout = itauSagrado
		}
	}
	if m := itauPeriodRe.FindStringSubmatch(text); m != nil {
		st.PeriodStart, _ = parseDate(m[1])
		st.PeriodEnd, _ = parseDate(m[2])
	}

	var res PageResult
	if st.SubLayout == itauSagrado && len(page.Words()) > 0 {
		res = itauColumns(page)
	}
	if len(res.Records) == 0 {
		res = itauTextPage(text, st)
	}
	if len(res.Records) == 0 && res.BalanceStart == nil && res.BalanceEnd == nil {
		res, st = smartExtract(page, st)
	}

	if res.BalanceEnd == nil {
		if m := itauHeaderBalRe.FindStringSubmatch(text); m != nil {
			v := brnum.ParseAmount(m[2])
			if m[1] == "-" {
				v = v.Neg()
			}
			res.BalanceEnd = &v
		}
	}
	if n := len(res.Records); n > 0 {
		st.LastYear = res.Records[n-1].Date.Year()
	}
	return res, st, nil
}

func itauColumns(page pdftext.Page) PageResult {
	var res PageResult
	var lastLanc string
	var lastLancY float64

	for _, line := range pdftext.GroupLines(page.Words(), 3) {
		var date, lanc, razao, doc, val []string
		for _, w := range line.Words {
			switch {
			case w.X0 < itauLancMinX:
				date = append(date, w.Text)
			case w.X0 < itauRazaoMinX:
				lanc = append(lanc, w.Text)
			case w.X0 < itauDocMinX:
				razao = append(razao, w.Text)
			case w.X0 < itauValueMinX:
				doc = append(doc, w.Text)
			default:
				val = append(val, w.Text)
			}
		}
		dateText, lancText := strings.Join(date, " "), strings.Join(lanc, " ")
		razaoText, docText, valText := strings.Join(razao, " "), strings.Join(doc, " "), strings.Join(val, " ")

		if brnum.ContainsFold(lancText+" "+razaoText, "SALDO ANTERIOR") {
			if m := moneyRe.FindString(valText); m != "" {
				v := brnum.ParseAmount(m)
				if strings.Contains(valText, "-") {
					v = v.Abs().Neg()
				}
				res.BalanceStart = &v
			}
			continue
		}
		if lancText != "" && dateText == "" && valText == "" {
			lastLanc, lastLancY = lancText, line.Top
			continue
		}
		if !itauDateRe.MatchString(dateText) || valText == "" {
			continue
		}
		date0, ok := parseDate(dateText)
		if !ok {
			continue
		}
		amount, ok := brnum.ParseAmountOK(valText)
		if !ok || amount.IsZero() {
			continue
		}

		var desc string
		if lastLanc != "" && line.Top-lastLancY < itauLancGap {
			desc = lastLanc + " - "
			lastLanc = ""
		}
		desc += razaoText
		if lancText != "" {
			desc += " " + lancText
		}
		if docText != "" {
			desc += " Doc:" + docText
		}
		desc = strings.TrimSpace(desc)

		switch itauKeywordSign(desc) {
		case 1:
			amount = amount.Abs()
		case -1:
			amount = amount.Abs().Neg()
		default:
			if strings.Contains(valText, "-") {
				amount = amount.Abs().Neg()
			}
		}
		res.Records = append(res.Records, domain.RawRecord{Date: date0, Amount: amount, Memo: desc})
	}
	return res
}

func itauTextPage(text string, st State) PageResult {
	var res PageResult
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		folded := brnum.Fold(line)

		if m := itauAnteriorRe.FindStringSubmatch(line); m != nil {
			res.BalanceStart = domain.Ptr(itauSigned(m[1]))
		}
		if strings.Contains(folded, "SALDO FINAL") || strings.Contains(folded, "SALDO DISPONIVEL") {
			if m := itauAnyAmountRe.FindStringSubmatch(line); m != nil {
				res.BalanceEnd = domain.Ptr(itauSigned(m[1]))
			}
		}
		if ShouldIgnoreLine(line) {
			continue
		}

		var date time.Time
		var desc, raw string
		if m := itauFullRe.FindStringSubmatch(line); m != nil {
			d, ok := parseDate(m[1])
			if !ok {
				continue
			}
			date, desc, raw = d, m[2], m[3]
		} else if m := itauShortRe.FindStringSubmatch(line); m != nil {
			month, ok := brnum.Month(m[2])
			if !ok {
				continue
			}
			d, ok := brnum.ParseDayMonth(m[1], m[2], itauYearFor(month, st))
			if !ok {
				continue
			}
			date, desc, raw = d, m[3], m[4]
		} else {
			continue
		}

		amount := itauSigned(raw)
		if amount.IsZero() {
			continue
		}
		if !brnum.ContainsFold(desc, "ESTORNO") && brnum.ContainsFold(desc, itauTextDebitWord...) && amount.IsPositive() {
			amount = amount.Neg()
		}
		res.Records = append(res.Records, domain.RawRecord{Date: date, Amount: amount, Memo: strings.TrimSpace(desc)})
	}
	return res
}

// itauKeywordSign returns the sign implied by the memo: 1 for credits, -1
// for debits and 0 when no keyword applies. Credit words win, so an
// ESTORNO of a TARIFA is a credit.
func itauKeywordSign(desc string) int {
	switch {
	case brnum.ContainsFold(desc, itauCreditWords...):
		return 1
	case brnum.ContainsFold(desc, itauDebitWords...):
		return -1
	}
	return 0
}

func itauSigned(raw string) decimal.Decimal {
	return brnum.ParseAmount(strings.ReplaceAll(raw, " ", ""))
}

// itauYearFor resolves the year of a "03 / fev" date from the statement
// period, so a December to January statement dates both months correctly.
func itauYearFor(month time.Month, st State) int {
	if !st.PeriodStart.IsZero() && !st.PeriodEnd.IsZero() {
		for d := time.Date(st.PeriodStart.Year(), st.PeriodStart.Month(), 1, 0, 0, 0, 0, time.UTC); !d.After(st.PeriodEnd); d = d.AddDate(0, 1, 0) {
			if d.Month() == month {
				return d.Year()
			}
		}
		return st.PeriodEnd.Year()
	}
	if st.LastYear != 0 {
		return st.LastYear
	}
	return time.Now().Year()
}
