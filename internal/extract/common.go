package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-reconciler/internal/brnum"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/pdftext"
)

var ignoreKeywords = []string{"SALDO", "TOTAL", "ANTERIOR", "S A L D O", "TRANSPORTADO", "A TRANSPORTAR", "BLOQUEADO"}

var (
	moneyRe      = regexp.MustCompile(`-?[\d\.]*\d,\d{2}`)
	moneyTokenRe = regexp.MustCompile(`^-?[\d\.]*\d,\d{2}-?$`)
	leadDateRe   = regexp.MustCompile(`^(\d{2}/\d{2}/\d{4})\b`)
	agencyRe     = regexp.MustCompile(`(?i)Ag[eê]ncia\s*:?\s*(\d[\d\-]*)`)
	accountRe    = regexp.MustCompile(`(?i)Conta(?:\s+Corrente)?\s*:?\s*(\d[\d\.\-]*\d)`)
)

// ShouldIgnoreLine reports balance, total and zero-value lines that must not
// become transactions.
func ShouldIgnoreLine(line string) bool {
	if strings.TrimSpace(line) == "" {
		return true
	}
	if brnum.ContainsFold(line, ignoreKeywords...) {
		return true
	}
	return onlyZeroAmounts(line)
}

// onlyZeroAmounts is true when the line carries amounts and all are zero.
func onlyZeroAmounts(line string) bool {
	amounts := moneyRe.FindAllString(line, -1)
	if len(amounts) == 0 {
		return false
	}
	for _, a := range amounts {
		if !brnum.ParseAmount(a).IsZero() {
			return false
		}
	}
	return true
}

// IsSummary reports lines labelled as a balance or total.
func IsSummary(line string) bool {
	return brnum.ContainsFold(line, "SALDO", "TOTAL", "S A L D O")
}

// signDC applies a D/C marker to an unsigned amount.
func signDC(d decimal.Decimal, dc string) decimal.Decimal {
	switch strings.ToUpper(strings.TrimSpace(dc)) {
	case "D", "-", "*":
		return d.Abs().Neg()
	case "C", "+":
		return d.Abs()
	}
	return d
}

func parseDate(s string) (time.Time, bool) {
	return brnum.ParseDate(s, "")
}

func amountPtr(s string) *decimal.Decimal {
	d, ok := brnum.ParseAmountOK(s)
	if !ok {
		return nil
	}
	return &d
}

func joinMemo(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// appendMemo adds a continuation line to the pending record's memo.
func appendMemo(r *domain.RawRecord, line string) {
	r.Memo = joinMemo(r.Memo, line)
}

// ScanAccount reads "Agência" and "Conta" markers from page text.
func ScanAccount(text string) domain.AccountInfo {
	var info domain.AccountInfo
	if m := agencyRe.FindStringSubmatch(text); m != nil {
		info.Branch = m[1]
	}
	if m := accountRe.FindStringSubmatch(text); m != nil {
		info.Account = m[1]
	}
	return info
}

// pageLines returns the page as positioned lines, falling back to its text
// when the page has no word geometry.
func pageLines(p pdftext.Page, tolerance float64) []pdftext.Line {
	if words := p.Words(); len(words) > 0 {
		return pdftext.GroupLines(words, tolerance)
	}
	var lines []pdftext.Line
	for i, l := range pdftext.TextLines(p) {
		lines = append(lines, pdftext.Line{Top: float64(i * 10), Words: pdftext.Row(float64(i*10), pdftext.Cell{Text: l})})
	}
	return lines
}

// textLines returns the page as text lines, building them from word
// geometry when the page has no text layer of its own.
func textLines(p pdftext.Page) []string {
	if lines := pdftext.TextLines(p); len(lines) > 0 {
		return lines
	}
	var out []string
	for _, l := range pdftext.GroupLines(p.Words(), 2) {
		out = append(out, l.Text())
	}
	return out
}
