package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-reconciler/internal/brnum"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/layout"
	"github.com/dvloznov/statement-reconciler/internal/pdftext"
)

var (
	blockedMemoWords = []string{"saldo", "total", "transporte", "transport", "a transportar"}

	continuationBlocklist = []string{
		"EXTRATO", "SALDO", "PAGE", "PÁGINA", "CONTINUA",
		"PERIODO:", "PAG.:", "DATA DOCUMENTO",
		"COOP CRED", "POUP E INVEST", "AGENCIA:", "CONTA:",
		"TOTAL", "SUJEITO", "AUTENTICAÇÃO", "OUVIDORIA",
		"SAC", "ALÔ", "DEFICIT", "SUPERAVIT",
		"TRANSPORTE", "TRANSPORT",
		"LANCAMENTOS", "DATA HISTORICO",
	}

	// A line opening with a date starts a record of its own.
	anchorDateRe = regexp.MustCompile(`^(?:\d{2}[/.\-]\d{2}(?:[/.\-]\d{2,4})?\b|\d{2}\s*/\s*[A-Za-z]{3}\b)`)

	debitTypes  = map[string]bool{"D": true, "DEB": true, "DEBITO": true, "-": true, "DR": true, "*": true}
	creditTypes = map[string]bool{"C": true, "CRED": true, "CREDITO": true, "+": true, "CR": true}
)

// Generic is driven entirely by a layout descriptor: its line pattern
// anchors records, undated lines extend the open record's memo and the
// descriptor's balance patterns supply the balances.
type Generic struct {
	Layout *layout.BankLayout
}

func (g *Generic) Name() string { return "generic:" + g.Layout.Name }

func (g *Generic) ExtractPage(_ context.Context, page pdftext.Page, st State) (PageResult, State, error) {
	var res PageResult
	lineRe := g.Layout.LineRegexp()

	for _, line := range textLines(page) {
		g.scanBalances(line, &res)

		m := lineRe.FindStringSubmatch(line)
		if m == nil {
			if st.Pending != nil && IsContinuation(line) {
				appendMemo(st.Pending, line)
			}
			continue
		}

		rec, ok := g.parseMatch(m)
		if !ok || rec.Amount.IsZero() {
			continue
		}
		if g.Layout.HasBalanceCleanup && containsLower(rec.Memo, blockedMemoWords) {
			res.Discarded = append(res.Discarded, rec)
			continue
		}
		if st.Pending != nil {
			res.Records = append(res.Records, *st.Pending)
		}
		st.Pending = &rec
	}
	return res, st, nil
}

func (g *Generic) scanBalances(line string, res *PageResult) {
	if re := g.Layout.BalanceStartRegexp(); re != nil && res.BalanceStart == nil {
		if v, ok := balanceGroup(re, line, g.Layout); ok {
			res.BalanceStart = &v
		}
	}
	if re := g.Layout.BalanceEndRegexp(); re != nil {
		if v, ok := balanceGroup(re, line, g.Layout); ok {
			res.BalanceEnd = &v
		}
	}
}

// balanceGroup reads the amount from the second capture group, or the
// last one when the pattern has fewer.
func balanceGroup(re *regexp.Regexp, line string, l *layout.BankLayout) (decimal.Decimal, bool) {
	m := re.FindStringSubmatch(line)
	if m == nil || len(m) < 2 {
		return decimal.Zero, false
	}
	idx := 2
	if len(m) <= idx {
		idx = len(m) - 1
	}
	return brnum.ParseAmountSep(m[idx], l.AmountDecimalSeparator, l.AmountThousandSeparator)
}

// parseMatch maps the capture groups of one line onto a record following
// the layout's column map.
func (g *Generic) parseMatch(m []string) (domain.RawRecord, bool) {
	l := g.Layout
	value := func(field string) string {
		if n := l.Group(field); n > 0 && n < len(m) {
			return strings.TrimSpace(m[n])
		}
		return ""
	}

	date, ok := brnum.ParseDate(value(layout.FieldDate), l.DateFormat)
	if !ok {
		return domain.RawRecord{}, false
	}
	rec := domain.RawRecord{Date: date, Memo: value(layout.FieldMemo), DocID: value(layout.FieldDocID)}

	if raw := value(layout.FieldAmount); raw != "" {
		rec.Amount, _ = brnum.ParseAmountSep(raw, l.AmountDecimalSeparator, l.AmountThousandSeparator)
	}
	if raw := value(layout.FieldType); raw != "" {
		t := brnum.Fold(strings.NewReplacer("(", "", ")", "").Replace(raw))
		switch {
		case debitTypes[t]:
			rec.Amount = rec.Amount.Abs().Neg()
		case creditTypes[t]:
			rec.Amount = rec.Amount.Abs()
		}
	}
	if raw := value(layout.FieldAmountDebit); raw != "" {
		if v, ok := brnum.ParseAmountSep(raw, l.AmountDecimalSeparator, l.AmountThousandSeparator); ok && !v.IsZero() {
			rec.Amount = v.Abs().Neg()
		}
	} else if raw := value(layout.FieldAmountCredit); raw != "" {
		if v, ok := brnum.ParseAmountSep(raw, l.AmountDecimalSeparator, l.AmountThousandSeparator); ok && !v.IsZero() {
			rec.Amount = v.Abs()
		}
	}
	if raw := value(layout.FieldBalance); raw != "" {
		if v, ok := brnum.ParseAmountSep(raw, l.AmountDecimalSeparator, l.AmountThousandSeparator); ok {
			rec.RowBalance = &v
		}
	}
	return rec, true
}

// maxContinuationLen caps the length of a line joined to the memo above it.
const maxContinuationLen = 100

// IsContinuation reports whether an undated line belongs to the memo of
// the record above it.
func IsContinuation(line string) bool {
	l := strings.TrimSpace(line)
	if n := len([]rune(l)); n < 3 || n > maxContinuationLen {
		return false
	}
	if anchorDateRe.MatchString(l) {
		return false
	}
	if strings.Contains(l, "====") || strings.Contains(l, "-----") || strings.Contains(l, "_____") {
		return false
	}
	if strings.Contains(l, "**/**/****") || strings.HasPrefix(l, "...") {
		return false
	}
	return !brnum.ContainsFold(l, continuationBlocklist...)
}

func containsLower(s string, words []string) bool {
	s = strings.ToLower(s)
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
