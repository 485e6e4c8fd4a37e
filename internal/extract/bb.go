package extract

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-reconciler/internal/brnum"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/pdftext"
)

// BB sub-layouts, chosen per page.
const (
	bbG331     = "g331"
	bbDotDate  = "dot-date"
	bbTabular  = "tabular"
	bbReceipt  = "receipt"
	rendeFacil = "Rende Fácil - Movimentação Automática"
)

var (
	bbG331TxRe    = regexp.MustCompile(`(\d{2}/\d{2}/\d{4})\s+(?:\d{2}/\d{2}/\d{4}\s+)?(\d+)\s+(\d+)\s+(.*?)\s+([\d\.]*\d,\d{2})\s+([CD])(?:\s+([\d\.]*\d,\d{2})\s+([CD]))?`)
	bbMoneyDCRe   = regexp.MustCompile(`([\d\.]*\d,\d{2})\s+([CD])\b`)
	bbDotDateRe   = regexp.MustCompile(`\d{2}\.\d{2}\.\d{4}`)
	bbDotLineRe   = regexp.MustCompile(`^(\d{2}\.\d{2}\.\d{4})\s+(.*)`)
	bbDotAmountRe = regexp.MustCompile(`([\d\.]*\d,\d{2})\s+([CD])(?:\s+([\d\.]*\d,\d{2})\s+([CD]))?\s*$`)
	bbFullProbeRe = regexp.MustCompile(`\d{2}/\d{2}/\d{4}\s+\d{4}\s+\d{5,8}`)
	bbTabularRe   = regexp.MustCompile(`^(\d{2}/\d{2}/\d{4})\s+(\d{4})\s+(\d{5,8})\s+(.*?)\s*(\S+)\s+([CD])(?:\s+([\d\.]*\d,\d{2})\s+([CD]))?\s*$`)
	bbLegacyRe    = regexp.MustCompile(`^(\d{2}/\d{2}/\d{4})\s+(.+)\s+([\d\.]*\d,\d{2})\s+([CD])\s*$`)
	bbCompactRe   = regexp.MustCompile(`(\d{2}/\d{2}/\d{3,4})\s+\d+\s+(?:\d+\s+)?(.*?)\s+([\d\.]+,\d{2})\s*\(([+\-])\)`)
	bbReceiptRe   = regexp.MustCompile(`^([\d\.]+,\d{2})\s*\(([+\-])\)\s+(\d{2}/\d{2}/\d{4})\s+(.+)$`)
	bbSignedAmtRe = regexp.MustCompile(`([\d\.]+,\d{2})\s*\(([+\-])\)`)
	bbAnyDateRe   = regexp.MustCompile(`\d{2}/\d{2}/\d{4}`)
	bbDateOnlyRe  = regexp.MustCompile(`^(\d{2}/\d{2}/\d{4})\s*$`)
	bbDatePrefRe  = regexp.MustCompile(`^(\d{2}/\d{2}/\d{4})\s+(.*)`)
	bbDocTokenRe  = regexp.MustCompile(`^[\d\.\-X]{6,}$`)
	bbShortTailRe = regexp.MustCompile(`\.(\d{1,2})$`)
	bbStrictAmtRe = regexp.MustCompile(`^\d{1,3}(?:\.\d{3})*,\d{2}$`)

	bbDotSkip     = []string{"SALDO", "DATA", "HISTORICO", "MOD.", "EXTRATO", "CONTA CORRENTE", "AGENCIA", "LIM. ESPECIAL", "BLOQUEADO", "DISPONIVEL", "CPMF", "VENCIMENTO", "OURO EMPRESARIAL"}
	bbG331Stop    = []string{"SALDO", "S A L D O", "DOCUMENTO", "VALOR", "AGENCIA"}
	bbHeaderWords = []string{"DOCUMENTO", "DATA", "LANCAMENTO"}
	bbSimpleSkip  = []string{"DOCUMENTO", "DATA", "SALDO", "AGENCIA", "LANCAMENTO", "HISTORICO", "VALOR", "DIA", "LOTE"}
)

// BB reads Banco do Brasil statements. The sub-layout is picked per page:
// G331 monthly, "Mod. 0.51" dot-dated, tabular with agency and batch codes,
// or the receipt style with (+)/(-) signs.
type BB struct {
	// RendeFacil injects the automatic investment movements BB does not print.
	RendeFacil bool
}

func (b *BB) Name() string { return "bb" }

func (b *BB) ExtractPage(_ context.Context, page pdftext.Page, st State) (PageResult, State, error) {
	text := page.Text()
	lines := textLines(page)

	var res PageResult
	switch {
	case strings.Contains(text, "G331"):
		st.SubLayout = bbG331
		res = bbExtractG331(lines)
		if len(res.Records) == 0 {
			res, st = smartExtract(page, st)
		}
	case bbDotDateRe.MatchString(text):
		st.SubLayout = bbDotDate
		res = bbExtractDotDate(lines)
	case bbHasFullFormat(lines):
		st.SubLayout = bbTabular
		res, st = bbExtractTabular(lines, st)
	default:
		st.SubLayout = bbReceipt
		res, st = bbExtractReceipt(lines, st)
	}
	if n := len(res.Records); n > 0 {
		st.LastYear = res.Records[n-1].Date.Year()
	}
	return res, st, nil
}

func bbSigned(raw, dc string) decimal.Decimal {
	return signDC(brnum.ParseAmount(raw), dc)
}

func bbExtractG331(lines []string) PageResult {
	var res PageResult
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		folded := brnum.Fold(line)

		if strings.Contains(line, "S A L D O") || strings.Contains(folded, "SALDO ATUAL") {
			if ms := bbMoneyDCRe.FindAllStringSubmatch(line, -1); ms != nil {
				last := ms[len(ms)-1]
				res.BalanceEnd = domain.Ptr(bbSigned(last[1], last[2]))
			}
			continue
		}
		if strings.Contains(folded, "SALDO ANTERIOR") {
			if m := bbMoneyDCRe.FindStringSubmatch(line); m != nil {
				res.BalanceStart = domain.Ptr(bbSigned(m[1], m[2]))
			}
			continue
		}

		loc := bbG331TxRe.FindStringSubmatchIndex(line)
		if loc == nil {
			continue
		}
		m := bbG331TxRe.FindStringSubmatch(line)
		date, ok := parseDate(m[1])
		if !ok {
			continue
		}
		memo := joinMemo(line[:loc[0]], m[4])

		j := i + 1
		for ; j < len(lines); j++ {
			next := lines[j]
			if bbAnyDateRe.MatchString(next) {
				break
			}
			if brnum.ContainsFold(next, bbG331Stop...) {
				break
			}
			memo = joinMemo(memo, next)
		}
		i = j - 1

		rec := domain.RawRecord{Date: date, Amount: bbSigned(m[5], m[6]), Memo: memo}
		if m[7] != "" {
			bal := bbSigned(m[7], m[8])
			rec.RowBalance = &bal
			res.BalanceEnd = domain.Ptr(bal)
		}
		res.Records = append(res.Records, rec)
	}
	return res
}

func bbExtractDotDate(lines []string) PageResult {
	var res PageResult
	current := -1
	for _, line := range lines {
		m := bbDotLineRe.FindStringSubmatch(line)
		if m == nil {
			if current >= 0 && !brnum.ContainsFold(line, bbDotSkip...) {
				appendMemo(&res.Records[current], line)
			}
			continue
		}

		date, ok := parseDate(m[1])
		rest := m[2]
		am := bbDotAmountRe.FindStringSubmatchIndex(rest)
		if brnum.ContainsFold(rest, "SALDO ANTERIOR") {
			if am != nil {
				res.BalanceStart = domain.Ptr(bbSigned(rest[am[2]:am[3]], rest[am[4]:am[5]]))
			}
			current = -1
			continue
		}
		if !ok || am == nil {
			current = -1
			continue
		}

		rec := domain.RawRecord{
			Date:   date,
			Amount: bbSigned(rest[am[2]:am[3]], rest[am[4]:am[5]]),
			Memo:   strings.TrimSpace(rest[:am[0]]),
		}
		if am[6] >= 0 {
			bal := bbSigned(rest[am[6]:am[7]], rest[am[8]:am[9]])
			rec.RowBalance = &bal
			res.BalanceEnd = domain.Ptr(bal)
		}
		res.Records = append(res.Records, rec)
		current = len(res.Records) - 1
	}
	return res
}

func bbHasFullFormat(lines []string) bool {
	for i, l := range lines {
		if i >= 30 {
			break
		}
		if bbFullProbeRe.MatchString(l) {
			return true
		}
	}
	return false
}

// bbBalanceLine harvests opening and closing balances from summary lines.
func bbBalanceLine(line string, res *PageResult) bool {
	folded := brnum.Fold(line)
	isStart := strings.Contains(folded, "SALDO ANTERIOR")
	isEnd := strings.Contains(line, "S A L D O") || strings.Contains(folded, "SALDO ATUAL") || strings.Contains(folded, "SALDO FINAL")
	if !isStart && !isEnd {
		return false
	}
	if ms := bbMoneyDCRe.FindAllStringSubmatch(line, -1); ms != nil {
		last := ms[len(ms)-1]
		v := bbSigned(last[1], last[2])
		if isStart {
			res.BalanceStart = &v
		} else {
			res.BalanceEnd = &v
		}
	}
	return true
}

func bbExtractTabular(lines []string, st State) (PageResult, State) {
	var res PageResult
	for _, line := range lines {
		if bbBalanceLine(line, &res) {
			continue
		}
		if brnum.ContainsFold(line, bbHeaderWords...) {
			continue
		}
		if rec, ok := bbTabularLine(line); ok {
			res.Records = append(res.Records, rec)
			st.LastYear = rec.Date.Year()
			continue
		}
		if rec, ok := bbLegacyLine(line); ok {
			res.Records = append(res.Records, rec)
			st.LastYear = rec.Date.Year()
			continue
		}
		if rec, ok := bbCompactLine(line, st.LastYear); ok {
			res.Records = append(res.Records, rec)
			st.LastYear = rec.Date.Year()
		}
	}
	return res, st
}

// bbTabularLine parses "date agency batch description doc amount D|C
// [balance D|C]". The document number is kept in the memo and repaired when
// text extraction fused it with the amount.
func bbTabularLine(line string) (domain.RawRecord, bool) {
	m := bbTabularRe.FindStringSubmatch(line)
	if m == nil || IsSummary(m[4]) {
		return domain.RawRecord{}, false
	}
	date, ok := parseDate(m[1])
	if !ok {
		return domain.RawRecord{}, false
	}

	desc, token := strings.TrimSpace(m[4]), m[5]
	var doc, amount string
	switch {
	case bbStrictAmtRe.MatchString(token):
		amount = token
		if f := strings.Fields(desc); len(f) > 1 && bbDocTokenRe.MatchString(f[len(f)-1]) {
			doc = f[len(f)-1]
		}
	default:
		var fused bool
		doc, amount, fused = splitFusedDocAmount(token)
		if !fused {
			return domain.RawRecord{}, false
		}
		desc = joinMemo(desc, doc)
	}

	rec := domain.RawRecord{Date: date, Amount: bbSigned(amount, m[6]), Memo: desc, DocID: doc}
	if m[7] != "" {
		bal := bbSigned(m[7], m[8])
		rec.RowBalance = &bal
	}
	return rec, true
}

// splitFusedDocAmount separates "603.935.000.011.9131.256,68" into the
// document "603.935.000.011.913" and the amount "1.256,68": the first dot
// group longer than three digits marks the seam.
func splitFusedDocAmount(token string) (doc, amount string, ok bool) {
	comma := strings.LastIndex(token, ",")
	if comma < 0 || len(token)-comma != 3 {
		return "", "", false
	}
	groups := strings.Split(token[:comma], ".")
	for i := 1; i < len(groups); i++ {
		if len(groups[i]) <= 3 {
			continue
		}
		doc = strings.Join(groups[:i], ".") + "." + groups[i][:3]
		head := groups[i][3:]
		amount = strings.Join(append([]string{head}, groups[i+1:]...), ".") + token[comma:]
		if !bbStrictAmtRe.MatchString(amount) {
			return "", "", false
		}
		return doc, amount, true
	}
	return "", "", false
}

// bbLegacyLine parses a D|C line with a greedy description. A document
// number whose last group lost digits to the amount ("...361.55 19.000,00")
// gets them back while the remaining amount stays well formed.
func bbLegacyLine(line string) (domain.RawRecord, bool) {
	var bal *decimal.Decimal
	if pairs := bbMoneyDCRe.FindAllStringSubmatchIndex(line, -1); len(pairs) >= 2 {
		last := pairs[len(pairs)-1]
		if strings.TrimSpace(line[last[1]:]) == "" {
			v := bbSigned(line[last[2]:last[3]], line[last[4]:last[5]])
			bal = &v
			line = strings.TrimSpace(line[:last[0]])
		}
	}

	m := bbLegacyRe.FindStringSubmatch(line)
	if m == nil || IsSummary(m[2]) {
		return domain.RawRecord{}, false
	}
	date, ok := parseDate(m[1])
	if !ok {
		return domain.RawRecord{}, false
	}

	desc, amount := stripLeadingCodes(strings.TrimSpace(m[2])), m[3]
	desc, amount = repairShortDocTail(desc, amount)

	rec := domain.RawRecord{Date: date, Amount: bbSigned(amount, m[4]), Memo: desc, RowBalance: bal}
	if f := strings.Fields(desc); len(f) > 1 && bbDocTokenRe.MatchString(f[len(f)-1]) {
		rec.DocID = f[len(f)-1]
	}
	return rec, true
}

func repairShortDocTail(desc, amount string) (string, string) {
	m := bbShortTailRe.FindStringSubmatch(desc)
	if m == nil {
		return desc, amount
	}
	need := 3 - len(m[1])
	digits := 0
	for digits < len(amount) && amount[digits] >= '0' && amount[digits] <= '9' {
		digits++
	}
	if need <= 0 || digits <= need {
		return desc, amount
	}
	moved, rest := amount[:need], strings.TrimPrefix(amount[need:], ".")
	if !bbStrictAmtRe.MatchString(rest) {
		return desc, amount
	}
	return desc + moved, rest
}

// stripLeadingCodes drops agency and batch numbers in front of the history.
func stripLeadingCodes(desc string) string {
	f := strings.Fields(desc)
	i := 0
	for i < len(f)-1 && isDigits(f[i]) {
		i++
	}
	return strings.Join(f[i:], " ")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// bbCompactLine parses "DD/MM/202 batch [doc] description amount (+|-)".
// A nine-character date is completed with the last digit of lastYear.
func bbCompactLine(line string, lastYear int) (domain.RawRecord, bool) {
	m := bbCompactRe.FindStringSubmatch(line)
	if m == nil {
		return domain.RawRecord{}, false
	}
	ds := m[1]
	if len(ds) == 9 {
		if lastYear == 0 {
			lastYear = time.Now().Year()
		}
		y := strconv.Itoa(lastYear)
		ds += y[len(y)-1:]
	}
	date, ok := parseDate(ds)
	if !ok {
		return domain.RawRecord{}, false
	}
	return domain.RawRecord{Date: date, Amount: bbSigned(m[3], m[4]), Memo: strings.TrimSpace(m[2])}, true
}

func bbExtractReceipt(lines []string, st State) (PageResult, State) {
	var res PageResult
	add := func(rec domain.RawRecord) {
		res.Records = append(res.Records, rec)
		st.LastYear = rec.Date.Year()
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if bbBalanceLine(line, &res) {
			continue
		}
		if rec, ok := bbCompactLine(line, st.LastYear); ok {
			add(rec)
			continue
		}
		if m := bbReceiptRe.FindStringSubmatch(line); m != nil {
			if date, ok := parseDate(m[3]); ok {
				add(domain.RawRecord{Date: date, Amount: bbSigned(m[1], m[2]), Memo: strings.TrimSpace(m[4])})
				continue
			}
		}

		if m := bbDateOnlyRe.FindStringSubmatch(line); m != nil {
			date, ok := parseDate(m[1])
			if !ok {
				continue
			}
			var parts []string
			j := i + 1
			found := false
			for ; j < len(lines) && j < i+6; j++ {
				next := lines[j]
				if leadDateRe.MatchString(next) {
					break
				}
				if loc := bbSignedAmtRe.FindStringSubmatchIndex(next); loc != nil {
					parts = append(parts, next[:loc[0]])
					if memo := joinMemo(parts...); memo != "" {
						add(domain.RawRecord{Date: date, Amount: bbSigned(next[loc[2]:loc[3]], next[loc[4]:loc[5]]), Memo: memo})
					}
					found = true
					j++
					break
				}
				parts = append(parts, next)
			}
			if found {
				i = j - 1
			}
			continue
		}

		m := bbDatePrefRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if rec, ok := bbLegacyLine(line); ok {
			add(rec)
			continue
		}
		if brnum.ContainsFold(m[2], bbSimpleSkip...) {
			continue
		}
		date, ok := parseDate(m[1])
		if !ok {
			continue
		}
		desc := strings.TrimSpace(m[2])
		if loc := bbSignedAmtRe.FindStringSubmatchIndex(desc); loc != nil {
			if memo := strings.TrimSpace(desc[:loc[0]]); memo != "" {
				add(domain.RawRecord{Date: date, Amount: bbSigned(desc[loc[2]:loc[3]], desc[loc[4]:loc[5]]), Memo: memo})
			}
			continue
		}
		if i+1 < len(lines) {
			next := lines[i+1]
			if loc := bbSignedAmtRe.FindStringSubmatchIndex(next); loc != nil {
				add(domain.RawRecord{Date: date, Amount: bbSigned(next[loc[2]:loc[3]], next[loc[4]:loc[5]]), Memo: joinMemo(desc, next[:loc[0]])})
				i++
			}
		}
	}
	return res, st
}

// Finish injects the automatic Rende Fácil movements when enabled: every day
// but the last returns to the opening balance, the last day closes on the
// declared closing balance.
func (b *BB) Finish(res *Extraction) {
	if !b.RendeFacil || len(res.Records) == 0 || res.Balance.Start == nil || res.Balance.End == nil {
		return
	}
	start, end := *res.Balance.Start, *res.Balance.End
	sort.SliceStable(res.Records, func(i, j int) bool { return res.Records[i].Date.Before(res.Records[j].Date) })

	var days []time.Time
	net := map[time.Time]decimal.Decimal{}
	for _, r := range res.Records {
		if _, ok := net[r.Date]; !ok {
			days = append(days, r.Date)
		}
		net[r.Date] = net[r.Date].Add(r.Amount)
	}

	tolerance := decimal.NewFromFloat(0.01)
	running := start
	var synthetic []domain.RawRecord
	for i, day := range days {
		target := start
		if i == len(days)-1 {
			target = end
		}
		after := running.Add(net[day])
		if after.Sub(target).Abs().GreaterThan(tolerance) {
			synthetic = append(synthetic, domain.RawRecord{Date: day, Amount: target.Sub(after), Memo: rendeFacil})
			running = target
		} else {
			running = after
		}
	}
	if len(synthetic) == 0 {
		return
	}
	res.Records = append(res.Records, synthetic...)
	sort.SliceStable(res.Records, func(i, j int) bool { return res.Records[i].Date.Before(res.Records[j].Date) })
}
