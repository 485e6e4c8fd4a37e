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

// Bradesco TOTAL line policies.
const (
	TotalRightEdge = "right-edge"
	TotalStrict    = "strict"
	TotalOff       = "off"
)

// Bradesco column geometry (x0).
const (
	bradescoDateMaxX    = 100
	bradescoDescMinX    = 95
	bradescoDescMaxX    = 330
	bradescoNumMinX     = 320
	bradescoCreditMinX  = 330
	bradescoDebitMinX   = 410
	bradescoAmountMaxX  = 505
	bradescoBalanceMinX = 510
)

var (
	bradescoRangeRe    = regexp.MustCompile(`Entre\s+(\d{2}/\d{2}/\d{4})\s+e\s+(\d{2}/\d{2}/\d{4})`)
	bradescoStartBalRe = regexp.MustCompile(`(\d{2}/\d{2}/\d{4})\s+SALDO ANTERIOR\s+(-?[\d\.,]+)`)
	bradescoNumRe      = regexp.MustCompile(`^-?[\d\.,]+$`)
	bradescoDateRe     = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}`)
)

// Bradesco reads the word geometry: credit and debit columns are told apart
// by x position, the date is only printed on the first row of each day and
// descriptions wrap onto following rows.
type Bradesco struct {
	// TotalPolicy is TotalRightEdge (default), TotalStrict or TotalOff.
	TotalPolicy string
}

func (b *Bradesco) Name() string { return "bradesco" }

type bradescoNum struct {
	value decimal.Decimal
	x0    float64
	raw   string
}

func (b *Bradesco) ExtractPage(_ context.Context, page pdftext.Page, st State) (PageResult, State, error) {
	if len(page.Words()) == 0 {
		res, st := smartExtract(page, st)
		return res, st, nil
	}

	var res PageResult
	text := page.Text()

	if m := bradescoRangeRe.FindStringSubmatch(text); m != nil {
		st.PeriodStart, _ = parseDate(m[1])
		st.PeriodEnd, _ = parseDate(m[2])
	}
	if m := bradescoStartBalRe.FindStringSubmatch(text); m != nil {
		res.BalanceStart = domain.Ptr(brnum.ParseAmount(m[2]))
	}

	var current *domain.RawRecord
	flush := func() {
		if current != nil && !current.Date.IsZero() {
			res.Records = append(res.Records, *current)
		}
		current = nil
	}

	for _, line := range pdftext.GroupLines(page.Words(), 2) {
		lineText := strings.TrimSpace(line.Text())
		folded := brnum.Fold(lineText)
		if lineText == "" || strings.Contains(folded, "EXTRATO DE") || strings.Contains(folded, "SALDO ANTERIOR") || strings.Contains(folded, "LANCAMENTO") {
			continue
		}

		var nums []bradescoNum
		for _, w := range line.Words {
			if bradescoNumRe.MatchString(w.Text) && len(w.Text) > 2 && w.X0 > bradescoNumMinX {
				nums = append(nums, bradescoNum{brnum.ParseAmount(w.Text), w.X0, w.Text})
			}
		}
		desc := strings.Join(wordsBetween(line.Words, bradescoDescMinX, bradescoDescMaxX), " ")

		if b.closesPage(folded, desc, line.Words, nums) {
			flush()
			for i := len(nums) - 1; i >= 0; i-- {
				if nums[i].x0 > bradescoBalanceMinX {
					res.BalanceEnd = domain.Ptr(nums[i].value)
					break
				}
			}
			break
		}

		var dateText strings.Builder
		for _, w := range line.Words {
			if w.X0 < bradescoDateMaxX {
				dateText.WriteString(w.Text)
			}
		}
		if ds := dateText.String(); bradescoDateRe.MatchString(ds) {
			if d, ok := parseDate(ds[:10]); ok {
				st.CurrentDate = d
			}
		}

		isMoney, isBalanceOnly := false, false
		for _, n := range nums {
			if n.x0 > bradescoCreditMinX && n.x0 < bradescoAmountMaxX {
				isMoney = true
			}
		}
		if !isMoney {
			for _, n := range nums {
				if n.x0 > bradescoBalanceMinX {
					isBalanceOnly = true
				}
			}
		}

		switch {
		case isMoney:
			flush()
			rec := domain.RawRecord{Date: st.CurrentDate, Memo: desc}
			amt := nums[len(nums)-1]
			if len(nums) >= 2 && nums[len(nums)-1].x0 > bradescoBalanceMinX {
				bal := nums[len(nums)-1].value
				rec.RowBalance = &bal
				res.BalanceEnd = domain.Ptr(bal)
				amt = nums[len(nums)-2]
			}
			rec.Amount = bradescoSign(amt)
			if !st.CurrentDate.IsZero() && b.inRange(st) {
				current = &rec
			}
		case isBalanceOnly:
			flush()
			if st.PeriodEnd.IsZero() || (!st.CurrentDate.IsZero() && !st.CurrentDate.After(st.PeriodEnd)) {
				for i := len(nums) - 1; i >= 0; i-- {
					if nums[i].x0 > bradescoBalanceMinX {
						res.BalanceEnd = domain.Ptr(nums[i].value)
						break
					}
				}
			}
		default:
			if current != nil && desc != "" {
				appendMemo(current, desc)
			}
		}
	}
	flush()

	kept := res.Records[:0]
	for _, r := range res.Records {
		if !r.Amount.IsZero() {
			kept = append(kept, r)
		}
	}
	res.Records = kept
	return res, st, nil
}

// closesPage applies the TOTAL policy: a TOTAL line with a balance on the
// right edge ends the account section of the page.
func (b *Bradesco) closesPage(folded, desc string, words []pdftext.Word, nums []bradescoNum) bool {
	if b.TotalPolicy == TotalOff || !strings.Contains(folded, "TOTAL") {
		return false
	}
	rightEdge := false
	for _, w := range words {
		if w.X0 > bradescoBalanceMinX {
			rightEdge = true
		}
	}
	if !rightEdge {
		return false
	}
	if b.TotalPolicy == TotalStrict {
		return true
	}

	if strings.HasPrefix(brnum.Fold(desc), "TOTAL") {
		return true
	}
	hasDate := bradescoDateRe.MatchString(strings.TrimSpace(folded))
	hasAmount := false
	for _, n := range nums {
		if n.x0 > bradescoCreditMinX && n.x0 < bradescoAmountMaxX {
			hasAmount = true
		}
	}
	return !hasDate && !hasAmount
}

func (b *Bradesco) inRange(st State) bool {
	if !st.PeriodStart.IsZero() && st.CurrentDate.Before(st.PeriodStart) {
		return false
	}
	if !st.PeriodEnd.IsZero() && st.CurrentDate.After(st.PeriodEnd) {
		return false
	}
	return true
}

// bradescoSign makes amounts in the debit column (or printed with "-") negative.
func bradescoSign(n bradescoNum) decimal.Decimal {
	if n.x0 > bradescoDebitMinX || strings.Contains(n.raw, "-") {
		return n.value.Abs().Neg()
	}
	return n.value.Abs()
}

func wordsBetween(words []pdftext.Word, minX, maxX float64) []string {
	var out []string
	for _, w := range words {
		if w.X0 > minX && w.X0 < maxX {
			out = append(out, w.Text)
		}
	}
	return out
}

