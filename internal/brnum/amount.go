// Package brnum parses and formats the Brazilian numeric and date shapes found
// on bank statements and ledger exports.
package brnum

import (
	"strings"

	"github.com/shopspring/decimal"
)

// minusRunes are the dash characters PDF text extraction produces for a minus sign.
const minusRunes = "-–—−"

// ParseAmount parses a Brazilian formatted amount ("1.234,56", "-R$ 10,00",
// "1234.56"). Unparsable input yields zero.
func ParseAmount(s string) decimal.Decimal {
	d, _ := ParseAmountOK(s)
	return d
}

// ParseAmountOK is ParseAmount that also reports whether the input held a number.
func ParseAmountOK(s string) (decimal.Decimal, bool) {
	return ParseAmountSep(s, ",", ".")
}

// ParseAmountSep parses an amount using the given decimal and thousand
// separators. When decimalSep is "," but the input carries no comma, a single
// "." is taken as the decimal point.
func ParseAmountSep(s, decimalSep, thousandSep string) (decimal.Decimal, bool) {
	if decimalSep == "" {
		decimalSep = ","
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}

	negative := strings.ContainsAny(s, minusRunes)
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == ',':
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if strings.Trim(digits, ".,") == "" {
		return decimal.Zero, false
	}

	digits = normalizeSeparators(digits, decimalSep, thousandSep)

	d, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

func normalizeSeparators(s, decimalSep, thousandSep string) string {
	if decimalSep == "," {
		if strings.Contains(s, ",") {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		// No comma: "." is the decimal point unless several groups of three
		// digits show it is a thousand separator.
		if strings.Count(s, ".") > 1 {
			last := s[strings.LastIndex(s, ".")+1:]
			if len(last) == 3 {
				return strings.ReplaceAll(s, ".", "")
			}
			head := strings.ReplaceAll(s[:strings.LastIndex(s, ".")], ".", "")
			return head + "." + last
		}
		return s
	}

	if thousandSep != "" {
		s = strings.ReplaceAll(s, thousandSep, "")
	}
	if decimalSep != "." {
		s = strings.ReplaceAll(s, decimalSep, ".")
	}
	return s
}

// Round2 rounds to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Format renders an amount as "-1.234,56".
func Format(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac := s[:len(s)-3], s[len(s)-2:]

	var groups []string
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)

	out := strings.Join(groups, ".") + "," + frac
	if d.IsNegative() && !d.Round(2).IsZero() {
		out = "-" + out
	}
	return out
}
