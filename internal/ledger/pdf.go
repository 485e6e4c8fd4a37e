package ledger

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-reconciler/internal/brnum"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/logger"
	"github.com/dvloznov/statement-reconciler/internal/pdftext"
)

var (
	dateHeaderRe  = regexp.MustCompile(`^(\d{2}/\d{2}/\d{4})$`)
	rowBalanceRe  = regexp.MustCompile(`^([\d\.]+,\d{2})([DC])`)
	anyBalanceRe  = regexp.MustCompile(`([\d\.]+,\d{2})([DC])\b`)
	skipLineWords = []string{"Total", "TRANSPORTE"}
)

// ParsePDF reads a running-balance ledger from every page of doc.
func ParsePDF(ctx context.Context, doc pdftext.Document, name string) (*domain.LedgerResult, error) {
	var lines []string
	for i := 1; i <= doc.NumPages(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ParsePDF: %s: %w", name, err)
		}
		page, err := doc.Page(i)
		if err != nil {
			return nil, fmt.Errorf("ParsePDF: %s: %w", name, err)
		}
		lines = append(lines, pdftext.TextLines(page)...)
	}

	res := ParsePDFText(lines, name)
	log := logger.FromContext(ctx)
	log.Info().Str("ledger", name).Int("rows", len(res.Rows)).Msg("Ledger PDF parsed")
	return res, nil
}

// ParsePDFText rebuilds movements from the balance printed at the start of
// each row: the amount is the change from the previous balance. Debit
// balances (D) are positive, credit balances (C) negative. Date-only lines
// set the date of the rows below them and lines without a leading balance
// extend the previous row's description.
func ParsePDFText(lines []string, name string) *domain.LedgerResult {
	res := &domain.LedgerResult{File: name, Rows: []domain.LedgerRow{}}

	var current time.Time
	prev := decimal.Zero
	lastRow := -1

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if strings.Contains(line, "Saldo anterior") {
			if m := anyBalanceRe.FindStringSubmatch(line); m != nil {
				prev = signedBalance(m[1], m[2])
			}
			continue
		}
		if containsAny(line, skipLineWords) {
			continue
		}

		if m := dateHeaderRe.FindStringSubmatch(line); m != nil {
			if d, ok := brnum.ParseDate(m[1], "%d/%m/%Y"); ok {
				current = d
			}
			continue
		}

		m := rowBalanceRe.FindStringSubmatch(line)
		if m == nil {
			if lastRow >= 0 {
				res.Rows[lastRow].Description = strings.TrimSpace(res.Rows[lastRow].Description + " " + line)
			}
			continue
		}

		balance := signedBalance(m[1], m[2])
		amount := balance.Sub(prev)
		prev = balance
		if current.IsZero() || amount.IsZero() {
			lastRow = -1
			continue
		}

		id := len(res.Rows)
		res.Rows = append(res.Rows, domain.LedgerRow{
			Date:        current,
			Amount:      amount,
			Description: strings.TrimSpace(line[len(m[0]):]),
			Source:      name,
			InternalID:  &id,
		})
		lastRow = id
	}
	return res
}

func signedBalance(value, dc string) decimal.Decimal {
	v := brnum.ParseAmount(value)
	if dc == "C" {
		return v.Neg()
	}
	return v
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
