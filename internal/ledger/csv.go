// Package ledger reads the accounting side of a reconciliation: the
// "Consulta de lançamentos" CSV export and the running-balance ledger PDF.
package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/dvloznov/statement-reconciler/internal/brnum"
	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/logger"
)

// Column positions in the ledger export.
const (
	colTxID          = 0
	colKey           = 1
	colDate          = 2
	colDebitAccount  = 3
	colCreditAccount = 7
	colAmount        = 11
	colDescription   = 15

	minColumns = colDescription + 1

	// Title, blank line and column header. Exports that carry extra
	// preamble lines are filtered by the column count and date checks.
	preambleLines = 3
)

// Options tune ledger parsing.
type Options struct {
	// SubjectAccount overrides the inferred bank account code.
	SubjectAccount string
}

type csvEntry struct {
	row    domain.LedgerRow
	debit  string
	credit string
}

// ParseCSV reads a latin1, ';' separated ledger export. Rows are signed from
// the subject account's point of view: debit to the subject is an inflow,
// credit an outflow.
func ParseCSV(ctx context.Context, r io.Reader, name string, opts Options) (*domain.LedgerResult, error) {
	log := logger.FromContext(ctx)

	raw, err := io.ReadAll(charmap.ISO8859_1.NewDecoder().Reader(r))
	if err != nil {
		return nil, fmt.Errorf("ParseCSV: %w: reading %s: %v", domain.ErrParse, name, err)
	}
	lines := strings.Split(strings.ReplaceAll(string(raw), "\r\n", "\n"), "\n")

	res := &domain.LedgerResult{File: name, Rows: []domain.LedgerRow{}}
	for i := 0; i < len(lines) && i <= preambleLines && res.Company == ""; i++ {
		res.Company = companyName(lines[i])
	}
	if len(lines) <= preambleLines {
		return res, nil
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(lines[preambleLines:], "\n")))
	reader.Comma = ';'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var entries []csvEntry
	var skipped int
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ParseCSV: %w: %s: %v", domain.ErrParse, name, err)
		}
		if len(rec) < minColumns {
			continue
		}
		entry, ok := parseCSVRow(rec, name)
		if !ok {
			skipped++
			continue
		}
		entries = append(entries, entry)
	}

	subject := opts.SubjectAccount
	if subject == "" {
		subject = subjectAccount(entries)
	}
	res.SubjectAccount = subject

	for i, e := range entries {
		row := e.row
		switch {
		case subject != "" && e.debit == subject:
			row.Amount = row.Amount.Abs()
		case subject != "" && e.credit == subject:
			row.Amount = row.Amount.Abs().Neg()
		}
		id := i
		row.InternalID = &id
		res.Rows = append(res.Rows, row)
	}

	log.Info().
		Str("ledger", name).
		Str("subject_account", subject).
		Int("rows", len(res.Rows)).
		Int("skipped", skipped).
		Msg("Ledger CSV parsed")
	return res, nil
}

func parseCSVRow(rec []string, name string) (csvEntry, bool) {
	date, ok := brnum.ParseDate(rec[colDate], "%d/%m/%Y")
	if !ok {
		return csvEntry{}, false
	}
	amount, ok := brnum.ParseAmountOK(rec[colAmount])
	if !ok {
		return csvEntry{}, false
	}
	return csvEntry{
		row: domain.LedgerRow{
			Date:        date,
			Amount:      amount,
			Description: strings.TrimSpace(rec[colDescription]),
			Source:      name,
			TxID:        strings.TrimSpace(rec[colTxID]),
			Key:         strings.TrimSpace(rec[colKey]),
		},
		debit:  accountCode(rec[colDebitAccount]),
		credit: accountCode(rec[colCreditAccount]),
	}, true
}

func accountCode(s string) string {
	s = strings.TrimSpace(s)
	switch s {
	case "0", "0.0", "nan":
		return ""
	}
	return s
}

// subjectAccount returns the most frequent account code across the debit
// and credit columns. Ties go to the code seen first.
func subjectAccount(entries []csvEntry) string {
	counts := make(map[string]int)
	var order []string
	see := func(code string) {
		if code == "" {
			return
		}
		if counts[code] == 0 {
			order = append(order, code)
		}
		counts[code]++
	}
	// Debit column first, then credit, the order the export is read in.
	for _, e := range entries {
		see(e.debit)
	}
	for _, e := range entries {
		see(e.credit)
	}

	best := ""
	for _, code := range order {
		if counts[code] > counts[best] {
			best = code
		}
	}
	return best
}

// companyName reads "Consulta de lançamentos da empresa 123 - ACME LTDA".
func companyName(line string) string {
	line = strings.TrimSpace(line)
	lower := strings.ToLower(line)
	if !strings.Contains(lower, "empresa") {
		return ""
	}
	parts := strings.SplitN(line, " - ", 2)
	if len(parts) < 2 {
		return ""
	}
	name := strings.TrimSpace(parts[1])
	head := parts[0]
	idx := strings.LastIndex(strings.ToLower(head), "empresa")
	if idx < 0 {
		return name
	}
	if code := strings.TrimSpace(head[idx+len("empresa"):]); code != "" {
		return code + " - " + name
	}
	return name
}
