// Package extract turns statement pages into raw transaction records. Each
// bank has its own Extractor; Parse walks a document page by page and feeds
// the trailing State of one page into the next.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/logger"
	"github.com/dvloznov/statement-reconciler/internal/pdftext"
)

// State is carried from one page to the next within a single file.
type State struct {
	CurrentDate time.Time
	Pending     *domain.RawRecord
	SubLayout   string
	LastYear    int
	PeriodStart time.Time
	PeriodEnd   time.Time
	PrevLine    string
}

// PageResult is what an extractor found on one page.
type PageResult struct {
	Records      []domain.RawRecord
	BalanceStart *decimal.Decimal
	BalanceEnd   *decimal.Decimal
	Discarded    []domain.RawRecord
}

// Extractor reads the transactions of one bank layout.
type Extractor interface {
	Name() string
	ExtractPage(ctx context.Context, page pdftext.Page, st State) (PageResult, State, error)
}

// Finisher post-processes a whole file, e.g. to fix orientation.
type Finisher interface {
	Finish(res *Extraction)
}

// AccountScanner reads account identification from page text.
type AccountScanner interface {
	ScanAccount(text string) domain.AccountInfo
}

// Extraction is the result of parsing one statement file.
type Extraction struct {
	Extractor string
	Records   []domain.RawRecord
	Balance   domain.BalanceInfo
	Discarded []domain.RawRecord
	Account   domain.AccountInfo
	Pages     int
}

// Sum returns the total of all record amounts.
func (e *Extraction) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, r := range e.Records {
		total = total.Add(r.Amount)
	}
	return total
}

// Parse runs ex over every page of doc. The first opening balance and the
// last closing balance found win. Cancellation between pages discards all
// partial results.
func Parse(ctx context.Context, ex Extractor, doc pdftext.Document, file string) (*Extraction, error) {
	log := logger.FromContext(ctx)
	res := &Extraction{Extractor: ex.Name(), Pages: doc.NumPages()}

	var st State
	for i := 1; i <= doc.NumPages(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("Parse: %s abandoned after page %d: %w", file, i-1, err)
		}
		page, err := doc.Page(i)
		if err != nil {
			return nil, fmt.Errorf("Parse: %s: %w", file, err)
		}

		pr, next, err := ex.ExtractPage(ctx, page, st)
		if err != nil {
			return nil, fmt.Errorf("Parse: %s page %d: %w", file, i, err)
		}
		st = next

		if res.Balance.Start == nil && pr.BalanceStart != nil {
			res.Balance.Start = pr.BalanceStart
		}
		if pr.BalanceEnd != nil {
			res.Balance.End = pr.BalanceEnd
		}
		res.Records = append(res.Records, pr.Records...)
		res.Discarded = append(res.Discarded, pr.Discarded...)
		mergeAccount(&res.Account, scanAccount(ex, page.Text()))

		log.Debug().Int("page", i).Int("records", len(pr.Records)).Str("extractor", ex.Name()).Msg("Page extracted")
	}
	if st.Pending != nil {
		res.Records = append(res.Records, *st.Pending)
	}

	res.Records = dedupByBalance(res.Records)
	if f, ok := ex.(Finisher); ok {
		f.Finish(res)
	}
	res.Records = dropZero(res.Records)
	for i := range res.Records {
		res.Records[i].InternalID = i
		res.Records[i].SourceFile = file
	}
	return res, nil
}

func scanAccount(ex Extractor, text string) domain.AccountInfo {
	if s, ok := ex.(AccountScanner); ok {
		return s.ScanAccount(text)
	}
	return ScanAccount(text)
}

func mergeAccount(dst *domain.AccountInfo, src domain.AccountInfo) {
	if dst.BankID == "" {
		dst.BankID = src.BankID
	}
	if dst.Branch == "" {
		dst.Branch = src.Branch
	}
	if dst.Account == "" {
		dst.Account = src.Account
	}
	if dst.Company == "" {
		dst.Company = src.Company
	}
}

// dedupByBalance collapses rows repeated by overlapping page text. Only rows
// that print a running balance are considered, since the balance pins a row
// to one physical line; repeats without a balance are kept.
func dedupByBalance(records []domain.RawRecord) []domain.RawRecord {
	type key struct {
		date    time.Time
		amount  string
		balance string
		memo    string
	}
	seen := make(map[key]bool)
	out := make([]domain.RawRecord, 0, len(records))
	for _, r := range records {
		if r.RowBalance == nil {
			out = append(out, r)
			continue
		}
		k := key{r.Date, r.Amount.StringFixed(2), r.RowBalance.StringFixed(2), strings.TrimSpace(r.Memo)}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}

func dropZero(records []domain.RawRecord) []domain.RawRecord {
	out := records[:0]
	for _, r := range records {
		if !r.Amount.IsZero() {
			out = append(out, r)
		}
	}
	return out
}
