package reconcile

import (
	"sort"
	"strings"

	"github.com/dvloznov/statement-reconciler/internal/brnum"
	"github.com/dvloznov/statement-reconciler/internal/domain"
)

// DedupPolicy selects how Consolidate recognises repeated rows.
type DedupPolicy string

const (
	// DedupIdentity keys rows by (source file, internal id) when both are
	// present and falls back to (date, amount, memo).
	DedupIdentity DedupPolicy = "identity"
	// DedupLegacy always keys rows by (date, amount, memo). It drops genuine
	// same-day repeats.
	DedupLegacy DedupPolicy = "legacy"
)

type identityKey struct {
	file string
	id   int
}

type contentKey struct {
	day    string
	amount string
	memo   string
}

// Consolidate concatenates tables, normalises each row, removes duplicates
// and sorts by date. Rows with equal dates keep their input order.
func Consolidate(policy DedupPolicy, tables ...[]domain.Row) []domain.Row {
	seenIdentity := make(map[identityKey]bool)
	seenContent := make(map[contentKey]bool)

	var out []domain.Row
	for _, table := range tables {
		for _, row := range table {
			row = normalizeRow(row)

			if policy != DedupLegacy && row.SourceFile != "" && row.InternalID != nil {
				k := identityKey{row.SourceFile, *row.InternalID}
				if seenIdentity[k] {
					continue
				}
				seenIdentity[k] = true
				out = append(out, row)
				continue
			}

			k := contentKey{row.Date.Format("2006-01-02"), row.Amount.StringFixed(2), row.Memo}
			if seenContent[k] {
				continue
			}
			seenContent[k] = true
			out = append(out, row)
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func normalizeRow(row domain.Row) domain.Row {
	row.Date = brnum.Day(row.Date)
	row.Amount = row.Amount.Round(2)
	row.Memo = strings.TrimSpace(row.Memo)
	return row
}
