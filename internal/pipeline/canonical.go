package pipeline

import (
	"path/filepath"
	"strings"

	"github.com/dvloznov/statement-reconciler/internal/domain"
)

// Canonicalize converts extracted records into UnifiedTransactions: amounts
// rounded to cents, memos trimmed, a deterministic FITID when the extractor
// supplied none. Rows that round to zero are dropped.
func Canonicalize(records []domain.RawRecord) []domain.UnifiedTransaction {
	txs := make([]domain.UnifiedTransaction, 0, len(records))
	for _, r := range records {
		amount := r.Amount.Round(2)
		if amount.IsZero() {
			continue
		}
		memo := strings.Join(strings.Fields(r.Memo), " ")
		fitid := r.FITID
		if fitid == "" {
			fitid = domain.NewFITID(r.Date, amount, memo)
		}
		id := r.InternalID
		tx := domain.UnifiedTransaction{
			Date:       r.Date,
			Amount:     amount,
			Memo:       memo,
			Type:       domain.TypeOf(amount),
			DocID:      r.DocID,
			FITID:      fitid,
			InternalID: &id,
		}
		if r.SourceFile != "" {
			tx.SourceFile = filepath.Base(r.SourceFile)
		}
		txs = append(txs, tx)
	}
	return txs
}
