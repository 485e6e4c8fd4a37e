package bigquery

import (
	"encoding/json"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/reconcile"
)

// NewRunRow summarises a finished reconciliation.
func NewRunRow(runID string, started time.Time, ledger *domain.LedgerResult, rep reconcile.Report, opts reconcile.Options) *RunRow {
	m := rep.Metrics
	row := &RunRow{
		RunID:              runID,
		StartedTS:          started,
		FinishedTS:         bigquery.NullTimestamp{Timestamp: time.Now(), Valid: true},
		LedgerCount:        int64(m.LedgerCount),
		BankCount:          int64(m.BankCount),
		Matched:            int64(m.Matched),
		Combinatorial:      int64(m.Combinatorial),
		CombinatorialCount: int64(m.CombinatorialCount),
		UnmatchedLedger:    int64(m.UnmatchedLedger),
		UnmatchedBank:      int64(m.UnmatchedBank),
		InitialGap:         m.InitialGap.Rat(),
		FinalGap:           m.FinalGap.Rat(),
	}
	if ledger != nil {
		row.LedgerFile = ledger.File
		row.Company = nullString(ledger.Company)
	}
	if raw, err := json.Marshal(opts); err == nil {
		row.Options = bigquery.NullJSON{JSONVal: string(raw), Valid: true}
	}
	return row
}

// ReconciledRowsFromReport flattens the unified view of a run.
func ReconciledRowsFromReport(runID string, rep reconcile.Report) []*ReconciledRow {
	rows := make([]*ReconciledRow, 0, len(rep.Rows))
	for i, v := range rep.Rows {
		rows = append(rows, &ReconciledRow{
			RunID:       runID,
			RowNo:       int64(i),
			TxDate:      civil.DateOf(v.Date),
			ClusterDate: civil.DateOf(v.ClusterDate),
			Amount:      v.Amount.Rat(),
			Memo:        v.Memo,
			Source:      string(v.Source),
			Status:      string(v.Status),
			GroupID:     v.GroupID,
			SourceFile:  nullString(v.SourceFile),
		})
	}
	return rows
}

// StatementRowFromResult records one extracted file.
func StatementRowFromResult(statementID, checksum string, res domain.FileResult) *StatementRow {
	return &StatementRow{
		StatementID:       statementID,
		Checksum:          checksum,
		FileName:          res.File,
		Layout:            nullString(res.Layout),
		Method:            string(res.Method),
		BankID:            nullString(res.AccountInfo.BankID),
		Branch:            nullString(res.AccountInfo.Branch),
		Account:           nullString(res.AccountInfo.Account),
		OpeningBalance:    ratOrNil(res.Balance.Start),
		ClosingBalance:    ratOrNil(res.Balance.End),
		Verdict:           string(res.Validation.Verdict),
		ValidationMessage: nullString(res.Validation.Message),
		AutoCorrected:     nullString(res.Validation.AutoCorrected),
		ErrorMessage:      nullString(res.Error),
		CreatedTS:         time.Now(),
	}
}

// BankTransactionRowsFromResult maps the canonical transactions of a file.
func BankTransactionRowsFromResult(statementID string, res domain.FileResult) []*BankTransactionRow {
	rows := make([]*BankTransactionRow, 0, len(res.Transactions))
	for _, tx := range res.Transactions {
		row := &BankTransactionRow{
			StatementID: statementID,
			FITID:       tx.FITID,
			TxDate:      civil.DateOf(tx.Date),
			Amount:      tx.Amount.Rat(),
			Memo:        tx.Memo,
			Type:        string(tx.Type),
			DocID:       nullString(tx.DocID),
			SourceFile:  nullString(tx.SourceFile),
		}
		if tx.InternalID != nil {
			row.InternalID = bigquery.NullInt64{Int64: int64(*tx.InternalID), Valid: true}
		}
		rows = append(rows, row)
	}
	return rows
}

// Transaction converts a stored row back to a canonical transaction.
func (r *BankTransactionRow) Transaction() domain.UnifiedTransaction {
	tx := domain.UnifiedTransaction{
		Date:       r.TxDate.In(time.UTC),
		Amount:     ratToDecimal(r.Amount),
		Memo:       r.Memo,
		Type:       domain.TxType(r.Type),
		DocID:      r.DocID.StringVal,
		FITID:      r.FITID,
		SourceFile: r.SourceFile.StringVal,
	}
	if r.InternalID.Valid {
		id := int(r.InternalID.Int64)
		tx.InternalID = &id
	}
	return tx
}

// ViewRow converts a stored row back to its unified view form.
func (r *ReconciledRow) ViewRow() reconcile.ViewRow {
	return reconcile.ViewRow{
		Date:        r.TxDate.In(time.UTC),
		ClusterDate: r.ClusterDate.In(time.UTC),
		Amount:      ratToDecimal(r.Amount),
		Memo:        r.Memo,
		Source:      domain.Side(r.Source),
		Status:      reconcile.Status(r.Status),
		GroupID:     r.GroupID,
		SourceFile:  r.SourceFile.StringVal,
	}
}

// RunSummary is the API shape of a stored run.
type RunSummary struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	LedgerFile string            `json:"ledger_file"`
	Company    string            `json:"company,omitempty"`
	Metrics    reconcile.Metrics `json:"metrics"`
}

// Summary converts a stored run for display.
func (r *RunRow) Summary() RunSummary {
	return RunSummary{
		RunID:      r.RunID,
		StartedAt:  r.StartedTS,
		LedgerFile: r.LedgerFile,
		Company:    r.Company.StringVal,
		Metrics: reconcile.Metrics{
			LedgerCount:        int(r.LedgerCount),
			BankCount:          int(r.BankCount),
			Matched:            int(r.Matched),
			Combinatorial:      int(r.Combinatorial),
			CombinatorialCount: int(r.CombinatorialCount),
			UnmatchedLedger:    int(r.UnmatchedLedger),
			UnmatchedBank:      int(r.UnmatchedBank),
			InitialGap:         ratToDecimal(r.InitialGap),
			FinalGap:           ratToDecimal(r.FinalGap),
		},
	}
}

func ratToDecimal(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigRat(r, 2)
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func ratOrNil(d *decimal.Decimal) *big.Rat {
	if d == nil {
		return nil
	}
	return d.Rat()
}
