package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

const (
	runsTable             = "reconciliation_runs"
	reconciledRowsTable   = "reconciled_rows"
	statementsTable       = "statements"
	bankTransactionsTable = "bank_transactions"
)

type RunRow struct {
	RunID      string                 `bigquery:"run_id"`      // REQUIRED
	StartedTS  time.Time              `bigquery:"started_ts"`  // REQUIRED
	FinishedTS bigquery.NullTimestamp `bigquery:"finished_ts"` // NULLABLE

	LedgerFile string              `bigquery:"ledger_file"` // NULLABLE
	Company    bigquery.NullString `bigquery:"company"`     // NULLABLE

	LedgerCount        int64 `bigquery:"ledger_count"`
	BankCount          int64 `bigquery:"bank_count"`
	Matched            int64 `bigquery:"matched"`
	Combinatorial      int64 `bigquery:"combinatorial"`
	CombinatorialCount int64 `bigquery:"combinatorial_count"`
	UnmatchedLedger    int64 `bigquery:"unmatched_ledger"`
	UnmatchedBank      int64 `bigquery:"unmatched_bank"`

	InitialGap *big.Rat `bigquery:"initial_gap"` // NUMERIC
	FinalGap   *big.Rat `bigquery:"final_gap"`   // NUMERIC

	Options bigquery.NullJSON `bigquery:"options"` // NULLABLE JSON
}

type ReconciledRow struct {
	RunID string `bigquery:"run_id"` // REQUIRED
	RowNo int64  `bigquery:"row_no"` // REQUIRED, view order

	TxDate      civil.Date `bigquery:"tx_date"`      // REQUIRED
	ClusterDate civil.Date `bigquery:"cluster_date"` // REQUIRED

	Amount *big.Rat `bigquery:"amount"` // REQUIRED NUMERIC
	Memo   string   `bigquery:"memo"`

	Source     string              `bigquery:"source"`      // ledger | bank
	Status     string              `bigquery:"status"`      // REQUIRED
	GroupID    string              `bigquery:"group_id"`    // "-1" when unmatched
	SourceFile bigquery.NullString `bigquery:"source_file"` // NULLABLE
}

type StatementRow struct {
	StatementID string `bigquery:"statement_id"` // REQUIRED
	Checksum    string `bigquery:"checksum_sha256"`
	FileName    string `bigquery:"file_name"`

	Layout bigquery.NullString `bigquery:"layout"`
	Method string              `bigquery:"method"`

	BankID  bigquery.NullString `bigquery:"bank_id"`
	Branch  bigquery.NullString `bigquery:"branch"`
	Account bigquery.NullString `bigquery:"account"`

	OpeningBalance *big.Rat `bigquery:"opening_balance"` // NULLABLE NUMERIC
	ClosingBalance *big.Rat `bigquery:"closing_balance"` // NULLABLE NUMERIC

	Verdict           string              `bigquery:"verdict"`
	ValidationMessage bigquery.NullString `bigquery:"validation_message"`
	AutoCorrected     bigquery.NullString `bigquery:"auto_corrected"`
	ErrorMessage      bigquery.NullString `bigquery:"error_message"`

	CreatedTS time.Time `bigquery:"created_ts"`
}

type BankTransactionRow struct {
	StatementID string `bigquery:"statement_id"` // REQUIRED
	FITID       string `bigquery:"fitid"`        // REQUIRED

	TxDate civil.Date `bigquery:"tx_date"` // REQUIRED
	Amount *big.Rat   `bigquery:"amount"`  // REQUIRED NUMERIC
	Memo   string     `bigquery:"memo"`
	Type   string     `bigquery:"type"`

	DocID      bigquery.NullString `bigquery:"doc_id"`
	InternalID bigquery.NullInt64  `bigquery:"internal_id"`
	SourceFile bigquery.NullString `bigquery:"source_file"`
}
