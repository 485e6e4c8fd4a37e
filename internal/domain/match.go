package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side tells which book a reconciliation row came from.
type Side string

const (
	SideLedger Side = "ledger"
	SideBank   Side = "bank"
)

// MatchKind is how a group was formed.
type MatchKind string

const (
	MatchExact         MatchKind = "exact"
	MatchTolerant      MatchKind = "tolerant"
	MatchCombinatorial MatchKind = "combinatorial"
)

// UnmatchedGroup is the group id given to rows without a match.
const UnmatchedGroup = "-1"

// Row is a transaction on either side of a reconciliation.
type Row struct {
	Date       time.Time       `json:"date"`
	Amount     decimal.Decimal `json:"amount"`
	Memo       string          `json:"memo"`
	Side       Side            `json:"source"`
	SourceFile string          `json:"source_file,omitempty"`
	InternalID *int            `json:"internal_id,omitempty"`
	GroupID    string          `json:"group_id,omitempty"`
	Kind       MatchKind       `json:"kind,omitempty"`
}

// MatchGroup links one bank row to one or more ledger rows. Members are
// indexes into the reconciler's sorted tables; groups do not own rows.
type MatchGroup struct {
	ID     string    `json:"id"`
	Kind   MatchKind `json:"kind"`
	Bank   []int     `json:"bank"`
	Ledger []int     `json:"ledger"`
}

// RowsFromTransactions converts bank transactions to reconciliation rows.
func RowsFromTransactions(txs []UnifiedTransaction) []Row {
	rows := make([]Row, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, Row{
			Date:       tx.Date,
			Amount:     tx.Amount,
			Memo:       tx.Memo,
			Side:       SideBank,
			SourceFile: tx.SourceFile,
			InternalID: tx.InternalID,
		})
	}
	return rows
}

// RowsFromLedger converts ledger entries to reconciliation rows.
func RowsFromLedger(entries []LedgerRow) []Row {
	rows := make([]Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, Row{
			Date:       e.Date,
			Amount:     e.Amount,
			Memo:       e.Description,
			Side:       SideLedger,
			SourceFile: e.Source,
			InternalID: e.InternalID,
		})
	}
	return rows
}
