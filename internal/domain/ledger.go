package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerRow is one accounting entry, signed from the subject account's point of view.
type LedgerRow struct {
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Source      string          `json:"source,omitempty"`
	TxID        string          `json:"tx_id,omitempty"`
	Key         string          `json:"key,omitempty"`
	InternalID  *int            `json:"internal_id,omitempty"`
}

// LedgerResult is the output of a ledger parse.
type LedgerResult struct {
	File           string      `json:"file"`
	Company        string      `json:"company,omitempty"`
	SubjectAccount string      `json:"subject_account,omitempty"`
	Rows           []LedgerRow `json:"rows"`
}
