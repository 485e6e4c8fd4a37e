package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TxType classifies a canonical transaction by the sign of its amount.
type TxType string

const (
	TxCredit TxType = "credit"
	TxDebit  TxType = "debit"
	TxOther  TxType = "other"
)

// TypeOf derives the transaction type from a signed amount.
func TypeOf(amount decimal.Decimal) TxType {
	switch amount.Sign() {
	case 1:
		return TxCredit
	case -1:
		return TxDebit
	}
	return TxOther
}

// RawRecord is one movement as read from a statement page, before
// canonicalisation. It never leaves the extraction layer.
type RawRecord struct {
	Date       time.Time
	Amount     decimal.Decimal  // credits positive, debits negative
	Memo       string
	RowBalance *decimal.Decimal // running balance printed on the row, if any
	DocID      string
	FITID      string
	InternalID int
	SourceFile string
}

// UnifiedTransaction is the canonical bank movement handed to reconciliation.
type UnifiedTransaction struct {
	Date       time.Time       `json:"date"`
	Amount     decimal.Decimal `json:"amount"`
	Memo       string          `json:"memo"`
	Type       TxType          `json:"type"`
	DocID      string          `json:"doc_id,omitempty"`
	FITID      string          `json:"fitid,omitempty"`
	InternalID *int            `json:"internal_id,omitempty"`
	SourceFile string          `json:"source_file,omitempty"`
}

// NewFITID returns the deterministic identifier for a (date, amount, memo) triple.
func NewFITID(date time.Time, amount decimal.Decimal, memo string) string {
	h := sha1.New()
	h.Write([]byte(date.Format("20060102")))
	h.Write([]byte{'|'})
	h.Write([]byte(amount.StringFixed(2)))
	h.Write([]byte{'|'})
	h.Write([]byte(strings.TrimSpace(memo)))
	return hex.EncodeToString(h.Sum(nil))
}

// BalanceInfo holds the opening and closing balances declared by a statement.
type BalanceInfo struct {
	Start *decimal.Decimal `json:"start,omitempty"`
	End   *decimal.Decimal `json:"end,omitempty"`
}

// AccountInfo identifies the account a statement belongs to.
type AccountInfo struct {
	BankID  string `json:"bank_id,omitempty"`
	Branch  string `json:"branch,omitempty"`
	Account string `json:"account,omitempty"`
	Company string `json:"company,omitempty"`
}

// Method records which extraction path produced a file's transactions.
type Method string

const (
	MethodText          Method = "text"
	MethodAutoCorrected Method = "text-auto-corrected"
	MethodOCR           Method = "ocr"
	MethodFailed        Method = "failed"
)

// FileResult is everything extraction reports for one statement file.
type FileResult struct {
	File         string               `json:"file"`
	Layout       string               `json:"layout,omitempty"`
	Method       Method               `json:"method"`
	Transactions []UnifiedTransaction `json:"transactions"`
	AccountInfo  AccountInfo          `json:"account_info"`
	Balance      BalanceInfo          `json:"balance_info"`
	Validation   ValidationResult     `json:"validation"`
	Error        string               `json:"error,omitempty"`
}

// Ptr returns a pointer to a copy of d.
func Ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
