package domain

import "github.com/shopspring/decimal"

// Verdict is the outcome of the balance consistency check.
type Verdict string

const (
	VerdictValid         Verdict = "valid"
	VerdictInvalid       Verdict = "invalid"
	VerdictIndeterminate Verdict = "indeterminate"
)

// ValidationResult reports whether opening + sum(amounts) = closing.
type ValidationResult struct {
	Verdict       Verdict          `json:"verdict"`
	Message       string           `json:"message"`
	Gap           *decimal.Decimal `json:"gap,omitempty"`
	AutoCorrected string           `json:"auto_corrected,omitempty"`
}
