// Package layout holds the declarative bank statement descriptors and the
// registry that detects which one a statement uses.
package layout

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dvloznov/statement-reconciler/internal/brnum"
	"github.com/dvloznov/statement-reconciler/internal/domain"
)

// Column field names understood by the generic extractor.
const (
	FieldDate         = "date"
	FieldAmount       = "amount"
	FieldAmountDebit  = "amount_debit"
	FieldAmountCredit = "amount_credit"
	FieldMemo         = "memo"
	FieldType         = "type"
	FieldDocID        = "doc_id"
	FieldBalance      = "balance"
)

// Column maps a regex capture group to a semantic field.
type Column struct {
	Name       string `json:"name" mapstructure:"name"`
	MatchGroup int    `json:"match_group" mapstructure:"match_group"`
}

// BankLayout describes how to recognise and read one bank's statement.
type BankLayout struct {
	Name                    string   `json:"name" mapstructure:"name"`
	BankID                  string   `json:"bank_id" mapstructure:"bank_id"`
	Keywords                []string `json:"keywords" mapstructure:"keywords"`
	LinePattern             string   `json:"line_pattern" mapstructure:"line_pattern"`
	Columns                 []Column `json:"columns" mapstructure:"columns"`
	AmountDecimalSeparator  string   `json:"amount_decimal_separator" mapstructure:"amount_decimal_separator"`
	AmountThousandSeparator string   `json:"amount_thousand_separator" mapstructure:"amount_thousand_separator"`
	DateFormat              string   `json:"date_format" mapstructure:"date_format"`
	HasBalanceCleanup       bool     `json:"has_balance_cleanup" mapstructure:"has_balance_cleanup"`
	HeaderKeywords          []string `json:"header_keywords,omitempty" mapstructure:"header_keywords"`
	BalanceStartPattern     string   `json:"balance_start_pattern,omitempty" mapstructure:"balance_start_pattern"`
	BalanceEndPattern       string   `json:"balance_end_pattern,omitempty" mapstructure:"balance_end_pattern"`

	lineRe         *regexp.Regexp
	balanceStartRe *regexp.Regexp
	balanceEndRe   *regexp.Regexp
}

// Validate fills separator defaults, compiles every pattern and checks that
// the column map can produce a date and an amount.
func (l *BankLayout) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return &domain.ConfigError{Reason: "layout has no name"}
	}
	if len(l.Keywords) == 0 {
		return &domain.ConfigError{Path: l.Name, Reason: "layout has no keywords"}
	}
	if l.AmountDecimalSeparator == "" {
		l.AmountDecimalSeparator = ","
	}
	if l.AmountThousandSeparator == "" && l.AmountDecimalSeparator == "," {
		l.AmountThousandSeparator = "."
	}
	if l.DateFormat == "" {
		l.DateFormat = "%d/%m/%Y"
	}

	var err error
	// Transaction patterns match from the start of the line.
	if l.lineRe, err = regexp.Compile("^(?:" + l.LinePattern + ")"); err != nil || l.LinePattern == "" {
		return &domain.ConfigError{Path: l.Name, Reason: fmt.Sprintf("line_pattern does not compile: %v", err)}
	}
	if l.BalanceStartPattern != "" {
		if l.balanceStartRe, err = regexp.Compile("(?i)" + l.BalanceStartPattern); err != nil {
			return &domain.ConfigError{Path: l.Name, Reason: fmt.Sprintf("balance_start_pattern: %v", err)}
		}
	}
	if l.BalanceEndPattern != "" {
		if l.balanceEndRe, err = regexp.Compile("(?i)" + l.BalanceEndPattern); err != nil {
			return &domain.ConfigError{Path: l.Name, Reason: fmt.Sprintf("balance_end_pattern: %v", err)}
		}
	}

	groups := l.lineRe.NumSubexp()
	for _, c := range l.Columns {
		if c.MatchGroup < 1 || c.MatchGroup > groups {
			return &domain.ConfigError{Path: l.Name, Reason: fmt.Sprintf("column %q refers to group %d, pattern has %d", c.Name, c.MatchGroup, groups)}
		}
	}
	if !l.HasColumn(FieldDate) {
		return &domain.ConfigError{Path: l.Name, Reason: "columns must include date"}
	}
	if !l.HasColumn(FieldAmount) && !(l.HasColumn(FieldAmountDebit) && l.HasColumn(FieldAmountCredit)) {
		return &domain.ConfigError{Path: l.Name, Reason: "columns must include amount or amount_debit and amount_credit"}
	}
	return nil
}

// HasColumn reports whether a field is mapped.
func (l *BankLayout) HasColumn(name string) bool {
	return l.Group(name) > 0
}

// Group returns the capture group for a field, or 0.
func (l *BankLayout) Group(name string) int {
	for _, c := range l.Columns {
		if c.Name == name {
			return c.MatchGroup
		}
	}
	return 0
}

// LineRegexp returns the compiled transaction pattern. Validate must have run.
func (l *BankLayout) LineRegexp() *regexp.Regexp { return l.lineRe }

// BalanceStartRegexp returns the compiled, case-insensitive opening balance
// pattern, or nil.
func (l *BankLayout) BalanceStartRegexp() *regexp.Regexp { return l.balanceStartRe }

// BalanceEndRegexp returns the compiled closing balance pattern, or nil.
func (l *BankLayout) BalanceEndRegexp() *regexp.Regexp { return l.balanceEndRe }

// Matches reports whether every keyword occurs in text.
func (l *BankLayout) Matches(text string) bool {
	if len(l.Keywords) == 0 {
		return false
	}
	for _, k := range l.Keywords {
		if !strings.Contains(text, k) {
			return false
		}
	}
	return true
}

// Slug is the file name stem used when saving the layout.
func (l *BankLayout) Slug() string {
	var b strings.Builder
	for _, r := range strings.ToLower(brnum.Fold(strings.TrimSpace(l.Name))) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "layout"
	}
	return b.String()
}
