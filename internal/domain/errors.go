package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrLayoutNotIdentified means no descriptor matched the first page.
	ErrLayoutNotIdentified = errors.New("layout not identified")
	// ErrExtractionEmpty means a layout matched but produced no records.
	ErrExtractionEmpty = errors.New("extraction produced no transactions")
	// ErrBalanceInvalid means balances do not add up after auto-correction.
	ErrBalanceInvalid = errors.New("balance validation failed")
	// ErrParse is an unrecoverable read or PDF structure failure.
	ErrParse = errors.New("parse error")
	// ErrConfig is an invalid layout descriptor or setting.
	ErrConfig = errors.New("configuration error")
)

// LayoutNotIdentifiedError carries what was seen when detection failed.
type LayoutNotIdentifiedError struct {
	Filename string
	BankCode string
	Sample   string
}

func NewLayoutNotIdentified(filename, bankCode, text string) *LayoutNotIdentifiedError {
	sample := []rune(text)
	if len(sample) > 200 {
		sample = sample[:200]
	}
	return &LayoutNotIdentifiedError{Filename: filename, BankCode: bankCode, Sample: string(sample)}
}

func (e *LayoutNotIdentifiedError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Filename, ErrLayoutNotIdentified)
	if e.BankCode != "" {
		msg += fmt.Sprintf(" (bank code %s)", e.BankCode)
	}
	return msg + fmt.Sprintf("; sample: %q", e.Sample)
}

func (e *LayoutNotIdentifiedError) Unwrap() error { return ErrLayoutNotIdentified }

// ConfigError describes an invalid layout descriptor or configuration value.
type ConfigError struct {
	Path   string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", ErrConfig, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrConfig, e.Path, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }
