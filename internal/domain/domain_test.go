package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewFITID_Deterministic(t *testing.T) {
	d := time.Date(2025, 1, 27, 0, 0, 0, 0, time.UTC)
	a := NewFITID(d, decimal.RequireFromString("9000"), "Pix - Recebido")
	b := NewFITID(d, decimal.RequireFromString("9000.00"), " Pix - Recebido ")
	if a != b {
		t.Errorf("expected identical fitids, got %s and %s", a, b)
	}
	c := NewFITID(d, decimal.RequireFromString("-9000"), "Pix - Recebido")
	if a == c {
		t.Error("expected sign to change the fitid")
	}
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		in   string
		want TxType
	}{
		{"10", TxCredit},
		{"-0.01", TxDebit},
		{"0", TxOther},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := TypeOf(decimal.RequireFromString(tt.in)); got != tt.want {
				t.Errorf("TypeOf(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestLayoutNotIdentifiedError(t *testing.T) {
	err := NewLayoutNotIdentified("x.pdf", "748", strings.Repeat("a", 300))
	if !errors.Is(err, ErrLayoutNotIdentified) {
		t.Error("expected error to unwrap to ErrLayoutNotIdentified")
	}
	if len(err.Sample) != 200 {
		t.Errorf("expected sample truncated to 200, got %d", len(err.Sample))
	}
	if !strings.Contains(err.Error(), "bank code 748") {
		t.Errorf("expected bank code in message, got %s", err.Error())
	}
}

func TestConfigError(t *testing.T) {
	var err error = &ConfigError{Path: "layouts/bb.json", Reason: "missing date column"}
	if !errors.Is(err, ErrConfig) {
		t.Error("expected ConfigError to unwrap to ErrConfig")
	}
}
