package ofx

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-reconciler/internal/domain"
)

func TestWriteParse_RoundTrip(t *testing.T) {
	date := func(d int) time.Time { return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC) }
	in := domain.FileResult{
		File:        "extrato.pdf",
		AccountInfo: domain.AccountInfo{BankID: "341", Branch: "0001", Account: "12345-6"},
		Balance: domain.BalanceInfo{
			Start: domain.Ptr(decimal.NewFromInt(1000)),
			End:   domain.Ptr(decimal.RequireFromString("2849.75")),
		},
		Transactions: []domain.UnifiedTransaction{
			{Date: date(3), Amount: decimal.RequireFromString("-150.25"), Memo: "PAGAMENTO BOLETO AÇÚCAR", FITID: "abc1"},
			{Date: date(5), Amount: decimal.NewFromInt(2000), Memo: "PIX RECEBIDO JOÃO"},
		},
	}

	var buf bytes.Buffer
	if err := Write(&buf, in); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "OFXHEADER:100") {
		t.Errorf("Expected an OFX 1.x header, got %q", buf.String()[:20])
	}

	out, err := Parse(context.Background(), "extrato.ofx", buf.Bytes())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(out.Transactions) != len(in.Transactions) {
		t.Fatalf("Expected %d transactions, got %d", len(in.Transactions), len(out.Transactions))
	}
	for i, want := range in.Transactions {
		got := out.Transactions[i]
		if !got.Date.Equal(want.Date) {
			t.Errorf("Transaction %d: expected date %s, got %s", i, want.Date, got.Date)
		}
		if !got.Amount.Equal(want.Amount) {
			t.Errorf("Transaction %d: expected amount %s, got %s", i, want.Amount, got.Amount)
		}
		if got.Memo != want.Memo {
			t.Errorf("Transaction %d: expected memo %q, got %q", i, want.Memo, got.Memo)
		}
	}
	if out.Transactions[0].FITID != "abc1" {
		t.Errorf("Expected FITID to survive, got %q", out.Transactions[0].FITID)
	}
	if out.Transactions[1].FITID == "" {
		t.Error("Expected a generated FITID")
	}
	if out.AccountInfo.BankID != "341" || out.AccountInfo.Account != "12345-6" {
		t.Errorf("Unexpected account %+v", out.AccountInfo)
	}
	if out.Balance.End == nil || !out.Balance.End.Equal(decimal.RequireFromString("2849.75")) {
		t.Errorf("Expected closing balance 2849.75, got %v", out.Balance.End)
	}
	if out.Validation.Verdict != domain.VerdictIndeterminate {
		t.Errorf("Expected indeterminate validation without an opening balance, got %s", out.Validation.Verdict)
	}
	if out.Layout != LayoutName || out.Method != domain.MethodText {
		t.Errorf("Unexpected layout/method %s/%s", out.Layout, out.Method)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not ofx", "data,valor\n01/01/2025,10"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(context.Background(), "x.ofx", []byte(tt.data)); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestClosingBalance(t *testing.T) {
	res := domain.FileResult{
		Balance: domain.BalanceInfo{Start: domain.Ptr(decimal.NewFromInt(100))},
		Transactions: []domain.UnifiedTransaction{
			{Amount: decimal.NewFromInt(-30)},
			{Amount: decimal.NewFromInt(5)},
		},
	}
	if got := closingBalance(res); !got.Equal(decimal.NewFromInt(75)) {
		t.Errorf("Expected 75, got %s", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("ÇÇÇÇ", 2); got != "ÇÇ" {
		t.Errorf("Expected rune-safe truncation, got %q", got)
	}
	if got := truncate("abc", 10); got != "abc" {
		t.Errorf("Expected unchanged string, got %q", got)
	}
}

type MockProcessor struct {
	ProcessBytesFunc func(ctx context.Context, name string, data []byte) domain.FileResult
}

func (m *MockProcessor) ProcessBytes(ctx context.Context, name string, data []byte) domain.FileResult {
	return m.ProcessBytesFunc(ctx, name, data)
}

func TestExtractor_Routes(t *testing.T) {
	var pdfCalls int
	ex := &Extractor{PDF: &MockProcessor{ProcessBytesFunc: func(ctx context.Context, name string, data []byte) domain.FileResult {
		pdfCalls++
		return domain.FileResult{File: name, Method: domain.MethodText}
	}}}

	if res := ex.ProcessBytes(context.Background(), "extrato.pdf", []byte("%PDF")); res.Method != domain.MethodText {
		t.Errorf("Expected the PDF processor result, got %+v", res)
	}
	if pdfCalls != 1 {
		t.Errorf("Expected one PDF call, got %d", pdfCalls)
	}

	res := ex.ProcessBytes(context.Background(), "EXTRATO.OFX", []byte("garbage"))
	if res.Method != domain.MethodFailed || res.Error == "" {
		t.Errorf("Expected a failed result for a broken OFX, got %+v", res)
	}
	if pdfCalls != 1 {
		t.Error("Expected OFX files to bypass the PDF processor")
	}
}
