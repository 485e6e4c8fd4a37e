package report

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/statement-reconciler/internal/domain"
	"github.com/dvloznov/statement-reconciler/internal/reconcile"
)

func sampleReport(t *testing.T) reconcile.Report {
	t.Helper()
	day := func(d int) time.Time { return time.Date(2025, 1, d, 0, 0, 0, 0, time.UTC) }
	ledger := []domain.LedgerRow{
		{Date: day(1), Amount: decimal.NewFromInt(100), Description: "Recebimento cliente"},
		{Date: day(20), Amount: decimal.NewFromInt(300), Description: "Tarifa"},
	}
	bank := []domain.FileResult{{
		File: "extrato.pdf",
		Transactions: []domain.UnifiedTransaction{
			{Date: day(2), Amount: decimal.NewFromInt(100), Memo: "PIX RECEBIDO"},
		},
	}}
	rep, _ := reconcile.NewEngine(reconcile.DefaultOptions()).Run(context.Background(), ledger, bank)
	return rep
}

func TestWriteXLSX(t *testing.T) {
	rep := sampleReport(t)

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, rep); err != nil {
		t.Fatalf("WriteXLSX failed: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("Expected a readable workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 2 || sheets[0] != SheetView || sheets[1] != SheetSummary {
		t.Fatalf("Expected sheets [%s %s], got %v", SheetView, SheetSummary, sheets)
	}

	rows, err := f.GetRows(SheetView)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(rows) != len(rep.Rows)+1 {
		t.Fatalf("Expected %d rows including header, got %d", len(rep.Rows)+1, len(rows))
	}
	if rows[0][0] != "Data" || rows[0][5] != "Status" {
		t.Errorf("Unexpected header %v", rows[0])
	}
	if rows[1][4] != string(domain.SideLedger) || rows[1][5] != string(reconcile.StatusMatched) {
		t.Errorf("Expected the matched ledger row first, got %v", rows[1])
	}
	if rows[1][0] != "01/01/2025" {
		t.Errorf("Expected Brazilian date format, got %q", rows[1][0])
	}

	summary, err := f.GetRows(SheetSummary)
	if err != nil {
		t.Fatalf("GetRows failed: %v", err)
	}
	if len(summary) != 10 {
		t.Errorf("Expected 10 summary lines, got %d", len(summary))
	}
	if summary[1][1] != "2" {
		t.Errorf("Expected ledger count 2, got %q", summary[1][1])
	}
}

func TestWriteJSON(t *testing.T) {
	rep := sampleReport(t)

	var buf bytes.Buffer
	if err := WriteJSON(&buf, rep); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	var decoded struct {
		Metrics struct {
			LedgerCount     int    `json:"ledger_count"`
			UnmatchedLedger int    `json:"unmatched_ledger"`
			FinalGap        string `json:"final_gap"`
		} `json:"metrics"`
		Rows []map[string]interface{} `json:"rows"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Expected valid JSON: %v", err)
	}
	if decoded.Metrics.LedgerCount != 2 || decoded.Metrics.UnmatchedLedger != 1 {
		t.Errorf("Unexpected metrics %+v", decoded.Metrics)
	}
	if decoded.Metrics.FinalGap != "300" {
		t.Errorf("Expected final gap 300, got %q", decoded.Metrics.FinalGap)
	}
	if len(decoded.Rows) != 3 {
		t.Errorf("Expected 3 view rows, got %d", len(decoded.Rows))
	}
}
