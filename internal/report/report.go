// Package report exports reconciliation results as spreadsheets and JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/statement-reconciler/internal/reconcile"
)

const (
	SheetView    = "Conciliacao"
	SheetSummary = "Resumo"

	dateLayout = "02/01/2006"
	// Built-in excel format "#,##0.00".
	amountFormat = 4
)

var viewHeader = []interface{}{"Data", "Data do grupo", "Valor", "Historico", "Origem", "Status", "Grupo", "Arquivo"}

// WriteXLSX writes the unified view and the summary metrics as a workbook.
func WriteXLSX(w io.Writer, rep reconcile.Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetView); err != nil {
		return fmt.Errorf("WriteXLSX: %w", err)
	}
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("WriteXLSX: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("WriteXLSX: header style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: amountFormat})
	if err != nil {
		return fmt.Errorf("WriteXLSX: amount style: %w", err)
	}

	if err := writeView(f, rep.Rows, header, money); err != nil {
		return fmt.Errorf("WriteXLSX: %w", err)
	}
	if err := writeSummary(f, rep.Metrics, header, money); err != nil {
		return fmt.Errorf("WriteXLSX: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("WriteXLSX: %w", err)
	}
	return nil
}

func writeView(f *excelize.File, rows []reconcile.ViewRow, header, money int) error {
	if err := f.SetSheetRow(SheetView, "A1", &viewHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetView, "A1", "H1", header); err != nil {
		return err
	}

	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{
			r.Date.Format(dateLayout),
			r.ClusterDate.Format(dateLayout),
			r.Amount.InexactFloat64(),
			r.Memo,
			string(r.Source),
			string(r.Status),
			r.GroupID,
			r.SourceFile,
		}
		if err := f.SetSheetRow(SheetView, cell, &values); err != nil {
			return err
		}
	}

	if len(rows) > 0 {
		last, _ := excelize.CoordinatesToCellName(3, len(rows)+1)
		if err := f.SetCellStyle(SheetView, "C2", last, money); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(SheetView, "D", "D", 50); err != nil {
		return err
	}
	return f.SetColWidth(SheetView, "A", "B", 12)
}

func writeSummary(f *excelize.File, m reconcile.Metrics, header, money int) error {
	lines := [][]interface{}{
		{"Metrica", "Valor"},
		{"Lancamentos no razao", m.LedgerCount},
		{"Lancamentos no extrato", m.BankCount},
		{"Conciliados", m.Matched},
		{"Conciliados por combinacao", m.Combinatorial},
		{"Grupos combinados", m.CombinatorialCount},
		{"Pendentes no razao", m.UnmatchedLedger},
		{"Pendentes no extrato", m.UnmatchedBank},
		{"Diferenca inicial", m.InitialGap.InexactFloat64()},
		{"Diferenca final", m.FinalGap.InexactFloat64()},
	}
	for i, line := range lines {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetSummary, cell, &line); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SheetSummary, "A1", "B1", header); err != nil {
		return err
	}
	n := len(lines)
	from, _ := excelize.CoordinatesToCellName(2, n-1)
	to, _ := excelize.CoordinatesToCellName(2, n)
	if err := f.SetCellStyle(SheetSummary, from, to, money); err != nil {
		return err
	}
	return f.SetColWidth(SheetSummary, "A", "A", 30)
}

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, rep reconcile.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("WriteJSON: %w", err)
	}
	return nil
}
