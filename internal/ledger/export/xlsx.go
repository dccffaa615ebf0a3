// Package export renders reconciled ledgers as spreadsheets.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/odyssey-erp/obligations/internal/ledger"
)

var header = []string{"Clave", "Cliente", "RUC", "Período", "Detalle", "Tipo", "Estado", "Valor", "Fecha referencia", "Días", "Virtual"}

// Sheet names, one per bucket plus a summary.
const (
	SheetSummary    = "Resumen"
	SheetReceivable = "Por cobrar"
	SheetProjected  = "Proyectado"
	SheetCollected  = "Cobrado"
)

// BuildXLSX renders a ledger pass as a workbook.
func BuildXLSX(res ledger.Result) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, fmt.Errorf("export: rename sheet: %w", err)
	}
	totals := res.Totals()
	rows := [][]any{
		{"Fecha de corte", res.AsOf.Format("2006-01-02")},
		{"Filtro", res.Filter},
		{},
		{"Sección", "Líneas", "Valor"},
		{SheetReceivable, totals.Receivable.Count, totals.Receivable.Amount.InexactFloat64()},
		{SheetProjected, totals.Projected.Count, totals.Projected.Amount.InexactFloat64()},
		{SheetCollected, totals.Collected.Count, totals.Collected.Amount.InexactFloat64()},
		{"Deuda virtual", totals.Virtual},
	}
	for i, row := range rows {
		if err := writeRow(f, SheetSummary, i+1, row); err != nil {
			return nil, err
		}
	}

	for _, b := range []struct {
		name  string
		items []ledger.Item
	}{
		{SheetReceivable, res.Receivable},
		{SheetProjected, res.Projected},
		{SheetCollected, res.Collected},
	} {
		if err := writeItems(f, b.name, b.items); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("export: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeItems(f *excelize.File, sheet string, items []ledger.Item) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("export: new sheet %s: %w", sheet, err)
	}
	head := make([]any, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := writeRow(f, sheet, 1, head); err != nil {
		return err
	}
	for i, it := range items {
		var days any
		if it.DaysDiff != nil {
			days = *it.DaysDiff
		}
		row := []any{
			it.Key,
			it.ClientName,
			it.RUC,
			it.Period,
			it.PeriodLabel,
			string(it.ObligationType),
			string(it.Status),
			it.Amount.InexactFloat64(),
			it.ReferenceDate.Format("2006-01-02"),
			days,
			it.IsVirtual,
		}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	if len(values) == 0 {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("export: write %s row %d: %w", sheet, row, err)
	}
	return nil
}
