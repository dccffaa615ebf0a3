package receipt

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"github.com/odyssey-erp/obligations/internal/settlement"
)

// BuildPDF renders a printable receipt for one client's share of a batch.
func BuildPDF(s settlement.Summary) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(fmt.Sprintf("Comprobante %s", s.TransactionID), true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 8, tr("Comprobante de Pago"))
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	for _, row := range [][2]string{
		{"Transacción", s.TransactionID},
		{"Cliente", s.ClientName},
		{"RUC", s.ClientRUC},
		{"Fecha de pago", FormatDate(s.PaymentDate)},
	} {
		pdf.CellFormat(40, 6, tr(row[0]+":"), "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, tr(row[1]), "", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 7, tr("Período"), "1", 0, "C", false, 0, "")
	pdf.CellFormat(90, 7, tr("Detalle"), "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 7, "Valor", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 10)
	for _, p := range s.PaidPeriods {
		pdf.CellFormat(40, 6, p.Period, "1", 0, "C", false, 0, "")
		pdf.CellFormat(90, 6, tr(p.Label), "1", 0, "L", false, 0, "")
		pdf.CellFormat(50, 6, FormatAmount(p.Amount), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(130, 7, "Total", "1", 0, "R", false, 0, "")
	pdf.CellFormat(50, 7, FormatAmount(s.TotalAmount), "1", 0, "R", false, 0, "")
	pdf.Ln(-1)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("receipt: render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
