package export

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/dvloznov/fx-ledger/internal/domain"
)

// PDFLimit is how many records a PDF report lists.
const PDFLimit = 30

const (
	pdfMargin     = 20.0
	pdfLineHeight = 7.0
	pdfBottom     = 280.0
)

// ReportTitle is the heading of a PDF report for who.
func ReportTitle(who string) string {
	return "Reporte de " + who
}

// PDFLine is the text of one record in a PDF report.
func PDFLine(tx *domain.Transaction) string {
	return fmt.Sprintf("%s - %s - %s - %s %s", tx.Fecha, tx.Tipo(), tx.Descripcion, Amount(tx.Monto), tx.Moneda)
}

// WritePDF writes an A4 report listing the first PDFLimit records of txs,
// one per line, starting a new page when the current one is full.
func WritePDF(w io.Writer, title string, txs []*domain.Transaction) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "", 16)
	pdf.Text(pdfMargin, pdfMargin, tr(title))
	pdf.SetFont("Helvetica", "", 10)

	y := 40.0
	for _, tx := range txs[:min(len(txs), PDFLimit)] {
		pdf.Text(pdfMargin, y, tr(PDFLine(tx)))
		y += pdfLineHeight
		if y > pdfBottom {
			pdf.AddPage()
			y = pdfMargin
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("WritePDF: %w", err)
	}
	return nil
}
