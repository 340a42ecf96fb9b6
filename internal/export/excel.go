package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/fx-ledger/internal/domain"
)

// SheetName is the worksheet every export writes to.
const SheetName = "Transacciones"

var excelHeader = []any{"Fecha", "Tipo", "Categoría", "Descripción", "Monto", "Moneda", "Cuenta", "Usuario"}

// WriteExcel writes txs as a one-sheet workbook, one row per record.
func WriteExcel(w io.Writer, txs []*domain.Transaction) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("WriteExcel: rename sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("WriteExcel: stream writer: %w", err)
	}
	if err := sw.SetColWidth(4, 4, 48); err != nil {
		return fmt.Errorf("WriteExcel: column width: %w", err)
	}
	if err := sw.SetRow("A1", excelHeader); err != nil {
		return fmt.Errorf("WriteExcel: header: %w", err)
	}

	for i, tx := range txs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("WriteExcel: %w", err)
		}
		row := []any{
			tx.Fecha,
			string(tx.Tipo()),
			tx.Categoria,
			tx.Descripcion,
			Round2(tx.Monto),
			string(tx.Moneda),
			tx.Cuenta,
			tx.CreadoPor,
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("WriteExcel: row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("WriteExcel: flush: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("WriteExcel: write: %w", err)
	}
	return nil
}
