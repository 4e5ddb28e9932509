package xlsx

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/leave-intake/internal/core/domain"
)

const sheetName = "Licencias"

var headers = []string{
	"ID",
	"Profesor",
	"RUT",
	"Emitido por",
	"Fecha inicio",
	"Fecha fin",
	"Días reposo",
	"Registrada",
	"Reemplazo notificado",
}

// Exporter renders confirmed licenses as a single-sheet workbook. Diagnosis
// codes are never exported.
type Exporter struct{}

func NewExporter() *Exporter {
	return &Exporter{}
}

func (e *Exporter) Export(records []domain.ConfirmedRecord) ([]byte, error) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, fmt.Errorf("write header: %w", err)
		}
	}

	for i, r := range records {
		row := i + 2
		values := []any{
			r.ID,
			r.ProfessionalName,
			r.ProfessionalID,
			r.Issuer,
			r.StartDate,
			r.EndDate,
			r.RestDays,
			formatTime(r.CreatedAt),
			formatTime(r.NotifiedAt),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 38)
	_ = f.SetColWidth(sheetName, "B", "B", 30)
	_ = f.SetColWidth(sheetName, "C", "D", 18)
	_ = f.SetColWidth(sheetName, "E", "G", 13)
	_ = f.SetColWidth(sheetName, "H", "I", 22)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.UTC().Format("2006-01-02 15:04")
}
