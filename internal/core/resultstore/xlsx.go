package resultstore

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/pagelens/pagelens/internal/models"
)

// BuildXLSX renders the result set as an XLSX workbook for the spreadsheet
// download variant.
func BuildXLSX(rows []models.ResultRow) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Lines"

	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	for i, h := range Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for rowIdx, r := range rows {
		values := []any{
			r.ImageFile, r.PageNo, r.LineNo, string(r.Layout),
			r.Left, r.Top, r.Width, r.Height, r.Confidence, r.Text,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}
