package ocrengine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pagelens/pagelens/internal/models"
)

// buildRows turns a page's sorted fragments into result rows, assigning
// 1-based line numbers from the sorted order.
func buildRows(imageFile string, pageNo int, sorted []models.Fragment, mode models.LayoutMode) []models.ResultRow {
	rows := make([]models.ResultRow, 0, len(sorted))
	for i, f := range sorted {
		confidence := ""
		if f.Confidence != nil {
			confidence = fmt.Sprintf("%.4f", *f.Confidence)
		}
		rows = append(rows, models.ResultRow{
			ImageFile:  imageFile,
			PageNo:     pageNo,
			LineNo:     i + 1,
			Layout:     mode,
			Left:       f.Left,
			Top:        f.Top,
			Width:      f.Width,
			Height:     f.Height,
			Confidence: confidence,
			Text:       strings.TrimSpace(f.Text),
		})
	}
	return rows
}

// sortRows orders a merged result set by (page_no, line_no).
func sortRows(rows []models.ResultRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].PageNo != rows[j].PageNo {
			return rows[i].PageNo < rows[j].PageNo
		}
		return rows[i].LineNo < rows[j].LineNo
	})
}
