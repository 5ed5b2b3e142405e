// Package resultstore persists a job's recognized rows as a delimited table
// and builds the spreadsheet variant served for download.
//
// Writes always replace the whole file through a rename, never append: the
// retry path depends on read-merge-rewrite to guarantee the persisted set
// holds no stale or duplicate rows for a retried page.
package resultstore

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pagelens/pagelens/internal/models"
)

// Header is the fixed column order of the result table.
var Header = []string{
	"image_file", "page_no", "line_no", "layout",
	"left", "top", "width", "height", "confidence", "text",
}

// utf8BOM keeps the CSV openable in Excel with CJK text intact.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FileStore reads and writes result sets on the local filesystem.
type FileStore struct{}

func NewFileStore() *FileStore {
	return &FileStore{}
}

// Write replaces the result set at path atomically: the rows are written to
// a temp file in the same directory and renamed over the target, so readers
// never observe a partial set.
func (s *FileStore) Write(path string, rows []models.ResultRow) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".result-*.csv")
	if err != nil {
		return fmt.Errorf("create temp result file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(utf8BOM); err != nil {
		tmp.Close()
		return fmt.Errorf("write bom: %w", err)
	}

	w := csv.NewWriter(tmp)
	if err := w.Write(Header); err != nil {
		tmp.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.ImageFile,
			strconv.Itoa(r.PageNo),
			strconv.Itoa(r.LineNo),
			string(r.Layout),
			strconv.Itoa(r.Left),
			strconv.Itoa(r.Top),
			strconv.Itoa(r.Width),
			strconv.Itoa(r.Height),
			r.Confidence,
			r.Text,
		}
		if err := w.Write(record); err != nil {
			tmp.Close()
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush rows: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp result file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace result file: %w", err)
	}
	return nil
}

// Read loads the full result set from path.
func (s *FileStore) Read(path string) ([]models.ResultRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read result file: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	r := csv.NewReader(bytes.NewReader(data))
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse result file: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	rows := make([]models.ResultRow, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != len(Header) {
			return nil, fmt.Errorf("result row %d has %d fields, want %d", i+1, len(rec), len(Header))
		}
		pageNo, err := strconv.Atoi(rec[1])
		if err != nil {
			return nil, fmt.Errorf("result row %d page_no: %w", i+1, err)
		}
		lineNo, err := strconv.Atoi(rec[2])
		if err != nil {
			return nil, fmt.Errorf("result row %d line_no: %w", i+1, err)
		}
		left, _ := strconv.Atoi(rec[4])
		top, _ := strconv.Atoi(rec[5])
		width, _ := strconv.Atoi(rec[6])
		height, _ := strconv.Atoi(rec[7])
		rows = append(rows, models.ResultRow{
			ImageFile:  rec[0],
			PageNo:     pageNo,
			LineNo:     lineNo,
			Layout:     models.LayoutMode(rec[3]),
			Left:       left,
			Top:        top,
			Width:      width,
			Height:     height,
			Confidence: rec[8],
			Text:       rec[9],
		})
	}
	return rows, nil
}
