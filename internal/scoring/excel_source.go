package scoring

import (
	"bytes"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// ExcelSource reads the rows of one sheet of an xlsx workbook
type ExcelSource struct {
	data  []byte
	sheet string
}

// NewExcelSource buffers the workbook so Rows can be called repeatedly.
// An empty sheet name selects the first sheet.
func NewExcelSource(r io.Reader, sheet string) (*ExcelSource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	return &ExcelSource{data: data, sheet: sheet}, nil
}

// Rows returns the raw cell values; blank cells are nil
func (s *ExcelSource) Rows() ([][]any, error) {
	f, err := excelize.OpenReader(bytes.NewReader(s.data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := s.sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}

	rows := make([][]any, len(raw))
	for i, r := range raw {
		row := make([]any, len(r))
		for j, v := range r {
			if v != "" {
				row[j] = v
			}
		}
		rows[i] = row
	}
	return rows, nil
}
