package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/fmuoria/assessment-report-agent/internal/catalog"
	"github.com/fmuoria/assessment-report-agent/internal/markup"
	"github.com/fmuoria/assessment-report-agent/internal/models"
)

const (
	ratingsSheet = "Bedömning"
	textsSheet   = "Texter"
	scorePrefix  = "Competency Score: "
)

// RatingsWorkbook builds an xlsx with the ratings in the import format and
// the section texts on a second sheet.
func RatingsWorkbook(rc *models.ReportContext, cat *catalog.Catalog) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", ratingsSheet)
	if _, err := f.NewSheet(textsSheet); err != nil {
		return nil, fmt.Errorf("failed to create texts sheet: %w", err)
	}

	if err := createRatingsSheet(f, rc, cat); err != nil {
		return nil, fmt.Errorf("failed to create ratings sheet: %w", err)
	}
	if err := createTextsSheet(f, rc, cat); err != nil {
		return nil, fmt.Errorf("failed to create texts sheet: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// HeaderFor is the import header of a competency
func HeaderFor(c catalog.Competency) string {
	alias := c.Label
	if len(c.Headers) > 0 {
		alias = titleCase(c.Headers[0])
	}
	return scorePrefix + alias
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}

func headerStyle(f *excelize.File) (int, error) {
	return f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
}

// createRatingsSheet writes the two-row import layout: name columns then one
// column per sub-label.
func createRatingsSheet(f *excelize.File, rc *models.ReportContext, cat *catalog.Catalog) error {
	style, err := headerStyle(f)
	if err != nil {
		return err
	}

	first, last := splitName(rc.CandidateName)
	header := []any{"First", "Last"}
	values := []any{first, last}
	for _, s := range cat.Sections() {
		for _, c := range s.Competencies {
			header = append(header, HeaderFor(c))
			values = append(values, rc.Ratings.Get(s.Key, c.Label))
		}
	}

	if err := f.SetSheetRow(ratingsSheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetSheetRow(ratingsSheet, "A2", &values); err != nil {
		return err
	}

	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(ratingsSheet, "A1", lastCol+"1", style); err != nil {
		return err
	}
	if err := f.SetColWidth(ratingsSheet, "A", lastCol, 22); err != nil {
		return err
	}
	return f.SetRowHeight(ratingsSheet, 1, 45)
}

func createTextsSheet(f *excelize.File, rc *models.ReportContext, cat *catalog.Catalog) error {
	style, err := headerStyle(f)
	if err != nil {
		return err
	}
	wrap, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Vertical: "top", WrapText: true},
	})
	if err != nil {
		return err
	}

	f.SetColWidth(textsSheet, "A", "A", 28)
	f.SetColWidth(textsSheet, "B", "B", 100)

	f.SetCellValue(textsSheet, "A1", "Avsnitt")
	f.SetCellValue(textsSheet, "B1", "Text")
	f.SetCellStyle(textsSheet, "A1", "B1", style)

	row := 2
	for _, t := range cat.Texts() {
		f.SetCellValue(textsSheet, fmt.Sprintf("A%d", row), t.Title)
		f.SetCellValue(textsSheet, fmt.Sprintf("B%d", row), markup.ToPlainText(rc.Section(t.Key)))
		f.SetCellStyle(textsSheet, fmt.Sprintf("B%d", row), fmt.Sprintf("B%d", row), wrap)
		row++
	}

	row++
	f.SetCellValue(textsSheet, fmt.Sprintf("A%d", row), "Exporterad:")
	f.SetCellValue(textsSheet, fmt.Sprintf("B%d", row), time.Now().Format("2006-01-02 15:04:05"))
	return nil
}
