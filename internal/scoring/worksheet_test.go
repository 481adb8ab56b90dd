package scoring

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap/zaptest"

	"github.com/fmuoria/assessment-report-agent/internal/catalog"
	"github.com/fmuoria/assessment-report-agent/internal/models"
)

type failingSource struct{}

func (failingSource) Rows() ([][]any, error) {
	return nil, errors.New("corrupt file")
}

type ratingKey struct {
	Section  string
	SubLabel string
}

func assertAllDefault(t *testing.T, cat *catalog.Catalog, rs models.RatingSet, except map[ratingKey]bool) {
	t.Helper()
	for _, s := range cat.Sections() {
		for _, label := range s.Labels() {
			if except[ratingKey{Section: s.Key, SubLabel: label}] {
				continue
			}
			assert.Equal(t, models.DefaultRating, rs[s.Key][label], "%s/%s", s.Key, label)
		}
	}
}

// TestExtractJaneDoe tests the single-column worksheet end to end
func TestExtractJaneDoe(t *testing.T) {
	cat := catalog.Default()
	ex := NewExtractor(cat, zaptest.NewLogger(t))

	src := SliceSource{
		{"First", "Last", "Competency Score: Leading others (STIVE)"},
		{"Jane", "Doe", 4.6},
	}

	rs, trail := ex.Extract(src)

	assert.Equal(t, 5, rs["leda_utveckla_och_engagera"]["Leda andra"])
	assertAllDefault(t, cat, rs, map[ratingKey]bool{
		{Section: "leda_utveckla_och_engagera", SubLabel: "Leda andra"}: true,
	})
	assert.Len(t, trail, 1)
}

func TestExtractShortSheetsUseDefaults(t *testing.T) {
	cat := catalog.Default()
	ex := NewExtractor(cat, nil)

	for _, src := range []TabularSource{
		SliceSource{},
		SliceSource{{"First", "Last", "Competency Score: Leading others"}},
		failingSource{},
	} {
		rs, trail := ex.Extract(src)
		assertAllDefault(t, cat, rs, nil)
		assert.NotEmpty(t, trail)
	}
}

func TestExtractSkipsUnknownAndEmpty(t *testing.T) {
	cat := catalog.Default()
	ex := NewExtractor(cat, nil)

	src := SliceSource{
		{"First", "Last", "Competency Score: Juggling", "Competency Score: Making Decisions", "Competency Score: Resilience", "Achieving Results"},
		{"Jane", "Doe", 1, nil, "2,2", "x"},
	}

	rs, trail := ex.Extract(src)

	assert.Equal(t, 2, rs["personlig_mognad_och_integritet"]["Hantera press"])
	assertAllDefault(t, cat, rs, map[ratingKey]bool{
		{Section: "personlig_mognad_och_integritet", SubLabel: "Hantera press"}: true,
	})
	require.Len(t, trail, 4)
	assert.Contains(t, trail[0], "okänd rubrik")
}

func TestExtractShortDataRow(t *testing.T) {
	cat := catalog.Default()
	ex := NewExtractor(cat, nil)

	src := SliceSource{
		{"First", "Last", "Competency Score: Leading others", "Competency Score: Developing others"},
		{"Jane", "Doe", 2},
	}

	rs, _ := ex.Extract(src)
	assert.Equal(t, 2, rs["leda_utveckla_och_engagera"]["Leda andra"])
	assert.Equal(t, 3, rs["leda_utveckla_och_engagera"]["Utveckla andra"])
}

func TestExcelSource(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"First", "Last", "Competency Score: Leading others (STIVE)", "Competency Score: Coping with Pressure"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Jane", "Doe", 4.6, 1.2}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	src, err := NewExcelSource(&buf, "")
	require.NoError(t, err)

	rs, _ := NewExtractor(catalog.Default(), nil).Extract(src)
	assert.Equal(t, 5, rs["leda_utveckla_och_engagera"]["Leda andra"])
	assert.Equal(t, 1, rs["personlig_mognad_och_integritet"]["Hantera press"])

	text, err := DumpText(src)
	require.NoError(t, err)
	lines := strings.Split(text, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Jane\tDoe\t4.6\t1.2", lines[1])
}

func TestExcelSourceRejectsGarbage(t *testing.T) {
	src, err := NewExcelSource(strings.NewReader("not a workbook"), "")
	require.NoError(t, err)

	_, err = src.Rows()
	assert.Error(t, err)

	rs, trail := NewExtractor(catalog.Default(), nil).Extract(src)
	assert.Equal(t, 3, rs["kommunikation_och_samverkan"]["Kommunicera"])
	assert.NotEmpty(t, trail)
}
