package scoring

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fmuoria/assessment-report-agent/internal/catalog"
	"github.com/fmuoria/assessment-report-agent/internal/metrics"
	"github.com/fmuoria/assessment-report-agent/internal/models"
)

// nameColumns is the number of leading columns holding the candidate name
const nameColumns = 2

// TabularSource yields the rows of a worksheet. Rows may be called more than once.
type TabularSource interface {
	Rows() ([][]any, error)
}

// SliceSource is an in-memory worksheet
type SliceSource [][]any

// Rows returns the rows of the slice
func (s SliceSource) Rows() ([][]any, error) {
	return s, nil
}

// Extractor reads competency ratings from a worksheet
type Extractor struct {
	catalog *catalog.Catalog
	headers *HeaderTable
	logger  *zap.Logger
}

// NewExtractor creates a new worksheet extractor
func NewExtractor(cat *catalog.Catalog, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	headers := NewHeaderTable(cat)
	logger.Debug("worksheet header aliases loaded", zap.Int("aliases", headers.Len()))
	return &Extractor{
		catalog: cat,
		headers: headers,
		logger:  logger,
	}
}

// Extract returns a complete rating set and the trail of fill and skip decisions.
// It never fails: unreadable or short sheets produce the default set.
func (e *Extractor) Extract(src TabularSource) (models.RatingSet, []string) {
	ratings := models.NewRatingSet(e.catalog)
	var trail []string

	rows, err := src.Rows()
	if err != nil {
		e.logger.Warn("failed to read worksheet", zap.Error(err))
		return ratings, []string{fmt.Sprintf("kunde inte läsa kalkylbladet: %v", err)}
	}
	if len(rows) < 2 {
		return ratings, []string{fmt.Sprintf("kalkylbladet har %d rader, minst 2 krävs; standardbetyg används", len(rows))}
	}

	header, data := rows[0], rows[1]
	for col := nameColumns; col < len(header); col++ {
		target, ok := e.headers.Lookup(header[col])
		if !ok {
			metrics.SkippedColumns.Inc()
			trail = append(trail, fmt.Sprintf("kolumn %d %q: okänd rubrik, hoppas över", col, cellText(header[col])))
			continue
		}

		var cell any
		if col < len(data) {
			cell = data[col]
		}

		f, err := ParseScore(cell)
		if err != nil {
			trail = append(trail, fmt.Sprintf("kolumn %d %s/%s: %v, behåller %d",
				col, target.Section, target.SubLabel, err, models.DefaultRating))
			continue
		}

		score := RoundScore(f)
		ratings.Set(target.Section, target.SubLabel, score)
		trail = append(trail, fmt.Sprintf("kolumn %d %s/%s: %v -> %d", col, target.Section, target.SubLabel, f, score))
	}

	e.logger.Debug("extracted ratings", zap.Int("columns", len(header)), zap.Int("decisions", len(trail)))
	return ratings, trail
}

// DumpText renders the worksheet as tab separated lines for prompts
func DumpText(src TabularSource) (string, error) {
	rows, err := src.Rows()
	if err != nil {
		return "", fmt.Errorf("failed to read worksheet: %w", err)
	}

	var sb strings.Builder
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, c := range row {
			cells[i] = cellText(c)
		}
		sb.WriteString(strings.TrimRight(strings.Join(cells, "\t"), "\t"))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

func cellText(c any) string {
	if c == nil {
		return ""
	}
	if s, ok := c.(string); ok {
		return s
	}
	return fmt.Sprint(c)
}
