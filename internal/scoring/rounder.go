package scoring

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fmuoria/assessment-report-agent/internal/models"
)

var (
	// ErrEmptyCell is returned for nil or blank cells
	ErrEmptyCell = errors.New("empty cell")
	// ErrNotNumeric is returned for cells that do not hold a number
	ErrNotNumeric = errors.New("cell is not numeric")
)

// ParseScore reads a numeric cell value. Strings may use a comma decimal separator.
func ParseScore(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, ErrEmptyCell
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case uint:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, ErrEmptyCell
		}
		f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrNotNumeric, n)
		}
		return finite(f)
	default:
		return 0, fmt.Errorf("%w: %T", ErrNotNumeric, v)
	}
}

func finite(f float64) (float64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, ErrNotNumeric
	}
	return f, nil
}

// RoundScore rounds half up and clamps to the rating scale
func RoundScore(f float64) int {
	r := math.Floor(f + 0.5)
	if r < models.MinRating {
		return models.MinRating
	}
	if r > models.MaxRating {
		return models.MaxRating
	}
	return int(r)
}

// ScoreOrDefault rounds a cell value, falling back to the neutral rating
// whenever the cell cannot be parsed.
func ScoreOrDefault(v any) int {
	f, err := ParseScore(v)
	if err != nil {
		return models.DefaultRating
	}
	return RoundScore(f)
}
