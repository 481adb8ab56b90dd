package scoring

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/fmuoria/assessment-report-agent/internal/catalog"
	"github.com/fmuoria/assessment-report-agent/internal/models"
)

var (
	ratingsMarker = regexp.MustCompile(`(?i)###\s*RATINGS_JSON`)
	codeFence     = regexp.MustCompile("(?i)```(?:json)?")
	jsonObject    = regexp.MustCompile(`(?s)\{.*\}`)
)

// ratingsSchema accepts {"section": {"label": score}} as well as a flat
// {"label": score} object for a single section.
const ratingsSchema = `{
  "type": "object",
  "minProperties": 1,
  "additionalProperties": {
    "oneOf": [
      {"type": "object", "additionalProperties": {"type": ["number", "string"]}},
      {"type": ["number", "string"]}
    ]
  }
}`

// ExtractRatingsJSON returns the object following the RATINGS_JSON marker,
// or nil when there is no marker or the block is not valid JSON.
func ExtractRatingsJSON(text string) map[string]any {
	loc := ratingsMarker.FindStringIndex(text)
	if loc == nil {
		return nil
	}

	rest := codeFence.ReplaceAllString(text[loc[1]:], "")
	block := jsonObject.FindString(rest)
	if block == "" {
		return nil
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(block), &out); err != nil {
		return nil
	}
	return out
}

// SplitNarrative returns the text before the RATINGS_JSON marker
func SplitNarrative(text string) string {
	loc := ratingsMarker.FindStringIndex(text)
	if loc == nil {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[:loc[0]])
}

// BlockMerger merges validated rating blocks into rating sets
type BlockMerger struct {
	catalog *catalog.Catalog
	schema  *gojsonschema.Schema
	logger  *zap.Logger
}

// NewBlockMerger compiles the rating block schema
func NewBlockMerger(cat *catalog.Catalog, logger *zap.Logger) *BlockMerger {
	if logger == nil {
		logger = zap.NewNop()
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(ratingsSchema))
	if err != nil {
		panic("invalid ratings schema: " + err.Error())
	}
	return &BlockMerger{catalog: cat, schema: schema, logger: logger}
}

// Valid reports whether block matches the rating block schema
func (m *BlockMerger) Valid(block map[string]any) bool {
	if block == nil {
		return false
	}
	res, err := m.schema.Validate(gojsonschema.NewGoLoader(block))
	if err != nil {
		m.logger.Debug("ratings block validation failed", zap.Error(err))
		return false
	}
	if !res.Valid() {
		for _, e := range res.Errors() {
			m.logger.Debug("ratings block rejected", zap.String("error", e.String()))
		}
		return false
	}
	return true
}

// Merge returns a copy of base with the known scores of block applied.
// When section is set only that section is touched and a flat block is
// read as its sub-labels. Invalid blocks leave base unchanged.
func (m *BlockMerger) Merge(block map[string]any, base models.RatingSet, section string) models.RatingSet {
	out := base.Clone().Complete(m.catalog)
	if !m.Valid(block) {
		return out
	}

	for _, s := range m.catalog.Sections() {
		if section != "" && s.Key != section {
			continue
		}

		sub, ok := block[s.Key].(map[string]any)
		if !ok && section != "" {
			sub = block
		}
		if sub == nil {
			continue
		}

		for _, label := range s.Labels() {
			v, ok := sub[label]
			if !ok {
				continue
			}
			if _, nested := v.(map[string]any); nested {
				continue
			}
			out.Set(s.Key, label, ScoreOrDefault(v))
		}
	}
	return out
}
