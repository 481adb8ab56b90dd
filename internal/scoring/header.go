// Package scoring turns competency-score spreadsheets and LLM rating blocks
// into rating sets.
package scoring

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fmuoria/assessment-report-agent/internal/catalog"
)

var (
	scorePrefix   = regexp.MustCompile(`(?i)^\s*competency\s+score\s*:\s*`)
	trailingParen = regexp.MustCompile(`\s*\([^()]*\)\s*$`)
	spaces        = regexp.MustCompile(`\s+`)
)

// Target is the rating a spreadsheet column feeds
type Target struct {
	Section  string
	SubLabel string
}

// NormalizeHeader reduces a raw header cell to its lookup key.
// It reports false for nil or blank cells.
func NormalizeHeader(cell any) (string, bool) {
	if cell == nil {
		return "", false
	}

	var s string
	switch v := cell.(type) {
	case string:
		s = v
	case fmt.Stringer:
		s = v.String()
	default:
		s = fmt.Sprint(v)
	}

	s = scorePrefix.ReplaceAllString(s, "")
	s = trailingParen.ReplaceAllString(s, "")
	s = spaces.ReplaceAllString(strings.TrimSpace(s), " ")
	s = strings.ToLower(s)
	if s == "" {
		return "", false
	}
	return s, true
}

// HeaderTable maps normalized headers to their rating targets
type HeaderTable struct {
	targets map[string]Target
}

// NewHeaderTable builds the lookup table from the catalog header aliases.
// The Swedish sub-label itself is always accepted as an alias.
func NewHeaderTable(cat *catalog.Catalog) *HeaderTable {
	t := &HeaderTable{targets: make(map[string]Target)}
	for _, s := range cat.Sections() {
		for _, c := range s.Competencies {
			target := Target{Section: s.Key, SubLabel: c.Label}
			aliases := append([]string{c.Label}, c.Headers...)
			for _, alias := range aliases {
				if key, ok := NormalizeHeader(alias); ok {
					t.targets[key] = target
				}
			}
		}
	}
	return t
}

// Lookup returns the target of a raw header cell
func (t *HeaderTable) Lookup(cell any) (Target, bool) {
	key, ok := NormalizeHeader(cell)
	if !ok {
		return Target{}, false
	}
	target, ok := t.targets[key]
	return target, ok
}

// Len returns the number of known aliases
func (t *HeaderTable) Len() int {
	return len(t.targets)
}
