package scoring

import (
	"testing"

	"github.com/fmuoria/assessment-report-agent/internal/catalog"
)

// TestNormalizeHeader tests prefix, parenthetical and case handling
func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		name   string
		cell   any
		want   string
		wantOK bool
	}{
		{"full header", "Competency Score: Leading others (STIVE)", "leading others", true},
		{"lower prefix", "competency score:Developing Others", "developing others", true},
		{"extra spaces", "  Planning   &  Organising  (x) ", "planning & organising", true},
		{"no prefix", "Achieving Results", "achieving results", true},
		{"nil", nil, "", false},
		{"blank", "   ", "", false},
		{"only parenthetical", "(STIVE)", "", false},
		{"number", 42, "42", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeHeader(tt.cell)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("NormalizeHeader(%v) = (%q, %v), want (%q, %v)", tt.cell, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestHeaderTableLookup(t *testing.T) {
	table := NewHeaderTable(catalog.Default())

	tests := []struct {
		header any
		want   Target
		wantOK bool
	}{
		{"Competency Score: Leading others (STIVE)", Target{"leda_utveckla_och_engagera", "Leda andra"}, true},
		{"Competency Score: Upholding Standards", Target{"personlig_mognad_och_integritet", "Integritet"}, true},
		{"Fatta beslut", Target{"strategiskt_tankande_och_omdome", "Fatta beslut"}, true},
		{"Competency Score: Juggling (X)", Target{}, false},
		{nil, Target{}, false},
	}

	for _, tt := range tests {
		got, ok := table.Lookup(tt.header)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Lookup(%v) = (%+v, %v), want (%+v, %v)", tt.header, got, ok, tt.want, tt.wantOK)
		}
	}

	if table.Len() < 13 {
		t.Errorf("expected at least 13 aliases, got %d", table.Len())
	}
}
