package agent

import (
	"slices"
	"strings"

	"github.com/fmuoria/assessment-report-agent/internal/catalog"
	"github.com/fmuoria/assessment-report-agent/internal/markup"
	"github.com/fmuoria/assessment-report-agent/internal/models"
)

// PromptVars builds the placeholder values of the prompt generating text
func PromptVars(rc *models.ReportContext, text catalog.TextSection, cat *catalog.Catalog) map[string]any {
	factors := make([]string, 0, len(rc.MotivationFactors))
	for _, key := range rc.MotivationFactors {
		if f, ok := cat.MotivationFactor(key); ok {
			factors = append(factors, f.Label+": "+f.Definition)
		}
	}

	vars := map[string]any{
		"candidate_name":     rc.CandidateName,
		"role":               rc.Role,
		"skill_verbal":       rc.SkillVerbal,
		"skill_numeric":      rc.SkillNumeric,
		"motivation_factors": factors,
		"interview_text":     rc.InterviewText,
		"cv_text":            rc.CVText,
		"job_ad":             rc.JobAdText,
		"excel_text":         rc.ExcelText,
		"ratings_json":       rc.Ratings.Complete(cat),
		"section_title":      text.Title,
		"section_key":        text.Section,
		"section_ratings":    map[string]int{},
		"previous_sections":  previousSections(rc, text, cat),
	}

	if s, ok := cat.Section(text.Section); ok {
		ratings := make(map[string]int, len(s.Competencies))
		for _, label := range s.Labels() {
			ratings[label] = rc.Ratings.Get(s.Key, label)
		}
		vars["section_ratings"] = ratings
		vars["section_title"] = s.Title
	}

	return vars
}

// VarNames lists every placeholder PromptVars fills, sorted
func VarNames(cat *catalog.Catalog) []string {
	vars := PromptVars(&models.ReportContext{}, catalog.TextSection{}, cat)
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// previousSections renders the texts of earlier steps as plain text
func previousSections(rc *models.ReportContext, text catalog.TextSection, cat *catalog.Catalog) string {
	var parts []string
	for _, t := range cat.Texts() {
		if t.Step >= text.Step {
			continue
		}
		body := markup.ToPlainText(rc.Section(t.Key))
		if body == "" {
			continue
		}
		parts = append(parts, t.Title+":\n"+body)
	}
	return strings.Join(parts, "\n\n")
}
