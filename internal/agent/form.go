package agent

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/fmuoria/assessment-report-agent/internal/catalog"
	"github.com/fmuoria/assessment-report-agent/internal/chart"
	"github.com/fmuoria/assessment-report-agent/internal/models"
)

// MergeForm copies allow-listed form values into rc. Only keys present in the
// form are touched. It returns a note for every value that had to be corrected.
func MergeForm(rc *models.ReportContext, form url.Values, cat *catalog.Catalog) []string {
	var notes []string

	for _, key := range models.ContextKeys {
		values, ok := form[key]
		if !ok {
			continue
		}
		value := ""
		if len(values) > 0 {
			value = strings.TrimSpace(values[0])
		}

		switch key {
		case "candidate_name":
			rc.CandidateName = value
		case "role":
			rc.Role = value
		case "interview_text":
			rc.InterviewText = value
		case "cv_text":
			rc.CVText = value
		case "job_ad_text":
			rc.JobAdText = value
		case "skill_verbal":
			var note string
			rc.SkillVerbal, note = parseSkill(key, value)
			notes = appendNote(notes, note)
		case "skill_numeric":
			var note string
			rc.SkillNumeric, note = parseSkill(key, value)
			notes = appendNote(notes, note)
		case "motivation_factors":
			var dropped []string
			rc.MotivationFactors, dropped = selectFactors(values, cat)
			for _, d := range dropped {
				notes = append(notes, fmt.Sprintf("motivationsfaktor %q ignorerad", d))
			}
		case "ratings":
			if value == "" {
				continue
			}
			rs, err := models.ParseRatingSet(value)
			if err != nil {
				notes = append(notes, "ogiltiga betyg i formuläret, tidigare betyg behålls")
				continue
			}
			rc.Ratings = mergeRatings(rc.Ratings, rs, cat)
		}
	}

	for _, t := range cat.Texts() {
		if values, ok := form[t.Key]; ok && len(values) > 0 {
			rc.SetSection(t.Key, strings.TrimSpace(values[0]))
		}
	}

	for _, s := range cat.Sections() {
		field := strings.Trim(s.ImagePlaceholder, "{}")
		values, ok := form[field]
		if !ok || len(values) == 0 || values[0] == "" {
			continue
		}
		if _, err := chart.DecodeDataURL(values[0]); err != nil {
			notes = append(notes, fmt.Sprintf("bild %s ignorerad: %v", field, err))
			continue
		}
		if rc.Images == nil {
			rc.Images = make(map[string]string)
		}
		rc.Images[s.ImagePlaceholder] = values[0]
	}

	return notes
}

// mergeRatings applies the submitted scores that name a known sub-label and
// lie on the scale
func mergeRatings(base, submitted models.RatingSet, cat *catalog.Catalog) models.RatingSet {
	out := base.Complete(cat)
	for section, sub := range submitted {
		s, ok := cat.Section(section)
		if !ok {
			continue
		}
		labels := s.Labels()
		for label, v := range sub {
			if slices.Contains(labels, label) && v >= models.MinRating && v <= models.MaxRating {
				out.Set(section, label, v)
			}
		}
	}
	return out
}

// parseSkill reads a 0-99 percentile, clamping out-of-range values
func parseSkill(key, value string) (int, string) {
	if value == "" {
		return 0, ""
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Sprintf("%s: %q är inget heltal, 0 används", key, value)
	}
	switch {
	case n < models.MinSkill:
		return models.MinSkill, fmt.Sprintf("%s: %d justerat till %d", key, n, models.MinSkill)
	case n > models.MaxSkill:
		return models.MaxSkill, fmt.Sprintf("%s: %d justerat till %d", key, n, models.MaxSkill)
	}
	return n, ""
}

// selectFactors keeps the first known, distinct factor keys up to the limit
func selectFactors(values []string, cat *catalog.Catalog) (kept, dropped []string) {
	for _, v := range values {
		for _, key := range strings.Split(v, ",") {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			if _, ok := cat.MotivationFactor(key); !ok || slices.Contains(kept, key) || len(kept) == models.MaxMotivationFactors {
				dropped = append(dropped, key)
				continue
			}
			kept = append(kept, key)
		}
	}
	return kept, dropped
}

func appendNote(notes []string, note string) []string {
	if note == "" {
		return notes
	}
	return append(notes, note)
}
