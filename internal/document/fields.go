package document

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/fmuoria/assessment-report-agent/internal/catalog"
	"github.com/fmuoria/assessment-report-agent/internal/chart"
	"github.com/fmuoria/assessment-report-agent/internal/markup"
	"github.com/fmuoria/assessment-report-agent/internal/models"
)

var unsafeFilename = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f]+`)

// Filename is the download name of a candidate's report
func Filename(candidateName string) string {
	name := strings.TrimSpace(unsafeFilename.ReplaceAllString(candidateName, ""))
	if name == "" {
		name = "kandidat"
	}
	return "bedomning_" + name + ".docx"
}

// Fields builds the scalar token values of a report. Section HTML is reduced
// to plain text.
func Fields(rc *models.ReportContext, cat *catalog.Catalog, now time.Time) map[string]string {
	fields := map[string]string{
		"{candidate_name}":     rc.CandidateName,
		"{role}":               rc.Role,
		"{date}":               now.Format("2006-01-02"),
		"{skill_verbal}":       fmt.Sprint(rc.SkillVerbal),
		"{skill_numeric}":      fmt.Sprint(rc.SkillNumeric),
		"{motivation_factors}": strings.Join(MotivationLabels(rc, cat), ", "),
	}
	for _, t := range cat.Texts() {
		fields["{"+t.Key+"}"] = markup.ToPlainText(rc.Section(t.Key))
	}
	return fields
}

// MotivationLabels returns the labels of the selected motivation factors
func MotivationLabels(rc *models.ReportContext, cat *catalog.Catalog) []string {
	var labels []string
	for _, key := range rc.MotivationFactors {
		if f, ok := cat.MotivationFactor(key); ok {
			labels = append(labels, f.Label)
		}
	}
	return labels
}

// Images returns the chart of every section, preferring an image the client
// submitted as a data URL over a server-rendered one.
func Images(rc *models.ReportContext, cat *catalog.Catalog) (map[string][]byte, error) {
	images := make(map[string][]byte)
	for _, s := range cat.Sections() {
		if url, ok := rc.Images[s.ImagePlaceholder]; ok {
			if data, err := chart.DecodeDataURL(url); err == nil {
				images[s.ImagePlaceholder] = data
				continue
			}
		}

		data, err := chart.SectionPNG(s, rc.Ratings)
		if err != nil {
			return nil, err
		}
		images[s.ImagePlaceholder] = data
	}
	return images, nil
}
