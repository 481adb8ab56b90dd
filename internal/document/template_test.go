package document

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmuoria/assessment-report-agent/internal/catalog"
	"github.com/fmuoria/assessment-report-agent/internal/models"
)

const shippedTemplate = "../../templates/bedomning_template.docx"

func TestShippedTemplateIsFullyReplaced(t *testing.T) {
	if _, err := os.Stat(shippedTemplate); err != nil {
		t.Skipf("template not available: %v", err)
	}

	cat := catalog.Default()
	rc := models.NewReportContext(cat)
	rc.CandidateName = "Jane Doe"
	rc.Role = "Rådman"
	for _, text := range cat.Texts() {
		rc.SetSection(text.Key, "<p>Text för "+text.Title+"</p>")
	}

	images, err := Images(rc, cat)
	require.NoError(t, err)

	doc, err := NewAssembler(filepath.FromSlash(shippedTemplate), 15, cat, nil).Assemble(context.Background(), Input{
		Fields:  Fields(rc, cat, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)),
		Ratings: rc.Ratings,
		Images:  images,
	})
	require.NoError(t, err)

	parts := readParts(t, doc)
	for _, text := range paragraphs(parts["word/document.xml"]) {
		assert.NotRegexp(t, tokenRe, text)
	}
	assert.Contains(t, parts["word/header1.xml"], "Jane Doe")
	assert.Equal(t, len(cat.Sections()), countMedia(parts))
}

func countMedia(parts map[string]string) int {
	n := 0
	for name := range parts {
		if filepath.Dir(name) == "word/media" {
			n++
		}
	}
	return n
}
