// Package document assembles the Word report from the template.
package document

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"slices"
	"strings"

	"github.com/nguyenthenguyen/docx"
	"go.uber.org/zap"

	"github.com/fmuoria/assessment-report-agent/internal/catalog"
	"github.com/fmuoria/assessment-report-agent/internal/metrics"
	"github.com/fmuoria/assessment-report-agent/internal/models"
)

// ContentType is the MIME type of the assembled document
const ContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Input is everything substituted into the template
type Input struct {
	// Fields maps literal tokens such as "{candidate_name}" to plain text
	Fields map[string]string
	// Ratings fills the rating tables
	Ratings models.RatingSet
	// Images maps image tokens such as "{leda_image}" to PNG data
	Images map[string][]byte
}

// Assembler fills the Word template
type Assembler struct {
	templatePath string
	imageWidthCM float64
	catalog      *catalog.Catalog
	logger       *zap.Logger
}

// NewAssembler creates an assembler for the template at templatePath
func NewAssembler(templatePath string, imageWidthCM float64, cat *catalog.Catalog, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{
		templatePath: templatePath,
		imageWidthCM: imageWidthCM,
		catalog:      cat,
		logger:       logger,
	}
}

// Assemble reads the template and returns the filled document
func (a *Assembler) Assemble(ctx context.Context, in Input) ([]byte, error) {
	tpl, err := os.ReadFile(a.templatePath)
	if err != nil {
		metrics.DocumentsAssembled.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to read document template: %w", err)
	}

	out, err := a.AssembleBytes(ctx, tpl, in)
	if err != nil {
		metrics.DocumentsAssembled.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.DocumentsAssembled.WithLabelValues("ok").Inc()
	return out, nil
}

// AssembleBytes fills an in-memory template
func (a *Assembler) AssembleBytes(ctx context.Context, tpl []byte, in Input) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r, err := docx.ReadDocxFromMemory(bytes.NewReader(tpl), int64(len(tpl)))
	if err != nil {
		return nil, fmt.Errorf("failed to open document template: %w", err)
	}
	defer r.Close()

	d := r.Editable()
	content := mergeSplitTokens(d.GetContent())

	for _, s := range a.catalog.Sections() {
		var found bool
		content, found = replaceParagraphs(content, s.TablePlaceholder, func() string {
			return ratingTable(s, in.Ratings)
		})
		if !found {
			a.logger.Debug("table placeholder not in template", zap.String("token", s.TablePlaceholder))
		}
	}

	var parts []mediaPart
	nextID := 1000
	for _, s := range a.catalog.Sections() {
		token := s.ImagePlaceholder
		data, ok := in.Images[token]
		if !ok {
			content, _ = replaceParagraphs(content, token, func() string { return "<w:p/>" })
			continue
		}

		cfg, err := png.DecodeConfig(bytes.NewReader(data))
		if err != nil || cfg.Width == 0 {
			a.logger.Warn("skipping invalid image", zap.String("token", token), zap.Error(err))
			content, _ = replaceParagraphs(content, token, func() string { return "<w:p/>" })
			continue
		}

		widthEMU := int64(a.imageWidthCM * emuPerCM)
		heightEMU := widthEMU * int64(cfg.Height) / int64(cfg.Width)

		nextID++
		part := mediaPart{
			relID: fmt.Sprintf("rIdBedomning%d", nextID),
			name:  fmt.Sprintf("bedomning_%s.png", strings.Trim(token, "{}")),
			data:  data,
		}
		id := nextID
		var found bool
		content, found = replaceParagraphs(content, token, func() string {
			return drawingParagraph(part.relID, id, widthEMU, heightEMU)
		})
		if found {
			parts = append(parts, part)
		}
	}

	content = replaceScalars(content, in.Fields)
	d.SetContent(content)

	if err := replaceHeaders(d, in.Fields); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := d.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write document: %w", err)
	}

	out, err := addMedia(buf.Bytes(), parts)
	if err != nil {
		return nil, err
	}

	a.logger.Info("document assembled", zap.Int("bytes", len(out)), zap.Int("images", len(parts)))
	return out, nil
}

// replaceHeaders fills field tokens in the headers. Tokens are first swapped
// for markers so that values containing tokens are left as written.
func replaceHeaders(d *docx.Docx, fields map[string]string) error {
	tokens := make([]string, 0, len(fields))
	for token := range fields {
		tokens = append(tokens, token)
	}
	slices.Sort(tokens)

	for i, token := range tokens {
		if err := d.ReplaceHeader(token, headerMarker(i)); err != nil {
			return fmt.Errorf("failed to replace %s in header: %w", token, err)
		}
	}
	for i, token := range tokens {
		value := fields[token]
		if strings.ContainsAny(value, "\r\n") {
			value = strings.Join(strings.Fields(value), " ")
		}
		if err := d.ReplaceHeader(headerMarker(i), value); err != nil {
			return fmt.Errorf("failed to replace %s in header: %w", token, err)
		}
	}
	return nil
}
