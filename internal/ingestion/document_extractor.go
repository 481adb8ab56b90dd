package ingestion

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/nguyenthenguyen/docx"
	"go.uber.org/zap"
)

const (
	// MinExtractedTextLength is the minimum text length required for successful extraction
	MinExtractedTextLength = 50
	// BinarySampleSize is the number of bytes to sample for binary detection
	BinarySampleSize = 1000
	// BinaryThreshold is the proportion of non-printable characters that indicates binary data
	BinaryThreshold = 0.3
)

// ErrUnsupported is returned for file types without an extractor
var ErrUnsupported = errors.New("unsupported file type")

// OCR reads the text of an image
type OCR interface {
	DetectText(ctx context.Context, image []byte) (string, error)
}

// TextExtractor turns uploaded CV files into plain text
type TextExtractor struct {
	pdfToText string
	tempDir   string
	ocr       OCR
	logger    *zap.Logger
}

// NewTextExtractor creates an extractor. ocr may be nil, which disables images.
func NewTextExtractor(pdfToText, tempDir string, ocr OCR, logger *zap.Logger) *TextExtractor {
	if pdfToText == "" {
		pdfToText = "pdftotext"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TextExtractor{pdfToText: pdfToText, tempDir: tempDir, ocr: ocr, logger: logger}
}

// ExtractText extracts text from TXT, PDF, DOCX or image uploads
func (e *TextExtractor) ExtractText(ctx context.Context, filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	var (
		text string
		err  error
	)
	switch ext {
	case ".txt", ".md":
		if IsBinaryData(string(data)) || !utf8.Valid(data) {
			return "", fmt.Errorf("%s does not look like a text file", filename)
		}
		text = string(data)
	case ".pdf":
		text, err = e.extractPDF(ctx, data)
	case ".docx":
		text, err = ExtractDOCX(data)
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".gif", ".bmp", ".webp":
		if e.ocr == nil {
			return "", fmt.Errorf("%w: %s (OCR not configured)", ErrUnsupported, ext)
		}
		text, err = e.ocr.DetectText(ctx, data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
	if err != nil {
		e.logger.Warn("text extraction failed", zap.String("file", filename), zap.Error(err))
		return "", err
	}

	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	e.logger.Debug("text extracted", zap.String("file", filename), zap.Int("chars", utf8.RuneCountInString(text)))
	return text, nil
}

// extractPDF runs pdftotext on a temporary copy of the upload
func (e *TextExtractor) extractPDF(ctx context.Context, data []byte) (string, error) {
	if !strings.HasPrefix(string(data), "%PDF-") {
		return "", fmt.Errorf("file is not a PDF")
	}

	tmp, err := os.CreateTemp(e.tempDir, "cv-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	tmp.Close()

	cmd := exec.CommandContext(ctx, e.pdfToText, "-layout", "-enc", "UTF-8", tmp.Name(), "-")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("PDF extraction requires 'pdftotext' (install poppler-utils): %w", err)
	}

	text := string(output)
	if len(strings.TrimSpace(text)) < MinExtractedTextLength {
		return "", fmt.Errorf("extracted text is too short (likely a scanned PDF)")
	}
	return text, nil
}

// ExtractDOCX returns the paragraph text of a Word document
func ExtractDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}
	defer r.Close()

	return documentText(r.Editable().GetContent())
}

// documentText walks WordprocessingML, keeping text runs, tabs and line breaks
func documentText(content string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(content))

	var sb strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse docx content: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteString("\t")
			case "br", "cr":
				sb.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// IsBinaryData checks if content appears to be binary (PDF/ZIP markers)
func IsBinaryData(content string) bool {
	if len(content) == 0 {
		return false
	}

	// Check for PDF magic number
	if strings.HasPrefix(content, "%PDF-") {
		return true
	}

	// Check for ZIP magic number (DOCX files)
	if len(content) >= 2 && content[:2] == "PK" {
		return true
	}

	sampleSize := min(BinarySampleSize, len(content))
	nonPrintable := 0
	for i := 0; i < sampleSize; i++ {
		ch := content[i]
		if ch < 32 && ch != '\n' && ch != '\r' && ch != '\t' {
			nonPrintable++
		}
	}

	return float64(nonPrintable)/float64(sampleSize) > BinaryThreshold
}
