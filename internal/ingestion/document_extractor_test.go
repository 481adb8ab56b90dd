package ingestion

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeOCR struct {
	text string
	got  []byte
}

func (f *fakeOCR) DetectText(_ context.Context, image []byte) (string, error) {
	f.got = image
	return f.text, nil
}

// TestIsBinaryData tests binary detection on text, PDF, ZIP and noisy input
func TestIsBinaryData(t *testing.T) {
	noisy := strings.Repeat("\x01", 400) + strings.Repeat("x", 600)

	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{name: "Plain CV text", content: "Jane Doe\nRådman\n12 års erfarenhet", want: false},
		{name: "Empty string", content: "", want: false},
		{name: "Tabs and newlines", content: "Namn:\tJane\nRoll:\tRådman", want: false},
		{name: "Few non-printable", content: "Jane Doe\x00\nDomstolsjurist sedan 2010, tingsrätt och hovrätt", want: false},
		{name: "PDF header", content: "%PDF-1.7\n%%EOF", want: true},
		{name: "ZIP magic number", content: "PK\x03\x04\x14\x00", want: true},
		{name: "Mostly non-printable", content: noisy, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBinaryData(tt.content); got != tt.want {
				t.Errorf("IsBinaryData() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestExtractText_TXT tests that text uploads are returned trimmed
func TestExtractText_TXT(t *testing.T) {
	e := NewTextExtractor("", t.TempDir(), nil, nil)

	got, err := e.ExtractText(context.Background(), "cv.TXT", []byte("  Jane Doe\r\nRådman  \n"))
	if err != nil {
		t.Fatalf("ExtractText() failed: %v", err)
	}
	if got != "Jane Doe\nRådman" {
		t.Errorf("ExtractText() = %q", got)
	}
}

// TestExtractText_RejectsBinaryTXT tests that a renamed binary is not accepted as text
func TestExtractText_RejectsBinaryTXT(t *testing.T) {
	e := NewTextExtractor("", t.TempDir(), nil, nil)

	if _, err := e.ExtractText(context.Background(), "cv.txt", []byte("%PDF-1.4 binary")); err == nil {
		t.Error("expected error for binary content in .txt upload")
	}
}

// TestExtractText_UnsupportedType tests that unsupported file types return ErrUnsupported
func TestExtractText_UnsupportedType(t *testing.T) {
	e := NewTextExtractor("", t.TempDir(), nil, nil)

	for _, filename := range []string{"cv.xlsx", "cv.unknown", "scan.png"} {
		t.Run(filename, func(t *testing.T) {
			_, err := e.ExtractText(context.Background(), filename, []byte("data"))
			if !errors.Is(err, ErrUnsupported) {
				t.Errorf("expected ErrUnsupported, got %v", err)
			}
		})
	}
}

// TestExtractText_Image tests that images are sent to the OCR backend
func TestExtractText_Image(t *testing.T) {
	ocr := &fakeOCR{text: "Jane Doe\nRådman"}
	e := NewTextExtractor("", t.TempDir(), ocr, nil)

	got, err := e.ExtractText(context.Background(), "scan.PNG", []byte{0x89, 'P', 'N', 'G'})
	if err != nil {
		t.Fatalf("ExtractText() failed: %v", err)
	}
	if got != "Jane Doe\nRådman" {
		t.Errorf("ExtractText() = %q", got)
	}
	if len(ocr.got) != 4 {
		t.Errorf("OCR received %d bytes", len(ocr.got))
	}
}

// TestExtractText_PDFRequiresPDFHeader tests that non-PDF bytes are rejected before pdftotext runs
func TestExtractText_PDFRequiresPDFHeader(t *testing.T) {
	e := NewTextExtractor("/nonexistent/pdftotext", t.TempDir(), nil, nil)

	_, err := e.ExtractText(context.Background(), "cv.pdf", []byte("plain text"))
	if err == nil || !strings.Contains(err.Error(), "not a PDF") {
		t.Errorf("expected not a PDF error, got %v", err)
	}
}

// TestExtractText_PDFMissingTool tests that a missing pdftotext binary is reported
func TestExtractText_PDFMissingTool(t *testing.T) {
	e := NewTextExtractor("/nonexistent/pdftotext", t.TempDir(), nil, nil)

	_, err := e.ExtractText(context.Background(), "cv.pdf", []byte("%PDF-1.4\n"))
	if err == nil || !strings.Contains(err.Error(), "pdftotext") {
		t.Errorf("expected pdftotext error, got %v", err)
	}
}

// TestExtractText_DOCX tests paragraph, tab and break handling in Word documents
func TestExtractText_DOCX(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:r><w:t>Jane</w:t></w:r><w:r><w:t xml:space="preserve"> Doe</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Roll:</w:t><w:tab/><w:t>Rådman</w:t><w:br/><w:t>Stockholm</w:t></w:r></w:p>` +
		`</w:body></w:document>`

	e := NewTextExtractor("", t.TempDir(), nil, nil)
	got, err := e.ExtractText(context.Background(), "cv.docx", buildDocx(t, body))
	if err != nil {
		t.Fatalf("ExtractText() failed: %v", err)
	}

	want := "Jane Doe\nRoll:\tRådman\nStockholm"
	if got != want {
		t.Errorf("ExtractText() = %q, want %q", got, want)
	}
}

// TestExtractText_DOCXInvalid tests that a corrupt docx fails cleanly
func TestExtractText_DOCXInvalid(t *testing.T) {
	e := NewTextExtractor("", t.TempDir(), nil, nil)

	if _, err := e.ExtractText(context.Background(), "cv.docx", []byte("not a zip")); err == nil {
		t.Error("expected error for corrupt docx")
	}
}

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"[Content_Types].xml":          `<?xml version="1.0" encoding="UTF-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`,
		"word/document.xml":            documentXML,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8"?><Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
	}
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}
