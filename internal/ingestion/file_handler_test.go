package ingestion

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestSafeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "cv.pdf", want: "cv.pdf"},
		{in: "../../etc/passwd", want: "passwd"},
		{in: `C:\Users\jane\CV Jane.docx`, want: "CV_Jane.docx"},
		{in: "{leda_image}", want: "leda_image"},
		{in: "..", want: "file"},
		{in: "", want: "file"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SafeName(tt.in); got != tt.want {
				t.Errorf("SafeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSaveUploadedFile(t *testing.T) {
	tmpDir := t.TempDir()
	fh := NewFileHandler(tmpDir)
	id := uuid.NewString()

	path, err := fh.SaveUploadedFile(id, "../bedömning.xlsx", strings.NewReader("sheet"))
	if err != nil {
		t.Fatalf("Failed to save file: %v", err)
	}

	if filepath.Dir(path) != filepath.Join(tmpDir, id) {
		t.Errorf("file saved outside report directory: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(data) != "sheet" {
		t.Errorf("Expected content 'sheet', got '%s'", string(data))
	}

	if err := fh.ClearUploads(id); err != nil {
		t.Fatalf("ClearUploads() failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("upload still present after ClearUploads")
	}
}

func TestSaveUploadedFileRejectsBadReportID(t *testing.T) {
	fh := NewFileHandler(t.TempDir())

	if _, err := fh.SaveUploadedFile("../x", "cv.txt", strings.NewReader("x")); err == nil {
		t.Error("expected error for invalid report id")
	}
}

func TestSaveReportPNG(t *testing.T) {
	dir := t.TempDir()
	ms := NewMediaStore(dir, "/media")
	id := uuid.NewString()

	url, err := ms.SaveReportPNG([]byte("png"), id, "{leda_image}")
	if err != nil {
		t.Fatalf("SaveReportPNG() failed: %v", err)
	}

	wantURL := "/media/reports/" + id + "/tables/leda_image.png"
	if url != wantURL {
		t.Errorf("url = %q, want %q", url, wantURL)
	}

	data, err := os.ReadFile(filepath.Join(dir, "reports", id, "tables", "leda_image.png"))
	if err != nil {
		t.Fatalf("image not written: %v", err)
	}
	if string(data) != "png" {
		t.Errorf("unexpected image content %q", data)
	}
}
