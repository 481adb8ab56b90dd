package ingestion

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeName reduces a client supplied file or placeholder name to a safe file name
func SafeName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.Trim(unsafeName.ReplaceAllString(name, "_"), "._")
	if name == "" {
		return "file"
	}
	return name
}

// FileHandler keeps raw uploads of a report next to the stored context
type FileHandler struct {
	uploadsDir string
}

// NewFileHandler creates a new file handler
func NewFileHandler(uploadsDir string) *FileHandler {
	return &FileHandler{
		uploadsDir: uploadsDir,
	}
}

// SaveUploadedFile saves an uploaded file under the report's uploads directory
func (fh *FileHandler) SaveUploadedFile(reportID, filename string, content io.Reader) (string, error) {
	if _, err := uuid.Parse(reportID); err != nil {
		return "", fmt.Errorf("invalid report id %q: %w", reportID, err)
	}

	dir := filepath.Join(fh.uploadsDir, reportID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create uploads directory: %w", err)
	}

	filePath := filepath.Join(dir, SafeName(filename))
	file, err := os.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, content); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return filePath, nil
}

// ClearUploads removes all uploads of a report
func (fh *FileHandler) ClearUploads(reportID string) error {
	if _, err := uuid.Parse(reportID); err != nil {
		return fmt.Errorf("invalid report id %q: %w", reportID, err)
	}
	if err := os.RemoveAll(filepath.Join(fh.uploadsDir, reportID)); err != nil {
		return fmt.Errorf("failed to clear uploads directory: %w", err)
	}
	return nil
}

// MediaStore writes exported report images below a public media directory
type MediaStore struct {
	dir       string
	urlPrefix string
}

// NewMediaStore creates a media store serving files from dir under urlPrefix
func NewMediaStore(dir, urlPrefix string) *MediaStore {
	if urlPrefix == "" {
		urlPrefix = "/media/"
	}
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	return &MediaStore{dir: dir, urlPrefix: urlPrefix}
}

// Dir returns the media root directory
func (m *MediaStore) Dir() string {
	return m.dir
}

// URLPrefix returns the public prefix of media URLs
func (m *MediaStore) URLPrefix() string {
	return m.urlPrefix
}

// SaveReportPNG writes reports/<id>/tables/<name>.png and returns its public URL
func (m *MediaStore) SaveReportPNG(png []byte, reportID, name string) (string, error) {
	if _, err := uuid.Parse(reportID); err != nil {
		return "", fmt.Errorf("invalid report id %q: %w", reportID, err)
	}

	fileName := strings.TrimSuffix(SafeName(name), ".png") + ".png"
	rel := path.Join("reports", reportID, "tables", fileName)

	full := filepath.Join(m.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}
	if err := os.WriteFile(full, png, 0644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}

	return m.urlPrefix + rel, nil
}
