package document

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
)

const (
	relsPart         = "word/_rels/document.xml.rels"
	contentTypesPart = "[Content_Types].xml"
	imageRelType     = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
)

type mediaPart struct {
	relID string
	name  string
	data  []byte
}

// addMedia rewrites the package with the pictures, their relationships and
// the png content type.
func addMedia(pkg []byte, parts []mediaPart) ([]byte, error) {
	if len(parts) == 0 {
		return pkg, nil
	}

	zr, err := zip.NewReader(bytes.NewReader(pkg), int64(len(pkg)))
	if err != nil {
		return nil, fmt.Errorf("failed to open document package: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	sawRels := false

	for _, f := range zr.File {
		data, err := readPart(f)
		if err != nil {
			return nil, err
		}

		switch f.Name {
		case relsPart:
			sawRels = true
			data = []byte(addRelationships(string(data), parts))
		case contentTypesPart:
			data = []byte(addPNGContentType(string(data)))
		}

		if err := writePart(zw, f.Name, data); err != nil {
			return nil, err
		}
	}

	if !sawRels {
		rels := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
			`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`
		if err := writePart(zw, relsPart, []byte(addRelationships(rels, parts))); err != nil {
			return nil, err
		}
	}

	for _, p := range parts {
		if err := writePart(zw, "word/media/"+p.name, p.data); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish document package: %w", err)
	}
	return buf.Bytes(), nil
}

func readPart(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	return data, nil
}

func writePart(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

func addRelationships(rels string, parts []mediaPart) string {
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(fmt.Sprintf(`<Relationship Id="%s" Type="%s" Target="media/%s"/>`, p.relID, imageRelType, p.name))
	}
	return strings.Replace(rels, "</Relationships>", sb.String()+"</Relationships>", 1)
}

func addPNGContentType(types string) string {
	if strings.Contains(types, `Extension="png"`) {
		return types
	}
	return strings.Replace(types, "</Types>", `<Default Extension="png" ContentType="image/png"/></Types>`, 1)
}
