package document

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"github.com/fmuoria/assessment-report-agent/internal/catalog"
	"github.com/fmuoria/assessment-report-agent/internal/models"
)

const (
	markFilled = "●"
	markEmpty  = "○"
)

var (
	paragraphRe = regexp.MustCompile(`(?s)<w:p[ >].*?</w:p>`)
	textRe      = regexp.MustCompile(`(?s)(<w:t(?: [^>]*)?>)(.*?)(</w:t>)`)
	tokenRe     = regexp.MustCompile(`\{[A-Za-z_][A-Za-z0-9_]*\}`)
	emptyTextRe = regexp.MustCompile(`<w:t>`)
)

// lineBreak ends the current text element, breaks the line and opens a new one
const lineBreak = `</w:t><w:br/><w:t xml:space="preserve">`

func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func unescape(s string) string {
	var out struct {
		Text string `xml:",chardata"`
	}
	if err := xml.Unmarshal([]byte("<t>"+s+"</t>"), &out); err != nil {
		return s
	}
	return out.Text
}

// paragraphText joins the text runs of a paragraph
func paragraphText(p string) string {
	var sb strings.Builder
	for _, m := range textRe.FindAllStringSubmatch(p, -1) {
		sb.WriteString(unescape(m[2]))
	}
	return sb.String()
}

// mergeSplitTokens joins the runs of paragraphs where Word has split a
// {token} across several text elements.
func mergeSplitTokens(content string) string {
	return paragraphRe.ReplaceAllStringFunc(content, func(p string) string {
		joined := paragraphText(p)
		tokens := tokenRe.FindAllString(joined, -1)
		if len(tokens) == 0 {
			return p
		}

		texts := textRe.FindAllStringSubmatch(p, -1)
		split := false
		for _, tok := range tokens {
			whole := false
			for _, m := range texts {
				if strings.Contains(unescape(m[2]), tok) {
					whole = true
					break
				}
			}
			if !whole {
				split = true
				break
			}
		}
		if !split {
			return p
		}

		first := true
		return textRe.ReplaceAllStringFunc(p, func(string) string {
			if first {
				first = false
				return `<w:t xml:space="preserve">` + escape(joined) + `</w:t>`
			}
			return `<w:t></w:t>`
		})
	})
}

// multiline renders a value for use inside a text element
func multiline(value string) string {
	value = strings.ReplaceAll(value, "\r\n", "\n")
	lines := strings.Split(value, "\n")
	for i, l := range lines {
		lines[i] = escape(l)
	}
	return strings.Join(lines, lineBreak)
}

// replaceScalars substitutes every field token in the body text in a single
// pass. Substituted values are not scanned for further tokens.
func replaceScalars(content string, fields map[string]string) string {
	content = emptyTextRe.ReplaceAllString(content, `<w:t xml:space="preserve">`)
	return tokenRe.ReplaceAllStringFunc(content, func(token string) string {
		value, ok := fields[token]
		if !ok {
			return token
		}
		return multiline(value)
	})
}

// headerMarker stands in for a field token in headers between the two
// replacement passes
func headerMarker(i int) string {
	return fmt.Sprintf("\u2063BEDOMNINGFALT%04d\u2063", i)
}

// replaceParagraphs swaps every paragraph containing token for the given XML
func replaceParagraphs(content, token string, replacement func() string) (string, bool) {
	found := false
	out := paragraphRe.ReplaceAllStringFunc(content, func(p string) string {
		if !strings.Contains(paragraphText(p), token) {
			return p
		}
		found = true
		return replacement()
	})
	return out, found
}

func cell(width int, content string) string {
	return fmt.Sprintf(`<w:tc><w:tcPr><w:tcW w:w="%d" w:type="dxa"/><w:vAlign w:val="center"/></w:tcPr>%s</w:tc>`, width, content)
}

func centered(text string, bold bool) string {
	rpr := ""
	if bold {
		rpr = "<w:rPr><w:b/></w:rPr>"
	}
	return fmt.Sprintf(`<w:p><w:pPr><w:jc w:val="center"/></w:pPr><w:r>%s<w:t>%s</w:t></w:r></w:p>`, rpr, escape(text))
}

const (
	labelWidth = 5000
	markWidth  = 800
)

// ratingTable renders one row per sub-label with the rated position filled
func ratingTable(section catalog.Section, ratings models.RatingSet) string {
	var sb strings.Builder
	borders := `<w:tblBorders>` +
		`<w:top w:val="single" w:sz="4" w:space="0" w:color="A6A6A6"/>` +
		`<w:left w:val="single" w:sz="4" w:space="0" w:color="A6A6A6"/>` +
		`<w:bottom w:val="single" w:sz="4" w:space="0" w:color="A6A6A6"/>` +
		`<w:right w:val="single" w:sz="4" w:space="0" w:color="A6A6A6"/>` +
		`<w:insideH w:val="single" w:sz="4" w:space="0" w:color="A6A6A6"/>` +
		`<w:insideV w:val="single" w:sz="4" w:space="0" w:color="A6A6A6"/>` +
		`</w:tblBorders>`

	sb.WriteString(`<w:tbl><w:tblPr><w:tblW w:w="0" w:type="auto"/>` + borders + `</w:tblPr><w:tblGrid>`)
	sb.WriteString(fmt.Sprintf(`<w:gridCol w:w="%d"/>`, labelWidth))
	for i := models.MinRating; i <= models.MaxRating; i++ {
		sb.WriteString(fmt.Sprintf(`<w:gridCol w:w="%d"/>`, markWidth))
	}
	sb.WriteString(`</w:tblGrid>`)

	sb.WriteString(`<w:tr>`)
	sb.WriteString(cell(labelWidth, fmt.Sprintf(`<w:p><w:r><w:rPr><w:b/></w:rPr><w:t>%s</w:t></w:r></w:p>`, escape(section.Title))))
	for i := models.MinRating; i <= models.MaxRating; i++ {
		sb.WriteString(cell(markWidth, centered(fmt.Sprint(i), true)))
	}
	sb.WriteString(`</w:tr>`)

	for _, c := range section.Competencies {
		score := ratings.Get(section.Key, c.Label)

		label := fmt.Sprintf(`<w:p><w:r><w:rPr><w:b/></w:rPr><w:t>%s</w:t></w:r></w:p>`, escape(c.Label))
		if c.Description != "" {
			label += fmt.Sprintf(`<w:p><w:r><w:rPr><w:sz w:val="18"/></w:rPr><w:t>%s</w:t></w:r></w:p>`, escape(c.Description))
		}

		sb.WriteString(`<w:tr>`)
		sb.WriteString(cell(labelWidth, label))
		for i := models.MinRating; i <= models.MaxRating; i++ {
			mark := markEmpty
			if i == score {
				mark = markFilled
			}
			sb.WriteString(cell(markWidth, centered(mark, false)))
		}
		sb.WriteString(`</w:tr>`)
	}

	// a table cell must end with a paragraph
	sb.WriteString(`</w:tbl><w:p/>`)
	return sb.String()
}

// EMUs per centimetre
const emuPerCM = 360000

func drawingParagraph(rid string, id int, widthEMU, heightEMU int64) string {
	return fmt.Sprintf(`<w:p><w:pPr><w:jc w:val="center"/></w:pPr><w:r><w:drawing>`+
		`<wp:inline distT="0" distB="0" distL="0" distR="0" xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing">`+
		`<wp:extent cx="%[3]d" cy="%[4]d"/>`+
		`<wp:docPr id="%[2]d" name="Diagram %[2]d"/>`+
		`<wp:cNvGraphicFramePr><a:graphicFrameLocks xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" noChangeAspect="1"/></wp:cNvGraphicFramePr>`+
		`<a:graphic xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">`+
		`<a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:pic xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">`+
		`<pic:nvPicPr><pic:cNvPr id="%[2]d" name="diagram%[2]d.png"/><pic:cNvPicPr/></pic:nvPicPr>`+
		`<pic:blipFill><a:blip r:embed="%[1]s" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"/><a:stretch><a:fillRect/></a:stretch></pic:blipFill>`+
		`<pic:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%[3]d" cy="%[4]d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`+
		`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing></w:r></w:p>`,
		rid, id, widthEMU, heightEMU)
}
