// Package markup converts between LLM markdown, stored HTML and plain text.
package markup

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Strikethrough, extension.Table))

var (
	looksLikeHTML = regexp.MustCompile(`(?i)<(p|ul|ol|li|br|div|h[1-6]|strong|em|b|i)\b[^>]*>`)
	blankLines    = regexp.MustCompile(`\n{3,}`)
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
	leadingSpace  = regexp.MustCompile(`\n[ \t]+`)
)

// ToHTML renders markdown to HTML. Text that is already HTML is returned unchanged.
func ToHTML(text string) string {
	if IsHTML(text) {
		return text
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return "<p>" + html.EscapeString(text) + "</p>"
	}
	return strings.TrimSpace(buf.String())
}

// IsHTML reports whether text contains block or inline HTML tags
func IsHTML(text string) bool {
	return looksLikeHTML.MatchString(text)
}

// ToPlainText strips tags, keeping paragraph breaks and "• " list items.
// Text without HTML is only trimmed.
func ToPlainText(text string) string {
	if !IsHTML(text) {
		return strings.TrimSpace(text)
	}

	doc, err := html.Parse(strings.NewReader(text))
	if err != nil {
		return strings.TrimSpace(text)
	}

	var sb strings.Builder
	walk(&sb, doc)

	out := trailingSpace.ReplaceAllString(sb.String(), "\n")
	out = leadingSpace.ReplaceAllString(out, "\n")
	out = blankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

func walk(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(collapse(n.Data))
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Br:
			sb.WriteString("\n")
			return
		case atom.Li:
			sb.WriteString("\n• ")
		case atom.Script, atom.Style:
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(sb, c)
	}

	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.P, atom.Div, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
			atom.Ul, atom.Ol, atom.Table, atom.Blockquote:
			sb.WriteString("\n\n")
		case atom.Tr:
			sb.WriteString("\n")
		case atom.Td, atom.Th:
			sb.WriteString("\t")
		}
	}
}

func collapse(s string) string {
	if strings.TrimSpace(s) == "" {
		if strings.Contains(s, "\n") {
			return ""
		}
		return s
	}
	out := strings.Join(strings.Fields(s), " ")
	if isSpace(s[0]) {
		out = " " + out
	}
	if isSpace(s[len(s)-1]) {
		out += " "
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
