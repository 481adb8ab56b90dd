// Package chart renders competency rating charts as PNG images.
package chart

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/color"

	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/fmuoria/assessment-report-agent/internal/catalog"
	"github.com/fmuoria/assessment-report-agent/internal/models"
)

// DataURLPrefix starts every PNG data URL
const DataURLPrefix = "data:image/png;base64,"

const (
	width      = 900
	rowHeight  = 46
	topMargin  = 40
	leftMargin = 240
	barMax     = 600
)

var (
	background = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	gridColor  = color.RGBA{R: 0xd9, G: 0xd9, B: 0xd9, A: 0xff}
	barColor   = color.RGBA{R: 0x1f, G: 0x4e, B: 0x79, A: 0xff}
	textColor  = color.RGBA{R: 0x22, G: 0x22, B: 0x22, A: 0xff}
)

// SectionPNG draws a horizontal bar per sub-label of section on the 1-5 scale
func SectionPNG(section catalog.Section, ratings models.RatingSet) ([]byte, error) {
	height := topMargin + rowHeight*len(section.Competencies) + 30

	dc := gg.NewContext(width, height)
	dc.SetColor(background)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(textColor)
	dc.DrawString(section.Title, 16, 24)

	step := float64(barMax) / models.MaxRating
	dc.SetColor(gridColor)
	dc.SetLineWidth(1)
	for i := 0; i <= models.MaxRating; i++ {
		x := float64(leftMargin) + step*float64(i)
		dc.DrawLine(x, topMargin, x, float64(height-24))
		dc.Stroke()
	}
	dc.SetColor(textColor)
	for i := models.MinRating; i <= models.MaxRating; i++ {
		x := float64(leftMargin) + step*float64(i)
		dc.DrawStringAnchored(fmt.Sprint(i), x, float64(height-10), 0.5, 0)
	}

	for row, c := range section.Competencies {
		score := ratings.Get(section.Key, c.Label)
		y := float64(topMargin + row*rowHeight)

		dc.SetColor(textColor)
		dc.DrawStringAnchored(c.Label, float64(leftMargin-12), y+rowHeight/2, 1, 0.35)

		dc.SetColor(barColor)
		dc.DrawRectangle(float64(leftMargin), y+10, step*float64(score), rowHeight-20)
		dc.Fill()
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL wraps PNG bytes in a data URL
func DataURL(png []byte) string {
	return DataURLPrefix + base64.StdEncoding.EncodeToString(png)
}

// DecodeDataURL returns the PNG bytes of a data URL
func DecodeDataURL(url string) ([]byte, error) {
	if len(url) < len(DataURLPrefix) || url[:len(DataURLPrefix)] != DataURLPrefix {
		return nil, fmt.Errorf("not a png data url")
	}
	data, err := base64.StdEncoding.DecodeString(url[len(DataURLPrefix):])
	if err != nil {
		return nil, fmt.Errorf("failed to decode data url: %w", err)
	}
	return data, nil
}
