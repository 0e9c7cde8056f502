package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/codebuildervaibhav/convertanything/internal/types"
)

// Page geometry in millimetres (A4 portrait)
const (
	PageHeight    = 297.0
	Margin        = 20.0
	LineHeight    = 6.0
	BottomReserve = 30.0
	PageTop       = 30.0
	WrapWidth     = 170.0
	BodyStart     = 100.0
)

// Font sizes in points
const (
	titleFontSize = 20.0
	metaFontSize  = 12.0
	bodyFontSize  = 10.0
)

// Style selects the font used for a drawn line
type Style int

const (
	StyleTitle Style = iota
	StyleMeta
	StyleHeading
	StyleBody
)

// Op is one line of text placed on a page. Pages are numbered from 1.
type Op struct {
	Page  int
	X     float64
	Y     float64
	Style Style
	Text  string
}

// Measurer wraps body text to a width. The PDF renderer provides one backed
// by real font metrics.
type Measurer interface {
	SplitText(text string, width float64) []string
}

// Layout places the title, metadata block and every segment on pages.
// A new page starts whenever the cursor passes pageHeight-BottomReserve.
func Layout(t *types.Transcript, meta Meta, m Measurer, pageHeight float64) []Op {
	ops := []Op{
		{Page: 1, X: Margin, Y: 30, Style: StyleTitle, Text: "Audio Transcription"},
		{Page: 1, X: Margin, Y: 50, Style: StyleMeta, Text: "Source: " + meta.Source()},
		{Page: 1, X: Margin, Y: 60, Style: StyleMeta, Text: "Date: " + meta.GeneratedAt.Format("2006-01-02")},
		{Page: 1, X: Margin, Y: 70, Style: StyleMeta, Text: "Duration: " + FormatDuration(t.Duration)},
		{Page: 1, X: Margin, Y: 80, Style: StyleMeta, Text: fmt.Sprintf("Speakers: %d", t.SpeakerCount())},
	}

	page := 1
	y := BodyStart
	limit := pageHeight - BottomReserve

	breakIfNeeded := func() {
		if y > limit {
			page++
			y = PageTop
		}
	}

	for _, seg := range t.Segments {
		breakIfNeeded()
		heading := fmt.Sprintf("[%s] %s:", FormatTimestamp(seg.Start), seg.Speaker)
		ops = append(ops, Op{Page: page, X: Margin, Y: y, Style: StyleHeading, Text: heading})
		y += LineHeight

		for _, line := range m.SplitText(strings.TrimSpace(seg.Text), WrapWidth) {
			breakIfNeeded()
			ops = append(ops, Op{Page: page, X: Margin, Y: y, Style: StyleBody, Text: line})
			y += LineHeight
		}

		// gap between segments
		y += LineHeight
	}

	return ops
}

// PageCount returns the number of pages a layout spans
func PageCount(ops []Op) int {
	n := 0
	for _, op := range ops {
		if op.Page > n {
			n = op.Page
		}
	}
	return n
}

// fpdfMeasurer measures with the body font of the document being built
type fpdfMeasurer struct {
	pdf       *fpdf.Fpdf
	translate func(string) string
}

func (m *fpdfMeasurer) SplitText(text string, width float64) []string {
	if text == "" {
		return nil
	}
	m.pdf.SetFont("Helvetica", "", bodyFontSize)
	return m.pdf.SplitText(m.translate(text), width)
}

// EncodePDF renders the paginated document
func EncodePDF(t *types.Transcript, meta Meta) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(meta.GeneratedAt)
	pdf.SetTitle("Audio Transcription", true)
	pdf.SetAutoPageBreak(false, 0)

	// Core fonts are cp1252; convert UTF-8 input before measuring or drawing
	translate := pdf.UnicodeTranslatorFromDescriptor("")

	_, pageHeight := pdf.GetPageSize()
	ops := Layout(t, meta, &fpdfMeasurer{pdf: pdf, translate: translate}, pageHeight)

	page := 0
	for _, op := range ops {
		for page < op.Page {
			pdf.AddPage()
			page++
		}
		switch op.Style {
		case StyleTitle:
			pdf.SetFont("Helvetica", "", titleFontSize)
		case StyleMeta:
			pdf.SetFont("Helvetica", "", metaFontSize)
		case StyleHeading:
			pdf.SetFont("Helvetica", "B", bodyFontSize)
		default:
			pdf.SetFont("Helvetica", "", bodyFontSize)
		}
		text := op.Text
		if op.Style != StyleBody {
			// body lines were translated when measured
			text = translate(text)
		}
		pdf.Text(op.X, op.Y, text)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
