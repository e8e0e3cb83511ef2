package report

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"plantanalyzer/pkg/utils"
)

const (
	imageMaxWidth  = 500.0
	imageMaxHeight = 300.0

	titleFontSize = 24
	bodyFontSize  = 14
	lineGap       = 12.0
)

// Image is a decoded picture ready to embed. Type is one of "PNG", "JPG",
// "GIF".
type Image struct {
	Data []byte
	Type string
}

type Document struct {
	Title string
	Date  time.Time
	Text  string
	Image *Image
}

const utf8Family = "report-utf8"

type Renderer struct {
	compress bool
	fontPath string
}

// NewRenderer returns a renderer using the PDF core fonts. When fontPath
// names a TrueType font it is embedded and text is written as UTF-8.
func NewRenderer(compress bool, fontPath string) *Renderer {
	return &Renderer{compress: compress, fontPath: fontPath}
}

// Render lays the document out on Letter pages measured in points and writes
// the PDF to w. Text wraps onto further pages as needed.
func (r *Renderer) Render(w io.Writer, doc Document) error {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetCompression(r.compress)
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreationDate(doc.Date)
	pdf.SetMargins(72, 72, 72)
	pdf.SetAutoPageBreak(true, 72)
	pdf.AddPage()

	family, tr := r.fonts(pdf)

	pdf.SetFont(family, "B", titleFontSize)
	pdf.MultiCell(0, titleFontSize*1.2, tr(doc.Title), "", "C", false)
	pdf.Ln(lineGap)

	pdf.SetFont(family, "", titleFontSize)
	pdf.MultiCell(0, titleFontSize*1.2, "Date: "+FormatDate(doc.Date), "", "L", false)
	pdf.Ln(lineGap)

	pdf.SetFont(family, "", bodyFontSize)
	pdf.MultiCell(0, bodyFontSize*1.3, tr(doc.Text), "", "L", false)

	if doc.Image != nil {
		pdf.Ln(lineGap)
		placeImage(pdf, doc.Image)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("layout pdf: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// fonts picks the font family and text encoder. Core fonts only cover
// cp1252; characters outside it (emoji, non-Latin scripts) come out as ".".
func (r *Renderer) fonts(pdf *fpdf.Fpdf) (string, func(string) string) {
	if r.fontPath == "" {
		return "Helvetica", pdf.UnicodeTranslatorFromDescriptor("")
	}
	pdf.AddUTF8Font(utf8Family, "", r.fontPath)
	pdf.AddUTF8Font(utf8Family, "B", r.fontPath)
	return utf8Family, func(s string) string { return s }
}

func placeImage(pdf *fpdf.Fpdf, img *Image) {
	const name = "report-image"
	opts := fpdf.ImageOptions{ImageType: img.Type}
	info := pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
	if !pdf.Ok() {
		return
	}

	w, h := utils.FitBox(info.Width(), info.Height(), imageMaxWidth, imageMaxHeight)

	pageW, pageH := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	if pdf.GetY()+h > pageH-bottom {
		pdf.AddPage()
	}

	x := (pageW - w) / 2
	pdf.ImageOptions(name, x, pdf.GetY(), w, h, true, opts, 0, "")
}

// FormatDate renders t the way the report's date line expects, e.g. 3/7/2026.
func FormatDate(t time.Time) string {
	return t.Format("1/2/2006")
}
