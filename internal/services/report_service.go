package services

import (
	"bytes"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"pricing-service/internal/config"
	"pricing-service/internal/models"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disablePDFConfigDir sync.Once

// RenderedReport is a generated PDF and what is known about it.
type RenderedReport struct {
	Data        []byte
	Pages       int
	FileName    string
	GeneratedAt time.Time
	ObjectName  string // set when the report was archived
}

// ReportService renders submission documents as PDF reports.
type ReportService struct {
	title    string
	compress bool
	now      func() time.Time
}

func NewReportService(cfg config.ReportConfig) *ReportService {
	// pdfcpu otherwise creates a config directory under the user's home.
	disablePDFConfigDir.Do(api.DisableConfigDir)

	return &ReportService{
		title:    cfg.Title,
		compress: cfg.Compress,
		now:      time.Now,
	}
}

// Render lays out and draws doc, then checks the produced bytes parse as a
// valid PDF. Any failure is returned; no partial output is handed back.
func (s *ReportService) Render(doc models.SubmissionDocument) (*RenderedReport, error) {
	start := time.Now()
	generatedAt := s.now().UTC()
	layout := BuildReportLayout(s.title, doc, generatedAt)

	data, err := s.draw(layout, generatedAt)
	if err != nil {
		return nil, err
	}

	pages, err := verifyPDF(data)
	if err != nil {
		return nil, err
	}

	var id int64
	if doc.ID != nil {
		id = *doc.ID
	}

	slog.Info("Rendered submission report",
		"submission_id", id,
		"pages", pages,
		"size", len(data),
		"duration", time.Since(start))

	return &RenderedReport{
		Data:        data,
		Pages:       pages,
		FileName:    fmt.Sprintf("submission_%d_%s.pdf", id, generatedAt.Format("20060102_150405")),
		GeneratedAt: generatedAt,
	}, nil
}

// ============================================================================
// DRAWING
// ============================================================================

const (
	pageMargin    = 15.0
	footerSpace   = 18.0
	labelWidth    = 60.0
	lineHeight    = 5.5
	rowPadding    = 2.0
	fontFamily    = "Helvetica"
	bodyFontSize  = 10.0
	headFontSize  = 13.0
	titleFontSize = 18.0
)

type pdfWriter struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	width  float64 // usable width
	limit  float64 // lowest y content may reach
	margin float64
}

func (s *ReportService) draw(layout ReportLayout, generatedAt time.Time) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(s.compress)
	pdf.SetCreationDate(generatedAt)
	pdf.SetModificationDate(generatedAt)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, footerSpace)
	pdf.AliasNbPages("")

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(layout.Title, true)
	pdf.SetCreator("pricing-service", true)

	pdf.SetFooterFunc(func() {
		pdf.SetY(-pageMargin)
		pdf.SetFont(fontFamily, "I", 8)
		pdf.SetTextColor(127, 140, 141)
		pdf.CellFormat(0, 6, tr(layout.Footer), "", 0, "L", false, 0, "")
		pdf.SetX(pageMargin)
		pdf.CellFormat(0, 6, "Page "+strconv.Itoa(pdf.PageNo())+"/{nb}", "", 0, "R", false, 0, "")
	})

	pageWidth, pageHeight := pdf.GetPageSize()
	w := &pdfWriter{
		pdf:    pdf,
		tr:     tr,
		width:  pageWidth - 2*pageMargin,
		limit:  pageHeight - footerSpace,
		margin: pageMargin,
	}

	pdf.AddPage()
	w.title(layout)
	for _, section := range layout.Sections {
		w.section(section)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *pdfWriter) title(layout ReportLayout) {
	w.pdf.SetFont(fontFamily, "B", titleFontSize)
	w.pdf.SetTextColor(44, 62, 80)
	w.pdf.CellFormat(0, 10, w.tr(layout.Title), "", 1, "L", false, 0, "")

	if layout.Subtitle != "" {
		w.pdf.SetFont(fontFamily, "", bodyFontSize)
		w.pdf.SetTextColor(127, 140, 141)
		w.pdf.CellFormat(0, 6, w.tr(layout.Subtitle), "", 1, "L", false, 0, "")
	}

	y := w.pdf.GetY() + 1
	w.pdf.SetDrawColor(52, 152, 219)
	w.pdf.SetLineWidth(0.6)
	w.pdf.Line(w.margin, y, w.margin+w.width, y)
	w.pdf.SetY(y + 4)
}

func (w *pdfWriter) section(section ReportSection) {
	// Keep a heading together with at least its first row.
	if w.pdf.GetY()+9+2*lineHeight > w.limit {
		w.pdf.AddPage()
	}

	w.pdf.SetFont(fontFamily, "B", headFontSize)
	w.pdf.SetTextColor(44, 62, 80)
	w.pdf.CellFormat(0, 8, w.tr(section.Heading), "", 1, "L", false, 0, "")

	y := w.pdf.GetY()
	w.pdf.SetDrawColor(189, 195, 199)
	w.pdf.SetLineWidth(0.3)
	w.pdf.Line(w.margin, y, w.margin+w.width, y)
	w.pdf.SetY(y + 1)

	for _, row := range section.Rows {
		w.row(row)
	}
	w.pdf.Ln(4)
}

func (w *pdfWriter) row(row ReportRow) {
	valueWidth := w.width - labelWidth

	w.pdf.SetFont(fontFamily, "B", bodyFontSize)
	labelLines := w.wrap(w.tr(row.Label), labelWidth-rowPadding)

	w.pdf.SetFont(fontFamily, "", bodyFontSize)
	var valueLines []string
	for _, line := range row.Lines {
		text := w.tr(line)
		if row.Bullets {
			text = w.tr("• ") + text
		}
		valueLines = append(valueLines, w.wrap(text, valueWidth-rowPadding)...)
	}

	count := max(len(labelLines), len(valueLines))
	height := float64(count)*lineHeight + rowPadding
	usable := w.limit - w.margin
	if w.pdf.GetY()+height > w.limit && height <= usable {
		w.pdf.AddPage()
	}

	y := w.pdf.GetY() + rowPadding/2
	w.pdf.SetTextColor(51, 51, 51)
	for i := 0; i < count; i++ {
		if y+lineHeight > w.limit {
			w.pdf.AddPage()
			y = w.pdf.GetY()
		}
		if i < len(labelLines) {
			w.pdf.SetFont(fontFamily, "B", bodyFontSize)
			w.pdf.SetXY(w.margin, y)
			w.pdf.CellFormat(labelWidth, lineHeight, labelLines[i], "", 0, "L", false, 0, "")
		}
		if i < len(valueLines) {
			w.pdf.SetFont(fontFamily, "", bodyFontSize)
			w.pdf.SetXY(w.margin+labelWidth, y)
			w.pdf.CellFormat(valueWidth, lineHeight, valueLines[i], "", 0, "L", false, 0, "")
		}
		y += lineHeight
	}

	y += rowPadding / 2
	w.pdf.SetDrawColor(221, 221, 221)
	w.pdf.SetLineWidth(0.2)
	w.pdf.Line(w.margin, y, w.margin+w.width, y)
	w.pdf.SetXY(w.margin, y)
}

// wrap splits already-translated text into lines no wider than width in the
// current font. Explicit newlines are kept; words longer than a line are cut.
func (w *pdfWriter) wrap(text string, width float64) []string {
	var lines []string
	for _, paragraph := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}

		current := ""
		for _, word := range words {
			for w.pdf.GetStringWidth(word) > width {
				if current != "" {
					lines = append(lines, current)
					current = ""
				}
				cut := w.fit(word, width)
				lines = append(lines, word[:cut])
				word = word[cut:]
			}

			candidate := word
			if current != "" {
				candidate = current + " " + word
			}
			if w.pdf.GetStringWidth(candidate) <= width {
				current = candidate
				continue
			}
			lines = append(lines, current)
			current = word
		}
		if current != "" {
			lines = append(lines, current)
		}
	}
	return lines
}

// fit returns how many leading bytes of word fit in width, at least one.
// Translated text is single-byte, so any byte offset is a character boundary.
func (w *pdfWriter) fit(word string, width float64) int {
	n := 1
	for n < len(word) && w.pdf.GetStringWidth(word[:n+1]) <= width {
		n++
	}
	return n
}

// ============================================================================
// VERIFICATION
// ============================================================================

// verifyPDF parses data with pdfcpu and returns its page count.
func verifyPDF(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return 0, fmt.Errorf("rendered report failed validation: %w", err)
	}

	pages, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("failed to count report pages: %w", err)
	}
	if pages < 1 {
		return 0, fmt.Errorf("rendered report has no pages")
	}
	return pages, nil
}
