package export

import (
	"bytes"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/microcosm-cc/bluemonday"

	"github.com/noah-isme/talentscope-api/internal/dto"
)

var stripPolicy = bluemonday.StrictPolicy()

// RenderPDF lays out a summary page, one page per dimension and an optional closing feedback page.
// Creation and modification dates are pinned to the report's generation time.
func RenderPDF(p dto.PresentedReport) ([]byte, error) {
	base, err := reportBase(p.Report)
	if err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(base.GeneratedAt.UTC())
	pdf.SetModificationDate(base.GeneratedAt.UTC())
	pdf.SetCatalogSort(true)
	pdf.SetTitle(base.AssessmentTitle, true)
	pdf.SetAuthor("talentscope", true)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	w := &pdfWriter{pdf: pdf, tr: tr}
	w.summaryPage(p, base)
	if p.Enabled(dto.ComponentDimensions) {
		if len(base.Dimensions) == 0 {
			w.emptyDimensionsPage(p)
		}
		for _, dim := range base.Dimensions {
			w.dimensionPage(p, dim)
		}
	}
	w.feedbackPage(p)

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("write document: %w", err)
	}
	return buf.Bytes(), nil
}

type pdfWriter struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

func (w *pdfWriter) heading(text string) {
	w.pdf.SetFont("Helvetica", "B", 16)
	w.pdf.CellFormat(0, 10, w.tr(text), "", 1, "L", false, 0, "")
	w.pdf.Ln(2)
}

func (w *pdfWriter) subheading(text string) {
	w.pdf.SetFont("Helvetica", "B", 12)
	w.pdf.CellFormat(0, 8, w.tr(text), "", 1, "L", false, 0, "")
}

func (w *pdfWriter) line(label, value string) {
	w.pdf.SetFont("Helvetica", "B", 11)
	w.pdf.CellFormat(60, 7, w.tr(label), "", 0, "L", false, 0, "")
	w.pdf.SetFont("Helvetica", "", 11)
	w.pdf.CellFormat(0, 7, w.tr(value), "", 1, "L", false, 0, "")
}

func (w *pdfWriter) paragraph(text string) {
	w.pdf.SetFont("Helvetica", "", 11)
	w.pdf.MultiCell(0, 6, w.tr(text), "", "L", false)
	w.pdf.Ln(1)
}

func (w *pdfWriter) summaryPage(p dto.PresentedReport, base *dto.ReportBase) {
	w.pdf.AddPage()
	w.heading(base.AssessmentTitle)
	w.line("Target", base.TargetName)
	if !p.Enabled(dto.ComponentSummary) {
		return
	}

	w.pdf.Ln(4)
	w.subheading(p.Label(dto.ComponentSummary))
	w.line("Overall score", formatNumber(base.OverallScore))
	w.line("Dimensions", strconv.Itoa(len(base.Dimensions)))
	w.line("Generated", formatTime(base.GeneratedAt))
	if r, ok := p.Report.(*dto.Report360Data); ok {
		w.line("Responses", fmt.Sprintf("%d of %d", r.ParticipantResponseSummary.Completed, r.ParticipantResponseSummary.Total))
		if r.Partial {
			w.paragraph("This report is partial: not every rater has responded yet.")
		}
	}
}

func (w *pdfWriter) emptyDimensionsPage(p dto.PresentedReport) {
	w.pdf.AddPage()
	w.heading(p.Label(dto.ComponentDimensions))
	w.paragraph(noDimensionsText)
}

func (w *pdfWriter) dimensionPage(p dto.PresentedReport, dim dto.DimensionReport) {
	w.pdf.AddPage()
	w.heading(fmt.Sprintf("%s (%s)", dim.Name, dim.Code))
	w.line("Score", formatNumber(dim.OverallScore))
	w.line("Responses", strconv.Itoa(dim.ResponseCount))

	if dim.RaterBreakdown != nil && p.Enabled(dto.ComponentRaterBreakdown) {
		w.pdf.Ln(3)
		w.subheading(p.Label(dto.ComponentRaterBreakdown))
		b := dim.RaterBreakdown
		w.line("Peer", formatOptional(b.Peer, notAvailable))
		w.line("Direct report", formatOptional(b.DirectReport, notAvailable))
		w.line("Supervisor", formatOptional(b.Supervisor, notAvailable))
		w.line("Self", formatOptional(b.Self, notAvailable))
		w.line("Other", formatOptional(b.Other, notAvailable))
		w.line("All raters", formatOptional(b.AllRaters, notAvailable))
	}

	if p.Enabled(dto.ComponentBenchmark) || p.Enabled(dto.ComponentGEOnorm) {
		w.pdf.Ln(3)
		if p.Enabled(dto.ComponentBenchmark) {
			w.line(p.Label(dto.ComponentBenchmark), formatOptional(dim.Benchmark, notAvailable))
		}
		if p.Enabled(dto.ComponentGEOnorm) {
			norm := formatOptional(dim.GEOnorm, notAvailable)
			if dim.GEOnorm != nil {
				norm = fmt.Sprintf("%s (n=%d)", norm, dim.GEOnormParticipants)
			}
			w.line(p.Label(dto.ComponentGEOnorm), norm)
		}
		w.line("Improvement needed", formatBool(dim.ImprovementNeeded))
	}

	if p.Enabled(dto.ComponentFeedback) && len(dim.Feedback) > 0 {
		w.pdf.Ln(3)
		w.subheading(p.Label(dto.ComponentFeedback))
		for _, text := range dim.Feedback {
			w.paragraph(StripMarkup(text))
		}
	}
}

func (w *pdfWriter) feedbackPage(p dto.PresentedReport) {
	r, ok := p.Report.(*dto.ReportLeaderBlockerData)
	if !ok || !p.Enabled(dto.ComponentOverallFeedback) || len(r.OverallFeedback) == 0 {
		return
	}
	w.pdf.AddPage()
	w.heading(p.Label(dto.ComponentOverallFeedback))
	for _, text := range r.OverallFeedback {
		w.paragraph(StripMarkup(text))
	}
}

// StripMarkup removes inline markup and decodes entities so text can be laid out verbatim.
func StripMarkup(text string) string {
	cleaned := html.UnescapeString(stripPolicy.Sanitize(text))
	return strings.Join(strings.Fields(cleaned), " ")
}
