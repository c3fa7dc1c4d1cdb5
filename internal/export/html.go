package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"regexp"
	"strconv"

	"github.com/microcosm-cc/bluemonday"

	"github.com/noah-isme/talentscope-api/internal/dto"
)

var (
	feedbackPolicy = bluemonday.UGCPolicy()
	colorPattern   = regexp.MustCompile(`^#[0-9a-fA-F]{3,8}$`)
)

type printLine struct {
	Label string
	Value string
}

type printBlock struct {
	Title string
	Lines []printLine
	Texts []template.HTML
}

type printPage struct {
	Title  string
	Blocks []printBlock
}

type printView struct {
	Title         string
	Target        string
	Accent        string
	ExpectedPages int
	Pages         []printPage
}

var printTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
@page { size: A4; margin: 15mm; }
body { font-family: Helvetica, Arial, sans-serif; color: #222; margin: 0; }
.report-page { page-break-after: always; break-after: page; }
.report-page:last-of-type { page-break-after: auto; break-after: auto; }
h1 { color: {{.Accent}}; font-size: 20pt; margin: 0 0 8pt; }
h2 { color: {{.Accent}}; font-size: 13pt; margin: 12pt 0 4pt; }
dl { display: grid; grid-template-columns: 45mm auto; gap: 2pt 6pt; margin: 0; }
dt { font-weight: bold; }
dd { margin: 0; }
.feedback p { margin: 0 0 6pt; }
@media print { #report-loaded { display: none; } }
</style>
</head>
<body>
<main id="report-root" data-expected-pages="{{.ExpectedPages}}">
{{range .Pages}}<section class="report-page">
<h1>{{.Title}}</h1>
{{range .Blocks}}{{if .Title}}<h2>{{.Title}}</h2>{{end}}
{{if .Lines}}<dl>{{range .Lines}}<dt>{{.Label}}</dt><dd>{{.Value}}</dd>{{end}}</dl>{{end}}
{{if .Texts}}<div class="feedback">{{range .Texts}}<p>{{.}}</p>{{end}}</div>{{end}}
{{end}}</section>
{{end}}</main>
<div id="report-loaded">ready</div>
</body>
</html>
`))

// RenderPrintHTML lays out the printable view with the same page plan as RenderPDF.
// The root element carries the expected page count for the layout wait.
func RenderPrintHTML(p dto.PresentedReport) ([]byte, error) {
	base, err := reportBase(p.Report)
	if err != nil {
		return nil, err
	}

	view := printView{
		Title:  base.AssessmentTitle,
		Target: base.TargetName,
		Accent: accentColor(p.Styling),
		Pages:  printPages(p, base),
	}
	view.ExpectedPages = len(view.Pages)

	buf := &bytes.Buffer{}
	if err := printTemplate.Execute(buf, view); err != nil {
		return nil, fmt.Errorf("render print view: %w", err)
	}
	return buf.Bytes(), nil
}

func printPages(p dto.PresentedReport, base *dto.ReportBase) []printPage {
	summary := printPage{
		Title:  base.AssessmentTitle,
		Blocks: []printBlock{{Lines: []printLine{{Label: "Target", Value: base.TargetName}}}},
	}
	if p.Enabled(dto.ComponentSummary) {
		block := printBlock{
			Title: p.Label(dto.ComponentSummary),
			Lines: []printLine{
				{Label: "Overall score", Value: formatNumber(base.OverallScore)},
				{Label: "Dimensions", Value: strconv.Itoa(len(base.Dimensions))},
				{Label: "Generated", Value: formatTime(base.GeneratedAt)},
			},
		}
		if r, ok := p.Report.(*dto.Report360Data); ok {
			block.Lines = append(block.Lines, printLine{
				Label: "Responses",
				Value: fmt.Sprintf("%d of %d", r.ParticipantResponseSummary.Completed, r.ParticipantResponseSummary.Total),
			})
			if r.Partial {
				block.Texts = append(block.Texts, template.HTML(template.HTMLEscapeString("This report is partial: not every rater has responded yet.")))
			}
		}
		summary.Blocks = append(summary.Blocks, block)
	}
	pages := []printPage{summary}

	if p.Enabled(dto.ComponentDimensions) {
		if len(base.Dimensions) == 0 {
			pages = append(pages, printPage{
				Title:  p.Label(dto.ComponentDimensions),
				Blocks: []printBlock{{Texts: []template.HTML{template.HTML(noDimensionsText)}}},
			})
		}
		for _, dim := range base.Dimensions {
			pages = append(pages, dimensionPrintPage(p, dim))
		}
	}

	if r, ok := p.Report.(*dto.ReportLeaderBlockerData); ok && p.Enabled(dto.ComponentOverallFeedback) && len(r.OverallFeedback) > 0 {
		pages = append(pages, printPage{
			Title:  p.Label(dto.ComponentOverallFeedback),
			Blocks: []printBlock{{Texts: sanitizeFeedback(r.OverallFeedback)}},
		})
	}
	return pages
}

func dimensionPrintPage(p dto.PresentedReport, dim dto.DimensionReport) printPage {
	page := printPage{
		Title: fmt.Sprintf("%s (%s)", dim.Name, dim.Code),
		Blocks: []printBlock{{Lines: []printLine{
			{Label: "Score", Value: formatNumber(dim.OverallScore)},
			{Label: "Responses", Value: strconv.Itoa(dim.ResponseCount)},
		}}},
	}

	if b := dim.RaterBreakdown; b != nil && p.Enabled(dto.ComponentRaterBreakdown) {
		page.Blocks = append(page.Blocks, printBlock{
			Title: p.Label(dto.ComponentRaterBreakdown),
			Lines: []printLine{
				{Label: "Peer", Value: formatOptional(b.Peer, notAvailable)},
				{Label: "Direct report", Value: formatOptional(b.DirectReport, notAvailable)},
				{Label: "Supervisor", Value: formatOptional(b.Supervisor, notAvailable)},
				{Label: "Self", Value: formatOptional(b.Self, notAvailable)},
				{Label: "Other", Value: formatOptional(b.Other, notAvailable)},
				{Label: "All raters", Value: formatOptional(b.AllRaters, notAvailable)},
			},
		})
	}

	if p.Enabled(dto.ComponentBenchmark) || p.Enabled(dto.ComponentGEOnorm) {
		block := printBlock{}
		if p.Enabled(dto.ComponentBenchmark) {
			block.Lines = append(block.Lines, printLine{Label: p.Label(dto.ComponentBenchmark), Value: formatOptional(dim.Benchmark, notAvailable)})
		}
		if p.Enabled(dto.ComponentGEOnorm) {
			norm := formatOptional(dim.GEOnorm, notAvailable)
			if dim.GEOnorm != nil {
				norm = fmt.Sprintf("%s (n=%d)", norm, dim.GEOnormParticipants)
			}
			block.Lines = append(block.Lines, printLine{Label: p.Label(dto.ComponentGEOnorm), Value: norm})
		}
		block.Lines = append(block.Lines, printLine{Label: "Improvement needed", Value: formatBool(dim.ImprovementNeeded)})
		page.Blocks = append(page.Blocks, block)
	}

	if p.Enabled(dto.ComponentFeedback) && len(dim.Feedback) > 0 {
		page.Blocks = append(page.Blocks, printBlock{
			Title: p.Label(dto.ComponentFeedback),
			Texts: sanitizeFeedback(dim.Feedback),
		})
	}
	return page
}

func sanitizeFeedback(items []string) []template.HTML {
	out := make([]template.HTML, 0, len(items))
	for _, item := range items {
		out = append(out, template.HTML(feedbackPolicy.Sanitize(item)))
	}
	return out
}

func accentColor(styling json.RawMessage) string {
	const fallback = "#1f3a5f"
	if len(styling) == 0 {
		return fallback
	}
	var parsed struct {
		PrimaryColor string `json:"primary_color"`
	}
	if err := json.Unmarshal(styling, &parsed); err != nil || !colorPattern.MatchString(parsed.PrimaryColor) {
		return fallback
	}
	return parsed.PrimaryColor
}
