package export

import (
	"fmt"
	"strconv"
	"time"

	"github.com/noah-isme/talentscope-api/internal/dto"
)

const (
	notAvailable     = "N/A"
	placeholderCode  = "-"
	noDimensionsText = "No dimension data"
	noFeedbackText   = "No feedback assigned"
	overallRowLabel  = "Overall"
)

// section is one tabular block shared by the delimited-text and spreadsheet renderers.
type section struct {
	key     string
	title   string
	header  []string
	numeric []bool
	rows    [][]string
}

func (s *section) columns(numeric bool, names ...string) {
	s.header = append(s.header, names...)
	for range names {
		s.numeric = append(s.numeric, numeric)
	}
}

func (s section) isNumeric(column int) bool {
	return column < len(s.numeric) && s.numeric[column]
}

func buildSections(p dto.PresentedReport) ([]section, error) {
	base, err := reportBase(p.Report)
	if err != nil {
		return nil, err
	}

	sections := make([]section, 0, 3)
	if p.Enabled(dto.ComponentSummary) {
		sections = append(sections, summarySection(p, base))
	}
	if p.Enabled(dto.ComponentDimensions) {
		sections = append(sections, dimensionSection(p, base))
	}
	if p.Enabled(dto.ComponentFeedback) || p.Enabled(dto.ComponentOverallFeedback) {
		sections = append(sections, feedbackSection(p, base))
	}
	return sections, nil
}

// reportBase rejects anything outside the closed report union.
func reportBase(report dto.ReportData) (*dto.ReportBase, error) {
	switch r := report.(type) {
	case *dto.Report360Data:
		return &r.ReportBase, nil
	case *dto.ReportLeaderBlockerData:
		return &r.ReportBase, nil
	default:
		return nil, fmt.Errorf("%w: %T", dto.ErrUnknownReportKind, report)
	}
}

func summarySection(p dto.PresentedReport, base *dto.ReportBase) section {
	sec := section{key: dto.ComponentSummary, title: p.Label(dto.ComponentSummary)}
	sec.columns(false, "Assessment", "Target", "Report Type")
	sec.columns(true, "Overall Score")
	sec.columns(false, "Generated At")
	row := []string{
		base.AssessmentTitle,
		base.TargetName,
		string(p.Report.Kind()),
		formatNumber(base.OverallScore),
		formatTime(base.GeneratedAt),
	}
	if r, ok := p.Report.(*dto.Report360Data); ok {
		sec.columns(false, "Partial")
		sec.columns(true, "Completed Responses", "Total Responses")
		row = append(row,
			formatBool(r.Partial),
			strconv.Itoa(r.ParticipantResponseSummary.Completed),
			strconv.Itoa(r.ParticipantResponseSummary.Total),
		)
	}
	sec.rows = [][]string{row}
	return sec
}

func dimensionSection(p dto.PresentedReport, base *dto.ReportBase) section {
	_, multiRater := p.Report.(*dto.Report360Data)
	showBreakdown := multiRater && p.Enabled(dto.ComponentRaterBreakdown)
	showBenchmark := p.Enabled(dto.ComponentBenchmark)
	showNorm := p.Enabled(dto.ComponentGEOnorm)

	sec := section{key: dto.ComponentDimensions, title: p.Label(dto.ComponentDimensions)}
	sec.columns(false, "Code", "Dimension")
	sec.columns(true, "Score", "Responses")
	if showBreakdown {
		sec.columns(true, "Peer", "Direct Report", "Supervisor", "Self", "Other", "All Raters")
	}
	if !multiRater {
		sec.columns(true, "Target Score")
	}
	if showBenchmark {
		sec.columns(true, p.Label(dto.ComponentBenchmark))
	}
	if showNorm {
		sec.columns(true, p.Label(dto.ComponentGEOnorm), "GEOnorm Participants")
	}
	sec.columns(false, "Improvement Needed")

	rows := make([][]string, 0, len(base.Dimensions))
	for _, dim := range base.Dimensions {
		row := []string{dim.Code, dim.Name, formatNumber(dim.OverallScore), strconv.Itoa(dim.ResponseCount)}
		if showBreakdown {
			b := dto.RaterBreakdown{}
			if dim.RaterBreakdown != nil {
				b = *dim.RaterBreakdown
			}
			row = append(row,
				formatOptional(b.Peer, "0"),
				formatOptional(b.DirectReport, "0"),
				formatOptional(b.Supervisor, "0"),
				formatOptional(b.Self, "0"),
				formatOptional(b.Other, "0"),
				formatOptional(b.AllRaters, "0"),
			)
		}
		if !multiRater {
			row = append(row, formatOptional(dim.TargetScore, "0"))
		}
		if showBenchmark {
			row = append(row, formatOptional(dim.Benchmark, notAvailable))
		}
		if showNorm {
			row = append(row, formatOptional(dim.GEOnorm, notAvailable), strconv.Itoa(dim.GEOnormParticipants))
		}
		row = append(row, formatBool(dim.ImprovementNeeded))
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		row := []string{placeholderCode, noDimensionsText, "0", "0"}
		if showBreakdown {
			row = append(row, "0", "0", "0", "0", "0", "0")
		}
		if !multiRater {
			row = append(row, "0")
		}
		if showBenchmark {
			row = append(row, notAvailable)
		}
		if showNorm {
			row = append(row, notAvailable, "0")
		}
		row = append(row, formatBool(false))
		rows = append(rows, row)
	}

	sec.rows = rows
	return sec
}

func feedbackSection(p dto.PresentedReport, base *dto.ReportBase) section {
	rows := make([][]string, 0)
	if r, ok := p.Report.(*dto.ReportLeaderBlockerData); ok && p.Enabled(dto.ComponentOverallFeedback) {
		for _, text := range r.OverallFeedback {
			rows = append(rows, []string{overallRowLabel, text})
		}
	}
	if p.Enabled(dto.ComponentFeedback) {
		for _, dim := range base.Dimensions {
			for _, text := range dim.Feedback {
				rows = append(rows, []string{dim.Name, text})
			}
		}
	}
	if len(rows) == 0 {
		rows = append(rows, []string{placeholderCode, noFeedbackText})
	}

	title := p.Label(dto.ComponentFeedback)
	if !p.Enabled(dto.ComponentFeedback) {
		title = p.Label(dto.ComponentOverallFeedback)
	}
	sec := section{key: dto.ComponentFeedback, title: title, rows: rows}
	sec.columns(false, "Dimension", "Feedback")
	return sec
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatOptional(v *float64, fallback string) string {
	if v == nil {
		return fallback
	}
	return formatNumber(*v)
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
