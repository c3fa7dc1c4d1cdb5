package dto

import "encoding/json"

// Report components that a template can switch off.
const (
	ComponentSummary         = "summary"
	ComponentDimensions      = "dimensions"
	ComponentRaterBreakdown  = "rater_breakdown"
	ComponentBenchmark       = "benchmark"
	ComponentGEOnorm         = "geonorm"
	ComponentFeedback        = "feedback"
	ComponentOverallFeedback = "overall_feedback"
)

// ReportComponents lists every component in rendering order.
var ReportComponents = []string{
	ComponentSummary,
	ComponentDimensions,
	ComponentRaterBreakdown,
	ComponentBenchmark,
	ComponentGEOnorm,
	ComponentFeedback,
	ComponentOverallFeedback,
}

var defaultLabels = map[string]string{
	ComponentSummary:         "Summary",
	ComponentDimensions:      "Dimensions",
	ComponentRaterBreakdown:  "Rater Breakdown",
	ComponentBenchmark:       "Benchmark",
	ComponentGEOnorm:         "GEOnorm",
	ComponentFeedback:        "Feedback",
	ComponentOverallFeedback: "Overall Feedback",
}

// PresentedReport is a report copy plus the visibility and labels renderers must honour.
type PresentedReport struct {
	Report     ReportData
	Components map[string]bool
	Labels     map[string]string
	Styling    json.RawMessage
}

// Enabled reports whether a component is visible; unknown components are visible.
func (p PresentedReport) Enabled(component string) bool {
	enabled, ok := p.Components[component]
	return !ok || enabled
}

// Label returns the section title for a component.
func (p PresentedReport) Label(component string) string {
	if label, ok := p.Labels[component]; ok && label != "" {
		return label
	}
	if label, ok := defaultLabels[component]; ok {
		return label
	}
	return component
}

// ReportViewer identifies who asks for a report. System viewers bypass ownership checks.
type ReportViewer struct {
	UserID uint
	Role   string
	System bool
}

// IsAdmin reports whether the viewer may read every report and see raw render errors.
func (v ReportViewer) IsAdmin() bool {
	return v.System || v.Role == "admin"
}
