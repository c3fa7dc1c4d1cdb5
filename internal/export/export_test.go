package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/talentscope-api/internal/dto"
)

func floatPtr(v float64) *float64 { return &v }

func presentAll(report dto.ReportData) dto.PresentedReport {
	return dto.PresentedReport{Report: report, Components: map[string]bool{}, Labels: map[string]string{}}
}

func emptyLeaderBlocker() *dto.ReportLeaderBlockerData {
	return &dto.ReportLeaderBlockerData{ReportBase: dto.ReportBase{
		AssignmentID:    4,
		AssessmentTitle: "Leader Blockers",
		TargetName:      "Dana Reyes",
		Dimensions:      []dto.DimensionReport{},
		GeneratedAt:     time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
	}}
}

func sample360() *dto.Report360Data {
	return &dto.Report360Data{
		ReportBase: dto.ReportBase{
			AssignmentID:    9,
			AssessmentTitle: "360, Leadership \"Core\"",
			TargetName:      "Sam Ito",
			OverallScore:    3.456,
			GeneratedAt:     time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
			Dimensions: []dto.DimensionReport{{
				DimensionID:   1,
				Code:          "COM",
				Name:          "Communication",
				OverallScore:  3.5,
				ResponseCount: 4,
				RaterBreakdown: &dto.RaterBreakdown{
					Peer:      floatPtr(3.25),
					AllRaters: floatPtr(3.5),
				},
				Benchmark:         floatPtr(3.2),
				ImprovementNeeded: false,
				Feedback:          []string{"<b>Clear</b> speaker,\nalways prepared"},
			}},
		},
		Partial:                    true,
		ParticipantResponseSummary: dto.ResponseSummary{Completed: 2, Total: 5},
	}
}

func TestRenderersHandleEmptyDimensions(t *testing.T) {
	presented := presentAll(emptyLeaderBlocker())

	csvData, err := RenderCSV(presented)
	require.NoError(t, err)
	require.NotEmpty(t, csvData)
	require.Contains(t, string(csvData), "-,No dimension data,0,0,0,N/A,N/A,0,No")

	xlsxData, err := RenderXLSX(presented)
	require.NoError(t, err)
	require.NotEmpty(t, xlsxData)

	pdfData, err := RenderPDF(presented)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(pdfData, []byte("%PDF")))
}

func TestRenderCSVFormatsNullsAndEscapes(t *testing.T) {
	data, err := RenderCSV(presentAll(sample360()))
	require.NoError(t, err)

	records, err := readCSV(data)
	require.NoError(t, err)

	require.Equal(t, []string{"Summary"}, records[0])
	require.Equal(t, "360, Leadership \"Core\"", records[2][0])
	require.Equal(t, "3.46", records[2][3])
	require.Equal(t, "Yes", records[2][5])

	dimHeader := records[4]
	require.Equal(t, []string{"Code", "Dimension", "Score", "Responses", "Peer", "Direct Report", "Supervisor", "Self", "Other", "All Raters", "Benchmark", "GEOnorm", "GEOnorm Participants", "Improvement Needed"}, dimHeader)
	require.Equal(t, []string{"COM", "Communication", "3.50", "4", "3.25", "0", "0", "0", "0", "3.50", "3.20", "N/A", "0", "No"}, records[5])

	feedbackRow := records[len(records)-1]
	require.Equal(t, "Communication", feedbackRow[0])
	require.Equal(t, "<b>Clear</b> speaker,\nalways prepared", feedbackRow[1])
}

func TestRenderCSVHonoursTemplate(t *testing.T) {
	presented := presentAll(sample360())
	presented.Components[dto.ComponentSummary] = false
	presented.Components[dto.ComponentRaterBreakdown] = false
	presented.Labels[dto.ComponentDimensions] = "Competencies"

	data, err := RenderCSV(presented)
	require.NoError(t, err)
	records, err := readCSV(data)
	require.NoError(t, err)

	require.Equal(t, []string{"Competencies"}, records[0])
	require.NotContains(t, records[1], "Peer")
}

func TestRenderersAreDeterministic(t *testing.T) {
	presented := presentAll(sample360())

	first, err := RenderPDF(presented)
	require.NoError(t, err)
	second, err := RenderPDF(presented)
	require.NoError(t, err)
	require.Equal(t, first, second)

	csvFirst, err := RenderCSV(presented)
	require.NoError(t, err)
	csvSecond, err := RenderCSV(presented)
	require.NoError(t, err)
	require.Equal(t, csvFirst, csvSecond)
}

func TestRenderXLSXWritesSheets(t *testing.T) {
	data, err := RenderXLSX(presentAll(sample360()))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	require.Equal(t, []string{"Summary", "Dimensions", "Feedback"}, f.GetSheetList())
	rows, err := f.GetRows("Dimensions")
	require.NoError(t, err)
	require.Equal(t, "Communication", rows[2][1])
	require.Equal(t, "N/A", rows[2][11])
}

func TestRenderXLSXTypesCellsByColumn(t *testing.T) {
	data, err := RenderXLSX(presentAll(sample360()))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	text := []excelize.CellType{excelize.CellTypeSharedString, excelize.CellTypeInlineString}

	kind, err := f.GetCellValue("Summary", "C3")
	require.NoError(t, err)
	require.Equal(t, "360", kind)
	kindType, err := f.GetCellType("Summary", "C3")
	require.NoError(t, err)
	require.Contains(t, text, kindType)

	scoreType, err := f.GetCellType("Summary", "D3")
	require.NoError(t, err)
	require.NotContains(t, text, scoreType)

	missingNorm, err := f.GetCellType("Dimensions", "L3")
	require.NoError(t, err)
	require.Contains(t, text, missingNorm)
}

type unknownReport struct{ base dto.ReportBase }

func (u *unknownReport) Kind() dto.ReportKind   { return "mystery" }
func (u *unknownReport) Base() *dto.ReportBase { return &u.base }

func TestRenderersRejectUnknownReportKinds(t *testing.T) {
	presented := presentAll(&unknownReport{})

	_, err := RenderCSV(presented)
	require.ErrorIs(t, err, dto.ErrUnknownReportKind)
	_, err = RenderXLSX(presented)
	require.ErrorIs(t, err, dto.ErrUnknownReportKind)
	_, err = RenderPDF(presented)
	require.ErrorIs(t, err, dto.ErrUnknownReportKind)
}

func TestStripMarkup(t *testing.T) {
	require.Equal(t, "Great & steady work", StripMarkup("<p>Great &amp; <em>steady</em>\n work</p>"))
}

func readCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	return r.ReadAll()
}
