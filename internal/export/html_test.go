package export

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/talentscope-api/internal/dto"
)

func TestRenderPrintHTMLMatchesPagePlan(t *testing.T) {
	report := sample360()
	data, err := RenderPrintHTML(presentAll(report))
	require.NoError(t, err)

	html := string(data)
	require.Contains(t, html, `id="report-root" data-expected-pages="2"`)
	require.Equal(t, 2, strings.Count(html, `class="report-page"`))
	require.Contains(t, html, `id="report-loaded"`)
	require.Contains(t, html, "<b>Clear</b> speaker")
	require.Contains(t, html, "2 of 5")
}

func TestRenderPrintHTMLEmptyDimensionsAndClosingFeedback(t *testing.T) {
	report := emptyLeaderBlocker()
	report.OverallFeedback = []string{`Keep going<script>alert(1)</script>`}

	data, err := RenderPrintHTML(presentAll(report))
	require.NoError(t, err)

	html := string(data)
	require.Contains(t, html, `data-expected-pages="3"`)
	require.Contains(t, html, noDimensionsText)
	require.Contains(t, html, "Keep going")
	require.NotContains(t, html, "<script>alert")
}

func TestRenderPrintHTMLHonoursDisabledComponents(t *testing.T) {
	presented := presentAll(sample360())
	presented.Components[dto.ComponentDimensions] = false
	presented.Labels[dto.ComponentSummary] = "Overview"
	presented.Styling = json.RawMessage(`{"primary_color":"#aa0000"}`)

	data, err := RenderPrintHTML(presented)
	require.NoError(t, err)

	html := string(data)
	require.Contains(t, html, `data-expected-pages="1"`)
	require.Contains(t, html, "Overview")
	require.Contains(t, html, "#aa0000")
	require.NotContains(t, html, "Communication")
}

func TestAccentColorRejectsUnsafeValues(t *testing.T) {
	require.Equal(t, "#1f3a5f", accentColor(json.RawMessage(`{"primary_color":"red;}body{display:none"}`)))
	require.Equal(t, "#1f3a5f", accentColor(nil))
	require.Equal(t, "#abc", accentColor(json.RawMessage(`{"primary_color":"#abc"}`)))
}
