package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/talentscope-api/internal/dto"
	"github.com/noah-isme/talentscope-api/internal/handler"
	"github.com/noah-isme/talentscope-api/internal/service"
)

type mockReportService struct {
	response    dto.ReportResponse
	presented   dto.PresentedReport
	feedback    []dto.AssignedFeedbackResponse
	err         error
	lastViewer  dto.ReportViewer
	lastID      uint
	regenerated bool
}

func (m *mockReportService) GetReport(_ context.Context, assignmentID uint, viewer dto.ReportViewer) (dto.ReportResponse, error) {
	m.lastID, m.lastViewer = assignmentID, viewer
	return m.response, m.err
}

func (m *mockReportService) Regenerate(_ context.Context, assignmentID uint) (dto.ReportData, error) {
	m.lastID, m.regenerated = assignmentID, true
	if m.err != nil {
		return nil, m.err
	}
	return m.response.Report, nil
}

func (m *mockReportService) Generate360(context.Context, uint) (*dto.Report360Data, error) {
	return nil, errors.New("not implemented")
}

func (m *mockReportService) GenerateLeaderBlocker(context.Context, uint) (*dto.ReportLeaderBlockerData, error) {
	return nil, errors.New("not implemented")
}

func (m *mockReportService) AssignFeedback(_ context.Context, assignmentID uint) ([]dto.AssignedFeedbackResponse, error) {
	m.lastID = assignmentID
	return m.feedback, m.err
}

func (m *mockReportService) Present(_ context.Context, assignmentID uint, viewer dto.ReportViewer) (dto.PresentedReport, error) {
	m.lastID, m.lastViewer = assignmentID, viewer
	return m.presented, m.err
}

type mockExportService struct {
	artifact   service.ExportArtifact
	err        error
	lastFormat string
}

func (m *mockExportService) Export(_ context.Context, _ uint, format string, _ dto.ReportViewer) (service.ExportArtifact, error) {
	m.lastFormat = format
	return m.artifact, m.err
}

func identity(userID uint, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID != 0 {
			c.Locals("user_id", userID)
		}
		if role != "" {
			c.Locals("user_role", role)
		}
		return c.Next()
	}
}

func newReportApp(reports *mockReportService, exports *mockExportService, userID uint, role string) *fiber.App {
	app := fiber.New()
	group := app.Group("/api/v1/reports", identity(userID, role))
	handler.NewReportHandler(reports, exports, zerolog.New(io.Discard)).Register(group)
	return app
}

func sampleReport() *dto.ReportLeaderBlockerData {
	return &dto.ReportLeaderBlockerData{
		ReportBase: dto.ReportBase{
			AssignmentID: 42,
			TargetName:   "Dana Reyes",
			OverallScore: 3.25,
			Dimensions:   []dto.DimensionReport{{DimensionID: 1, Code: "DEL", Name: "Delegation", OverallScore: 3.25, ResponseCount: 4}},
		},
	}
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(data, target))
}

func TestReportHandler_GetReport(t *testing.T) {
	reports := &mockReportService{response: dto.ReportResponse{Report: sampleReport(), Cached: true}}
	app := newReportApp(reports, &mockExportService{}, 20, "User")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/reports/42", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Cached bool            `json:"cached"`
			Report json.RawMessage `json:"report"`
		} `json:"data"`
		Message string `json:"message"`
	}
	decodeResponse(t, resp, &body)
	require.True(t, body.Success)
	require.Equal(t, "report retrieved", body.Message)
	require.True(t, body.Data.Cached)
	require.Contains(t, string(body.Data.Report), `"target_name":"Dana Reyes"`)

	var tagged struct {
		Kind dto.ReportKind `json:"kind"`
	}
	require.NoError(t, json.Unmarshal(body.Data.Report, &tagged))
	require.Equal(t, dto.ReportKindLeaderBlocker, tagged.Kind)

	require.Equal(t, uint(42), reports.lastID)
	require.Equal(t, dto.ReportViewer{UserID: 20, Role: "user"}, reports.lastViewer)
}

func TestReportHandler_GetReportErrors(t *testing.T) {
	cases := []struct {
		name   string
		path   string
		err    error
		userID uint
		status int
	}{
		{name: "invalid id", path: "/api/v1/reports/abc", userID: 20, status: fiber.StatusBadRequest},
		{name: "zero id", path: "/api/v1/reports/0", userID: 20, status: fiber.StatusBadRequest},
		{name: "anonymous", path: "/api/v1/reports/42", status: fiber.StatusUnauthorized},
		{name: "not found", path: "/api/v1/reports/42", err: service.ErrReportAssignmentNotFound, userID: 20, status: fiber.StatusNotFound},
		{name: "forbidden", path: "/api/v1/reports/42", err: service.ErrReportForbidden, userID: 20, status: fiber.StatusForbidden},
		{name: "generator mismatch", path: "/api/v1/reports/42", err: service.ErrUse360Generator, userID: 20, status: fiber.StatusUnprocessableEntity},
		{name: "datastore", path: "/api/v1/reports/42", err: errors.New("connection reset"), userID: 20, status: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newReportApp(&mockReportService{err: tc.err}, &mockExportService{}, tc.userID, "user")
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tc.path, nil))
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			var body struct {
				Success bool   `json:"success"`
				Message string `json:"message"`
			}
			decodeResponse(t, resp, &body)
			require.False(t, body.Success)
			require.NotContains(t, body.Message, "connection reset")
		})
	}
}

func TestReportHandler_RegenerateRequiresAdmin(t *testing.T) {
	reports := &mockReportService{response: dto.ReportResponse{Report: sampleReport()}}

	app := newReportApp(reports, &mockExportService{}, 20, "user")
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/reports/42/regenerate", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	require.False(t, reports.regenerated)

	app = newReportApp(reports, &mockExportService{}, 1, "admin")
	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/reports/42/regenerate", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, reports.regenerated)

	var body struct {
		Data struct {
			Cached bool `json:"cached"`
			Report struct {
				Kind dto.ReportKind `json:"kind"`
			} `json:"report"`
		} `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.False(t, body.Data.Cached)
	require.Equal(t, dto.ReportKindLeaderBlocker, body.Data.Report.Kind)
}

func TestReportHandler_AssignFeedback(t *testing.T) {
	dimensionID := uint(1)
	reports := &mockReportService{feedback: []dto.AssignedFeedbackResponse{{ID: 9, DimensionID: &dimensionID, Type: "specific", Content: "Delegate more"}}}
	app := newReportApp(reports, &mockExportService{}, 1, "admin")

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/api/v1/reports/42/feedback", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Data []dto.AssignedFeedbackResponse `json:"data"`
	}
	decodeResponse(t, resp, &body)
	require.Len(t, body.Data, 1)
	require.Equal(t, "Delegate more", body.Data[0].Content)
}

func TestReportHandler_Export(t *testing.T) {
	exports := &mockExportService{artifact: service.ExportArtifact{
		Filename:    "report-42.csv",
		ContentType: "text/csv; charset=utf-8",
		Data:        []byte("Summary\nScore,3.25\n"),
	}}
	app := newReportApp(&mockReportService{}, exports, 20, "user")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/reports/42/export.csv", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "text/csv; charset=utf-8", resp.Header.Get(fiber.HeaderContentType))
	require.Equal(t, `attachment; filename="report-42.csv"`, resp.Header.Get(fiber.HeaderContentDisposition))
	require.Equal(t, service.ExportFormatCSV, exports.lastFormat)

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(payload), "Summary"))

	exports.err = service.ErrReportForbidden
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/reports/42/export.xlsx", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	require.Equal(t, service.ExportFormatXLSX, exports.lastFormat)
}
