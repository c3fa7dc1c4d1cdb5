package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/talentscope-api/internal/dto"
	"github.com/noah-isme/talentscope-api/internal/export"
)

// Export formats.
const (
	ExportFormatCSV  = "csv"
	ExportFormatXLSX = "xlsx"
	ExportFormatPDF  = "pdf"
)

// ErrUnsupportedExportFormat indicates an unknown export format.
var ErrUnsupportedExportFormat = errors.New("unsupported export format")

// ExportArtifact is a rendered, content-typed export payload.
type ExportArtifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders the presented report into downloadable formats.
type ExportService interface {
	Export(ctx context.Context, assignmentID uint, format string, viewer dto.ReportViewer) (ExportArtifact, error)
}

type exportService struct {
	reports ReportService
	logger  zerolog.Logger
}

// NewExportService constructs the export service.
func NewExportService(reports ReportService, logger zerolog.Logger) ExportService {
	return &exportService{
		reports: reports,
		logger:  logger.With().Str("component", "export_service").Logger(),
	}
}

func (s *exportService) Export(ctx context.Context, assignmentID uint, format string, viewer dto.ReportViewer) (ExportArtifact, error) {
	var (
		render      func(dto.PresentedReport) ([]byte, error)
		contentType string
	)
	switch format {
	case ExportFormatCSV:
		render, contentType = export.RenderCSV, "text/csv; charset=utf-8"
	case ExportFormatXLSX:
		render, contentType = export.RenderXLSX, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ExportFormatPDF:
		render, contentType = export.RenderPDF, "application/pdf"
	default:
		return ExportArtifact{}, ErrUnsupportedExportFormat
	}

	presented, err := s.reports.Present(ctx, assignmentID, viewer)
	if err != nil {
		return ExportArtifact{}, err
	}

	data, err := render(presented)
	if err != nil {
		s.logger.Error().Err(err).Uint("assignment_id", assignmentID).Str("format", format).Msg("export render failed")
		return ExportArtifact{}, fmt.Errorf("render %s export: %w", format, err)
	}

	return ExportArtifact{
		Filename:    fmt.Sprintf("report-%d.%s", assignmentID, format),
		ContentType: contentType,
		Data:        data,
	}, nil
}
