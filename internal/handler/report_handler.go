package handler

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/talentscope-api/internal/middleware"
	"github.com/noah-isme/talentscope-api/internal/service"
	"github.com/noah-isme/talentscope-api/internal/utils"
)

// ReportHandler exposes report fetch, regeneration, feedback assignment and exports.
type ReportHandler struct {
	reports service.ReportService
	exports service.ExportService
	logger  zerolog.Logger
}

// NewReportHandler constructs the handler.
func NewReportHandler(reports service.ReportService, exports service.ExportService, logger zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		exports: exports,
		logger:  logger.With().Str("component", "report_handler").Logger(),
	}
}

// Register attaches report routes to the router group.
func (h *ReportHandler) Register(router fiber.Router) {
	signedIn := middleware.AuthOptions{RequireUser: true}
	admin := middleware.AuthOptions{Role: middleware.AuthRoleAdmin}

	router.Get("/:assignmentId", middleware.WithAuth(h.get, signedIn))
	router.Post("/:assignmentId/regenerate", middleware.WithAuth(h.regenerate, admin))
	router.Post("/:assignmentId/feedback", middleware.WithAuth(h.assignFeedback, admin))
	for _, format := range []string{service.ExportFormatCSV, service.ExportFormatXLSX, service.ExportFormatPDF} {
		router.Get("/:assignmentId/export."+format, middleware.RateLimit("report-export", 20, time.Minute), middleware.WithAuth(h.export(format), signedIn))
	}
}

func (h *ReportHandler) get(c *fiber.Ctx) error {
	assignmentID, err := parseAssignmentID(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	response, err := h.reports.GetReport(requestContext(c), assignmentID, viewerFromContext(c))
	if err != nil {
		return h.fail(c, err, "failed to load report")
	}

	return utils.SendSuccess(c, "report retrieved", response)
}

func (h *ReportHandler) regenerate(c *fiber.Ctx) error {
	assignmentID, err := parseAssignmentID(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	report, err := h.reports.Regenerate(requestContext(c), assignmentID)
	if err != nil {
		return h.fail(c, err, "failed to regenerate report")
	}

	return utils.SendSuccess(c, "report regenerated", fiber.Map{"report": report, "cached": false})
}

func (h *ReportHandler) assignFeedback(c *fiber.Ctx) error {
	assignmentID, err := parseAssignmentID(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	feedback, err := h.reports.AssignFeedback(requestContext(c), assignmentID)
	if err != nil {
		return h.fail(c, err, "failed to assign feedback")
	}

	return utils.SendSuccess(c, "feedback assigned", feedback)
}

func (h *ReportHandler) export(format string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		assignmentID, err := parseAssignmentID(c)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}

		artifact, err := h.exports.Export(requestContext(c), assignmentID, format, viewerFromContext(c))
		if err != nil {
			return h.fail(c, err, "failed to export report")
		}

		c.Set(fiber.HeaderContentType, artifact.ContentType)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", artifact.Filename))
		return c.Status(fiber.StatusOK).Send(artifact.Data)
	}
}

func (h *ReportHandler) fail(c *fiber.Ctx, err error, msg string) error {
	status, message := reportErrorStatus(err)
	if status >= fiber.StatusInternalServerError {
		requestLogger(h.logger, c).Error().Err(err).Str("assignment_id", c.Params("assignmentId")).Msg(msg)
		return utils.SendError(c, status, msg)
	}
	return utils.SendError(c, status, message)
}
