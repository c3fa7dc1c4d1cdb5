package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/talentscope-api/internal/dto"
	"github.com/noah-isme/talentscope-api/internal/export"
	"github.com/noah-isme/talentscope-api/internal/service"
	"github.com/noah-isme/talentscope-api/internal/utils"
)

// PrintHandler serves the printable report view consumed by the headless browser.
type PrintHandler struct {
	reports service.ReportService
	tokens  service.PrintTokenService
	logger  zerolog.Logger
}

// NewPrintHandler constructs the handler.
func NewPrintHandler(reports service.ReportService, tokens service.PrintTokenService, logger zerolog.Logger) *PrintHandler {
	return &PrintHandler{
		reports: reports,
		tokens:  tokens,
		logger:  logger.With().Str("component", "print_handler").Logger(),
	}
}

// Register binds the printable view. The route is authorised by the print credential alone.
func (h *PrintHandler) Register(router fiber.Router) {
	router.Get("/reports/:assignmentId", h.view)
}

func (h *PrintHandler) view(c *fiber.Ctx) error {
	assignmentID, err := parseAssignmentID(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	token := c.Query("token")
	if token == "" {
		return utils.SendError(c, fiber.StatusUnauthorized, "print token required")
	}

	ctx := requestContext(c)
	granted, err := h.tokens.Redeem(ctx, token)
	if err != nil {
		code, message := reportErrorStatus(err)
		if code >= fiber.StatusInternalServerError {
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to redeem print token")
			return utils.SendError(c, code, "failed to verify print token")
		}
		return utils.SendError(c, code, message)
	}
	if granted != assignmentID {
		return utils.SendError(c, fiber.StatusUnauthorized, service.ErrPrintTokenInvalid.Error())
	}

	presented, err := h.reports.Present(ctx, assignmentID, dto.ReportViewer{System: true})
	if err != nil {
		code, message := reportErrorStatus(err)
		if code >= fiber.StatusInternalServerError {
			requestLogger(h.logger, c).Error().Err(err).Uint("assignment_id", assignmentID).Msg("failed to load report for print")
			return utils.SendError(c, code, "failed to load report")
		}
		return utils.SendError(c, code, message)
	}

	page, err := export.RenderPrintHTML(presented)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Uint("assignment_id", assignmentID).Msg("failed to render print view")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to render print view")
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	c.Set(fiber.HeaderCacheControl, "no-store")
	return c.Status(fiber.StatusOK).Send(page)
}
