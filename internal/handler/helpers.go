package handler

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/talentscope-api/internal/dto"
	"github.com/noah-isme/talentscope-api/internal/middleware"
	"github.com/noah-isme/talentscope-api/internal/service"
)

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func userRoleFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_role"); v != nil {
		if role, ok := v.(string); ok {
			return strings.ToLower(strings.TrimSpace(role))
		}
	}
	return ""
}

func viewerFromContext(c *fiber.Ctx) dto.ReportViewer {
	return dto.ReportViewer{
		UserID: userIDFromContext(c),
		Role:   userRoleFromContext(c),
	}
}

func parseAssignmentID(c *fiber.Ctx) (uint, error) {
	raw := strings.TrimSpace(c.Params("assignmentId"))
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid assignment id")
	}
	return uint(parsed), nil
}

func requestContext(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return middleware.ContextWithCorrelation(ctx, middleware.GetCorrelationID(c))
}

func requestContextFromLocals(conn *websocket.Conn) context.Context {
	if ctx, ok := conn.Locals("request_ctx").(context.Context); ok && ctx != nil {
		return ctx
	}
	return context.Background()
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

func isValidationError(err error) bool {
	var validationErrors validator.ValidationErrors
	return errors.As(err, &validationErrors)
}

// reportErrorStatus maps report pipeline errors onto HTTP statuses.
func reportErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrReportAssignmentNotFound):
		return fiber.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrReportForbidden):
		return fiber.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrUse360Generator), errors.Is(err, service.ErrUseLeaderBlockerGenerator):
		return fiber.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, service.ErrUnsupportedExportFormat):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrPrintTokenInvalid), errors.Is(err, service.ErrPrintTokenUsed):
		return fiber.StatusUnauthorized, err.Error()
	case isValidationError(err):
		return fiber.StatusBadRequest, err.Error()
	default:
		return fiber.StatusInternalServerError, "failed to process report request"
	}
}
